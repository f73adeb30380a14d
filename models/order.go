package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order lifecycle statuses
const (
	OrderStatusDraft      = "DRAFT"
	OrderStatusSubmitted  = "SUBMITTED"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
)

// orderTransitions is the forward lifecycle. DELIVERED and CANCELLED are
// terminal; commission calculation relies on delivered orders never
// changing again.
var orderTransitions = map[string][]string{
	OrderStatusDraft:      {OrderStatusSubmitted, OrderStatusCancelled},
	OrderStatusSubmitted:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
}

// CanTransitionOrder reports whether an order may move from one status to
// another
func CanTransitionOrder(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether status is a known lifecycle status
func ValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusDraft, OrderStatusSubmitted, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem is one product line on an order. Category is snapshotted from
// the product at order time so category-restricted commission rules see
// the category the order was actually placed under.
type OrderItem struct {
	ProductID primitive.ObjectID `json:"productId" bson:"productId"`
	Name      string             `json:"name" bson:"name"`
	Category  string             `json:"category" bson:"category"`
	Quantity  int                `json:"quantity" bson:"quantity"`
	Price     Money              `json:"price" bson:"price"` // unit price at order time
}

// Order is a purchase by a user at a facility
type Order struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID     primitive.ObjectID `json:"userId" bson:"userId"`
	FacilityID primitive.ObjectID `json:"facilityId" bson:"facilityId"`
	Status     string             `json:"status" bson:"status"`
	Items      []OrderItem        `json:"items" bson:"items"`
	Total      Money              `json:"total" bson:"total"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ComputeTotal sums quantity x unit price over all items
func (o *Order) ComputeTotal() Money {
	total := Money{}
	for _, item := range o.Items {
		line := item.Price.Decimal.Mul(decimalFromInt(item.Quantity))
		total = Money{Decimal: total.Decimal.Add(line)}
	}
	return total
}

// HasCategory reports whether any item on the order belongs to one of the
// given categories. A "*" entry matches everything.
func (o *Order) HasCategory(categories []string) bool {
	for _, cat := range categories {
		if cat == "*" {
			return true
		}
		for _, item := range o.Items {
			if item.Category == cat {
				return true
			}
		}
	}
	return false
}

// CreateOrderRequest is the body for creating a draft order
type CreateOrderRequest struct {
	FacilityID string                   `json:"facilityId" validate:"required"`
	Items      []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// UpdateOrderStatusRequest moves an order through its lifecycle
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}
