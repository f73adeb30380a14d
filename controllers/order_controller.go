package controllers

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mscwoundcare/portal_backend/config"
	"github.com/mscwoundcare/portal_backend/middleware"
	"github.com/mscwoundcare/portal_backend/models"
	"github.com/mscwoundcare/portal_backend/websocket"
)

// OrderController handles order CRUD and lifecycle transitions
type OrderController struct {
	DB     *mongo.Client
	hub    *websocket.Hub
	logger *log.Logger
}

// NewOrderController creates a new order controller
func NewOrderController(db *mongo.Client, hub *websocket.Hub) *OrderController {
	return &OrderController{
		DB:     db,
		hub:    hub,
		logger: log.New(os.Stdout, "[ORDER] ", log.LstdFlags),
	}
}

// CreateOrder creates a draft order. Item prices and categories are
// snapshotted from the product catalog and the total is computed
// server-side; the client never supplies amounts.
func (oc *OrderController) CreateOrder(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Facility and at least one item are required",
		})
	}

	userID, err := primitive.ObjectIDFromHex(middleware.GetUserIDFromToken(c))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID in token",
		})
	}

	facilityID, err := primitive.ObjectIDFromHex(req.FacilityID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid facility ID format",
		})
	}

	count, err := config.GetCollection(oc.DB, "facilities").CountDocuments(ctx, bson.M{"_id": facilityID})
	if err != nil || count == 0 {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Facility not found",
		})
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, itemReq := range req.Items {
		productID, err := primitive.ObjectIDFromHex(itemReq.ProductID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid product ID format",
			})
		}

		var product models.Product
		err = config.GetCollection(oc.DB, "products").FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return c.JSON(http.StatusNotFound, models.Response{
					Status:  http.StatusNotFound,
					Message: "Product not found: " + itemReq.ProductID,
				})
			}
			oc.logger.Printf("Error loading product %s: %v", itemReq.ProductID, err)
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to create order",
			})
		}

		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Category:  product.Category,
			Quantity:  itemReq.Quantity,
			Price:     product.Price,
		})
	}

	now := time.Now().UTC()
	order := models.Order{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		FacilityID: facilityID,
		Status:     models.OrderStatusDraft,
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	order.Total = order.ComputeTotal()

	if _, err := config.GetCollection(oc.DB, "orders").InsertOne(ctx, order); err != nil {
		oc.logger.Printf("Error inserting order: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create order",
		})
	}

	return c.JSON(http.StatusCreated, order)
}

// GetOrders lists orders. Admin and staff see everything; reps see only
// their own orders.
func (oc *OrderController) GetOrders(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	limit := parseIntParam(c.QueryParam("limit"), 20)
	offset := parseIntParam(c.QueryParam("offset"), 0)

	filter := bson.M{}

	role := middleware.ExtractRole(c)
	if role != models.RoleAdmin && role != models.RoleStaff {
		userID, err := primitive.ObjectIDFromHex(middleware.GetUserIDFromToken(c))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid user ID in token",
			})
		}
		filter["userId"] = userID
	}

	if status := c.QueryParam("status"); status != "" {
		if !models.ValidOrderStatus(status) {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Unknown order status",
			})
		}
		filter["status"] = status
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := config.GetCollection(oc.DB, "orders").Find(ctx, filter, opts)
	if err != nil {
		oc.logger.Printf("Error fetching orders: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch orders",
		})
	}

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		oc.logger.Printf("Error decoding orders: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch orders",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"orders":     orders,
		"pagination": models.Pagination{Limit: limit, Offset: offset},
	})
}

// GetOrder fetches a single order, enforcing ownership for reps
func (oc *OrderController) GetOrder(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	order, errResp := oc.loadOrder(ctx, c)
	if errResp != nil {
		return c.JSON(errResp.Status, *errResp)
	}

	return c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus moves an order through its lifecycle. Only admin and
// staff operate the fulfillment pipeline; delivered and cancelled orders
// are immutable.
func (oc *OrderController) UpdateOrderStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid order ID format",
		})
	}

	var req models.UpdateOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if !models.ValidOrderStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Unknown order status",
		})
	}

	coll := config.GetCollection(oc.DB, "orders")

	var order models.Order
	if err := coll.FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Order not found",
			})
		}
		oc.logger.Printf("Error loading order %s: %v", orderID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update order",
		})
	}

	if !models.CanTransitionOrder(order.Status, req.Status) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Cannot transition order from " + order.Status + " to " + req.Status,
		})
	}

	// The status filter guards against a concurrent transition between
	// the read above and this update.
	result, err := coll.UpdateOne(ctx,
		bson.M{"_id": orderID, "status": order.Status},
		bson.M{"$set": bson.M{"status": req.Status, "updatedAt": time.Now().UTC()}},
	)
	if err != nil || result.MatchedCount == 0 {
		oc.logger.Printf("Error transitioning order %s: %v", orderID.Hex(), err)
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Order was modified concurrently, retry",
		})
	}

	order.Status = req.Status
	order.UpdatedAt = time.Now().UTC()

	if oc.hub != nil {
		oc.hub.NotifyOrderStatus(order.UserID, order)
	}

	return c.JSON(http.StatusOK, order)
}

// CancelOrder cancels a non-terminal order. The owning rep may cancel
// their own order; admin and staff may cancel any.
func (oc *OrderController) CancelOrder(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	order, errResp := oc.loadOrder(ctx, c)
	if errResp != nil {
		return c.JSON(errResp.Status, *errResp)
	}

	if !models.CanTransitionOrder(order.Status, models.OrderStatusCancelled) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Cannot cancel order in status " + order.Status,
		})
	}

	result, err := config.GetCollection(oc.DB, "orders").UpdateOne(ctx,
		bson.M{"_id": order.ID, "status": order.Status},
		bson.M{"$set": bson.M{"status": models.OrderStatusCancelled, "updatedAt": time.Now().UTC()}},
	)
	if err != nil || result.MatchedCount == 0 {
		oc.logger.Printf("Error cancelling order %s: %v", order.ID.Hex(), err)
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Order was modified concurrently, retry",
		})
	}

	order.Status = models.OrderStatusCancelled

	if oc.hub != nil {
		oc.hub.NotifyOrderStatus(order.UserID, order)
	}

	return c.JSON(http.StatusOK, order)
}

// loadOrder fetches the order in the :id param and checks the caller may
// see it
func (oc *OrderController) loadOrder(ctx context.Context, c echo.Context) (*models.Order, *models.Response) {
	orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return nil, &models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid order ID format",
		}
	}

	var order models.Order
	if err := config.GetCollection(oc.DB, "orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, &models.Response{
				Status:  http.StatusNotFound,
				Message: "Order not found",
			}
		}
		oc.logger.Printf("Error loading order %s: %v", orderID.Hex(), err)
		return nil, &models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch order",
		}
	}

	role := middleware.ExtractRole(c)
	if role != models.RoleAdmin && role != models.RoleStaff {
		if middleware.GetUserIDFromToken(c) != order.UserID.Hex() {
			return nil, &models.Response{
				Status:  http.StatusForbidden,
				Message: "Access denied for your role",
			}
		}
	}

	return &order, nil
}
