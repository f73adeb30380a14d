package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Commission rule kinds. Each rule carries exactly one kind; the
// interpreter in the services package decides applicability per order.
const (
	RuleKindFlatRate     = "flat_rate"     // applies to every order
	RuleKindCategory     = "category"      // applies when an order item matches a category
	RuleKindMinThreshold = "min_threshold" // applies when the order total reaches a minimum
)

// Payout statuses. The calculator only ever creates PENDING payouts;
// later workflow steps move them forward.
const (
	PayoutStatusPending  = "PENDING"
	PayoutStatusApproved = "APPROVED"
	PayoutStatusPaid     = "PAID"
)

// Payout sources. Calculated payouts are owned by the calculation run and
// upserted per (user, period); manual payouts are one-off admin entries.
const (
	PayoutSourceCalculated = "calculated"
	PayoutSourceManual     = "manual"
)

// RuleConfig is the typed commission rule configuration. Exactly which
// fields matter depends on Kind: Rate always does, Categories only for
// category rules, MinOrderValue only for min_threshold rules.
type RuleConfig struct {
	Kind          string   `json:"kind" bson:"kind"`
	Rate          Money    `json:"rate" bson:"rate"` // fraction, e.g. 0.05 for 5%
	Categories    []string `json:"categories,omitempty" bson:"categories,omitempty"`
	MinOrderValue Money    `json:"minOrderValue,omitempty" bson:"minOrderValue,omitempty"`
	Priority      int      `json:"priority" bson:"priority"` // higher wins among applicable rules
}

// CommissionRule is a named, switchable rate configuration
type CommissionRule struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Rule      RuleConfig         `json:"rule" bson:"rule"`
	Active    bool               `json:"active" bson:"active"`
	CreatedBy primitive.ObjectID `json:"createdBy" bson:"createdBy"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// PayoutMetadata records where a payout came from
type PayoutMetadata struct {
	CalculatedAt    *time.Time          `json:"calculatedAt,omitempty" bson:"calculatedAt,omitempty"`
	RunID           string              `json:"runId,omitempty" bson:"runId,omitempty"`
	ManuallyCreated bool                `json:"manuallyCreated,omitempty" bson:"manuallyCreated,omitempty"`
	CreatedBy       *primitive.ObjectID `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
}

// CommissionPayout is commission owed to one user for one period
type CommissionPayout struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Period    string             `json:"period" bson:"period"` // "YYYY-MM"
	Amount    Money              `json:"amount" bson:"amount"`
	Status    string             `json:"status" bson:"status"`
	Source    string             `json:"source" bson:"source"`
	Metadata  PayoutMetadata     `json:"metadata" bson:"metadata"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// CreateRuleRequest is the body for POST /api/commissions/rules
type CreateRuleRequest struct {
	Name   string     `json:"name" validate:"required"`
	Rule   RuleConfig `json:"rule" validate:"required"`
	Active *bool      `json:"active,omitempty"`
}

// UpdateRuleRequest is the body for PUT /api/commissions/rules/:id
type UpdateRuleRequest struct {
	Name   string      `json:"name,omitempty"`
	Rule   *RuleConfig `json:"rule,omitempty"`
	Active *bool       `json:"active,omitempty"`
}

// CalculateCommissionsRequest triggers a calculation run
type CalculateCommissionsRequest struct {
	Period string `json:"period"`
}

// CreatePayoutRequest is the body for a manual payout
type CreatePayoutRequest struct {
	UserID   string          `json:"userId" validate:"required"`
	Amount   Money           `json:"amount" validate:"required"`
	Period   string          `json:"period" validate:"required"`
	Status   string          `json:"status,omitempty"`
	Metadata *PayoutMetadata `json:"metadata,omitempty"`
}
