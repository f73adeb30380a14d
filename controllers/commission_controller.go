package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mscwoundcare/portal_backend/config"
	"github.com/mscwoundcare/portal_backend/middleware"
	"github.com/mscwoundcare/portal_backend/models"
	"github.com/mscwoundcare/portal_backend/services"
	"github.com/mscwoundcare/portal_backend/websocket"
)

// CommissionController serves commission rules, payouts and the
// calculation trigger. Calculation itself lives in the commission service;
// everything here is the HTTP boundary.
type CommissionController struct {
	DB      *mongo.Client
	service *services.CommissionService
	hub     *websocket.Hub
	logger  *log.Logger
}

// NewCommissionController creates a new commission controller
func NewCommissionController(db *mongo.Client, service *services.CommissionService, hub *websocket.Hub) *CommissionController {
	return &CommissionController{
		DB:      db,
		service: service,
		hub:     hub,
		logger:  log.New(os.Stdout, "[COMMISSION] ", log.LstdFlags),
	}
}

// CalculateCommissions runs the commission calculation for one period.
// The response is all-or-nothing: a failed run writes no payouts at all.
func (cc *CommissionController) CalculateCommissions(c echo.Context) error {
	var req models.CalculateCommissionsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.Period == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Period is required (format: YYYY-MM)",
		})
	}

	payouts, err := cc.service.Calculate(c.Request().Context(), req.Period)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPeriod):
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid period format. Use YYYY-MM",
			})
		case errors.Is(err, services.ErrCalculationInProgress):
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "A calculation for this period is already in progress",
			})
		default:
			cc.logger.Printf("Error calculating commissions for %s: %v", req.Period, err)
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to calculate commissions",
			})
		}
	}

	if cc.hub != nil {
		for _, payout := range payouts {
			cc.hub.NotifyPayoutCreated(payout.UserID, payout)
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"payouts": payouts,
		"message": "Calculated commissions for " + req.Period,
		"count":   len(payouts),
	})
}

// GetPayouts lists payouts with optional userId, period and status
// filters. Reps only ever see their own payouts regardless of filters.
func (cc *CommissionController) GetPayouts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	limit := parseIntParam(c.QueryParam("limit"), 10)
	offset := parseIntParam(c.QueryParam("offset"), 0)

	filter := bson.M{}

	role := middleware.ExtractRole(c)
	if role == models.RoleAdmin || role == models.RoleStaff {
		if userID := c.QueryParam("userId"); userID != "" {
			objID, err := primitive.ObjectIDFromHex(userID)
			if err != nil {
				return c.JSON(http.StatusBadRequest, models.Response{
					Status:  http.StatusBadRequest,
					Message: "Invalid user ID format",
				})
			}
			filter["userId"] = objID
		}
	} else {
		objID, err := primitive.ObjectIDFromHex(middleware.GetUserIDFromToken(c))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid user ID in token",
			})
		}
		filter["userId"] = objID
	}

	if period := c.QueryParam("period"); period != "" {
		filter["period"] = period
	}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = status
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := config.GetCollection(cc.DB, "commission_payouts").Find(ctx, filter, opts)
	if err != nil {
		cc.logger.Printf("Error fetching payouts: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch commission payouts",
		})
	}

	payouts := []models.CommissionPayout{}
	if err := cursor.All(ctx, &payouts); err != nil {
		cc.logger.Printf("Error decoding payouts: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch commission payouts",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"payouts":    payouts,
		"pagination": models.Pagination{Limit: limit, Offset: offset},
	})
}

// CreatePayout records a one-off manual payout, bypassing the calculator
func (cc *CommissionController) CreatePayout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.CreatePayoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "User ID, amount, and period are required",
		})
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	if _, err := services.ParsePeriod(req.Period); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid period format. Use YYYY-MM",
		})
	}

	status := req.Status
	if status == "" {
		status = models.PayoutStatusPending
	}

	adminID, _ := primitive.ObjectIDFromHex(middleware.GetUserIDFromToken(c))
	metadata := manualPayoutMetadata(req.Metadata, adminID)

	now := time.Now().UTC()
	payout := models.CommissionPayout{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Period:    req.Period,
		Amount:    req.Amount.Round2(),
		Status:    status,
		Source:    models.PayoutSourceManual,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := config.GetCollection(cc.DB, "commission_payouts").InsertOne(ctx, payout); err != nil {
		cc.logger.Printf("Error creating manual payout: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create commission payout",
		})
	}

	if cc.hub != nil {
		cc.hub.NotifyPayoutCreated(userID, payout)
	}

	return c.JSON(http.StatusCreated, payout)
}

// manualPayoutMetadata keeps whatever fields the admin supplied but always
// stamps the payout as manually created by the authenticated admin
func manualPayoutMetadata(supplied *models.PayoutMetadata, adminID primitive.ObjectID) models.PayoutMetadata {
	metadata := models.PayoutMetadata{}
	if supplied != nil {
		metadata = *supplied
	}
	metadata.ManuallyCreated = true
	metadata.CreatedBy = &adminID
	return metadata
}

// GetRules lists commission rules with optional active/createdBy filters
func (cc *CommissionController) GetRules(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	limit := parseIntParam(c.QueryParam("limit"), 10)
	offset := parseIntParam(c.QueryParam("offset"), 0)

	filter := bson.M{}
	if activeParam := c.QueryParam("active"); activeParam != "" {
		filter["active"] = activeParam == "true"
	}
	if createdBy := c.QueryParam("createdBy"); createdBy != "" {
		objID, err := primitive.ObjectIDFromHex(createdBy)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid createdBy ID format",
			})
		}
		filter["createdBy"] = objID
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := config.GetCollection(cc.DB, "commission_rules").Find(ctx, filter, opts)
	if err != nil {
		cc.logger.Printf("Error fetching rules: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch commission rules",
		})
	}

	rules := []models.CommissionRule{}
	if err := cursor.All(ctx, &rules); err != nil {
		cc.logger.Printf("Error decoding rules: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch commission rules",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"rules":      rules,
		"pagination": models.Pagination{Limit: limit, Offset: offset},
	})
}

// GetRule fetches one commission rule by ID
func (cc *CommissionController) GetRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ruleID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid rule ID format",
		})
	}

	var rule models.CommissionRule
	err = config.GetCollection(cc.DB, "commission_rules").FindOne(ctx, bson.M{"_id": ruleID}).Decode(&rule)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Commission rule not found",
			})
		}
		cc.logger.Printf("Error fetching rule %s: %v", ruleID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch commission rule",
		})
	}

	return c.JSON(http.StatusOK, rule)
}

// CreateRule creates a new commission rule
func (cc *CommissionController) CreateRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.CreateRuleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Name and rule are required",
		})
	}
	if err := validateRuleConfig(req.Rule); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	createdBy, err := primitive.ObjectIDFromHex(middleware.GetUserIDFromToken(c))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID in token",
		})
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	rule := models.CommissionRule{
		ID:        primitive.NewObjectID(),
		Name:      req.Name,
		Rule:      req.Rule,
		Active:    active,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := config.GetCollection(cc.DB, "commission_rules").InsertOne(ctx, rule); err != nil {
		cc.logger.Printf("Error creating rule: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create commission rule",
		})
	}

	return c.JSON(http.StatusCreated, rule)
}

// UpdateRule updates an existing commission rule
func (cc *CommissionController) UpdateRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ruleID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid rule ID format",
		})
	}

	var req models.UpdateRuleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	update := bson.M{"updatedAt": time.Now().UTC()}
	if req.Name != "" {
		update["name"] = req.Name
	}
	if req.Rule != nil {
		if err := validateRuleConfig(*req.Rule); err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: err.Error(),
			})
		}
		update["rule"] = *req.Rule
	}
	if req.Active != nil {
		update["active"] = *req.Active
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rule models.CommissionRule
	err = config.GetCollection(cc.DB, "commission_rules").
		FindOneAndUpdate(ctx, bson.M{"_id": ruleID}, bson.M{"$set": update}, opts).
		Decode(&rule)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Commission rule not found",
			})
		}
		cc.logger.Printf("Error updating rule %s: %v", ruleID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update commission rule",
		})
	}

	return c.JSON(http.StatusOK, rule)
}

// DeleteRule removes a commission rule
func (cc *CommissionController) DeleteRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ruleID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid rule ID format",
		})
	}

	result, err := config.GetCollection(cc.DB, "commission_rules").DeleteOne(ctx, bson.M{"_id": ruleID})
	if err != nil {
		cc.logger.Printf("Error deleting rule %s: %v", ruleID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to delete commission rule",
		})
	}
	if result.DeletedCount == 0 {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Commission rule not found",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission rule deleted successfully",
	})
}

func validateRuleConfig(cfg models.RuleConfig) error {
	switch cfg.Kind {
	case models.RuleKindFlatRate:
	case models.RuleKindCategory:
		if len(cfg.Categories) == 0 {
			return errors.New("category rules require at least one category")
		}
	case models.RuleKindMinThreshold:
		if !cfg.MinOrderValue.IsPositive() {
			return errors.New("min_threshold rules require a positive minOrderValue")
		}
	default:
		return errors.New("unknown rule kind")
	}

	if cfg.Rate.IsNegative() || cfg.Rate.GreaterThan(oneDecimal()) {
		return errors.New("rate must be a fraction between 0 and 1")
	}
	return nil
}

func oneDecimal() decimal.Decimal {
	return decimal.NewFromInt(1)
}

func parseIntParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
