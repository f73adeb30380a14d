package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mscwoundcare/portal_backend/models"
	"github.com/mscwoundcare/portal_backend/services"
)

// memStore is an in-memory services.CommissionStore for exercising the
// calculate endpoint without a database
type memStore struct {
	orders  []models.Order
	users   map[primitive.ObjectID]models.User
	rules   []models.CommissionRule
	payouts map[string]models.CommissionPayout
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[primitive.ObjectID]models.User),
		payouts: make(map[string]models.CommissionPayout),
	}
}

func (s *memStore) InTransaction(ctx context.Context, fn func(ctx context.Context, tx services.CommissionTx) error) error {
	return fn(ctx, s)
}

func (s *memStore) DeliveredOrders(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	selected := []models.Order{}
	for _, order := range s.orders {
		if order.Status != models.OrderStatusDelivered {
			continue
		}
		if order.CreatedAt.Before(from) || !order.CreatedAt.Before(to) {
			continue
		}
		selected = append(selected, order)
	}
	return selected, nil
}

func (s *memStore) UsersByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User)
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

func (s *memStore) ActiveRules(ctx context.Context) ([]models.CommissionRule, error) {
	return s.rules, nil
}

func (s *memStore) UpsertCalculatedPayout(ctx context.Context, payout models.CommissionPayout) (models.CommissionPayout, error) {
	key := payout.UserID.Hex() + "|" + payout.Period
	if existing, ok := s.payouts[key]; ok {
		if existing.Status != models.PayoutStatusPending {
			return existing, nil
		}
		payout.ID = existing.ID
	} else {
		payout.ID = primitive.NewObjectID()
	}
	s.payouts[key] = payout
	return payout, nil
}

func (s *memStore) DeleteStaleCalculatedPayouts(ctx context.Context, period string, keep []primitive.ObjectID) error {
	keepSet := make(map[primitive.ObjectID]bool)
	for _, id := range keep {
		keepSet[id] = true
	}
	for key, payout := range s.payouts {
		if payout.Period == period && payout.Status == models.PayoutStatusPending && !keepSet[payout.UserID] {
			delete(s.payouts, key)
		}
	}
	return nil
}

type testValidator struct {
	validator *validator.Validate
}

func (tv *testValidator) Validate(i interface{}) error {
	return tv.validator.Struct(i)
}

func calculateRequest(t *testing.T, controller *CommissionController, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}
	req := httptest.NewRequest(http.MethodPost, "/api/commissions/calculate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("role", models.RoleAdmin)

	require.NoError(t, controller.CalculateCommissions(c))
	return rec
}

func TestCalculateEndpointSuccess(t *testing.T) {
	store := newMemStore()
	user := models.User{ID: primitive.NewObjectID(), Role: models.RoleRep}
	store.users[user.ID] = user

	total, err := models.MoneyFromString("1000")
	require.NoError(t, err)
	store.orders = []models.Order{{
		ID:        primitive.NewObjectID(),
		UserID:    user.ID,
		Status:    models.OrderStatusDelivered,
		Total:     total,
		CreatedAt: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
	}}

	service := services.NewCommissionService(store, nil)
	controller := NewCommissionController(nil, service, nil)

	rec := calculateRequest(t, controller, `{"period":"2025-04"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                      `json:"success"`
		Count   int                       `json:"count"`
		Payouts []models.CommissionPayout `json:"payouts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Payouts, 1)
	assert.Equal(t, models.PayoutStatusPending, resp.Payouts[0].Status)
}

func TestCalculateEndpointInvalidPeriod(t *testing.T) {
	service := services.NewCommissionService(newMemStore(), nil)
	controller := NewCommissionController(nil, service, nil)

	for _, body := range []string{
		`{"period":"2025/04"}`,
		`{"period":"abcd-ef"}`,
		`{"period":"2025-13"}`,
	} {
		rec := calculateRequest(t, controller, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestCalculateEndpointMissingPeriod(t *testing.T) {
	service := services.NewCommissionService(newMemStore(), nil)
	controller := NewCommissionController(nil, service, nil)

	rec := calculateRequest(t, controller, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculateEndpointEmptyMonth(t *testing.T) {
	service := services.NewCommissionService(newMemStore(), nil)
	controller := NewCommissionController(nil, service, nil)

	rec := calculateRequest(t, controller, `{"period":"2025-04"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Zero(t, resp.Count)
}

func TestValidateRuleConfig(t *testing.T) {
	rate := func(s string) models.Money {
		m, err := models.MoneyFromString(s)
		require.NoError(t, err)
		return m
	}

	assert.NoError(t, validateRuleConfig(models.RuleConfig{
		Kind: models.RuleKindFlatRate, Rate: rate("0.05"),
	}))
	assert.NoError(t, validateRuleConfig(models.RuleConfig{
		Kind: models.RuleKindCategory, Rate: rate("0.08"), Categories: []string{"dressings"},
	}))
	assert.NoError(t, validateRuleConfig(models.RuleConfig{
		Kind: models.RuleKindMinThreshold, Rate: rate("0.06"), MinOrderValue: rate("500"),
	}))

	assert.Error(t, validateRuleConfig(models.RuleConfig{
		Kind: "percentage", Rate: rate("0.05"),
	}), "unknown kind")
	assert.Error(t, validateRuleConfig(models.RuleConfig{
		Kind: models.RuleKindFlatRate, Rate: rate("1.5"),
	}), "rate above 1")
	assert.Error(t, validateRuleConfig(models.RuleConfig{
		Kind: models.RuleKindFlatRate, Rate: rate("-0.05"),
	}), "negative rate")
	assert.Error(t, validateRuleConfig(models.RuleConfig{
		Kind: models.RuleKindCategory, Rate: rate("0.08"),
	}), "category rule without categories")
}

func TestManualPayoutMetadataStampsCreatingAdmin(t *testing.T) {
	adminID := primitive.NewObjectID()

	metadata := manualPayoutMetadata(nil, adminID)
	assert.True(t, metadata.ManuallyCreated)
	require.NotNil(t, metadata.CreatedBy)
	assert.Equal(t, adminID, *metadata.CreatedBy)

	// Admin-supplied metadata keeps its fields but cannot drop or spoof
	// the audit trail
	otherID := primitive.NewObjectID()
	supplied := &models.PayoutMetadata{RunID: "manual-note", CreatedBy: &otherID}
	metadata = manualPayoutMetadata(supplied, adminID)
	assert.True(t, metadata.ManuallyCreated)
	assert.Equal(t, "manual-note", metadata.RunID)
	require.NotNil(t, metadata.CreatedBy)
	assert.Equal(t, adminID, *metadata.CreatedBy)
}
