package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mscwoundcare/portal_backend/models"
)

// fakeTx implements CommissionTx backed by in-memory slices. Payouts are
// keyed by (user, period) to mirror the partial unique index.
type fakeTx struct {
	orders []models.Order
	users  map[primitive.ObjectID]models.User
	rules  []models.CommissionRule

	payouts map[string]models.CommissionPayout

	windowFrom time.Time
	windowTo   time.Time
	staleKeep  []primitive.ObjectID
	staleCalls int
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		users:   make(map[primitive.ObjectID]models.User),
		payouts: make(map[string]models.CommissionPayout),
	}
}

func (f *fakeTx) DeliveredOrders(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	f.windowFrom, f.windowTo = from, to
	selected := []models.Order{}
	for _, order := range f.orders {
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

func (f *fakeTx) UsersByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User)
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

func (f *fakeTx) ActiveRules(ctx context.Context) ([]models.CommissionRule, error) {
	active := []models.CommissionRule{}
	for _, rule := range f.rules {
		if rule.Active {
			active = append(active, rule)
		}
	}
	return active, nil
}

func (f *fakeTx) UpsertCalculatedPayout(ctx context.Context, payout models.CommissionPayout) (models.CommissionPayout, error) {
	key := payout.UserID.Hex() + "|" + payout.Period
	if existing, ok := f.payouts[key]; ok {
		if existing.Status != models.PayoutStatusPending {
			return existing, nil
		}
		payout.ID = existing.ID
	} else {
		payout.ID = primitive.NewObjectID()
	}
	f.payouts[key] = payout
	return payout, nil
}

func (f *fakeTx) DeleteStaleCalculatedPayouts(ctx context.Context, period string, keep []primitive.ObjectID) error {
	f.staleCalls++
	f.staleKeep = keep
	keepSet := make(map[primitive.ObjectID]bool)
	for _, id := range keep {
		keepSet[id] = true
	}
	for key, payout := range f.payouts {
		if payout.Period == period && payout.Status == models.PayoutStatusPending && !keepSet[payout.UserID] {
			delete(f.payouts, key)
		}
	}
	return nil
}

type fakeStore struct {
	tx    *fakeTx
	calls int
}

func (s *fakeStore) InTransaction(ctx context.Context, fn func(ctx context.Context, tx CommissionTx) error) error {
	s.calls++
	return fn(ctx, s.tx)
}

func newTestService(tx *fakeTx) (*CommissionService, *fakeStore) {
	store := &fakeStore{tx: tx}
	return NewCommissionService(store, nil), store
}

func deliveredOrder(userID primitive.ObjectID, total string, category string) models.Order {
	amount, _ := models.MoneyFromString(total)
	return models.Order{
		ID:     primitive.NewObjectID(),
		UserID: userID,
		Status: models.OrderStatusDelivered,
		Items: []models.OrderItem{
			{Name: "item", Category: category, Quantity: 1, Price: amount},
		},
		Total:     amount,
		CreatedAt: time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC),
	}
}

func rep(tx *fakeTx) models.User {
	user := models.User{
		ID:       primitive.NewObjectID(),
		Role:     models.RoleRep,
		IsActive: true,
	}
	tx.users[user.ID] = user
	return user
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-04")
	require.NoError(t, err)
	assert.Equal(t, 2025, p.Year)
	assert.Equal(t, time.April, p.Month)
	assert.Equal(t, "2025-04", p.String())

	for _, bad := range []string{"", "2025/04", "abcd-ef", "2025-13", "2025-00", "2025-4", "202504"} {
		_, err := ParsePeriod(bad)
		assert.ErrorIs(t, err, ErrInvalidPeriod, "input %q", bad)
	}
}

func TestPeriodWindowIsHalfOpenMonth(t *testing.T) {
	p, err := ParsePeriod("2025-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), p.Start())
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), p.End())
}

func TestCalculateRejectsInvalidPeriodBeforeStoreAccess(t *testing.T) {
	service, store := newTestService(newFakeTx())

	for _, bad := range []string{"", "2025/04", "abcd-ef", "2025-13"} {
		_, err := service.Calculate(context.Background(), bad)
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	}
	assert.Zero(t, store.calls, "malformed periods must not touch the store")
}

func TestCalculateFallbackRate(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)
	tx.orders = []models.Order{deliveredOrder(user.ID, "1000", "dressings")}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 1)

	payout := payouts[0]
	assert.Equal(t, user.ID, payout.UserID)
	assert.Equal(t, "2025-04", payout.Period)
	assert.True(t, payout.Amount.Decimal.Equal(decimal.RequireFromString("50")),
		"expected 50, got %s", payout.Amount.Decimal)
	assert.Equal(t, models.PayoutStatusPending, payout.Status)
	assert.Equal(t, models.PayoutSourceCalculated, payout.Source)
	assert.NotEmpty(t, payout.Metadata.RunID)
	require.NotNil(t, payout.Metadata.CalculatedAt)
}

func TestCalculateSkipsOrdersOutsideWindow(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)

	inWindow := deliveredOrder(user.ID, "100", "dressings")
	lastInstant := deliveredOrder(user.ID, "100", "dressings")
	lastInstant.CreatedAt = time.Date(2025, 4, 30, 23, 59, 59, 999000000, time.UTC)
	nextMonth := deliveredOrder(user.ID, "100", "dressings")
	nextMonth.CreatedAt = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	tx.orders = []models.Order{inWindow, lastInstant, nextMonth}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.True(t, payouts[0].Amount.Decimal.Equal(decimal.RequireFromString("10")),
		"both April orders count, the May one does not; got %s", payouts[0].Amount.Decimal)
}

func TestCalculateSkipsNonDeliveredOrders(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)

	shipped := deliveredOrder(user.ID, "500", "dressings")
	shipped.Status = models.OrderStatusShipped
	cancelled := deliveredOrder(user.ID, "500", "dressings")
	cancelled.Status = models.OrderStatusCancelled
	tx.orders = []models.Order{shipped, cancelled}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	assert.Empty(t, payouts)
}

func TestCalculateSkipsNonEarningRoles(t *testing.T) {
	tx := newFakeTx()
	admin := models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	staff := models.User{ID: primitive.NewObjectID(), Role: models.RoleStaff}
	tx.users[admin.ID] = admin
	tx.users[staff.ID] = staff
	tx.orders = []models.Order{
		deliveredOrder(admin.ID, "1000", "dressings"),
		deliveredOrder(staff.ID, "1000", "dressings"),
	}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	assert.Empty(t, payouts)
	assert.Equal(t, 1, tx.staleCalls)
	assert.Empty(t, tx.staleKeep)
}

func TestCalculateSubRepParentShare(t *testing.T) {
	tx := newFakeTx()
	parent := rep(tx)
	sub := models.User{
		ID:       primitive.NewObjectID(),
		Role:     models.RoleSubRep,
		ParentID: &parent.ID,
	}
	tx.users[sub.ID] = sub
	tx.orders = []models.Order{deliveredOrder(sub.ID, "1000", "dressings")}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 2)

	byUser := make(map[primitive.ObjectID]models.CommissionPayout)
	for _, payout := range payouts {
		byUser[payout.UserID] = payout
	}

	// Sub-rep keeps the full 5%; the parent is credited an extra 20% of it
	assert.True(t, byUser[sub.ID].Amount.Decimal.Equal(decimal.RequireFromString("50")))
	assert.True(t, byUser[parent.ID].Amount.Decimal.Equal(decimal.RequireFromString("10")))
}

func TestCalculateParentAlsoEarnsOwnOrders(t *testing.T) {
	tx := newFakeTx()
	parent := rep(tx)
	sub := models.User{
		ID:       primitive.NewObjectID(),
		Role:     models.RoleSubRep,
		ParentID: &parent.ID,
	}
	tx.users[sub.ID] = sub
	tx.orders = []models.Order{
		deliveredOrder(parent.ID, "2000", "dressings"),
		deliveredOrder(sub.ID, "1000", "dressings"),
	}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 2)

	byUser := make(map[primitive.ObjectID]models.CommissionPayout)
	for _, payout := range payouts {
		byUser[payout.UserID] = payout
	}

	// Parent: 100 own + 10 pass-through
	assert.True(t, byUser[parent.ID].Amount.Decimal.Equal(decimal.RequireFromString("110")))
	assert.True(t, byUser[sub.ID].Amount.Decimal.Equal(decimal.RequireFromString("50")))
}

func TestCalculateRoundsOnceAtTheEnd(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)
	// 10.10 at 5% is 0.505 per order. Rounding per order would give
	// 0.51 + 0.51 = 1.02; one final rounding of 1.01 stays 1.01.
	tx.orders = []models.Order{
		deliveredOrder(user.ID, "10.10", "dressings"),
		deliveredOrder(user.ID, "10.10", "dressings"),
	}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.True(t, payouts[0].Amount.Decimal.Equal(decimal.RequireFromString("1.01")),
		"got %s", payouts[0].Amount.Decimal)
}

func activeRule(name, kind, rate string, priority int, mutate func(*models.RuleConfig)) models.CommissionRule {
	rateMoney, _ := models.MoneyFromString(rate)
	cfg := models.RuleConfig{Kind: kind, Rate: rateMoney, Priority: priority}
	if mutate != nil {
		mutate(&cfg)
	}
	return models.CommissionRule{
		ID:     primitive.NewObjectID(),
		Name:   name,
		Rule:   cfg,
		Active: true,
	}
}

func TestResolveRateHighestPriorityApplicableWins(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)
	tx.orders = []models.Order{deliveredOrder(user.ID, "1000", "dressings")}
	tx.rules = []models.CommissionRule{
		activeRule("base", models.RuleKindFlatRate, "0.04", 1, nil),
		activeRule("dressings push", models.RuleKindCategory, "0.08", 10, func(cfg *models.RuleConfig) {
			cfg.Categories = []string{"dressings"}
		}),
		activeRule("big orders", models.RuleKindMinThreshold, "0.06", 5, func(cfg *models.RuleConfig) {
			min, _ := models.MoneyFromString("500")
			cfg.MinOrderValue = min
		}),
	}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 1)

	// The category rule at priority 10 wins over both others; no merging
	assert.True(t, payouts[0].Amount.Decimal.Equal(decimal.RequireFromString("80")),
		"got %s", payouts[0].Amount.Decimal)
}

func TestResolveRateFallsThroughInapplicableRules(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)
	tx.orders = []models.Order{deliveredOrder(user.ID, "100", "tapes")}
	tx.rules = []models.CommissionRule{
		activeRule("dressings push", models.RuleKindCategory, "0.08", 10, func(cfg *models.RuleConfig) {
			cfg.Categories = []string{"dressings"}
		}),
		activeRule("big orders", models.RuleKindMinThreshold, "0.06", 5, func(cfg *models.RuleConfig) {
			min, _ := models.MoneyFromString("500")
			cfg.MinOrderValue = min
		}),
	}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 1)

	// Neither rule applies to a 100 tapes order, so the 5% fallback holds
	assert.True(t, payouts[0].Amount.Decimal.Equal(decimal.RequireFromString("5")))
}

func TestResolveRateInactiveRulesIgnored(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)
	tx.orders = []models.Order{deliveredOrder(user.ID, "100", "dressings")}

	inactive := activeRule("off", models.RuleKindFlatRate, "0.50", 100, nil)
	inactive.Active = false
	tx.rules = []models.CommissionRule{inactive}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.True(t, payouts[0].Amount.Decimal.Equal(decimal.RequireFromString("5")))
}

func TestCategoryWildcardMatchesEverything(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)
	tx.orders = []models.Order{deliveredOrder(user.ID, "100", "anything")}
	tx.rules = []models.CommissionRule{
		activeRule("everything", models.RuleKindCategory, "0.10", 1, func(cfg *models.RuleConfig) {
			cfg.Categories = []string{"*"}
		}),
	}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.True(t, payouts[0].Amount.Decimal.Equal(decimal.RequireFromString("10")))
}

func TestMinThresholdBoundaryIsInclusive(t *testing.T) {
	order := deliveredOrder(primitive.NewObjectID(), "500", "dressings")
	min, _ := models.MoneyFromString("500")
	rate, _ := models.MoneyFromString("0.06")
	cfg := models.RuleConfig{Kind: models.RuleKindMinThreshold, Rate: rate, MinOrderValue: min}

	assert.True(t, ruleApplies(cfg, order))

	order.Total, _ = models.MoneyFromString("499.99")
	assert.False(t, ruleApplies(cfg, order))
}

func TestCalculateIsIdempotent(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)
	tx.orders = []models.Order{deliveredOrder(user.ID, "1000", "dressings")}

	service, _ := newTestService(tx)

	first, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	second, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "rerun must replace, not duplicate")
	assert.True(t, first[0].Amount.Decimal.Equal(second[0].Amount.Decimal))
	assert.Len(t, tx.payouts, 1)
}

func TestCalculateRemovesStalePayoutsOnRerun(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)
	order := deliveredOrder(user.ID, "1000", "dressings")
	tx.orders = []models.Order{order}

	service, _ := newTestService(tx)

	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 1)

	// The order is corrected away; the rerun owes this user nothing
	tx.orders = nil
	payouts, err = service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	assert.Empty(t, payouts)
	assert.Empty(t, tx.payouts, "stale pending payout must be removed")
}

func TestCalculateLeavesApprovedPayoutsAlone(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)
	tx.orders = []models.Order{deliveredOrder(user.ID, "1000", "dressings")}

	service, _ := newTestService(tx)

	first, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// The payout moves through the approval workflow between runs
	for key, payout := range tx.payouts {
		payout.Status = models.PayoutStatusApproved
		tx.payouts[key] = payout
	}

	// Orders change, but the approved payout must not be recalculated
	tx.orders = []models.Order{deliveredOrder(user.ID, "2000", "dressings")}
	second, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, models.PayoutStatusApproved, second[0].Status,
		"approved payout must not be reset to pending")
	assert.True(t, second[0].Amount.Decimal.Equal(first[0].Amount.Decimal),
		"approved amount must not change, got %s", second[0].Amount.Decimal)
}

func TestCalculateIncludesInactiveEarners(t *testing.T) {
	tx := newFakeTx()
	user := rep(tx)
	user.IsActive = false
	tx.users[user.ID] = user
	tx.orders = []models.Order{deliveredOrder(user.ID, "1000", "dressings")}

	service, _ := newTestService(tx)
	payouts, err := service.Calculate(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, payouts, 1, "deactivation blocks login, not commission on delivered orders")
	assert.True(t, payouts[0].Amount.Decimal.Equal(decimal.RequireFromString("50")))
}
