package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mscwoundcare/portal_backend/models"
)

// ErrInvalidPeriod is returned for period strings that are not "YYYY-MM"
var ErrInvalidPeriod = errors.New("invalid period format, expected YYYY-MM")

// ErrCalculationInProgress is returned when another calculation run
// currently holds the lock for the same period
var ErrCalculationInProgress = errors.New("a calculation for this period is already in progress")

const (
	// subRepParentShare is the fraction of a sub-rep's commission that is
	// additionally credited to the parent rep. It is not deducted from the
	// sub-rep's own share.
	subRepParentShare = "0.20"

	// fallbackRate applies when no active rule matches an order
	fallbackRate = "0.05"

	calculationTimeout  = 30 * time.Second
	calculationLockTTL  = 5 * time.Minute
	calculationLockPref = "commission_calc:"
)

var periodPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Period is a calendar month commissions are calculated over
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod validates a "YYYY-MM" string. No store access happens for
// malformed input; callers surface ErrInvalidPeriod as a 400.
func ParsePeriod(s string) (Period, error) {
	if !periodPattern.MatchString(s) {
		return Period{}, ErrInvalidPeriod
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// Start is the first instant of the month (UTC)
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month; the selection window is
// the half-open interval [Start, End)
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// CommissionTx exposes the reads and writes of one calculation run. Every
// call happens inside the same store transaction.
type CommissionTx interface {
	// DeliveredOrders returns orders with status DELIVERED created in [from, to)
	DeliveredOrders(ctx context.Context, from, to time.Time) ([]models.Order, error)
	// UsersByID resolves the owning users of the selected orders
	UsersByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
	// ActiveRules returns all commission rules flagged active
	ActiveRules(ctx context.Context) ([]models.CommissionRule, error)
	// UpsertCalculatedPayout creates or replaces the PENDING calculated
	// payout for (userID, period) and returns the stored record. A payout
	// a later workflow step already approved or paid is returned unchanged.
	UpsertCalculatedPayout(ctx context.Context, payout models.CommissionPayout) (models.CommissionPayout, error)
	// DeleteStaleCalculatedPayouts removes PENDING calculated payouts for the
	// period whose user is not in keep (data changed since the last run)
	DeleteStaleCalculatedPayouts(ctx context.Context, period string, keep []primitive.ObjectID) error
}

// CommissionStore runs a function inside one atomic transaction. If fn
// returns an error nothing it did is visible afterwards.
type CommissionStore interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx CommissionTx) error) error
}

// CommissionService calculates period commissions. The store carries the
// persistence; redis (optional) guards against concurrent runs for the
// same period.
type CommissionService struct {
	store  CommissionStore
	redis  *redis.Client
	logger *log.Logger
}

// NewCommissionService creates a commission service. redisClient may be
// nil, in which case the per-period run lock is skipped.
func NewCommissionService(store CommissionStore, redisClient *redis.Client) *CommissionService {
	return &CommissionService{
		store:  store,
		redis:  redisClient,
		logger: log.New(os.Stdout, "[COMMISSION] ", log.LstdFlags),
	}
}

// Calculate runs the commission calculation for one period and returns the
// stored payouts. Re-running the same period with unchanged data is
// idempotent: each commission earner keeps exactly one calculated payout
// per period.
func (s *CommissionService) Calculate(ctx context.Context, period string) ([]models.CommissionPayout, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()

	if s.redis != nil {
		lockKey := calculationLockPref + p.String()
		ok, err := s.redis.SetNX(ctx, lockKey, runID, calculationLockTTL).Result()
		if err != nil {
			s.logger.Printf("redis lock unavailable for %s: %v", p, err)
		} else if !ok {
			return nil, ErrCalculationInProgress
		} else {
			defer s.redis.Del(context.Background(), lockKey)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, calculationTimeout)
	defer cancel()

	payouts, err := s.runCalculation(ctx, p, runID)
	if err != nil && isTransientTxnError(err) {
		s.logger.Printf("transient transaction error for %s, retrying once: %v", p, err)
		payouts, err = s.runCalculation(ctx, p, runID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Printf("calculated %d payouts for %s (run %s)", len(payouts), p, runID)
	return payouts, nil
}

func (s *CommissionService) runCalculation(ctx context.Context, p Period, runID string) ([]models.CommissionPayout, error) {
	var payouts []models.CommissionPayout

	err := s.store.InTransaction(ctx, func(ctx context.Context, tx CommissionTx) error {
		payouts = nil

		orders, err := tx.DeliveredOrders(ctx, p.Start(), p.End())
		if err != nil {
			return fmt.Errorf("select delivered orders: %w", err)
		}

		users, err := tx.UsersByID(ctx, orderOwnerIDs(orders))
		if err != nil {
			return fmt.Errorf("resolve order owners: %w", err)
		}

		rules, err := tx.ActiveRules(ctx)
		if err != nil {
			return fmt.Errorf("load active rules: %w", err)
		}

		totals := aggregateCommissions(orders, users, rules)

		calculatedAt := time.Now().UTC()
		for _, userID := range sortedUserIDs(totals) {
			amount := totals[userID]
			if !amount.IsPositive() {
				continue
			}
			stored, err := tx.UpsertCalculatedPayout(ctx, models.CommissionPayout{
				UserID: userID,
				Period: p.String(),
				Amount: models.NewMoney(amount).Round2(),
				Status: models.PayoutStatusPending,
				Source: models.PayoutSourceCalculated,
				Metadata: models.PayoutMetadata{
					CalculatedAt: &calculatedAt,
					RunID:        runID,
				},
			})
			if err != nil {
				return fmt.Errorf("write payout for %s: %w", userID.Hex(), err)
			}
			payouts = append(payouts, stored)
		}

		keep := make([]primitive.ObjectID, 0, len(payouts))
		for _, payout := range payouts {
			keep = append(keep, payout.UserID)
		}
		if err := tx.DeleteStaleCalculatedPayouts(ctx, p.String(), keep); err != nil {
			return fmt.Errorf("remove stale payouts: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

// aggregateCommissions walks delivered orders and accumulates per-user
// commission as exact decimals. Orders owned by non-earning roles are
// skipped; a sub-rep's parent is additionally credited 20% of the sub-rep
// commission. Rounding happens only when payouts are constructed.
func aggregateCommissions(orders []models.Order, users map[primitive.ObjectID]models.User, rules []models.CommissionRule) map[primitive.ObjectID]decimal.Decimal {
	parentShare := decimal.RequireFromString(subRepParentShare)

	totals := make(map[primitive.ObjectID]decimal.Decimal)
	for _, order := range orders {
		owner, ok := users[order.UserID]
		if !ok || !owner.IsCommissionEarner() {
			continue
		}

		rate := resolveRate(order, rules)
		commission := order.Total.Decimal.Mul(rate)
		totals[owner.ID] = totals[owner.ID].Add(commission)

		if owner.Role == models.RoleSubRep && owner.ParentID != nil {
			totals[*owner.ParentID] = totals[*owner.ParentID].Add(commission.Mul(parentShare))
		}
	}
	return totals
}

// resolveRate picks the rate for one order: among applicable active rules
// the highest-priority one wins, with no merging; ties break toward the
// earlier rule. Falls back to 5% when nothing applies.
func resolveRate(order models.Order, rules []models.CommissionRule) decimal.Decimal {
	sorted := make([]models.CommissionRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rule.Priority > sorted[j].Rule.Priority
	})

	for _, rule := range sorted {
		if ruleApplies(rule.Rule, order) {
			return rule.Rule.Rate.Decimal
		}
	}
	return decimal.RequireFromString(fallbackRate)
}

func ruleApplies(cfg models.RuleConfig, order models.Order) bool {
	switch cfg.Kind {
	case models.RuleKindFlatRate:
		return true
	case models.RuleKindMinThreshold:
		return order.Total.Decimal.GreaterThanOrEqual(cfg.MinOrderValue.Decimal)
	case models.RuleKindCategory:
		return order.HasCategory(cfg.Categories)
	}
	return false
}

func orderOwnerIDs(orders []models.Order) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool)
	ids := make([]primitive.ObjectID, 0, len(orders))
	for _, order := range orders {
		if !seen[order.UserID] {
			seen[order.UserID] = true
			ids = append(ids, order.UserID)
		}
	}
	return ids
}

func sortedUserIDs(totals map[primitive.ObjectID]decimal.Decimal) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Hex() < ids[j].Hex()
	})
	return ids
}

// isTransientTxnError reports whether the driver labeled the failure as
// retryable within a new transaction
func isTransientTxnError(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.HasErrorLabel("TransientTransactionError")
	}
	return false
}
