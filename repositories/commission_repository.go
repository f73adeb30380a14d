package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mscwoundcare/portal_backend/config"
	"github.com/mscwoundcare/portal_backend/models"
	"github.com/mscwoundcare/portal_backend/services"
)

// CommissionRepository is the MongoDB store behind the commission service.
// InTransaction runs the whole calculation inside one session transaction
// so a failed payout write rolls back every payout of the run.
type CommissionRepository struct {
	client *mongo.Client
}

func NewCommissionRepository(client *mongo.Client) *CommissionRepository {
	return &CommissionRepository{client: client}
}

// InTransaction implements services.CommissionStore
func (r *CommissionRepository) InTransaction(ctx context.Context, fn func(ctx context.Context, tx services.CommissionTx) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, r)
	})
	return err
}

// DeliveredOrders implements services.CommissionTx
func (r *CommissionRepository) DeliveredOrders(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	cursor, err := config.GetCollection(r.client, "orders").Find(ctx, bson.M{
		"status": models.OrderStatusDelivered,
		"createdAt": bson.M{
			"$gte": from,
			"$lt":  to,
		},
	})
	if err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UsersByID implements services.CommissionTx
func (r *CommissionRepository) UsersByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	users := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	cursor, err := config.GetCollection(r.client, "users").Find(ctx, bson.M{
		"_id": bson.M{"$in": ids},
	})
	if err != nil {
		return nil, err
	}
	var results []models.User
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	for _, user := range results {
		users[user.ID] = user
	}
	return users, nil
}

// ActiveRules implements services.CommissionTx
func (r *CommissionRepository) ActiveRules(ctx context.Context) ([]models.CommissionRule, error) {
	cursor, err := config.GetCollection(r.client, "commission_rules").Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, err
	}
	var rules []models.CommissionRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// UpsertCalculatedPayout implements services.CommissionTx. The unique
// partial index on (userId, period, source=calculated) backs the upsert.
// Only PENDING payouts are rewritten; once a payout is APPROVED or PAID
// a recalculation returns the stored document untouched.
func (r *CommissionRepository) UpsertCalculatedPayout(ctx context.Context, payout models.CommissionPayout) (models.CommissionPayout, error) {
	coll := config.GetCollection(r.client, "commission_payouts")
	now := time.Now().UTC()

	filter := bson.M{
		"userId": payout.UserID,
		"period": payout.Period,
		"source": models.PayoutSourceCalculated,
		"status": models.PayoutStatusPending,
	}
	update := bson.M{
		"$set": bson.M{
			"amount":    payout.Amount,
			"status":    payout.Status,
			"metadata":  payout.Metadata,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"userId":    payout.UserID,
			"period":    payout.Period,
			"source":    models.PayoutSourceCalculated,
			"createdAt": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored models.CommissionPayout
	err := coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if err != nil {
		// The upsert inserts when the PENDING filter misses; with a
		// progressed payout already present the insert trips the unique
		// index. Return that payout as is.
		if mongo.IsDuplicateKeyError(err) {
			ferr := coll.FindOne(ctx, bson.M{
				"userId": payout.UserID,
				"period": payout.Period,
				"source": models.PayoutSourceCalculated,
			}).Decode(&stored)
			if ferr != nil {
				return models.CommissionPayout{}, ferr
			}
			return stored, nil
		}
		return models.CommissionPayout{}, err
	}
	return stored, nil
}

// DeleteStaleCalculatedPayouts implements services.CommissionTx. Only
// PENDING calculated payouts are candidates; anything a later workflow
// step already touched is left alone.
func (r *CommissionRepository) DeleteStaleCalculatedPayouts(ctx context.Context, period string, keep []primitive.ObjectID) error {
	filter := bson.M{
		"period": period,
		"source": models.PayoutSourceCalculated,
		"status": models.PayoutStatusPending,
	}
	if len(keep) > 0 {
		filter["userId"] = bson.M{"$nin": keep}
	}
	_, err := config.GetCollection(r.client, "commission_payouts").DeleteMany(ctx, filter)
	return err
}
