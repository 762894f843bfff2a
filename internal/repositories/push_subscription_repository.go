package repositories

import (
	"context"
	"time"

	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PushSubscriptionRepository stores device tokens used for push delivery
type PushSubscriptionRepository interface {
	Register(ctx context.Context, sub *models.PushSubscription) error
	ListByUserID(ctx context.Context, userID uint) ([]models.PushSubscription, error)
	Remove(ctx context.Context, userID uint, token string) error
	RemoveToken(ctx context.Context, token string) error
}

// MongoPushSubscriptionRepository implements PushSubscriptionRepository for MongoDB
type MongoPushSubscriptionRepository struct {
	collection *mongo.Collection
}

// NewMongoPushSubscriptionRepository creates a new MongoPushSubscriptionRepository
func NewMongoPushSubscriptionRepository(db *mongo.Database) *MongoPushSubscriptionRepository {
	return &MongoPushSubscriptionRepository{collection: db.Collection("push_subscriptions")}
}

// EnsureIndexes creates the unique token index and the per-user lookup index
func (r *MongoPushSubscriptionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	return err
}

// Register upserts by token, so a device moving to another account follows it.
func (r *MongoPushSubscriptionRepository) Register(ctx context.Context, sub *models.PushSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = time.Now().UTC()

	filter := bson.M{"token": sub.Token}
	update := bson.M{
		"$set": bson.M{
			"user_id":  sub.UserID,
			"platform": sub.Platform,
		},
		"$setOnInsert": bson.M{
			"_id":        sub.ID,
			"created_at": sub.CreatedAt,
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// ListByUserID returns every device registered for the user
func (r *MongoPushSubscriptionRepository) ListByUserID(ctx context.Context, userID uint) ([]models.PushSubscription, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subs []models.PushSubscription
	if err = cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Remove unregisters one of the user's devices
func (r *MongoPushSubscriptionRepository) Remove(ctx context.Context, userID uint, token string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID, "token": token})
	return err
}

// RemoveToken drops a token the push provider reported as gone
func (r *MongoPushSubscriptionRepository) RemoveToken(ctx context.Context, token string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"token": token})
	return err
}
