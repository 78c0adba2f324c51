package repository

import (
	"context"
	"errors"
	"time"

	"realtime_messaging_service/internal/messaging/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PresenceRepository definition user presence rows
type PresenceRepository interface {
	UpdateStatus(ctx context.Context, userID string, status domain.UserStatus, lastSeen time.Time) error
	FindStatus(ctx context.Context, userID string) (*domain.PresenceStatus, error)
}

type presenceRepository struct {
	coll *mongo.Collection
	feed *ChangeFeed
}

// NewMongoPresenceRepository create PresenceRepository
func NewMongoPresenceRepository(db *mongo.Database, feed *ChangeFeed) PresenceRepository {
	return &presenceRepository{
		coll: db.Collection(string(domain.TableUsers)),
		feed: feed,
	}
}

// UpdateStatus upsert the user row
func (r *presenceRepository) UpdateStatus(ctx context.Context, userID string, status domain.UserStatus, lastSeen time.Time) error {
	row := domain.PresenceStatus{UserID: userID, Status: status, LastSeen: lastSeen}
	update := bson.M{"$set": bson.M{"status": status, "last_seen": lastSeen}}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update().SetUpsert(true)); err != nil {
		return err
	}
	emitRow(ctx, r.feed, domain.TableUsers, domain.ChangeUpdate, &row)
	return nil
}

// FindStatus last known presence
func (r *presenceRepository) FindStatus(ctx context.Context, userID string) (*domain.PresenceStatus, error) {
	var row domain.PresenceStatus
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
