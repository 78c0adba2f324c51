package repository

import (
	"context"

	"realtime_messaging_service/internal/messaging/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationRepository definition notifications
type NotificationRepository interface {
	InsertNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int64) ([]domain.Notification, error)
	// MarkNotificationRead only the recipient may flip read
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
}

type notificationRepository struct {
	coll *mongo.Collection
	feed *ChangeFeed
}

// NewMongoNotificationRepository create NotificationRepository
func NewMongoNotificationRepository(db *mongo.Database, feed *ChangeFeed) NotificationRepository {
	return &notificationRepository{
		coll: db.Collection(string(domain.TableNotifications)),
		feed: feed,
	}
}

func (r *notificationRepository) InsertNotification(ctx context.Context, n *domain.Notification) error {
	if _, err := r.coll.InsertOne(ctx, n); err != nil {
		return err
	}
	emitRow(ctx, r.feed, domain.TableNotifications, domain.ChangeInsert, n)
	return nil
}

func (r *notificationRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int64) ([]domain.Notification, error) {
	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var list []domain.Notification
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepository) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	filter := bson.M{"_id": notificationID, "user_id": userID}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var n domain.Notification
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"read": true}}, opts).Decode(&n)
	if err == mongo.ErrNoDocuments {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	emitRow(ctx, r.feed, domain.TableNotifications, domain.ChangeUpdate, &n)
	return nil
}
