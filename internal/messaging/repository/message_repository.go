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

// MessageRepository definition message store
type MessageRepository interface {
	// InsertMessage 寫入一筆訊息, 回傳 id
	InsertMessage(ctx context.Context, rec *domain.MessageRecord) (string, error)
	// FindMessage 依 id 取得訊息
	FindMessage(ctx context.Context, messageID string) (*domain.MessageRecord, error)
	// UpdateMessageStatus 狀態只能往前 sent -> delivered -> read
	UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) (*domain.MessageRecord, error)
	// QueryMessages 依時間由舊到新回傳對話訊息
	QueryMessages(ctx context.Context, filter domain.ConversationFilter) ([]domain.MessageRecord, error)
}

type messageRepository struct {
	coll *mongo.Collection
	feed *ChangeFeed
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database, feed *ChangeFeed) MessageRepository {
	return &messageRepository{
		coll: db.Collection(string(domain.TableMessages)),
		feed: feed,
	}
}

func (r *messageRepository) InsertMessage(ctx context.Context, rec *domain.MessageRecord) (string, error) {
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return "", err
	}
	emitRow(ctx, r.feed, domain.TableMessages, domain.ChangeInsert, rec)
	return rec.ID, nil
}

func (r *messageRepository) FindMessage(ctx context.Context, messageID string) (*domain.MessageRecord, error) {
	var rec domain.MessageRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *messageRepository) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) (*domain.MessageRecord, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	// 只更新比目標狀態低的訊息
	filter := bson.M{"_id": messageID, "status": bson.M{"$in": statusesBefore(status)}}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec domain.MessageRecord
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := r.coll.CountDocuments(ctx, bson.M{"_id": messageID})
		if cerr != nil {
			return nil, cerr
		}
		if n == 0 {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrInvalidStatus
	}
	if err != nil {
		return nil, err
	}

	emitRow(ctx, r.feed, domain.TableMessages, domain.ChangeUpdate, &rec)
	return &rec, nil
}

func (r *messageRepository) QueryMessages(ctx context.Context, f domain.ConversationFilter) ([]domain.MessageRecord, error) {
	filter := conversationQuery(f)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var records []domain.MessageRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}

	// 最新的先取出, 反轉為時間順序
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func conversationQuery(f domain.ConversationFilter) bson.M {
	var filter bson.M
	if f.Target.IsGroup() {
		filter = bson.M{"group_id": f.Target.ID}
	} else {
		filter = bson.M{"$or": []bson.M{
			{"sender_id": f.Self, "receiver_id": f.Target.ID},
			{"sender_id": f.Target.ID, "receiver_id": f.Self},
		}}
	}
	if !f.Before.IsZero() {
		filter["created_at"] = bson.M{"$lt": f.Before}
	}
	return filter
}

func statusesBefore(status domain.MessageStatus) []domain.MessageStatus {
	var out []domain.MessageStatus
	for _, s := range []domain.MessageStatus{domain.MessageStatusSent, domain.MessageStatusDelivered, domain.MessageStatusRead} {
		if s.CanTransitionTo(status) {
			out = append(out, s)
		}
	}
	return out
}
