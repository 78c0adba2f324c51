package repository

import (
	"context"
	"time"

	"realtime_messaging_service/internal/messaging/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeviceRepository definition push device tokens
type DeviceRepository interface {
	RegisterDevice(ctx context.Context, device *domain.Device) error
	ActiveDevices(ctx context.Context, userID string) ([]domain.Device, error)
	DeactivateDevice(ctx context.Context, token string) error
}

type deviceRepository struct {
	coll *mongo.Collection
}

// NewMongoDeviceRepository create DeviceRepository
func NewMongoDeviceRepository(db *mongo.Database) DeviceRepository {
	return &deviceRepository{coll: db.Collection(string(domain.TableDevices))}
}

// RegisterDevice token is the key, re-registering moves it to the new user
func (r *deviceRepository) RegisterDevice(ctx context.Context, device *domain.Device) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": device.Token}, device, options.Replace().SetUpsert(true))
	return err
}

func (r *deviceRepository) ActiveDevices(ctx context.Context, userID string) ([]domain.Device, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID, "active": true})
	if err != nil {
		return nil, err
	}
	var devices []domain.Device
	if err := cur.All(ctx, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// DeactivateDevice token rejected by the push provider
func (r *deviceRepository) DeactivateDevice(ctx context.Context, token string) error {
	update := bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": token}, update)
	return err
}
