package repository

import (
	"context"
	"errors"

	"realtime_messaging_service/internal/messaging/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GroupRepository definition groups and memberships
type GroupRepository interface {
	CreateGroup(ctx context.Context, group *domain.Group, members []domain.GroupMember) error
	FindGroup(ctx context.Context, groupID string) (*domain.Group, error)
	FindMembers(ctx context.Context, groupID string) ([]domain.GroupMember, error)
	FindMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error)
	AddMember(ctx context.Context, member *domain.GroupMember) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	UpdateRole(ctx context.Context, groupID, userID string, role domain.GroupRole) error
}

type groupRepository struct {
	groupsColl  *mongo.Collection
	membersColl *mongo.Collection
	feed        *ChangeFeed
}

// NewMongoGroupRepository create GroupRepository
func NewMongoGroupRepository(db *mongo.Database, feed *ChangeFeed) GroupRepository {
	return &groupRepository{
		groupsColl:  db.Collection(string(domain.TableGroups)),
		membersColl: db.Collection(string(domain.TableGroupMembers)),
		feed:        feed,
	}
}

// CreateGroup create group with its initial members
func (r *groupRepository) CreateGroup(ctx context.Context, group *domain.Group, members []domain.GroupMember) error {
	if _, err := r.groupsColl.InsertOne(ctx, group); err != nil {
		return err
	}
	emitRow(ctx, r.feed, domain.TableGroups, domain.ChangeInsert, group)

	for i := range members {
		if err := r.AddMember(ctx, &members[i]); err != nil {
			return err
		}
	}
	return nil
}

// FindGroup find group by id
func (r *groupRepository) FindGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	var group domain.Group
	err := r.groupsColl.FindOne(ctx, bson.M{"_id": groupID}).Decode(&group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// FindMembers all members of a group
func (r *groupRepository) FindMembers(ctx context.Context, groupID string) ([]domain.GroupMember, error) {
	cur, err := r.membersColl.Find(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	var members []domain.GroupMember
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// FindMember one membership row
func (r *groupRepository) FindMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error) {
	var member domain.GroupMember
	err := r.membersColl.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&member)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotGroupMember
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// AddMember upsert membership
func (r *groupRepository) AddMember(ctx context.Context, member *domain.GroupMember) error {
	filter := bson.M{"group_id": member.GroupID, "user_id": member.UserID}
	res, err := r.membersColl.ReplaceOne(ctx, filter, member, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}
	changeType := domain.ChangeUpdate
	if res.UpsertedCount > 0 {
		changeType = domain.ChangeInsert
	}
	emitRow(ctx, r.feed, domain.TableGroupMembers, changeType, member)
	return nil
}

// RemoveMember delete membership
func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	filter := bson.M{"group_id": groupID, "user_id": userID}
	res, err := r.membersColl.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotGroupMember
	}
	emitRow(ctx, r.feed, domain.TableGroupMembers, domain.ChangeDelete, domain.GroupMember{GroupID: groupID, UserID: userID})
	return nil
}

// UpdateRole change member role
func (r *groupRepository) UpdateRole(ctx context.Context, groupID, userID string, role domain.GroupRole) error {
	filter := bson.M{"group_id": groupID, "user_id": userID}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var member domain.GroupMember
	err := r.membersColl.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"role": role}}, opts).Decode(&member)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotGroupMember
	}
	if err != nil {
		return err
	}
	emitRow(ctx, r.feed, domain.TableGroupMembers, domain.ChangeUpdate, &member)
	return nil
}
