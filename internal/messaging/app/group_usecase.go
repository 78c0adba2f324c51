package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/internal/messaging/repository"
	"realtime_messaging_service/pkg"

	"github.com/google/uuid"
)

// GroupUseCase 群組與成員管理, 只有 admin 能改成員與角色
type GroupUseCase struct {
	groupRepo repository.GroupRepository
	// onChange is told which group's membership changed
	onChange func(groupID string)
	now      func() time.Time
}

// NewGroupUseCase init group use case; onChange may be nil
func NewGroupUseCase(r repository.GroupRepository, onChange func(groupID string)) *GroupUseCase {
	return &GroupUseCase{
		groupRepo: r,
		onChange:  onChange,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateGroup creator becomes admin, everyone else a member
func (uc *GroupUseCase) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if creatorID == "" || name == "" {
		return nil, errors.New("group needs a creator and a name")
	}

	now := uc.now()
	group := &domain.Group{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedBy: creatorID,
		CreatedAt: now,
	}

	members := []domain.GroupMember{{GroupID: group.ID, UserID: creatorID, Role: domain.GroupRoleAdmin, JoinedAt: now}}
	for _, id := range pkg.Unique(memberIDs) {
		if id == creatorID {
			continue
		}
		members = append(members, domain.GroupMember{GroupID: group.ID, UserID: id, Role: domain.GroupRoleMember, JoinedAt: now})
	}

	if err := uc.groupRepo.CreateGroup(ctx, group, members); err != nil {
		return nil, fmt.Errorf("%w: create group: %v", domain.ErrStoreWriteFailure, err)
	}
	uc.changed(group.ID)
	return group, nil
}

// AddMember admin adds userID as a member
func (uc *GroupUseCase) AddMember(ctx context.Context, actorID, groupID, userID string) error {
	if err := uc.requireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	if existing, err := uc.groupRepo.FindMember(ctx, groupID, userID); err == nil && existing != nil {
		return nil
	}

	member := &domain.GroupMember{GroupID: groupID, UserID: userID, Role: domain.GroupRoleMember, JoinedAt: uc.now()}
	if err := uc.groupRepo.AddMember(ctx, member); err != nil {
		return fmt.Errorf("%w: add member: %v", domain.ErrStoreWriteFailure, err)
	}
	uc.changed(groupID)
	return nil
}

// RemoveMember admin removes userID; removing yourself is Leave
func (uc *GroupUseCase) RemoveMember(ctx context.Context, actorID, groupID, userID string) error {
	if actorID == userID {
		return uc.Leave(ctx, groupID, userID)
	}
	if err := uc.requireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	if err := uc.groupRepo.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	uc.changed(groupID)
	return nil
}

// SetRole admin changes the role of a member
func (uc *GroupUseCase) SetRole(ctx context.Context, actorID, groupID, userID string, role domain.GroupRole) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if err := uc.requireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	if err := uc.groupRepo.UpdateRole(ctx, groupID, userID, role); err != nil {
		return err
	}
	uc.changed(groupID)
	return nil
}

// Leave remove userID; when the last admin leaves, the longest standing member is promoted
func (uc *GroupUseCase) Leave(ctx context.Context, groupID, userID string) error {
	if err := uc.groupRepo.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	defer uc.changed(groupID)

	remaining, err := uc.groupRepo.FindMembers(ctx, groupID)
	if err != nil || len(remaining) == 0 {
		return err
	}

	oldest := remaining[0]
	for _, m := range remaining {
		if m.Role == domain.GroupRoleAdmin {
			return nil
		}
		if m.JoinedAt.Before(oldest.JoinedAt) {
			oldest = m
		}
	}
	return uc.groupRepo.UpdateRole(ctx, groupID, oldest.UserID, domain.GroupRoleAdmin)
}

// Members members of a group; only members may list them
func (uc *GroupUseCase) Members(ctx context.Context, actorID, groupID string) ([]domain.GroupMember, error) {
	if _, err := uc.groupRepo.FindMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return uc.groupRepo.FindMembers(ctx, groupID)
}

func (uc *GroupUseCase) requireAdmin(ctx context.Context, groupID, userID string) error {
	member, err := uc.groupRepo.FindMember(ctx, groupID, userID)
	if errors.Is(err, domain.ErrNotGroupMember) {
		return domain.ErrNotGroupAdmin
	}
	if err != nil {
		return err
	}
	if member.Role != domain.GroupRoleAdmin {
		return domain.ErrNotGroupAdmin
	}
	return nil
}

func (uc *GroupUseCase) changed(groupID string) {
	if uc.onChange != nil {
		uc.onChange(groupID)
	}
}
