package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

// InsertUser writes the account and its email index row in one transaction,
// so a taken email fails the whole registration.
func (s *Storage) InsertUser(ctx context.Context, u domain.User) error {
	account, err := json.Marshal(newUserEntity(u))
	if err != nil {
		return err
	}
	index, err := json.Marshal(newEmailIndexEntity(u.Email, u.ID))
	if err != nil {
		return err
	}
	_, err = s.userTable.SubmitTransaction(ctx, []aztables.TransactionAction{
		{ActionType: aztables.TransactionTypeAdd, Entity: index},
		{ActionType: aztables.TransactionTypeAdd, Entity: account},
	}, nil)
	if isConflict(err) {
		return domain.ErrEmailTaken
	}
	return err
}

func (s *Storage) GetUser(ctx context.Context, id string) (*domain.User, error) {
	resp, err := s.userTable.GetEntity(ctx, usersPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	var ent userEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	if ent.Kind != kindAccount {
		return nil, domain.ErrUserNotFound
	}
	u := ent.user()
	return &u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	resp, err := s.userTable.GetEntity(ctx, usersPartition, emailRowPrefix+email, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	var idx emailIndexEntity
	if err := json.Unmarshal(resp.Value, &idx); err != nil {
		return nil, fmt.Errorf("decode email index: %w", err)
	}
	return s.GetUser(ctx, idx.UserID)
}

// UpdateUser merges the profile fields and, on an email change, moves the
// index row within the same transaction.
func (s *Storage) UpdateUser(ctx context.Context, u domain.User, previousEmail string) error {
	profile, err := json.Marshal(userProfileUpdate{
		entity:        entity{PartitionKey: usersPartition, RowKey: u.ID},
		Name:          u.Name,
		Email:         u.Email,
		UpdatedAt:     u.UpdatedAt.UTC(),
		UpdatedAtType: EdmDateTime,
	})
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	actions := []aztables.TransactionAction{{ActionType: aztables.TransactionTypeUpdateMerge, Entity: profile, IfMatch: &et}}
	if u.Email != previousEmail {
		index, err := json.Marshal(newEmailIndexEntity(u.Email, u.ID))
		if err != nil {
			return err
		}
		stale, err := json.Marshal(entity{PartitionKey: usersPartition, RowKey: emailRowPrefix + previousEmail})
		if err != nil {
			return err
		}
		actions = append(actions,
			aztables.TransactionAction{ActionType: aztables.TransactionTypeAdd, Entity: index},
			aztables.TransactionAction{ActionType: aztables.TransactionTypeDelete, Entity: stale, IfMatch: &et},
		)
	}
	_, err = s.userTable.SubmitTransaction(ctx, actions, nil)
	switch {
	case isConflict(err):
		return domain.ErrEmailTaken
	case isNotFound(err):
		return domain.ErrUserNotFound
	}
	return err
}

func (s *Storage) ListUsers(ctx context.Context) ([]domain.User, error) {
	filter := eq("PartitionKey", usersPartition) + " and " + eq("Kind", kindAccount)
	users := []domain.User{}
	err := listAll(ctx, s.userTable, filter, func(raw []byte) error {
		var ent userEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		users = append(users, ent.user())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}
