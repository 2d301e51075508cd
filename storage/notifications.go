package storage

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

func (s *Storage) InsertNotification(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(newNotificationEntity(n))
	if err == nil {
		_, err = s.notificationTable.AddEntity(ctx, payload, nil)
	}
	return err
}

// MarkNotificationRead locates the notification by row key across recipients
// and merges IsRead=true into it.
func (s *Storage) MarkNotificationRead(ctx context.Context, id string) (*domain.Notification, error) {
	var found *notificationEntity
	err := listAll(ctx, s.notificationTable, eq("RowKey", id), func(raw []byte) error {
		var ent notificationEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		found = &ent
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, domain.ErrNotificationNotFound
	}
	if !found.IsRead {
		payload, err := json.Marshal(notificationReadUpdate{entity: found.entity, IsRead: true, IsReadType: EdmBoolean})
		if err != nil {
			return nil, err
		}
		et := azcore.ETagAny
		if _, err := s.notificationTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge}); err != nil {
			if isNotFound(err) {
				return nil, domain.ErrNotificationNotFound
			}
			return nil, err
		}
		found.IsRead = true
	}
	n := found.notification()
	return &n, nil
}

func (s *Storage) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	items := []domain.Notification{}
	err := listAll(ctx, s.notificationTable, eq("PartitionKey", userID), func(raw []byte) error {
		var ent notificationEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		items = append(items, ent.notification())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Storage) InsertAuditLog(ctx context.Context, a domain.AuditLog) error {
	payload, err := json.Marshal(newAuditEntity(a))
	if err == nil {
		_, err = s.auditTable.AddEntity(ctx, payload, nil)
	}
	return err
}

func (s *Storage) ListAuditLogs(ctx context.Context, entityID string) ([]domain.AuditLog, error) {
	entries := []domain.AuditLog{}
	err := listAll(ctx, s.auditTable, eq("PartitionKey", entityID), func(raw []byte) error {
		var ent auditEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		entries = append(entries, ent.auditLog())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
