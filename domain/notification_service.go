package domain

import (
	"context"
	"sort"
)

// NotificationService exposes the read state of a user's notifications.
type NotificationService struct{ st NotificationStorage }

func NewNotificationService(st NotificationStorage) NotificationService {
	return NotificationService{st: st}
}

// ListForUser returns the user's notifications, newest first.
func (s NotificationService) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	items, err := s.st.ListNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// MarkRead flips isRead to true. It is idempotent.
func (s NotificationService) MarkRead(ctx context.Context, id string) (*Notification, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	return s.st.MarkNotificationRead(ctx, id)
}
