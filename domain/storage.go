package domain

import "context"

// TaskStorage persists tasks.
type TaskStorage interface {
	InsertTask(ctx context.Context, t Task) error
	// GetTask returns ErrTaskNotFound when no task has the id.
	GetTask(ctx context.Context, id string) (*Task, error)
	// UpdateTask replaces the task if its stored version still matches etag.
	// It returns the new version's etag, ErrConcurrencyConflict on a version
	// mismatch and ErrTaskNotFound when the task is gone.
	UpdateTask(ctx context.Context, t Task, etag string) (string, error)
	// DeleteTask removes the task; a missing id is not an error.
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, q TaskQuery) ([]Task, error)
}

// UserStorage persists accounts.
type UserStorage interface {
	// InsertUser returns ErrEmailTaken when the email is already registered.
	InsertUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// UpdateUser persists name and email changes; previousEmail lets the
	// backend move its uniqueness index.
	UpdateUser(ctx context.Context, u User, previousEmail string) error
	ListUsers(ctx context.Context) ([]User, error)
}

// NotificationStorage persists notifications.
type NotificationStorage interface {
	InsertNotification(ctx context.Context, n Notification) error
	// MarkNotificationRead sets isRead and returns the stored record. Marking
	// an already-read notification is not an error.
	MarkNotificationRead(ctx context.Context, id string) (*Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]Notification, error)
}

// AuditStorage appends and reads audit entries.
type AuditStorage interface {
	InsertAuditLog(ctx context.Context, a AuditLog) error
	ListAuditLogs(ctx context.Context, entityID string) ([]AuditLog, error)
}
