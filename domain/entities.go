package domain

import "time"

// User is a registered account. PasswordHash never leaves the service.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserSummary is the directory form of a user used by assignment pickers.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary strips everything but the directory fields.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Notification is a durable per-user message created when a task is assigned.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	AuditTaskStatusUpdated = "TASK_STATUS_UPDATED"
	AuditEntityTask        = "Task"
)

// StatusChange is the details payload of a status audit entry.
type StatusChange struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

// AuditLog is an immutable record of a task status transition.
type AuditLog struct {
	ID         string       `json:"id"`
	Action     string       `json:"action"`
	EntityID   string       `json:"entityId"`
	EntityType string       `json:"entityType"`
	UserID     string       `json:"userId"`
	Details    StatusChange `json:"details"`
	CreatedAt  time.Time    `json:"createdAt"`
}
