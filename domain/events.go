package domain

import "context"

const (
	TaskCreated  = "task:created"
	TaskUpdated  = "task:updated"
	TaskDeleted  = "task:deleted"
	TaskAssigned = "task:assigned"
)

// AssignedMessage is the text of assignment notifications and events.
const AssignedMessage = "You have been assigned a new task"

// AssignedEventData is the payload of a task:assigned event.
type AssignedEventData struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
}

// Broadcaster pushes task lifecycle events to connected clients.
// Delivery is best effort; callers log failures and carry on.
type Broadcaster interface {
	// BroadcastAll delivers to every connected client.
	BroadcastAll(ctx context.Context, event string, payload any) error
	// NotifyUser delivers only to clients that joined the user's room.
	NotifyUser(ctx context.Context, userID, event string, payload any) error
}
