package api

import (
	"context"
	"net/http"
	"time"

	"github.com/amankumar20031130-afk/taskflow/domain"
	"github.com/amankumar20031130-afk/taskflow/realtime"
)

// TaskService runs task mutations for handlers.
type TaskService interface {
	CreateTask(ctx context.Context, in domain.CreateTaskInput, creatorID string) (*domain.Task, error)
	UpdateTask(ctx context.Context, taskID string, patch domain.TaskPatch, actorID string) (*domain.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	ListTasks(ctx context.Context, q domain.TaskQuery) ([]domain.TaskView, error)
	TaskHistory(ctx context.Context, taskID string) ([]domain.AuditLog, error)
}

// UserService handles accounts.
type UserService interface {
	Register(ctx context.Context, in domain.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, in domain.LoginInput) (*domain.User, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, in domain.ProfileInput) (*domain.User, error)
	Directory(ctx context.Context) ([]domain.UserSummary, error)
}

// NotificationService exposes notification read state.
type NotificationService interface {
	ListForUser(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) (*domain.Notification, error)
}

// Sessions issues and verifies session tokens.
type Sessions interface {
	Issue(userID string) (token string, expires time.Time, err error)
	UserIDFromRequest(r *http.Request, allowQuery bool) (string, error)
}

// Hub tracks live connections for the streaming endpoints.
type Hub interface {
	Connect(userID string) *realtime.Client
	Join(c *realtime.Client, room string) error
	Disconnect(c *realtime.Client)
}

// Services bundles what the handlers call into.
type Services struct {
	Tasks         TaskService
	Users         UserService
	Notifications NotificationService
}
