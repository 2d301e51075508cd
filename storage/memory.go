package storage

import (
	"context"
	"strconv"
	"sync"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

// Memory is an in-process Store for development and tests. Tasks carry
// version counters as ETags so conditional updates behave like the table backend.
type Memory struct {
	mu sync.RWMutex

	tasks     map[string]domain.Task
	versions  map[string]uint64
	taskOrder []string

	users   map[string]domain.User
	byEmail map[string]string

	notifications map[string]domain.Notification
	noteOrder     []string

	audit []domain.AuditLog
}

func NewMemory() *Memory {
	return &Memory{
		tasks:         map[string]domain.Task{},
		versions:      map[string]uint64{},
		users:         map[string]domain.User{},
		byEmail:       map[string]string{},
		notifications: map[string]domain.Notification{},
	}
}

func (m *Memory) etag(id string) string {
	return "W/\"" + strconv.FormatUint(m.versions[id], 10) + "\""
}

func (m *Memory) InsertTask(ctx context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ETag = ""
	if _, exists := m.tasks[t.ID]; !exists {
		m.taskOrder = append(m.taskOrder, t.ID)
	}
	m.tasks[t.ID] = t
	m.versions[t.ID]++
	return nil
}

func (m *Memory) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	t.ETag = m.etag(id)
	return &t, nil
}

func (m *Memory) UpdateTask(ctx context.Context, t domain.Task, etag string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return "", domain.ErrTaskNotFound
	}
	if m.etag(t.ID) != etag {
		return "", domain.ErrConcurrencyConflict
	}
	t.ETag = ""
	m.tasks[t.ID] = t
	m.versions[t.ID]++
	return m.etag(t.ID), nil
}

func (m *Memory) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return nil
	}
	delete(m.tasks, id)
	delete(m.versions, id)
	for i, existing := range m.taskOrder {
		if existing == id {
			m.taskOrder = append(m.taskOrder[:i], m.taskOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ListTasks(ctx context.Context, q domain.TaskQuery) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Task{}
	for _, id := range m.taskOrder {
		if t := m.tasks[id]; q.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) InsertUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[u.Email]; taken {
		return domain.ErrEmailTaken
	}
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := m.users[id]
	return &u, nil
}

// UpdateUser changes name, email and updatedAt; the password hash is kept.
func (m *Memory) UpdateUser(ctx context.Context, u domain.User, previousEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.Email != previousEmail {
		if _, taken := m.byEmail[u.Email]; taken {
			return domain.ErrEmailTaken
		}
		delete(m.byEmail, previousEmail)
		m.byEmail[u.Email] = u.ID
	}
	cur.Name = u.Name
	cur.Email = u.Email
	cur.UpdatedAt = u.UpdatedAt
	m.users[u.ID] = cur
	return nil
}

func (m *Memory) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *Memory) InsertNotification(ctx context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.notifications[n.ID]; !exists {
		m.noteOrder = append(m.noteOrder, n.ID)
	}
	m.notifications[n.ID] = n
	return nil
}

func (m *Memory) MarkNotificationRead(ctx context.Context, id string) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, domain.ErrNotificationNotFound
	}
	n.IsRead = true
	m.notifications[id] = n
	return &n, nil
}

func (m *Memory) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Notification{}
	for _, id := range m.noteOrder {
		if n := m.notifications[id]; n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Memory) InsertAuditLog(ctx context.Context, a domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, a)
	return nil
}

func (m *Memory) ListAuditLogs(ctx context.Context, entityID string) ([]domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.AuditLog{}
	for _, a := range m.audit {
		if a.EntityID == entityID {
			out = append(out, a)
		}
	}
	return out, nil
}
