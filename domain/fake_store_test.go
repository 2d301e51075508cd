package domain

import (
	"context"
	"strconv"
	"sync"
)

type fakeStore struct {
	mu            sync.Mutex
	tasks         map[string]Task
	versions      map[string]int
	users         map[string]User
	notifications map[string]Notification
	audit         []AuditLog

	// conflicts makes the next n conditional writes fail as if another writer won.
	conflicts int
	// onConflict runs when a forced conflict fires, e.g. to mutate the stored task.
	onConflict func(f *fakeStore)
	failAudit  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:         map[string]Task{},
		versions:      map[string]int{},
		users:         map[string]User{},
		notifications: map[string]Notification{},
	}
}

func (f *fakeStore) InsertTask(ctx context.Context, t Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions[t.ID] = 1
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) GetTask(ctx context.Context, id string) (*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	t.ETag = strconv.Itoa(f.versions[id])
	return &t, nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, t Task, etag string) (string, error) {
	f.mu.Lock()
	if f.conflicts > 0 {
		f.conflicts--
		hook := f.onConflict
		f.mu.Unlock()
		if hook != nil {
			hook(f)
		}
		return "", ErrConcurrencyConflict
	}
	defer f.mu.Unlock()
	if _, ok := f.tasks[t.ID]; !ok {
		return "", ErrTaskNotFound
	}
	if strconv.Itoa(f.versions[t.ID]) != etag {
		return "", ErrConcurrencyConflict
	}
	f.versions[t.ID]++
	t.ETag = ""
	f.tasks[t.ID] = t
	return strconv.Itoa(f.versions[t.ID]), nil
}

// setStatus bypasses the service, standing in for a concurrent writer.
func (f *fakeStore) setStatus(id string, s Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tasks[id]
	t.Status = s
	f.tasks[id] = t
	f.versions[id]++
}

func (f *fakeStore) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
	return nil
}

func (f *fakeStore) ListTasks(ctx context.Context, q TaskQuery) ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Task
	for _, t := range f.tasks {
		if q.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertUser(ctx context.Context, u User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeStore) UpdateUser(ctx context.Context, u User, previousEmail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.Email != previousEmail {
		for _, existing := range f.users {
			if existing.ID != u.ID && existing.Email == u.Email {
				return ErrEmailTaken
			}
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications[n.ID] = n
	return nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, id string) (*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	n.IsRead = true
	f.notifications[id] = n
	return &n, nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID string) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) notificationsFor(userID string) []Notification {
	out, _ := f.ListNotifications(context.Background(), userID)
	return out
}

func (f *fakeStore) InsertAuditLog(ctx context.Context, a AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAudit != nil {
		return f.failAudit
	}
	f.audit = append(f.audit, a)
	return nil
}

func (f *fakeStore) ListAuditLogs(ctx context.Context, entityID string) ([]AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AuditLog
	for _, a := range f.audit {
		if a.EntityID == entityID {
			out = append(out, a)
		}
	}
	return out, nil
}

type sentEvent struct {
	room    string
	event   string
	payload any
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []sentEvent
	err  error
}

func (b *fakeBroadcaster) BroadcastAll(ctx context.Context, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentEvent{event: event, payload: payload})
	return b.err
}

func (b *fakeBroadcaster) NotifyUser(ctx context.Context, userID, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentEvent{room: userID, event: event, payload: payload})
	return b.err
}

func (b *fakeBroadcaster) named(event string) []sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentEvent
	for _, e := range b.sent {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}
