package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/amankumar20031130-afk/taskflow/domain"
	"github.com/amankumar20031130-afk/taskflow/realtime"
	"github.com/amankumar20031130-afk/taskflow/storage"
)

type testServer struct {
	e     *echo.Echo
	store *storage.Memory
	hub   *realtime.Hub
	auth  *Auth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	store := storage.NewMemory()
	hub := realtime.NewHub(logger, 16)
	auth := NewAuth([]byte("test-secret"), time.Hour, nil, "", "")
	svc := Services{
		Tasks:         domain.NewTaskService(store, store, store, store, hub, logger),
		Users:         domain.NewUserService(store, NewPasswordHasher(4)),
		Notifications: domain.NewNotificationService(store),
	}
	e := echo.New()
	Register(e, svc, auth, hub, logger, Options{})
	t.Cleanup(hub.Close)
	return &testServer{e: e, store: store, hub: hub, auth: auth}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type account struct {
	domain.User
	token string
}

func (s *testServer) register(t *testing.T, name, email string) account {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201 got %d: %s", email, rec.Code, rec.Body.String())
	}
	var acc account
	decode(t, rec, &acc.User)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			acc.token = ck.Value
		}
	}
	if acc.token == "" {
		t.Fatalf("register %s: expected session cookie", email)
	}
	return acc
}

func (s *testServer) listen(t *testing.T, userID string) *realtime.Client {
	t.Helper()
	c := s.hub.Connect(userID)
	if err := s.hub.Join(c, userID); err != nil {
		t.Fatalf("join: %v", err)
	}
	t.Cleanup(func() { s.hub.Disconnect(c) })
	return c
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func nextEvent(t *testing.T, c *realtime.Client) realtime.Message {
	t.Helper()
	select {
	case msg := <-c.Messages():
		return msg
	case <-time.After(time.Second):
		t.Fatalf("expected event for %s", c.UserID)
	}
	return realtime.Message{}
}

func expectNoEvent(t *testing.T, c *realtime.Client) {
	t.Helper()
	select {
	case msg := <-c.Messages():
		t.Fatalf("expected no event for %s got %+v", c.UserID, msg)
	default:
	}
}

func tomorrow() string {
	return time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
}

func (s *testServer) createTask(t *testing.T, owner account, assignee string) domain.Task {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/tasks", owner.token, map[string]string{
		"title": "Write report", "dueDate": tomorrow(), "priority": "High", "assignedToId": assignee,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var task domain.Task
	decode(t, rec, &task)
	return task
}

func unread(list []domain.Notification) int {
	n := 0
	for _, note := range list {
		if !note.IsRead {
			n++
		}
	}
	return n
}

func TestAssignmentNotificationLifecycle(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")
	aliceLive := s.listen(t, alice.ID)
	bobLive := s.listen(t, bob.ID)

	task := s.createTask(t, alice, bob.ID)
	if task.Status != domain.StatusTodo || task.CreatorID != alice.ID || task.AssignedToID != bob.ID {
		t.Fatalf("unexpected task %+v", task)
	}

	if msg := nextEvent(t, aliceLive); msg.Event != domain.TaskCreated {
		t.Fatalf("expected task:created for creator got %s", msg.Event)
	}
	expectNoEvent(t, aliceLive)
	if msg := nextEvent(t, bobLive); msg.Event != domain.TaskCreated {
		t.Fatalf("expected task:created for assignee got %s", msg.Event)
	}
	msg := nextEvent(t, bobLive)
	var assigned domain.AssignedEventData
	if err := json.Unmarshal(msg.Data, &assigned); err != nil || msg.Event != domain.TaskAssigned {
		t.Fatalf("expected task:assigned got %+v (%v)", msg, err)
	}
	if assigned.TaskID != task.ID || assigned.Message != domain.AssignedMessage {
		t.Fatalf("unexpected assigned payload %+v", assigned)
	}

	rec := s.do(t, http.MethodGet, "/api/notifications", bob.token, nil)
	var notes []domain.Notification
	decode(t, rec, &notes)
	if len(notes) != 1 || unread(notes) != 1 || notes[0].Message != domain.AssignedMessage {
		t.Fatalf("expected one unread notification got %+v", notes)
	}

	for i := 0; i < 2; i++ {
		rec = s.do(t, http.MethodPatch, "/api/notifications/"+notes[0].ID+"/read", bob.token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("mark read: expected 200 got %d: %s", rec.Code, rec.Body.String())
		}
		var marked domain.Notification
		decode(t, rec, &marked)
		if !marked.IsRead {
			t.Fatalf("expected notification read after call %d", i+1)
		}
	}

	rec = s.do(t, http.MethodGet, "/api/notifications", bob.token, nil)
	decode(t, rec, &notes)
	if unread(notes) != 0 {
		t.Fatalf("expected zero unread got %+v", notes)
	}

	rec = s.do(t, http.MethodGet, "/api/notifications", alice.token, nil)
	decode(t, rec, &notes)
	if len(notes) != 0 {
		t.Fatalf("expected creator to have no notifications got %+v", notes)
	}
}

func TestSelfAssignmentSkipsNotification(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	live := s.listen(t, alice.ID)

	s.createTask(t, alice, alice.ID)
	if msg := nextEvent(t, live); msg.Event != domain.TaskCreated {
		t.Fatalf("expected task:created got %s", msg.Event)
	}
	expectNoEvent(t, live)

	rec := s.do(t, http.MethodGet, "/api/notifications", alice.token, nil)
	var notes []domain.Notification
	decode(t, rec, &notes)
	if len(notes) != 0 {
		t.Fatalf("expected no notifications got %+v", notes)
	}
}

func TestPastDueDateRejected(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	live := s.listen(t, alice.ID)

	rec := s.do(t, http.MethodPost, "/api/tasks", alice.token, map[string]string{
		"title": "Late", "dueDate": "2001-01-01", "priority": "Low",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	var body errorResponse
	decode(t, rec, &body)
	if body.Message != "Due date cannot be in the past" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	expectNoEvent(t, live)

	rec = s.do(t, http.MethodGet, "/api/tasks", alice.token, nil)
	var list []domain.TaskView
	decode(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("expected nothing persisted got %+v", list)
	}
}

func TestCreateTaskValidationErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/tasks", alice.token, map[string]string{
		"title": "", "dueDate": tomorrow(), "priority": "Someday",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	var body errorResponse
	decode(t, rec, &body)
	if body.Message != "Validation Error" || len(body.Errors) != 2 {
		t.Fatalf("unexpected body %+v", body)
	}

	rec = s.do(t, http.MethodPost, "/api/tasks", alice.token, `{"title":"x","bogus":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown field rejected got %d", rec.Code)
	}
}

func TestStatusChangeWritesOneAuditEntry(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	task := s.createTask(t, alice, "")

	rec := s.do(t, http.MethodPut, "/api/tasks/"+task.ID, alice.token, map[string]string{"status": "In Progress"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.Task
	decode(t, rec, &updated)
	if updated.Status != domain.StatusInProgress {
		t.Fatalf("expected In Progress got %s", updated.Status)
	}

	rec = s.do(t, http.MethodPut, "/api/tasks/"+task.ID, alice.token, map[string]string{"title": "Renamed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: expected 200 got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/tasks/"+task.ID+"/history", alice.token, nil)
	var history []domain.AuditLog
	decode(t, rec, &history)
	if len(history) != 1 {
		t.Fatalf("expected exactly one audit entry got %+v", history)
	}
	entry := history[0]
	if entry.Action != domain.AuditTaskStatusUpdated || entry.UserID != alice.ID ||
		entry.Details.From != domain.StatusTodo || entry.Details.To != domain.StatusInProgress {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
}

func TestReassignmentNotifiesOnlyOnChange(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")
	carol := s.register(t, "Carol", "carol@example.com")
	task := s.createTask(t, alice, bob.ID)

	s.do(t, http.MethodPut, "/api/tasks/"+task.ID, alice.token, map[string]string{"assignedToId": bob.ID})
	s.do(t, http.MethodPut, "/api/tasks/"+task.ID, alice.token, map[string]string{"assignedToId": carol.ID})

	var notes []domain.Notification
	decode(t, s.do(t, http.MethodGet, "/api/notifications", bob.token, nil), &notes)
	if len(notes) != 1 {
		t.Fatalf("expected bob notified once got %d", len(notes))
	}
	decode(t, s.do(t, http.MethodGet, "/api/notifications", carol.token, nil), &notes)
	if len(notes) != 1 {
		t.Fatalf("expected carol notified once got %d", len(notes))
	}
}

func TestTaskListViews(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")

	mine := s.createTask(t, alice, "")
	forBob := s.createTask(t, alice, bob.ID)
	bobs := s.createTask(t, bob, "")

	past := "2001-01-01T00:00:00Z"
	s.do(t, http.MethodPut, "/api/tasks/"+mine.ID, alice.token, map[string]string{"dueDate": past})
	s.do(t, http.MethodPut, "/api/tasks/"+forBob.ID, alice.token, map[string]string{"dueDate": past, "status": "Completed"})
	s.do(t, http.MethodPut, "/api/tasks/"+bobs.ID, bob.token, map[string]string{"dueDate": past})

	ids := func(rec *httptest.ResponseRecorder) map[string]bool {
		var list []domain.TaskView
		decode(t, rec, &list)
		out := make(map[string]bool, len(list))
		for _, v := range list {
			out[v.ID] = true
		}
		return out
	}

	overdue := ids(s.do(t, http.MethodGet, "/api/tasks?view=overdue", alice.token, nil))
	if len(overdue) != 1 || !overdue[mine.ID] {
		t.Fatalf("expected only alice's open overdue task got %v", overdue)
	}

	assigned := ids(s.do(t, http.MethodGet, "/api/tasks?view=assigned", bob.token, nil))
	if len(assigned) != 1 || !assigned[forBob.ID] {
		t.Fatalf("expected bob's assigned task got %v", assigned)
	}

	all := ids(s.do(t, http.MethodGet, "/api/tasks", bob.token, nil))
	if len(all) != 2 || !all[forBob.ID] || !all[bobs.ID] {
		t.Fatalf("expected bob's involved tasks got %v", all)
	}

	completed := ids(s.do(t, http.MethodGet, "/api/tasks?status=Completed", alice.token, nil))
	if len(completed) != 1 || !completed[forBob.ID] {
		t.Fatalf("expected completed filter to match got %v", completed)
	}

	var views []domain.TaskView
	decode(t, s.do(t, http.MethodGet, "/api/tasks?view=created&sortBy=dueDate", alice.token, nil), &views)
	if len(views) != 2 || views[0].DueDate.After(views[1].DueDate) {
		t.Fatalf("expected two tasks sorted by due date got %+v", views)
	}
	for _, v := range views {
		if v.ID == forBob.ID && (v.AssignedTo == nil || v.AssignedTo.Name != "Bob") {
			t.Fatalf("expected assignee resolved got %+v", v.AssignedTo)
		}
	}
}

func TestUpdateAndDeleteErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	task := s.createTask(t, alice, "")

	rec := s.do(t, http.MethodPut, "/api/tasks/not-an-id", alice.token, map[string]string{"title": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id got %d", rec.Code)
	}
	rec = s.do(t, http.MethodPut, "/api/tasks/"+uuid.NewString(), alice.token, map[string]string{"title": "x"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown task got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPut, "/api/tasks/"+task.ID, alice.token, `{"title":"ok"} {"status":"bogus"} garbage`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for trailing content got %d", rec.Code)
	}
	if stored, err := s.store.GetTask(t.Context(), task.ID); err != nil || stored.Title == "ok" {
		t.Fatalf("expected task untouched got %+v (%v)", stored, err)
	}

	live := s.listen(t, alice.ID)
	rec = s.do(t, http.MethodDelete, "/api/tasks/"+task.ID, alice.token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	msg := nextEvent(t, live)
	var deletedID string
	if err := json.Unmarshal(msg.Data, &deletedID); err != nil || msg.Event != domain.TaskDeleted || deletedID != task.ID {
		t.Fatalf("expected task:deleted with id got %+v (%v)", msg, err)
	}
	if _, err := s.store.GetTask(t.Context(), task.ID); err == nil {
		t.Fatalf("expected task removed from store")
	}
}

func TestTaskRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/tasks", "/api/notifications", "/api/auth/me", "/api/auth/users"} {
		if rec := s.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, rec.Code)
		}
	}
	if rec := s.do(t, http.MethodGet, "/api/tasks", "a.b.c", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token got %d", rec.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")

	if rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Alice Again", "email": "ALICE@example.com", "password": "secret1",
	}); rec.Code != http.StatusConflict {
		t.Fatalf("expected duplicate email 409 got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "A", "email": "nope", "password": "123",
	}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	if rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200 got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("secret1")) || bytes.Contains(rec.Body.Bytes(), []byte("$2a$")) {
		t.Fatalf("login response leaks credentials: %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodPut, "/api/auth/me", alice.token, map[string]string{"name": "Alice Liddell"})
	var me domain.User
	decode(t, rec, &me)
	if rec.Code != http.StatusOK || me.Name != "Alice Liddell" || me.Email != "alice@example.com" {
		t.Fatalf("unexpected profile update %d %+v", rec.Code, me)
	}

	var users []domain.UserSummary
	decode(t, s.do(t, http.MethodGet, "/api/auth/users", alice.token, nil), &users)
	if len(users) != 1 || users[0].ID != alice.ID {
		t.Fatalf("unexpected directory %+v", users)
	}

	rec = s.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	var cleared *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			cleared = ck
		}
	}
	if rec.Code != http.StatusOK || cleared == nil || cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie got %d %+v", rec.Code, cleared)
	}
}

func TestMeUnknownUser(t *testing.T) {
	s := newTestServer(t)
	token, _, err := s.auth.Issue(uuid.NewString())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rec := s.do(t, http.MethodGet, "/api/auth/me", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	var body healthResponse
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || body.Status != "ok" || body.Timestamp.IsZero() {
		t.Fatalf("unexpected health %d %+v", rec.Code, body)
	}
}
