package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status is the workflow column a task sits in.
type Status string

const (
	StatusTodo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusReview     Status = "Review"
	StatusCompleted  Status = "Completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusCompleted:
		return true
	}
	return false
}

const maxTitleLength = 100

// Task is the unit of work tracked by the system.
type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	DueDate      time.Time `json:"dueDate"`
	Priority     Priority  `json:"priority"`
	Status       Status    `json:"status"`
	CreatorID    string    `json:"creatorId"`
	AssignedToID string    `json:"assignedToId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// ETag is the storage version the task was read at.
	ETag string `json:"-"`
}

// Assignee is the display form of a task's assigned user.
type Assignee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskView is a task as returned by list queries, with its assignee resolved.
type TaskView struct {
	Task
	AssignedTo *Assignee `json:"assignedTo,omitempty"`
}

// CreateTaskInput carries the client supplied fields of a new task.
type CreateTaskInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	DueDate      string   `json:"dueDate"`
	Priority     Priority `json:"priority"`
	AssignedToID string   `json:"assignedToId"`
}

// TaskPatch carries a partial task update. Nil fields are left untouched.
type TaskPatch struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	DueDate      *string   `json:"dueDate"`
	Priority     *Priority `json:"priority"`
	Status       *Status   `json:"status"`
	AssignedToID *string   `json:"assignedToId"`
}

// ParseDueDate accepts RFC 3339 instants and bare calendar dates (read as UTC midnight).
func ParseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ValidID reports whether id is a well-formed entity identifier.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validateTitle(v *ValidationError, title string) {
	switch {
	case strings.TrimSpace(title) == "":
		v.Add("title", "title is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		v.Add("title", "title must be at most 100 characters")
	}
}

// Validate checks the per-field creation constraints and returns the parsed due date.
// The past-date rule is applied by the caller against its own clock.
func (in CreateTaskInput) Validate() (time.Time, error) {
	v := &ValidationError{}
	validateTitle(v, in.Title)
	if !in.Priority.Valid() {
		v.Add("priority", "priority must be one of Low, Medium, High, Urgent")
	}
	due, err := ParseDueDate(in.DueDate)
	if err != nil {
		v.Add("dueDate", "dueDate must be an ISO 8601 date or timestamp")
	}
	if in.AssignedToID != "" && !ValidID(in.AssignedToID) {
		v.Add("assignedToId", "assignedToId is not a valid id")
	}
	return due, v.OrNil()
}

// Validate checks every present field against the same rules as creation.
func (p TaskPatch) Validate() error {
	v := &ValidationError{}
	if p.Title != nil {
		validateTitle(v, *p.Title)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		v.Add("priority", "priority must be one of Low, Medium, High, Urgent")
	}
	if p.Status != nil && !p.Status.Valid() {
		v.Add("status", "status must be one of To Do, In Progress, Review, Completed")
	}
	if p.DueDate != nil {
		if _, err := ParseDueDate(*p.DueDate); err != nil {
			v.Add("dueDate", "dueDate must be an ISO 8601 date or timestamp")
		}
	}
	if p.AssignedToID != nil && *p.AssignedToID != "" && !ValidID(*p.AssignedToID) {
		v.Add("assignedToId", "assignedToId is not a valid id")
	}
	return v.OrNil()
}

// Apply returns a copy of t with the patch merged in. The patch must be valid.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DueDate != nil {
		if due, err := ParseDueDate(*p.DueDate); err == nil {
			t.DueDate = due
		}
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.AssignedToID != nil {
		t.AssignedToID = *p.AssignedToID
	}
	return t
}

// View selects a named task list preset.
type View string

const (
	ViewDefault  View = ""
	ViewAssigned View = "assigned"
	ViewCreated  View = "created"
	ViewOverdue  View = "overdue"
)

// TaskQuery is a resolved task list request. Storage backends translate it into their own filters.
type TaskQuery struct {
	UserID    string
	Status    Status
	Priority  Priority
	View      View
	SortByDue bool
	// Now is the reference instant for the overdue view.
	Now time.Time
}

// Matches reports whether t belongs in the result set of q.
func (q TaskQuery) Matches(t Task) bool {
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.Priority != "" && t.Priority != q.Priority {
		return false
	}
	involved := t.CreatorID == q.UserID || t.AssignedToID == q.UserID
	switch q.View {
	case ViewAssigned:
		return t.AssignedToID == q.UserID
	case ViewCreated:
		return t.CreatorID == q.UserID
	case ViewOverdue:
		return t.DueDate.Before(q.Now) && t.Status != StatusCompleted && involved
	default:
		return involved
	}
}

// ParseView maps a query parameter to a view; unknown values fall back to the default view.
func ParseView(raw string) View {
	switch View(raw) {
	case ViewAssigned, ViewCreated, ViewOverdue:
		return View(raw)
	}
	return ViewDefault
}
