package domain

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// maxUpdateAttempts bounds how often an update is recomputed after losing an ETag race.
const maxUpdateAttempts = 3

// TaskService runs task mutations and their notification, audit and broadcast side effects.
type TaskService struct {
	tasks  TaskStorage
	users  UserStorage
	notes  NotificationStorage
	audit  AuditStorage
	events Broadcaster
	log    *log.Logger

	now   func() time.Time
	newID func() string
}

func NewTaskService(tasks TaskStorage, users UserStorage, notes NotificationStorage, audit AuditStorage, events Broadcaster, logger *log.Logger) *TaskService {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TaskService{
		tasks:  tasks,
		users:  users,
		notes:  notes,
		audit:  audit,
		events: events,
		log:    logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// CreateTask persists a new task owned by creatorID and announces it.
func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput, creatorID string) (*Task, error) {
	now := s.now()
	// a past due date wins over every other field error
	if due, err := ParseDueDate(in.DueDate); err == nil && due.Before(now) {
		return nil, ErrDueDateInPast
	}
	due, err := in.Validate()
	if err != nil {
		return nil, err
	}

	task := Task{
		ID:           s.newID(),
		Title:        in.Title,
		Description:  in.Description,
		DueDate:      due,
		Priority:     in.Priority,
		Status:       StatusTodo,
		CreatorID:    creatorID,
		AssignedToID: in.AssignedToID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.tasks.InsertTask(ctx, task); err != nil {
		return nil, err
	}

	s.broadcast(ctx, TaskCreated, task)

	if task.AssignedToID != "" && task.AssignedToID != creatorID {
		if err := s.notifyAssignee(ctx, task.ID, task.AssignedToID); err != nil {
			return nil, err
		}
	}
	return &task, nil
}

// UpdateTask merges patch into the stored task. The audit and notification
// decisions are diffs against the exact version the write replaced.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, patch TaskPatch, actorID string) (*Task, error) {
	if !ValidID(taskID) {
		return nil, ErrInvalidID
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var original, updated Task
	for attempt := 1; ; attempt++ {
		cur, err := s.tasks.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		original = *cur
		updated = patch.Apply(original)
		updated.UpdatedAt = s.now()

		etag, err := s.tasks.UpdateTask(ctx, updated, original.ETag)
		if err == nil {
			updated.ETag = etag
			break
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return nil, err
		}
		if attempt >= maxUpdateAttempts {
			s.log.WithFields(log.Fields{"task": taskID, "attempts": attempt}).Warn("task update kept losing to concurrent writers")
			return nil, err
		}
		s.log.WithFields(log.Fields{"task": taskID, "attempt": attempt}).Debug("task changed during update, recomputing")
	}

	if actorID != "" && original.Status != updated.Status {
		entry := AuditLog{
			ID:         s.newID(),
			Action:     AuditTaskStatusUpdated,
			EntityID:   updated.ID,
			EntityType: AuditEntityTask,
			UserID:     actorID,
			Details:    StatusChange{From: original.Status, To: updated.Status},
			CreatedAt:  s.now(),
		}
		if err := s.audit.InsertAuditLog(ctx, entry); err != nil {
			return nil, err
		}
	}

	// Unlike creation, an update that assigns the task to the actor still
	// notifies: only a change of assignee is checked here.
	if patch.AssignedToID != nil && *patch.AssignedToID != "" && *patch.AssignedToID != original.AssignedToID {
		s.log.WithFields(log.Fields{"task": updated.ID, "from": original.AssignedToID, "to": *patch.AssignedToID}).Info("task reassigned")
		if err := s.notifyAssignee(ctx, updated.ID, *patch.AssignedToID); err != nil {
			return nil, err
		}
	}

	s.broadcast(ctx, TaskUpdated, updated)
	return &updated, nil
}

// DeleteTask removes the task. Deleting an unknown id still announces the deletion.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	if !ValidID(taskID) {
		return ErrInvalidID
	}
	if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.broadcast(ctx, TaskDeleted, taskID)
	return nil
}

// ListTasks returns the tasks matching q with their assignees resolved.
func (s *TaskService) ListTasks(ctx context.Context, q TaskQuery) ([]TaskView, error) {
	if q.Now.IsZero() {
		q.Now = s.now()
	}
	tasks, err := s.tasks.ListTasks(ctx, q)
	if err != nil {
		return nil, err
	}
	if q.SortByDue {
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].DueDate.Before(tasks[j].DueDate) })
	}

	assignees := make(map[string]*Assignee)
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		view := TaskView{Task: t}
		if t.AssignedToID != "" {
			a, seen := assignees[t.AssignedToID]
			if !seen {
				a, err = s.resolveAssignee(ctx, t.AssignedToID)
				if err != nil {
					return nil, err
				}
				assignees[t.AssignedToID] = a
			}
			view.AssignedTo = a
		}
		views = append(views, view)
	}
	return views, nil
}

// TaskHistory returns the audit trail of a task, oldest entry first.
func (s *TaskService) TaskHistory(ctx context.Context, taskID string) ([]AuditLog, error) {
	if !ValidID(taskID) {
		return nil, ErrInvalidID
	}
	entries, err := s.audit.ListAuditLogs(ctx, taskID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

func (s *TaskService) resolveAssignee(ctx context.Context, userID string) (*Assignee, error) {
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Assignee{ID: u.ID, Name: u.Name}, nil
}

func (s *TaskService) notifyAssignee(ctx context.Context, taskID, userID string) error {
	n := Notification{
		ID:        s.newID(),
		UserID:    userID,
		Message:   AssignedMessage,
		CreatedAt: s.now(),
	}
	if err := s.notes.InsertNotification(ctx, n); err != nil {
		return err
	}
	if err := s.events.NotifyUser(ctx, userID, TaskAssigned, AssignedEventData{TaskID: taskID, Message: AssignedMessage}); err != nil {
		s.log.WithError(err).WithFields(log.Fields{"task": taskID, "user": userID}).Warn("assignment event not delivered")
	}
	return nil
}

func (s *TaskService) broadcast(ctx context.Context, event string, payload any) {
	if err := s.events.BroadcastAll(ctx, event, payload); err != nil {
		s.log.WithError(err).WithField("event", event).Warn("broadcast failed")
	}
}
