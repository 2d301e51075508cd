package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	payload, err := json.Marshal(newTaskEntity(t))
	if err == nil {
		_, err = s.taskTable.AddEntity(ctx, payload, nil)
	}
	return err
}

// GetTask retrieves a task together with its current ETag.
func (s *Storage) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, tasksPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	t := ent.task()
	t.ETag = string(resp.ETag)
	return &t, nil
}

// UpdateTask replaces the stored task only while its ETag still matches.
func (s *Storage) UpdateTask(ctx context.Context, t domain.Task, etag string) (string, error) {
	payload, err := json.Marshal(newTaskEntity(t))
	if err != nil {
		return "", err
	}
	ifMatch := azcore.ETag(etag)
	resp, err := s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &ifMatch, UpdateMode: aztables.UpdateModeReplace})
	switch {
	case err == nil:
		return string(resp.ETag), nil
	case isPreconditionFailed(err):
		return "", domain.ErrConcurrencyConflict
	case isNotFound(err):
		return "", domain.ErrTaskNotFound
	default:
		return "", err
	}
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	et := azcore.ETagAny
	_, err := s.taskTable.DeleteEntity(ctx, tasksPartition, id, &aztables.DeleteEntityOptions{IfMatch: &et})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (s *Storage) ListTasks(ctx context.Context, q domain.TaskQuery) ([]domain.Task, error) {
	tasks := []domain.Task{}
	err := listAll(ctx, s.taskTable, taskFilter(q), func(raw []byte) error {
		var ent taskEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		tasks = append(tasks, ent.task())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
