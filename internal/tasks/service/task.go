package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/domain"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/store"
	"github.com/aussiebroadwan/tasktrack/pkg/idx"
)

var (
	ErrTaskNotFound = errors.New("task_not_found")
	ErrInvalidTask  = errors.New("invalid_task")
)

const maxTitleLength = 200

// TaskInput carries the client-editable fields of a task.
type TaskInput struct {
	Title       string
	Description string
	Status      string
	DueDate     *time.Time
}

// TaskService owns task records. The owner id it is handed comes from the
// request gate and is trusted as is.
type TaskService struct {
	Store store.Store
	Now   func() time.Time
}

func (s *TaskService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TaskService) Create(ctx context.Context, ownerID string, in TaskInput) (domain.Task, error) {
	status, err := normalizeTask(&in)
	if err != nil {
		return domain.Task{}, err
	}

	now := s.now().UTC()
	t := domain.Task{
		ID:          idx.New().String(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.Tasks().CreateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (s *TaskService) Get(ctx context.Context, ownerID, id string) (domain.Task, error) {
	t, err := s.Store.Tasks().GetTask(ctx, ownerID, id)
	return t, mapTaskErr(err)
}

func (s *TaskService) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	return s.Store.Tasks().ListTasks(ctx, ownerID)
}

// ListByStatus accepts the status in any letter case.
func (s *TaskService) ListByStatus(ctx context.Context, ownerID, status string) ([]domain.Task, error) {
	st, ok := domain.ParseTaskStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTask, status)
	}
	return s.Store.Tasks().ListTasksByStatus(ctx, ownerID, st)
}

// Update replaces every editable field of the task, like a PUT.
func (s *TaskService) Update(ctx context.Context, ownerID, id string, in TaskInput) (domain.Task, error) {
	status, err := normalizeTask(&in)
	if err != nil {
		return domain.Task{}, err
	}

	var updated domain.Task
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.Tasks().GetTask(ctx, ownerID, id)
		if err != nil {
			return err
		}

		t.Title = in.Title
		t.Description = in.Description
		t.Status = status
		t.DueDate = in.DueDate
		t.UpdatedAt = s.now().UTC()

		if err := tx.Tasks().UpdateTask(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return domain.Task{}, mapTaskErr(err)
	}
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, ownerID, id string) error {
	return mapTaskErr(s.Store.Tasks().DeleteTask(ctx, ownerID, id))
}

// normalizeTask trims the input and resolves the status, defaulting to TODO.
func normalizeTask(in *TaskInput) (domain.TaskStatus, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.Title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if len(in.Title) > maxTitleLength {
		return "", fmt.Errorf("%w: title exceeds %d bytes", ErrInvalidTask, maxTitleLength)
	}

	if in.Status == "" {
		return domain.TaskStatusTodo, nil
	}
	status, ok := domain.ParseTaskStatus(in.Status)
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTask, in.Status)
	}
	return status, nil
}

func mapTaskErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}
