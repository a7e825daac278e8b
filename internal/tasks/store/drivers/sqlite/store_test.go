package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/domain"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/store"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/store/drivers/sqlite"
	"github.com/aussiebroadwan/tasktrack/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	// Applying twice is a no-op.
	require.NoError(t, s.ApplyMigrations())
	return s
}

func createUser(t *testing.T, s store.Store, username string) domain.Principal {
	t.Helper()
	now := time.Now().UTC()
	p := domain.Principal{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		Roles:        []string{domain.RoleUser},
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), p))
	return p
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	alice := createUser(t, s, "alice")

	got, err := s.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)
	require.Equal(t, "alice@example.com", got.Email)
	require.Equal(t, []string{domain.RoleUser}, got.Roles)
	require.WithinDuration(t, alice.CreatedAt, got.CreatedAt, time.Second)

	got, err = s.Users().GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)

	_, err = s.Users().GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := alice
	dup.ID = idx.New().String()
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	n, err := s.Users().CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestTasksAreOwnerScoped(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	now := time.Now().UTC()
	due := now.Add(48 * time.Hour)
	task := domain.Task{
		ID:          idx.New().String(),
		OwnerID:     alice.ID,
		Title:       "write report",
		Description: "quarterly numbers",
		Status:      domain.TaskStatusTodo,
		DueDate:     &due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.Tasks().CreateTask(ctx, task))

	got, err := s.Tasks().GetTask(ctx, alice.ID, task.ID)
	require.NoError(t, err)
	require.Equal(t, "write report", got.Title)
	require.NotNil(t, got.DueDate)
	require.WithinDuration(t, due, *got.DueDate, time.Second)

	_, err = s.Tasks().GetTask(ctx, bob.ID, task.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	bobs, err := s.Tasks().ListTasks(ctx, bob.ID)
	require.NoError(t, err)
	require.Empty(t, bobs)

	task.OwnerID = bob.ID
	task.Title = "hijacked"
	require.ErrorIs(t, s.Tasks().UpdateTask(ctx, task), store.ErrNotFound)
	require.ErrorIs(t, s.Tasks().DeleteTask(ctx, bob.ID, task.ID), store.ErrNotFound)

	task.OwnerID = alice.ID
	task.Title = "write final report"
	task.Status = domain.TaskStatusInProgress
	task.DueDate = nil
	require.NoError(t, s.Tasks().UpdateTask(ctx, task))

	inProgress, err := s.Tasks().ListTasksByStatus(ctx, alice.ID, domain.TaskStatusInProgress)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	require.Equal(t, "write final report", inProgress[0].Title)
	require.Nil(t, inProgress[0].DueDate)

	todo, err := s.Tasks().ListTasksByStatus(ctx, alice.ID, domain.TaskStatusTodo)
	require.NoError(t, err)
	require.Empty(t, todo)

	require.NoError(t, s.Tasks().DeleteTask(ctx, alice.ID, task.ID))
	_, err = s.Tasks().GetTask(ctx, alice.ID, task.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	errBoom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		createUser(t, tx, "rolledback")
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = s.Users().GetUserByUsername(ctx, "rolledback")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		createUser(t, tx, "committed")
		return nil
	}))

	_, err = s.Users().GetUserByUsername(ctx, "committed")
	require.NoError(t, err)
}
