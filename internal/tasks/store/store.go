package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so a transaction can hand out the same repos bound
// to the transaction.
type Store interface {
	Users() Users
	Tasks() Tasks

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users backs the user directory.
type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.Principal, error)

	// GetUserByUsername is used by login.
	GetUserByUsername(ctx context.Context, username string) (domain.Principal, error)

	// CreateUser inserts a new user. A taken username yields ErrAlreadyExists.
	CreateUser(ctx context.Context, p domain.Principal) error

	CountUsers(ctx context.Context) (int64, error)
}

// Tasks is owner scoped: every lookup takes the owning principal's id and a
// task belonging to someone else reads as ErrNotFound.
type Tasks interface {
	CreateTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, ownerID, id string) (domain.Task, error)
	ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error)
	ListTasksByStatus(ctx context.Context, ownerID string, status domain.TaskStatus) ([]domain.Task, error)

	// UpdateTask overwrites title, description, status and due date.
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, ownerID, id string) error
}
