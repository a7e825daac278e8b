package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/domain"
)

type tasksRepo struct {
	db dbtx
}

const taskColumns = `id, owner_id, title, description, status, due_date, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var (
		t      domain.Task
		status string
		due    sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &status, &due, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Task{}, mapNotFound(err)
	}
	t.Status = domain.TaskStatus(status)
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return t, nil
}

func nullTime(t *domain.Task) sql.NullTime {
	if t.DueDate == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t.DueDate, Valid: true}
}

func (r *tasksRepo) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Title, t.Description, string(t.Status), nullTime(&t), t.CreatedAt, t.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *tasksRepo) GetTask(ctx context.Context, ownerID, id string) (domain.Task, error) {
	return scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID))
}

func (r *tasksRepo) ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	return r.list(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
}

func (r *tasksRepo) ListTasksByStatus(ctx context.Context, ownerID string, status domain.TaskStatus) ([]domain.Task, error) {
	return r.list(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? AND status = ? ORDER BY created_at, id`,
		ownerID, string(status))
}

func (r *tasksRepo) list(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *tasksRepo) UpdateTask(ctx context.Context, t domain.Task) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, due_date = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		t.Title, t.Description, string(t.Status), nullTime(&t), t.UpdatedAt, t.ID, t.OwnerID,
	))
}

func (r *tasksRepo) DeleteTask(ctx context.Context, ownerID, id string) error {
	return requireAffected(r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID))
}
