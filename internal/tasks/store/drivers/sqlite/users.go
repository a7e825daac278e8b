package sqlite

import (
	"context"
	"strings"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, username, email, password_hash, roles, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.Principal, error) {
	var (
		p     domain.Principal
		roles string
	)
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &roles, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	p.Roles = splitAndFilter(roles)
	return p, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.Principal, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.Principal, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r *usersRepo) CreateUser(ctx context.Context, p domain.Principal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Username, p.Email, p.PasswordHash, strings.Join(p.Roles, " "), p.CreatedAt, p.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *usersRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
