package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, username, pwd_hash, role, is_blocked, score, created_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, email, username, pwd_hash, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, u.ID, u.Email, u.Username, u.PwdHash, string(u.Role)).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("users.create: %w", err)
	}
	return nil
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFoundOr("users.get_by_id", err)
	}
	return u, nil
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, email))
	if err != nil {
		return nil, notFoundOr("users.get_by_email", err)
	}
	return u, nil
}

// SetBlocked updates the block flag.
func (r *UserRepo) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	const q = `UPDATE users SET is_blocked=$2 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, blocked)
	if err != nil {
		return fmt.Errorf("users.set_blocked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetRole updates the role.
func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	const q = `UPDATE users SET role=$2 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, string(role))
	if err != nil {
		return fmt.Errorf("users.set_role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListBlockedIDs returns the ids of all blocked users.
func (r *UserRepo) ListBlockedIDs(ctx context.Context) ([]uuid.UUID, error) {
	const q = `SELECT id FROM users WHERE is_blocked`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("users.list_blocked: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("users.list_blocked: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users.list_blocked: %w", err)
	}
	return out, nil
}

// List returns all users ordered by creation time.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, username`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("users.list: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users.list: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users.list: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PwdHash, &role, &u.IsBlocked, &u.Score, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
