// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/ctfarena/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository is the credential store: accounts, roles and block flags.
type UserRepository interface {
	// Create inserts a new user. Duplicate email or username yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by (lower-cased) email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// SetBlocked updates the block flag.
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error
	// SetRole updates the role.
	SetRole(ctx context.Context, id uuid.UUID, role model.Role) error
	// ListBlockedIDs returns ids of all blocked users.
	ListBlockedIDs(ctx context.Context) ([]uuid.UUID, error)
	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]model.User, error)
}
