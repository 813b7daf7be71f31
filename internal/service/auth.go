// Package service contains application services for accounts, administration
// and challenges.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/and161185/ctfarena/internal/crypto"
	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/limiter"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/repository"
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID uuid.UUID, role model.Role) (string, time.Time, error)
}

// AuthService defines account registration and login.
type AuthService interface {
	// Register creates a USER account and signs it in.
	Register(ctx context.Context, email, username, password string) (model.User, model.Tokens, error)
	// Login applies rate-limiting and authenticates by email and password.
	Login(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error)
	// Me returns the profile of id.
	Me(ctx context.Context, id uuid.UUID) (model.User, error)
}

type AuthServiceImpl struct {
	users  repository.UserRepository
	tokens TokenIssuer
	lim    limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, tokens: tokens, lim: lim}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user record with an argon2id password hash.
func (s *AuthServiceImpl) Register(ctx context.Context, email, username, password string) (model.User, model.Tokens, error) {
	email = NormalizeEmail(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return model.User{}, model.Tokens{}, fmt.Errorf("%w: email, username and password are required", errs.ErrValidation)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}
	pwdHash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}

	u := &model.User{
		ID:       uid,
		Email:    email,
		Username: username,
		PwdHash:  pwdHash,
		Role:     model.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return model.User{}, model.Tokens{}, err
	}
	tok, err := s.issue(u)
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}
	return *u, tok, nil
}

// Login authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	email = NormalizeEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword(password, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// Unknown email and wrong password look the same to the caller.
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, email, ipHash)

	if u.IsBlocked {
		return model.Tokens{}, model.User{}, errs.ErrAccountBlocked
	}
	tok, err := s.issue(u)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tok, *u, nil
}

// Me returns the current profile.
func (s *AuthServiceImpl) Me(ctx context.Context, id uuid.UUID) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

func (s *AuthServiceImpl) issue(u *model.User) (model.Tokens, error) {
	access, exp, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, nil
}
