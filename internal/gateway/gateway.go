// Package gateway authenticates requests: it verifies the session token,
// consults the block-list cache and re-reads the account from storage.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/ctfarena/internal/blocklist"
	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/metrics"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/token"
)

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(tok string) (token.Claims, error)
}

// UserSource loads accounts by id.
type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Gateway is the single entry point for request authentication.
type Gateway struct {
	tokens     TokenVerifier
	users      UserSource
	blocked    *blocklist.Cache
	cookieName string
	log        *zap.Logger
}

// New constructs a Gateway.
func New(tokens TokenVerifier, users UserSource, blocked *blocklist.Cache, cookieName string, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{tokens: tokens, users: users, blocked: blocked, cookieName: cookieName, log: log.Named("gateway")}
}

// TokenFromRequest extracts the session token from the Authorization
// bearer header or, failing that, from the session cookie.
func (g *Gateway) TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			if tok := strings.TrimSpace(h[len(prefix):]); tok != "" {
				return tok, nil
			}
		}
	}
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errs.ErrMissingCredentials
}

// TokenFromUpgrade is TokenFromRequest with a fallback to the "token" query
// parameter, since browsers cannot set headers on WebSocket requests.
func (g *Gateway) TokenFromUpgrade(r *http.Request) (string, error) {
	tok, err := g.TokenFromRequest(r)
	if err == nil {
		return tok, nil
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, nil
	}
	return "", err
}

// Authenticate resolves tok into the caller identity.
func (g *Gateway) Authenticate(ctx context.Context, tok string) (model.Identity, error) {
	claims, err := g.tokens.Verify(tok)
	if err != nil {
		metrics.RecordAuthRejection("invalid")
		return model.Identity{}, fmt.Errorf("%w: %w", errs.ErrInvalidCredentials, err)
	}
	if g.blocked.Contains(claims.UserID) {
		metrics.RecordAuthRejection("blocked")
		return model.Identity{}, errs.ErrAccountBlocked
	}
	return g.resolve(ctx, claims.UserID)
}

// AuthenticateRequest extracts and resolves the token carried by r.
func (g *Gateway) AuthenticateRequest(r *http.Request) (model.Identity, error) {
	tok, err := g.TokenFromRequest(r)
	if err != nil {
		metrics.RecordAuthRejection("missing")
		return model.Identity{}, err
	}
	return g.Authenticate(r.Context(), tok)
}

// RequireRole re-reads the caller from storage and checks the role there,
// so a demotion takes effect before the token expires.
func (g *Gateway) RequireRole(ctx context.Context, id model.Identity, role model.Role) (model.Identity, error) {
	fresh, err := g.resolve(ctx, id.UserID)
	if err != nil {
		return model.Identity{}, err
	}
	if fresh.Role != role {
		metrics.RecordAuthRejection("forbidden")
		return model.Identity{}, errs.ErrForbidden
	}
	return fresh, nil
}

// resolve loads the account and applies the authoritative block flag.
// A blocked account missing from the cache is added back to it.
func (g *Gateway) resolve(ctx context.Context, userID uuid.UUID) (model.Identity, error) {
	u, err := g.users.GetByID(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		metrics.RecordAuthRejection("unknown_user")
		return model.Identity{}, errs.ErrUnknownUser
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("gateway: load user: %w", err)
	}
	if u.IsBlocked {
		if !g.blocked.Contains(u.ID) {
			g.log.Info("block-list cache healed", zap.Stringer("user", u.ID))
			g.blocked.Add(u.ID)
			metrics.BlocklistSize.Set(float64(g.blocked.Len()))
		}
		metrics.RecordAuthRejection("blocked")
		return model.Identity{}, errs.ErrAccountBlocked
	}
	return model.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}
