package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/ctfarena/internal/blocklist"
	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeUsers struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*model.User
	err   error
	calls int
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) ListBlockedIDs(context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for id, u := range f.byID {
		if u.IsBlocked {
			out = append(out, id)
		}
	}
	return out, nil
}

type fixture struct {
	gw     *Gateway
	users  *fakeUsers
	cache  *blocklist.Cache
	tokens *token.Service
	now    time.Time
}

func newFixture(t *testing.T, users ...*model.User) *fixture {
	t.Helper()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ts, err := token.New(testSecret, token.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	fu := &fakeUsers{byID: map[uuid.UUID]*model.User{}}
	for _, u := range users {
		fu.byID[u.ID] = u
	}
	cache := blocklist.New()
	return &fixture{
		gw:     New(ts, fu, cache, "ctf_session", zaptest.NewLogger(t)),
		users:  fu,
		cache:  cache,
		tokens: ts,
		now:    now,
	}
}

func newUser(role model.Role) *model.User {
	return &model.User{ID: uuid.Must(uuid.NewV4()), Email: "a@b.com", Username: "alice", Role: role}
}

func (f *fixture) issue(t *testing.T, u *model.User) string {
	t.Helper()
	tok, _, err := f.tokens.Issue(u.ID, u.Role)
	require.NoError(t, err)
	return tok
}

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := f.gw.TokenFromRequest(r)
	require.ErrorIs(t, err, errs.ErrMissingCredentials)

	r.AddCookie(&http.Cookie{Name: "ctf_session", Value: "from-cookie"})
	tok, err := f.gw.TokenFromRequest(r)
	require.NoError(t, err)
	require.Equal(t, "from-cookie", tok)

	r.Header.Set("Authorization", "Bearer from-header")
	tok, err = f.gw.TokenFromRequest(r)
	require.NoError(t, err)
	require.Equal(t, "from-header", tok)

	r.Header.Set("Authorization", "bearer   lower")
	tok, err = f.gw.TokenFromRequest(r)
	require.NoError(t, err)
	require.Equal(t, "lower", tok)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	_, err = f.gw.TokenFromRequest(r)
	require.ErrorIs(t, err, errs.ErrMissingCredentials)
}

func TestTokenFromUpgrade_QueryFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	tok, err := f.gw.TokenFromUpgrade(r)
	require.NoError(t, err)
	require.Equal(t, "q", tok)

	r.Header.Set("Authorization", "Bearer h")
	tok, err = f.gw.TokenFromUpgrade(r)
	require.NoError(t, err)
	require.Equal(t, "h", tok)

	_, err = f.gw.TokenFromUpgrade(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.ErrorIs(t, err, errs.ErrMissingCredentials)
}

func TestAuthenticate_OK_RoleFromStore(t *testing.T) {
	t.Parallel()
	u := newUser(model.RoleAdmin)
	f := newFixture(t, u)
	tok := f.issue(t, u)

	// Demoted after the token was issued.
	f.users.byID[u.ID].Role = model.RoleUser

	id, err := f.gw.Authenticate(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, u.ID, id.UserID)
	require.Equal(t, "alice", id.Username)
	require.Equal(t, model.RoleUser, id.Role)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	t.Parallel()
	u := newUser(model.RoleUser)
	f := newFixture(t, u)

	_, err := f.gw.Authenticate(context.Background(), "garbage")
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	require.ErrorIs(t, err, errs.ErrTokenMalformed)

	later, err := token.New(testSecret, token.WithClock(func() time.Time { return f.now.Add(token.TTL) }))
	require.NoError(t, err)
	expired := New(later, f.users, f.cache, "ctf_session", nil)
	_, err = expired.Authenticate(context.Background(), f.issue(t, u))
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	require.ErrorIs(t, err, errs.ErrTokenExpired)
	require.Zero(t, f.users.calls)
}

func TestAuthenticate_BlockedAfterInitialize(t *testing.T) {
	t.Parallel()
	u := newUser(model.RoleUser)
	u.IsBlocked = true
	f := newFixture(t, u)
	require.NoError(t, f.cache.Initialize(context.Background(), f.users))

	_, err := f.gw.Authenticate(context.Background(), f.issue(t, u))
	require.ErrorIs(t, err, errs.ErrAccountBlocked)
	require.Zero(t, f.users.calls)
}

func TestAuthenticate_StoreBlockedHealsCache(t *testing.T) {
	t.Parallel()
	u := newUser(model.RoleUser)
	f := newFixture(t, u)
	tok := f.issue(t, u)

	f.users.byID[u.ID].IsBlocked = true
	require.False(t, f.cache.Contains(u.ID))

	_, err := f.gw.Authenticate(context.Background(), tok)
	require.ErrorIs(t, err, errs.ErrAccountBlocked)
	require.True(t, f.cache.Contains(u.ID))
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ghost := newUser(model.RoleUser)

	_, err := f.gw.Authenticate(context.Background(), f.issue(t, ghost))
	require.ErrorIs(t, err, errs.ErrUnknownUser)
}

func TestAuthenticate_StoreErrorIsNotMasked(t *testing.T) {
	t.Parallel()
	u := newUser(model.RoleUser)
	f := newFixture(t, u)
	boom := errors.New("connection reset")
	f.users.err = boom

	_, err := f.gw.Authenticate(context.Background(), f.issue(t, u))
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, errs.ErrUnknownUser)
	require.NotErrorIs(t, err, errs.ErrInvalidCredentials)
}

func TestAuthenticateRequest(t *testing.T) {
	t.Parallel()
	u := newUser(model.RoleUser)
	f := newFixture(t, u)

	_, err := f.gw.AuthenticateRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, errs.ErrMissingCredentials)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+f.issue(t, u))
	id, err := f.gw.AuthenticateRequest(r)
	require.NoError(t, err)
	require.Equal(t, u.ID, id.UserID)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()
	admin := newUser(model.RoleAdmin)
	f := newFixture(t, admin)
	ctx := context.Background()

	id, err := f.gw.RequireRole(ctx, model.Identity{UserID: admin.ID, Role: model.RoleAdmin}, model.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, model.RoleAdmin, id.Role)

	f.users.byID[admin.ID].Role = model.RoleUser
	_, err = f.gw.RequireRole(ctx, model.Identity{UserID: admin.ID, Role: model.RoleAdmin}, model.RoleAdmin)
	require.ErrorIs(t, err, errs.ErrForbidden)

	f.users.byID[admin.ID].IsBlocked = true
	_, err = f.gw.RequireRole(ctx, model.Identity{UserID: admin.ID}, model.RoleUser)
	require.ErrorIs(t, err, errs.ErrAccountBlocked)
}

func TestIdentityContext(t *testing.T) {
	t.Parallel()
	_, ok := IdentityFromCtx(context.Background())
	require.False(t, ok)

	want := model.Identity{UserID: uuid.Must(uuid.NewV4()), Username: "bob", Role: model.RoleUser}
	got, ok := IdentityFromCtx(WithIdentity(context.Background(), want))
	require.True(t, ok)
	require.Equal(t, want, got)
}
