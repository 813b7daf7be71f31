package httpserver

import (
	"context"
	"net/http"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/service"
)

type fakeUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

type fakeAuth struct {
	user     model.User
	tokens   model.Tokens
	err      error
	lastIP   string
	lastPass string
}

func (f *fakeAuth) Register(_ context.Context, email, username, password string) (model.User, model.Tokens, error) {
	f.lastPass = password
	if f.err != nil {
		return model.User{}, model.Tokens{}, f.err
	}
	u := f.user
	u.Email, u.Username = email, username
	return u, f.tokens, nil
}

func (f *fakeAuth) Login(_ context.Context, _, password, ip string) (model.Tokens, model.User, error) {
	f.lastIP, f.lastPass = ip, password
	if f.err != nil {
		return model.Tokens{}, model.User{}, f.err
	}
	return f.tokens, f.user, nil
}

func (f *fakeAuth) Me(_ context.Context, id uuid.UUID) (model.User, error) {
	if f.err != nil {
		return model.User{}, f.err
	}
	u := f.user
	u.ID = id
	return u, nil
}

type fakeAdmin struct {
	users     []model.User
	err       error
	toggled   []uuid.UUID
	actor     uuid.UUID
	role      model.Role
	notified  uuid.UUID
	message   string
	announced string
}

func (f *fakeAdmin) ListUsers(context.Context) ([]model.User, error) { return f.users, f.err }

func (f *fakeAdmin) ToggleBlock(_ context.Context, actor, target uuid.UUID) (model.User, error) {
	f.actor = actor
	f.toggled = append(f.toggled, target)
	if f.err != nil {
		return model.User{}, f.err
	}
	return model.User{ID: target, IsBlocked: true, Role: model.RoleUser}, nil
}

func (f *fakeAdmin) SetRole(_ context.Context, actor, target uuid.UUID, role model.Role) (model.User, error) {
	f.actor, f.role = actor, role
	if f.err != nil {
		return model.User{}, f.err
	}
	return model.User{ID: target, Role: role}, nil
}

func (f *fakeAdmin) SendNotification(_ context.Context, target uuid.UUID, message string) (model.Notification, error) {
	f.notified, f.message = target, message
	if f.err != nil {
		return model.Notification{}, f.err
	}
	return model.Notification{ID: uuid.Must(uuid.NewV4()), UserID: target, Message: message, Type: model.NotificationAdmin}, nil
}

func (f *fakeAdmin) Announce(_ context.Context, message string) (int, int, error) {
	f.announced = message
	return 3, 1, f.err
}

type fakeChallenges struct {
	err       error
	submitted string
	created   service.NewChallenge
	deleted   uuid.UUID
	limit     int
}

func (f *fakeChallenges) CreateCategory(_ context.Context, name string) (model.Category, error) {
	return model.Category{ID: uuid.Must(uuid.NewV4()), Name: name}, f.err
}

func (f *fakeChallenges) ListCategories(context.Context) ([]model.Category, error) {
	return nil, f.err
}

func (f *fakeChallenges) CreateChallenge(_ context.Context, in service.NewChallenge) (model.Challenge, error) {
	f.created = in
	if f.err != nil {
		return model.Challenge{}, f.err
	}
	return model.Challenge{ID: uuid.Must(uuid.NewV4()), CategoryID: in.CategoryID, Title: in.Title, Points: in.Points, FlagDigest: []byte("secret")}, nil
}

func (f *fakeChallenges) ListChallenges(context.Context, uuid.UUID) ([]model.ChallengeView, error) {
	return []model.ChallengeView{{Title: "warmup", Points: 100}}, f.err
}

func (f *fakeChallenges) DeleteChallenge(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}

func (f *fakeChallenges) SubmitFlag(_ context.Context, _, _ uuid.UUID, flag string) (model.SubmitResult, error) {
	f.submitted = flag
	if f.err != nil {
		return model.SubmitResult{}, f.err
	}
	return model.SubmitResult{Correct: true, Points: 100, Score: 100}, nil
}

func (f *fakeChallenges) Leaderboard(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	f.limit = limit
	return nil, f.err
}

func (f *fakeChallenges) Stats(context.Context) (model.Stats, error) {
	return model.Stats{Users: 2, Challenges: 1, Solves: 1, CompletionRate: 50}, f.err
}

type fakeInbox struct {
	items map[uuid.UUID][]model.Notification
	err   error
}

func (f *fakeInbox) ListUnread(_ context.Context, userID uuid.UUID) ([]model.Notification, error) {
	return f.items[userID], f.err
}

func (f *fakeInbox) MarkRead(_ context.Context, id, userID uuid.UUID) (model.Notification, error) {
	if f.err != nil {
		return model.Notification{}, f.err
	}
	for _, n := range f.items[userID] {
		if n.ID == id {
			n.Read = true
			return n, nil
		}
	}
	return model.Notification{}, errs.ErrNotFound
}

type fakeRealtime struct {
	mu     sync.Mutex
	served []model.Identity
}

func (f *fakeRealtime) Serve(w http.ResponseWriter, _ *http.Request, id model.Identity) {
	f.mu.Lock()
	f.served = append(f.served, id)
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }
