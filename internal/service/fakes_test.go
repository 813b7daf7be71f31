package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/limiter"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/repository"
)

type fakeUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.User

	createErr error
	getErr    error
	setErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: map[uuid.UUID]*model.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, x := range f.byID {
		if x.Email == u.Email || x.Username == u.Username {
			return errs.ErrAlreadyExists
		}
	}
	u.CreatedAt = time.Now()
	cpy := *u
	f.byID[u.ID] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) SetBlocked(_ context.Context, id uuid.UUID, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.IsBlocked = blocked
	return nil
}

func (f *fakeUsers) SetRole(_ context.Context, id uuid.UUID, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.Role = role
	return nil
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

func (f *fakeUsers) List(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
	lastLogin    string
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, login string, _ []byte) (bool, time.Duration, error) {
	l.allowCalls++
	l.lastLogin = login
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type sentNotification struct {
	userID  uuid.UUID
	message string
	typ     model.NotificationType
}

type fakeNotifier struct {
	mu        sync.Mutex
	sent      []sentNotification
	announced []string
	err       error
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, message string, typ model.NotificationType) (model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Notification{}, f.err
	}
	f.sent = append(f.sent, sentNotification{userID: userID, message: message, typ: typ})
	return model.Notification{ID: uuid.Must(uuid.NewV4()), UserID: userID, Message: message, Type: typ}, nil
}

func (f *fakeNotifier) Announce(_ context.Context, message string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, 0, f.err
	}
	f.announced = append(f.announced, message)
	return 3, 1, nil
}

type fakeConns struct{ dropped []uuid.UUID }

func (f *fakeConns) Disconnect(userID uuid.UUID) bool {
	f.dropped = append(f.dropped, userID)
	return true
}

type blockEvent struct {
	userID  uuid.UUID
	blocked bool
}

type fakePublisher struct {
	events []blockEvent
	err    error
}

func (f *fakePublisher) PublishBlock(_ context.Context, userID uuid.UUID, blocked bool) error {
	f.events = append(f.events, blockEvent{userID: userID, blocked: blocked})
	return f.err
}
