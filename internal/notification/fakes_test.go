package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/repository"
)

type memRepo struct {
	mu      sync.Mutex
	users   map[uuid.UUID]bool // id -> blocked
	rows    map[uuid.UUID]*model.Notification
	clock   time.Time
	failErr error
}

var _ repository.NotificationRepository = (*memRepo)(nil)

func newMemRepo(users ...uuid.UUID) *memRepo {
	r := &memRepo{
		users: map[uuid.UUID]bool{},
		rows:  map[uuid.UUID]*model.Notification{},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		r.users[u] = false
	}
	return r
}

func (r *memRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	if _, ok := r.users[n.UserID]; !ok {
		return errs.ErrNotFound
	}
	n.CreatedAt = r.tick()
	n.Read = false
	cpy := *n
	r.rows[n.ID] = &cpy
	return nil
}

func (r *memRepo) CreateForAll(_ context.Context, message string, typ model.NotificationType) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	var out []model.Notification
	for uid, blocked := range r.users {
		if blocked {
			continue
		}
		n := model.Notification{ID: uuid.Must(uuid.NewV4()), UserID: uid, Message: message, Type: typ, CreatedAt: r.tick()}
		cpy := n
		r.rows[n.ID] = &cpy
		out = append(out, n)
	}
	return out, nil
}

func (r *memRepo) ListUnread(_ context.Context, userID uuid.UUID) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.rows {
		if n.UserID == userID && !n.Read {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) MarkRead(_ context.Context, id, userID uuid.UUID) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok || n.UserID != userID {
		return nil, errs.ErrNotFound
	}
	n.Read = true
	cpy := *n
	return &cpy, nil
}

type fakePusher struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	pushed []model.Notification
}

func newFakePusher(online ...uuid.UUID) *fakePusher {
	p := &fakePusher{online: map[uuid.UUID]bool{}}
	for _, u := range online {
		p.online[u] = true
	}
	return p
}

func (p *fakePusher) Push(userID uuid.UUID, n model.Notification) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.online[userID] {
		return false
	}
	p.pushed = append(p.pushed, n)
	return true
}

func (p *fakePusher) Broadcast(pick func(uuid.UUID) (model.Notification, bool)) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	delivered := 0
	for uid := range p.online {
		if n, ok := pick(uid); ok {
			p.pushed = append(p.pushed, n)
			delivered++
		}
	}
	return delivered
}

type fakeRelay struct {
	err       error
	published []model.Notification
}

func (f *fakeRelay) PublishNotification(_ context.Context, n model.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, n)
	return nil
}
