package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/ctfarena/internal/blocklist"
	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/metrics"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/repository"
)

// Notifier persists and delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string, typ model.NotificationType) (model.Notification, error)
	Announce(ctx context.Context, message string) (created, delivered int, err error)
}

// Disconnector closes a user's live realtime connection.
type Disconnector interface {
	Disconnect(userID uuid.UUID) bool
}

// BlockPublisher announces block-flag changes to other instances.
type BlockPublisher interface {
	PublishBlock(ctx context.Context, userID uuid.UUID, blocked bool) error
}

// AdminService defines operations restricted to administrators.
type AdminService interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	// ToggleBlock flips the block flag of target and returns the updated user.
	ToggleBlock(ctx context.Context, actor, target uuid.UUID) (model.User, error)
	SetRole(ctx context.Context, actor, target uuid.UUID, role model.Role) (model.User, error)
	SendNotification(ctx context.Context, target uuid.UUID, message string) (model.Notification, error)
	Announce(ctx context.Context, message string) (created, delivered int, err error)
}

type AdminServiceImpl struct {
	users    repository.UserRepository
	blocked  *blocklist.Cache
	notifier Notifier
	conns    Disconnector
	pub      BlockPublisher
	log      *zap.Logger
}

// NewAdminService constructs AdminService. pub may be nil.
func NewAdminService(users repository.UserRepository, blocked *blocklist.Cache, notifier Notifier, conns Disconnector, pub BlockPublisher, log *zap.Logger) *AdminServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminServiceImpl{users: users, blocked: blocked, notifier: notifier, conns: conns, pub: pub, log: log.Named("admin")}
}

// ListUsers returns all accounts.
func (s *AdminServiceImpl) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// ToggleBlock flips the block flag in storage, then mirrors it into the
// block-list cache. Blocking drops the live connection; unblocking notifies.
func (s *AdminServiceImpl) ToggleBlock(ctx context.Context, actor, target uuid.UUID) (model.User, error) {
	if actor == target {
		return model.User{}, fmt.Errorf("%w: cannot block yourself", errs.ErrValidation)
	}
	u, err := s.users.GetByID(ctx, target)
	if err != nil {
		return model.User{}, err
	}
	next := !u.IsBlocked
	if err := s.users.SetBlocked(ctx, target, next); err != nil {
		return model.User{}, err
	}
	s.blocked.Set(target, next)
	metrics.BlocklistSize.Set(float64(s.blocked.Len()))
	u.IsBlocked = next

	s.log.Info("block flag changed",
		zap.Stringer("actor", actor),
		zap.Stringer("target", target),
		zap.Bool("blocked", next),
	)

	if s.pub != nil {
		if err := s.pub.PublishBlock(ctx, target, next); err != nil {
			s.log.Warn("publish block event", zap.Error(err))
		}
	}
	if next {
		s.conns.Disconnect(target)
		return *u, nil
	}
	if _, err := s.notifier.Notify(ctx, target, "Your account has been unblocked.", model.NotificationAdmin); err != nil {
		s.log.Warn("unblock notification", zap.Stringer("target", target), zap.Error(err))
	}
	return *u, nil
}

// SetRole changes the role of target. Admins cannot demote themselves.
func (s *AdminServiceImpl) SetRole(ctx context.Context, actor, target uuid.UUID, role model.Role) (model.User, error) {
	if !role.Valid() {
		return model.User{}, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, role)
	}
	if actor == target && role != model.RoleAdmin {
		return model.User{}, fmt.Errorf("%w: cannot demote yourself", errs.ErrValidation)
	}
	if err := s.users.SetRole(ctx, target, role); err != nil {
		return model.User{}, err
	}
	u, err := s.users.GetByID(ctx, target)
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("role changed", zap.Stringer("actor", actor), zap.Stringer("target", target), zap.String("role", string(role)))
	return *u, nil
}

// SendNotification delivers an ADMIN notification to target.
func (s *AdminServiceImpl) SendNotification(ctx context.Context, target uuid.UUID, message string) (model.Notification, error) {
	return s.notifier.Notify(ctx, target, message, model.NotificationAdmin)
}

// Announce delivers a SYSTEM notification to every active user.
func (s *AdminServiceImpl) Announce(ctx context.Context, message string) (int, int, error) {
	return s.notifier.Announce(ctx, message)
}
