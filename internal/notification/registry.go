// Package notification persists per-user notifications and dispatches them
// to live realtime connections.
package notification

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/metrics"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/repository"
)

// MaxMessageRunes bounds the length of a stored message.
const MaxMessageRunes = 500

// Registry validates and stores notifications.
type Registry struct {
	repo repository.NotificationRepository
}

// NewRegistry constructs a Registry over repo.
func NewRegistry(repo repository.NotificationRepository) *Registry {
	return &Registry{repo: repo}
}

// normalize trims message and checks it together with typ.
func normalize(message string, typ model.NotificationType) (string, error) {
	msg := strings.TrimSpace(message)
	switch {
	case msg == "":
		return "", fmt.Errorf("%w: message is empty", errs.ErrValidation)
	case utf8.RuneCountInString(msg) > MaxMessageRunes:
		return "", fmt.Errorf("%w: message exceeds %d characters", errs.ErrValidation, MaxMessageRunes)
	case !typ.Valid():
		return "", fmt.Errorf("%w: unknown notification type %q", errs.ErrValidation, typ)
	}
	return msg, nil
}

// Create stores an unread notification for userID.
func (r *Registry) Create(ctx context.Context, userID uuid.UUID, message string, typ model.NotificationType) (model.Notification, error) {
	msg, err := normalize(message, typ)
	if err != nil {
		return model.Notification{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Notification{}, err
	}
	n := model.Notification{ID: id, UserID: userID, Message: msg, Type: typ}
	if err := r.repo.Create(ctx, &n); err != nil {
		return model.Notification{}, err
	}
	metrics.RecordNotificationCreated(string(typ), 1)
	return n, nil
}

// CreateForAll stores one copy of message for every non-blocked user.
func (r *Registry) CreateForAll(ctx context.Context, message string, typ model.NotificationType) ([]model.Notification, error) {
	msg, err := normalize(message, typ)
	if err != nil {
		return nil, err
	}
	out, err := r.repo.CreateForAll(ctx, msg, typ)
	if err != nil {
		return nil, err
	}
	metrics.RecordNotificationCreated(string(typ), len(out))
	return out, nil
}

// ListUnread returns the unread notifications of userID, newest first.
func (r *Registry) ListUnread(ctx context.Context, userID uuid.UUID) ([]model.Notification, error) {
	return r.repo.ListUnread(ctx, userID)
}

// MarkRead marks a notification owned by userID as read. Marking an
// already-read notification succeeds and leaves it read.
func (r *Registry) MarkRead(ctx context.Context, id, userID uuid.UUID) (model.Notification, error) {
	n, err := r.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return model.Notification{}, err
	}
	return *n, nil
}
