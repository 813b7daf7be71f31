package repository

import (
	"context"

	"github.com/and161185/ctfarena/internal/model"
	"github.com/gofrs/uuid/v5"
)

// NotificationRepository persists per-user notifications.
type NotificationRepository interface {
	// Create inserts n. A missing owner yields errs.ErrNotFound.
	Create(ctx context.Context, n *model.Notification) error
	// CreateForAll inserts one copy per non-blocked user and returns the rows.
	CreateForAll(ctx context.Context, message string, typ model.NotificationType) ([]model.Notification, error)
	// ListUnread returns unread notifications of userID, newest first.
	ListUnread(ctx context.Context, userID uuid.UUID) ([]model.Notification, error)
	// MarkRead sets read=true on a notification owned by userID and returns it.
	MarkRead(ctx context.Context, id, userID uuid.UUID) (*model.Notification, error)
}
