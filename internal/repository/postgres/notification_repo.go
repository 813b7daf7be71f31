package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
)

// NotificationRepo implements NotificationRepository using PostgreSQL.
type NotificationRepo struct{ db *DB }

// NewNotificationRepo constructs a notification repository.
func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

const notificationColumns = `id, user_id, message, type, read, created_at`

type notificationRow struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Message   string    `db:"message"`
	Type      string    `db:"type"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) model() model.Notification {
	return model.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Message:   r.Message,
		Type:      model.NotificationType(r.Type),
		Read:      r.Read,
		CreatedAt: r.CreatedAt,
	}
}

func toNotifications(rows []notificationRow) []model.Notification {
	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out
}

// Create inserts n as unread and fills CreatedAt.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	const q = `
INSERT INTO notifications (id, user_id, message, type)
VALUES ($1, $2, $3, $4)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, n.ID, n.UserID, n.Message, string(n.Type)).Scan(&n.CreatedAt)
	if isForeignKeyViolation(err) {
		return errs.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("notifications.create: %w", err)
	}
	n.Read = false
	return nil
}

// CreateForAll inserts one copy of the message for every non-blocked user.
func (r *NotificationRepo) CreateForAll(ctx context.Context, message string, typ model.NotificationType) ([]model.Notification, error) {
	const q = `
INSERT INTO notifications (id, user_id, message, type)
SELECT gen_random_uuid(), id, $1, $2 FROM users WHERE NOT is_blocked
RETURNING ` + notificationColumns
	var rows []notificationRow
	if err := pgxscan.Select(ctx, r.db.Pool, &rows, q, message, string(typ)); err != nil {
		return nil, fmt.Errorf("notifications.create_for_all: %w", err)
	}
	return toNotifications(rows), nil
}

// ListUnread returns unread notifications of userID, newest first.
func (r *NotificationRepo) ListUnread(ctx context.Context, userID uuid.UUID) ([]model.Notification, error) {
	const q = `SELECT ` + notificationColumns + ` FROM notifications
WHERE user_id=$1 AND NOT read
ORDER BY created_at DESC, id DESC`
	var rows []notificationRow
	if err := pgxscan.Select(ctx, r.db.Pool, &rows, q, userID); err != nil {
		return nil, fmt.Errorf("notifications.list_unread: %w", err)
	}
	return toNotifications(rows), nil
}

// MarkRead flags a notification as read. Repeated calls succeed.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) (*model.Notification, error) {
	const q = `UPDATE notifications SET read=true WHERE id=$1 AND user_id=$2
RETURNING ` + notificationColumns
	var row notificationRow
	if err := pgxscan.Get(ctx, r.db.Pool, &row, q, id, userID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("notifications.mark_read: %w", err)
	}
	n := row.model()
	return &n, nil
}
