package notification

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/ctfarena/internal/metrics"
	"github.com/and161185/ctfarena/internal/model"
)

// Pusher delivers notifications to live connections on this instance.
type Pusher interface {
	// Push enqueues n on the connection of userID; false when none is live.
	Push(userID uuid.UUID, n model.Notification) bool
	// Broadcast offers every live user the notification picked for them.
	Broadcast(pick func(userID uuid.UUID) (model.Notification, bool)) int
}

// Relay forwards notifications to other instances.
type Relay interface {
	PublishNotification(ctx context.Context, n model.Notification) error
}

// Dispatcher persists a notification first and then attempts realtime delivery.
// Delivery is best-effort; the stored row is the source of truth.
type Dispatcher struct {
	reg   *Registry
	push  Pusher
	relay Relay
	log   *zap.Logger
}

// NewDispatcher constructs a Dispatcher. relay may be nil.
func NewDispatcher(reg *Registry, push Pusher, relay Relay, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{reg: reg, push: push, relay: relay, log: log.Named("dispatch")}
}

// Notify stores a notification for userID and pushes it if the user is online.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, message string, typ model.NotificationType) (model.Notification, error) {
	n, err := d.reg.Create(ctx, userID, message, typ)
	if err != nil {
		return model.Notification{}, err
	}
	if d.push.Push(userID, n) {
		metrics.RecordPush("delivered")
		return n, nil
	}
	if d.relay != nil {
		if err := d.relay.PublishNotification(ctx, n); err != nil {
			d.log.Debug("relay publish failed", zap.Stringer("notification", n.ID), zap.Error(err))
		} else {
			metrics.RecordPush("relayed")
			return n, nil
		}
	}
	metrics.RecordPush("offline")
	d.log.Debug("recipient offline", zap.Stringer("user", userID), zap.Stringer("notification", n.ID))
	return n, nil
}

// Announce stores a SYSTEM notification for every non-blocked user and
// broadcasts each user's own copy. It returns the stored and delivered counts.
func (d *Dispatcher) Announce(ctx context.Context, message string) (int, int, error) {
	created, err := d.reg.CreateForAll(ctx, message, model.NotificationSystem)
	if err != nil {
		return 0, 0, err
	}
	byUser := make(map[uuid.UUID]model.Notification, len(created))
	for _, n := range created {
		byUser[n.UserID] = n
	}
	delivered := d.push.Broadcast(func(userID uuid.UUID) (model.Notification, bool) {
		n, ok := byUser[userID]
		return n, ok
	})
	if d.relay != nil {
		for _, n := range created {
			if err := d.relay.PublishNotification(ctx, n); err != nil {
				d.log.Debug("relay publish failed", zap.Error(err))
				break
			}
		}
	}
	d.log.Info("announcement", zap.Int("created", len(created)), zap.Int("delivered", delivered))
	return len(created), delivered, nil
}

// Deliver pushes an already stored notification received from another instance.
func (d *Dispatcher) Deliver(n model.Notification) bool {
	ok := d.push.Push(n.UserID, n)
	if ok {
		metrics.RecordPush("delivered")
	}
	return ok
}
