// Package bus fans out block-list changes and notifications between server
// instances over core NATS subjects. Every instance receives every message;
// messages published by the receiving instance itself are skipped.
package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/and161185/ctfarena/internal/model"
)

// Subjects used by the bus.
const (
	SubjectBlocklist     = "ctfarena.blocklist"
	SubjectNotifications = "ctfarena.notifications"
)

// BlockEvent announces a changed block flag.
type BlockEvent struct {
	Origin  string    `json:"origin"`
	UserID  uuid.UUID `json:"userId"`
	Blocked bool      `json:"blocked"`
}

// NotificationEvent carries a stored notification to the instance that
// holds the recipient's connection.
type NotificationEvent struct {
	Origin       string             `json:"origin"`
	UserID       uuid.UUID          `json:"userId"`
	Notification model.Notification `json:"notification"`
}

var errNilBus = errors.New("bus: not connected")

// Bus wraps a NATS connection.
type Bus struct {
	conn   *nats.Conn
	origin string
	log    *zap.Logger
}

// Connect dials url and returns a Bus with a fresh origin id.
func Connect(url string, log *zap.Logger, opts ...nats.Option) (*Bus, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("bus")
	opts = append([]nats.Option{
		nats.Name("ctfarena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}, opts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus: connect: %w", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		nc.Close()
		return nil, err
	}
	return &Bus{conn: nc, origin: id.String(), log: log}, nil
}

// Origin returns the id stamped on messages from this instance.
func (b *Bus) Origin() string { return b.origin }

// Close drains the connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// pingTimeout applies when the caller's context carries no deadline.
const pingTimeout = 5 * time.Second

// Ping round-trips to the server.
func (b *Bus) Ping(ctx context.Context) error {
	if b == nil {
		return errNilBus
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pingTimeout)
		defer cancel()
	}
	return b.conn.FlushWithContext(ctx)
}

func (b *Bus) publish(subj string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.conn.Publish(subj, data)
}

// PublishBlock announces that userID was blocked or unblocked.
func (b *Bus) PublishBlock(_ context.Context, userID uuid.UUID, blocked bool) error {
	if b == nil {
		return errNilBus
	}
	return b.publish(SubjectBlocklist, BlockEvent{Origin: b.origin, UserID: userID, Blocked: blocked})
}

// PublishNotification relays a stored notification to other instances.
func (b *Bus) PublishNotification(_ context.Context, n model.Notification) error {
	if b == nil {
		return errNilBus
	}
	return b.publish(SubjectNotifications, NotificationEvent{Origin: b.origin, UserID: n.UserID, Notification: n})
}

// SubscribeBlocklist invokes fn for block events from other instances until
// ctx is done or the returned closer is closed.
func (b *Bus) SubscribeBlocklist(ctx context.Context, fn func(userID uuid.UUID, blocked bool)) (io.Closer, error) {
	return b.subscribe(ctx, SubjectBlocklist, func(data []byte) error {
		var ev BlockEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		if ev.Origin == b.origin {
			return nil
		}
		fn(ev.UserID, ev.Blocked)
		return nil
	})
}

// SubscribeNotifications invokes fn for notifications relayed by other instances.
func (b *Bus) SubscribeNotifications(ctx context.Context, fn func(n model.Notification)) (io.Closer, error) {
	return b.subscribe(ctx, SubjectNotifications, func(data []byte) error {
		var ev NotificationEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		if ev.Origin == b.origin {
			return nil
		}
		n := ev.Notification
		n.UserID = ev.UserID
		fn(n)
		return nil
	})
}

type subscription struct {
	sub *nats.Subscription
}

func (s *subscription) Close() error {
	if !s.sub.IsValid() {
		return nil
	}
	return s.sub.Unsubscribe()
}

func (b *Bus) subscribe(ctx context.Context, subj string, handle func([]byte) error) (io.Closer, error) {
	if b == nil {
		return nil, errNilBus
	}
	sub, err := b.conn.Subscribe(subj, func(msg *nats.Msg) {
		if err := handle(msg.Data); err != nil {
			b.log.Warn("bad bus message", zap.String("subject", subj), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("bus: subscribe %s: %w", subj, err)
	}
	s := &subscription{sub: sub}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s, nil
}
