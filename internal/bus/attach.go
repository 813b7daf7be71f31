package bus

import (
	"context"
	"errors"
	"io"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ctfarena/internal/blocklist"
	"github.com/and161185/ctfarena/internal/metrics"
	"github.com/and161185/ctfarena/internal/model"
)

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}

// Attach applies remote block events to cache and hands relayed
// notifications to deliver. When disconnect is non-nil it is called for
// users blocked elsewhere. Both subscriptions end with ctx.
func Attach(ctx context.Context, b *Bus, cache *blocklist.Cache, deliver func(model.Notification) bool, disconnect func(uuid.UUID) bool) (io.Closer, error) {
	blocks, err := b.SubscribeBlocklist(ctx, func(userID uuid.UUID, blocked bool) {
		cache.Set(userID, blocked)
		metrics.BlocklistSize.Set(float64(cache.Len()))
		if blocked && disconnect != nil {
			disconnect(userID)
		}
	})
	if err != nil {
		return nil, err
	}
	notes, err := b.SubscribeNotifications(ctx, func(n model.Notification) {
		if deliver(n) {
			b.log.Debug("relayed notification delivered")
		}
	})
	if err != nil {
		_ = blocks.Close()
		return nil, err
	}
	return closers{blocks, notes}, nil
}
