// Package realtime delivers notifications over WebSocket connections.
//
// Each user has at most one live connection per instance. A newer
// connection for the same user supersedes and closes the older one.
package realtime

import (
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/ctfarena/internal/metrics"
	"github.com/and161185/ctfarena/internal/model"
)

// Handle is a live connection as seen by the Hub.
type Handle interface {
	// Send enqueues n without blocking; false when the connection is closed or saturated.
	Send(n model.Notification) bool
	// Close terminates the connection. Safe to call more than once.
	Close()
}

// Hub indexes live connections by user and by handle.
type Hub struct {
	mu       sync.RWMutex
	byUser   map[uuid.UUID]Handle
	byHandle map[Handle]uuid.UUID
	log      *zap.Logger
}

// NewHub returns an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		byUser:   make(map[uuid.UUID]Handle),
		byHandle: make(map[Handle]uuid.UUID),
		log:      log.Named("hub"),
	}
}

// Register binds h to userID. A previous handle of the same user is
// closed after the swap.
func (h *Hub) Register(userID uuid.UUID, hd Handle) {
	h.mu.Lock()
	prev, had := h.byUser[userID]
	if had {
		delete(h.byHandle, prev)
	}
	h.byUser[userID] = hd
	h.byHandle[hd] = userID
	n := len(h.byUser)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(n))
	if had && prev != hd {
		h.log.Debug("connection superseded", zap.Stringer("user", userID))
		prev.Close()
	}
}

// Unregister removes hd. It is a no-op when hd was never registered or has
// already been superseded.
func (h *Hub) Unregister(hd Handle) {
	h.mu.Lock()
	userID, ok := h.byHandle[hd]
	if ok {
		delete(h.byHandle, hd)
		if h.byUser[userID] == hd {
			delete(h.byUser, userID)
		}
	}
	n := len(h.byUser)
	h.mu.Unlock()

	if ok {
		metrics.WSConnections.Set(float64(n))
	}
}

// Push offers n to the live connection of userID.
func (h *Hub) Push(userID uuid.UUID, n model.Notification) bool {
	h.mu.RLock()
	hd, ok := h.byUser[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return hd.Send(n)
}

// Broadcast offers each live user the notification returned by pick and
// reports how many were enqueued. Users for which pick returns false are skipped.
func (h *Hub) Broadcast(pick func(userID uuid.UUID) (model.Notification, bool)) int {
	h.mu.RLock()
	targets := make(map[uuid.UUID]Handle, len(h.byUser))
	for uid, hd := range h.byUser {
		targets[uid] = hd
	}
	h.mu.RUnlock()

	delivered := 0
	for uid, hd := range targets {
		n, ok := pick(uid)
		if !ok {
			continue
		}
		if hd.Send(n) {
			delivered++
		}
	}
	return delivered
}

// Disconnect closes the live connection of userID, if any.
func (h *Hub) Disconnect(userID uuid.UUID) bool {
	h.mu.Lock()
	hd, ok := h.byUser[userID]
	if ok {
		delete(h.byUser, userID)
		delete(h.byHandle, hd)
	}
	n := len(h.byUser)
	h.mu.Unlock()

	if !ok {
		return false
	}
	metrics.WSConnections.Set(float64(n))
	hd.Close()
	return true
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}
