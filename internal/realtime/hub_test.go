package realtime

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/ctfarena/internal/model"
)

type fakeHandle struct {
	mu     sync.Mutex
	got    []model.Notification
	full   bool
	closed atomic.Int32
}

func (f *fakeHandle) Send(n model.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full || f.closed.Load() > 0 {
		return false
	}
	f.got = append(f.got, n)
	return true
}

func (f *fakeHandle) Close() { f.closed.Add(1) }

func (f *fakeHandle) received() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Notification(nil), f.got...)
}

func TestHub_RegisterSupersedesPrevious(t *testing.T) {
	t.Parallel()
	hub := NewHub(zaptest.NewLogger(t))
	uid := uuid.Must(uuid.NewV4())
	first, second := &fakeHandle{}, &fakeHandle{}

	hub.Register(uid, first)
	hub.Register(uid, second)

	require.EqualValues(t, 1, first.closed.Load())
	require.Zero(t, second.closed.Load())
	require.Equal(t, 1, hub.Count())

	n := model.Notification{ID: uuid.Must(uuid.NewV4()), UserID: uid, Message: "hi"}
	require.True(t, hub.Push(uid, n))
	require.Empty(t, first.received())
	require.Equal(t, []model.Notification{n}, second.received())
}

func TestHub_UnregisterSupersededIsNoop(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	uid := uuid.Must(uuid.NewV4())
	first, second := &fakeHandle{}, &fakeHandle{}

	hub.Register(uid, first)
	hub.Register(uid, second)
	hub.Unregister(first)
	require.Equal(t, 1, hub.Count())
	require.True(t, hub.Push(uid, model.Notification{}))

	hub.Unregister(second)
	require.Zero(t, hub.Count())
	require.False(t, hub.Push(uid, model.Notification{}))

	hub.Unregister(&fakeHandle{})
	hub.Unregister(second)
	require.Zero(t, hub.Count())
}

func TestHub_PushOfflineOrFull(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	uid := uuid.Must(uuid.NewV4())
	require.False(t, hub.Push(uid, model.Notification{}))

	hub.Register(uid, &fakeHandle{full: true})
	require.False(t, hub.Push(uid, model.Notification{}))
}

func TestHub_BroadcastPicksPerUser(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	a, b, c := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	ha, hb, hc := &fakeHandle{}, &fakeHandle{}, &fakeHandle{full: true}
	hub.Register(a, ha)
	hub.Register(b, hb)
	hub.Register(c, hc)

	copies := map[uuid.UUID]model.Notification{
		a: {ID: uuid.Must(uuid.NewV4()), UserID: a, Message: "m"},
		c: {ID: uuid.Must(uuid.NewV4()), UserID: c, Message: "m"},
	}
	delivered := hub.Broadcast(func(uid uuid.UUID) (model.Notification, bool) {
		n, ok := copies[uid]
		return n, ok
	})
	require.Equal(t, 1, delivered)
	require.Equal(t, []model.Notification{copies[a]}, ha.received())
	require.Empty(t, hb.received())
}

func TestHub_Disconnect(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	uid := uuid.Must(uuid.NewV4())
	h := &fakeHandle{}
	hub.Register(uid, h)

	require.True(t, hub.Disconnect(uid))
	require.EqualValues(t, 1, h.closed.Load())
	require.Zero(t, hub.Count())
	require.False(t, hub.Disconnect(uid))
}

func TestHub_ConcurrentRegisterSameUser(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	uid := uuid.Must(uuid.NewV4())
	handles := make([]*fakeHandle, 50)
	var wg sync.WaitGroup
	for i := range handles {
		handles[i] = &fakeHandle{}
		wg.Add(1)
		go func(h *fakeHandle) {
			defer wg.Done()
			hub.Register(uid, h)
		}(handles[i])
	}
	wg.Wait()

	require.Equal(t, 1, hub.Count())
	open := 0
	for _, h := range handles {
		if h.closed.Load() == 0 {
			open++
		}
	}
	require.Equal(t, 1, open)
}
