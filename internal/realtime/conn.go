package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/ctfarena/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
	sendBuffer     = 32

	inboundRate  = 5
	inboundBurst = 10
)

// Event names exchanged over the socket.
const (
	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventNotification  = "notification"
	EventPing          = "ping"
	EventPong          = "pong"
	EventError         = "error"
)

// Frame is the envelope of every message on the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// AuthenticateData is the payload of the authenticate event.
type AuthenticateData struct {
	UserID string `json:"userId"`
}

// AckData is the payload of the authenticated event.
type AckData struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type errorData struct {
	Error string `json:"error"`
}

var errConnClosed = errors.New("connection closed")

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(outFrame{Event: event, Data: data})
}

// Conn is an authenticated WebSocket connection. Only writePump writes to
// the socket once the pumps are running.
type Conn struct {
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	log     *zap.Logger
}

func newConn(ws *websocket.Conn, log *zap.Logger) *Conn {
	return &Conn{
		ws:      ws,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		log:     log,
	}
}

// Send enqueues a notification frame.
func (c *Conn) Send(n model.Notification) bool {
	b, err := encode(EventNotification, n)
	if err != nil {
		c.log.Error("encode notification", zap.Error(err))
		return false
	}
	return c.enqueue(b) == nil
}

func (c *Conn) enqueue(b []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Close stops the pumps and closes the socket.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

// writeNow writes a frame directly. Used only before the pumps start.
func (c *Conn) writeNow(event string, data any) error {
	b, err := encode(event, data)
	if err != nil {
		return err
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *Conn) readFrame() (Frame, error) {
	var f Frame
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, nil
	}
	return f, nil
}

// readPump consumes client frames until the socket fails or Close is called.
func (c *Conn) readPump() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		f, err := c.readFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Debug("unexpected close", zap.Error(err))
			}
			return
		}
		if !c.limiter.Allow() {
			c.log.Debug("inbound frame dropped by rate limit")
			continue
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var reply []byte
		switch f.Event {
		case EventPing:
			reply, _ = encode(EventPong, nil)
		case EventAuthenticate:
			reply, _ = encode(EventError, errorData{Error: "already authenticated"})
		default:
			reply, _ = encode(EventError, errorData{Error: "unknown event"})
		}
		if err := c.enqueue(reply); errors.Is(err, errConnClosed) {
			return
		}
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case b := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
