package realtime

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/metrics"
	"github.com/and161185/ctfarena/internal/model"
)

// DefaultHandshakeTimeout bounds the wait for the authenticate event.
const DefaultHandshakeTimeout = 10 * time.Second

// BlockChecker reports whether an account is suspended.
type BlockChecker interface {
	Contains(id uuid.UUID) bool
}

// Options configures a Server.
type Options struct {
	// AllowedOrigins lists browser origins permitted to connect. "*" allows any.
	// Empty means same host only. Requests without an Origin header are allowed.
	AllowedOrigins []string
	// HandshakeTimeout bounds both the HTTP upgrade and the authenticate event.
	HandshakeTimeout time.Duration
	// Blocked rejects suspended accounts at handshake time. Nil disables the check.
	Blocked BlockChecker
}

// Server upgrades authenticated HTTP requests and runs the handshake.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	timeout  time.Duration
	origins  []string
	blocked  BlockChecker
	log      *zap.Logger
}

// NewServer constructs a Server bound to hub.
func NewServer(hub *Hub, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	s := &Server{
		hub:     hub,
		timeout: opts.HandshakeTimeout,
		origins: opts.AllowedOrigins,
		blocked: opts.Blocked,
		log:     log.Named("ws"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: opts.HandshakeTimeout,
		CheckOrigin:      s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.origins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	s.log.Warn("websocket origin rejected", zap.String("origin", origin))
	return false
}

// Serve upgrades the request of an already authenticated caller, waits for
// the authenticate event and, when it names the same user, registers the
// connection. It returns when the connection ends.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, id model.Identity) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}
	c := newConn(ws, s.log.With(zap.Stringer("user", id.UserID)))

	if err := s.handshake(c, id.UserID); err != nil {
		s.log.Debug("handshake failed", zap.Error(err))
		reason := "handshake failed"
		if errors.Is(err, errs.ErrIdentityMismatch) || errors.Is(err, errs.ErrAccountBlocked) {
			reason = err.Error()
		}
		closeWith(ws, reason)
		return
	}

	s.hub.Register(id.UserID, c)
	// A block applied between the handshake and Register misses Hub.Disconnect.
	if s.isBlocked(id.UserID) {
		metrics.RecordAuthRejection("blocked")
		s.hub.Unregister(c)
		c.Close()
		closeWith(ws, errs.ErrAccountBlocked.Error())
		return
	}
	go c.writePump()
	c.readPump()

	s.hub.Unregister(c)
	c.Close()
}

func (s *Server) isBlocked(id uuid.UUID) bool {
	return s.blocked != nil && s.blocked.Contains(id)
}

func closeWith(ws *websocket.Conn, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(writeWait))
	_ = ws.Close()
}

// handshake reads frames until authenticate arrives or the timeout elapses.
// Frames with other events are answered with an error and ignored.
func (s *Server) handshake(c *Conn, expected uuid.UUID) error {
	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}
	for {
		f, err := c.readFrame()
		if err != nil {
			return err
		}
		if f.Event != EventAuthenticate {
			if err := c.writeNow(EventError, errorData{Error: "not authenticated"}); err != nil {
				return err
			}
			continue
		}

		var data AuthenticateData
		_ = json.Unmarshal(f.Data, &data)
		claimed, perr := uuid.FromString(data.UserID)
		if perr != nil || claimed != expected {
			metrics.RecordAuthRejection("identity_mismatch")
			_ = c.writeNow(EventAuthenticated, AckData{OK: false, Error: errs.ErrIdentityMismatch.Error()})
			return errs.ErrIdentityMismatch
		}
		if s.isBlocked(expected) {
			metrics.RecordAuthRejection("blocked")
			_ = c.writeNow(EventAuthenticated, AckData{OK: false, Error: errs.ErrAccountBlocked.Error()})
			return errs.ErrAccountBlocked
		}
		if err := c.writeNow(EventAuthenticated, AckData{OK: true}); err != nil {
			return err
		}
		return c.ws.SetReadDeadline(time.Time{})
	}
}
