// Package httpserver exposes the REST surface and the realtime endpoint.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/ctfarena/internal/gateway"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/service"
)

// Inbox is the read side of the notification registry.
type Inbox interface {
	ListUnread(ctx context.Context, userID uuid.UUID) ([]model.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (model.Notification, error)
}

// Realtime upgrades an authenticated request to a live channel.
type Realtime interface {
	Serve(w http.ResponseWriter, r *http.Request, id model.Identity)
}

// Pinger reports storage readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of Server.
type Deps struct {
	Gateway    *gateway.Gateway
	Auth       service.AuthService
	Admin      service.AdminService
	Challenges service.ChallengeService
	Inbox      Inbox
	Realtime   Realtime
	DB         Pinger

	Cookie         CookieOptions
	AllowedOrigins []string
	AuthRateLimit  int // requests per minute per IP on auth routes; 0 disables
	TrustProxy     bool
	Log            *zap.Logger
}

// Server holds HTTP handlers.
type Server struct {
	gw         *gateway.Gateway
	auth       service.AuthService
	admin      service.AdminService
	challenges service.ChallengeService
	inbox      Inbox
	rt         Realtime
	db         Pinger
	cookie     CookieOptions
	origins    []string
	authLimit  int
	trustProxy bool
	log        *zap.Logger
}

// New constructs a Server from d.
func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		gw:         d.Gateway,
		auth:       d.Auth,
		admin:      d.Admin,
		challenges: d.Challenges,
		inbox:      d.Inbox,
		rt:         d.Realtime,
		db:         d.DB,
		cookie:     d.Cookie,
		origins:    d.AllowedOrigins,
		authLimit:  d.AuthRateLimit,
		trustProxy: d.TrustProxy,
		log:        log.Named("http"),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if s.trustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(accessLog(s.log))
	r.Use(chimiddleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", s.ws)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if s.authLimit > 0 {
					r.Use(httprate.LimitByIP(s.authLimit, time.Minute))
				}
				r.Post("/register", s.register)
				r.Post("/login", s.login)
			})
			r.Post("/logout", s.logout)
			r.With(s.authenticated).Get("/me", s.me)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticated)
			r.Get("/notifications", s.listNotifications)
			r.Patch("/notifications/{id}/read", s.markRead)
			r.Get("/categories", s.listCategories)
			r.Get("/challenges", s.listChallenges)
			r.Post("/challenges/{id}/submit", s.submitFlag)
			r.Get("/leaderboard", s.leaderboard)
			r.Get("/stats", s.stats)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authenticated, s.adminOnly)
			r.Get("/users", s.listUsers)
			r.Patch("/users/{id}/block", s.toggleBlock)
			r.Patch("/users/{id}/role", s.setRole)
			r.Post("/notifications", s.sendNotification)
			r.Post("/announcements", s.announce)
			r.Post("/categories", s.createCategory)
			r.Post("/challenges", s.createChallenge)
			r.Delete("/challenges/{id}", s.deleteChallenge)
		})
	})
	return r
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return parseID(chi.URLParam(r, "id"))
}
