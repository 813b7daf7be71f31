// Command ctfarena-server starts the HTTP API, the realtime channel and the
// optional ops gRPC listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/and161185/ctfarena/internal/blocklist"
	"github.com/and161185/ctfarena/internal/bus"
	"github.com/and161185/ctfarena/internal/config"
	"github.com/and161185/ctfarena/internal/gateway"
	"github.com/and161185/ctfarena/internal/limiter"
	"github.com/and161185/ctfarena/internal/metrics"
	"github.com/and161185/ctfarena/internal/migrate"
	"github.com/and161185/ctfarena/internal/notification"
	"github.com/and161185/ctfarena/internal/realtime"
	"github.com/and161185/ctfarena/internal/repository/postgres"
	grpcserver "github.com/and161185/ctfarena/internal/server/grpc"
	httpserver "github.com/and161185/ctfarena/internal/server/http"
	"github.com/and161185/ctfarena/internal/service"
	"github.com/and161185/ctfarena/internal/telemetry"
	"github.com/and161185/ctfarena/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("env", cfg.Env),
	)

	shutdownTracing, err := telemetry.Init(ctx, "ctfarena", version, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	if err := migrate.Up(ctx, cfg.DBDSN); err != nil {
		return err
	}
	db, err := postgres.New(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	users := postgres.NewUserRepo(db)
	notifications := postgres.NewNotificationRepo(db)
	challenges := postgres.NewChallengeRepo(db)

	blocked := blocklist.New()
	if err := blocked.Initialize(ctx, users); err != nil {
		return err
	}
	metrics.BlocklistSize.Set(float64(blocked.Len()))
	logger.Info("block-list loaded", zap.Int("size", blocked.Len()))

	tokens, err := token.New([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}
	lim := limiter.NewPG(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)

	hub := realtime.NewHub(logger)
	registry := notification.NewRegistry(notifications)

	var (
		relay notification.Relay
		pub   service.BlockPublisher
	)
	var b *bus.Bus
	if cfg.NATSURL != "" {
		b, err = bus.Connect(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer b.Close()
		relay, pub = b, b
	}
	dispatcher := notification.NewDispatcher(registry, hub, relay, logger)
	if b != nil {
		subs, err := bus.Attach(ctx, b, blocked, dispatcher.Deliver, hub.Disconnect)
		if err != nil {
			return err
		}
		defer func() { _ = subs.Close() }()
	}

	gw := gateway.New(tokens, users, blocked, cfg.CookieName, logger)
	authSvc := service.NewAuthService(users, tokens, lim)
	adminSvc := service.NewAdminService(users, blocked, dispatcher, hub, pub, logger)
	challengeSvc := service.NewChallengeService(challenges, dispatcher, cfg.LeaderboardSize, logger)
	rt := realtime.NewServer(hub, realtime.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		HandshakeTimeout: cfg.WSHandshakeTimeout,
		Blocked:          blocked,
	}, logger)

	var handler http.Handler = httpserver.New(httpserver.Deps{
		Gateway:    gw,
		Auth:       authSvc,
		Admin:      adminSvc,
		Challenges: challengeSvc,
		Inbox:      registry,
		Realtime:   rt,
		DB:         db,
		Cookie: httpserver.CookieOptions{
			Name:   cfg.CookieName,
			Domain: cfg.CookieDomain,
			Secure: cfg.SecureCookies(),
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AuthRateLimit:  cfg.HTTPRateLimit,
		TrustProxy:     cfg.TrustProxy,
		Log:            logger,
	}).Router()
	if cfg.OTLPEndpoint != "" {
		handler = otelhttp.NewHandler(handler, "http")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var ops *grpcserver.Ops
	if cfg.OpsGRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.OpsGRPCAddr)
		if err != nil {
			return err
		}
		ops = grpcserver.NewOps(db, !cfg.IsProduction(), logger)
		go ops.Monitor(ctx, grpcserver.DefaultCheckInterval)
		go func() {
			logger.Info("ops grpc listening", zap.String("addr", cfg.OpsGRPCAddr))
			if err := ops.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if ops != nil {
		done := make(chan struct{})
		go func() {
			ops.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-sctx.Done():
		}
	}
	return runErr
}
