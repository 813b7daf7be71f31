package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// DefaultCheckInterval is how often the database is pinged.
const DefaultCheckInterval = 10 * time.Second

// Pinger reports storage readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ops serves grpc.health.v1.Health backed by a database health check.
type Ops struct {
	srv    *grpc.Server
	health *health.Server
	db     Pinger
	log    *zap.Logger
}

// NewOps builds the listener. Reflection is registered when reflect is true.
func NewOps(db Pinger, reflect bool, log *zap.Logger) *Ops {
	log = log.Named("ops")
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log)),
	)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	if reflect {
		reflection.Register(srv)
	}
	return &Ops{srv: srv, health: hs, db: db, log: log}
}

// Serve blocks serving on lis.
func (o *Ops) Serve(lis net.Listener) error {
	return o.srv.Serve(lis)
}

// Monitor pings the database every interval until ctx is done.
func (o *Ops) Monitor(ctx context.Context, interval time.Duration) {
	o.Check(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.Check(ctx)
		}
	}
}

// Check pings the database once and updates the overall serving status.
func (o *Ops) Check(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st := healthpb.HealthCheckResponse_SERVING
	if err := o.db.Ping(pctx); err != nil {
		o.log.Warn("database health check failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	o.health.SetServingStatus("", st)
}

// Stop marks the service as not serving and drains in-flight calls.
func (o *Ops) Stop() {
	o.health.Shutdown()
	o.srv.GracefulStop()
}
