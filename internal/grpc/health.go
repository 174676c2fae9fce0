package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the overall "" entry.
const ServiceName = "idpconsole.Console"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthWatcher keeps the gRPC health status in line with database reachability.
type HealthWatcher struct {
	health   *health.Server
	db       Pinger
	interval time.Duration
	timeout  time.Duration
	log      *logrus.Logger
}

func NewHealthWatcher(db Pinger, interval time.Duration, log *logrus.Logger) *HealthWatcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := interval / 2
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	hs := health.NewServer()
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &HealthWatcher{
		health:   hs,
		db:       db,
		interval: interval,
		timeout:  timeout,
		log:      log,
	}
}

func (w *HealthWatcher) Health() *health.Server {
	return w.health
}

// Probe pings the database once and publishes the result.
func (w *HealthWatcher) Probe(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	pingCtx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.db.Ping(pingCtx)
	cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err != nil {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		w.log.WithError(err).Warn("database ping failed")
	}
	w.health.SetServingStatus("", status)
	w.health.SetServingStatus(ServiceName, status)
	return status
}

// Run probes immediately and then on every tick until ctx ends, after which every
// service reports NOT_SERVING.
func (w *HealthWatcher) Run(ctx context.Context) {
	w.Probe(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.health.Shutdown()
			return
		case <-ticker.C:
			w.Probe(ctx)
		}
	}
}

// NewServer returns a gRPC server exposing grpc.health.v1.Health.
func NewServer(w *HealthWatcher, opts ...gogrpc.ServerOption) *gogrpc.Server {
	server := gogrpc.NewServer(opts...)
	grpc_health_v1.RegisterHealthServer(server, w.health)
	return server
}
