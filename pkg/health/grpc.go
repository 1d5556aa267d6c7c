package health

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// DefaultGRPCUpdateInterval is how often readiness is pushed to the gRPC health server.
const DefaultGRPCUpdateInterval = 5 * time.Second

// GRPCUpdater mirrors readiness into a grpc.health.v1 server under the
// empty service name.
type GRPCUpdater struct {
	checker  *Checker
	server   *health.Server
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
	done     chan struct{}
}

// RegisterWithGRPC registers the standard health service on server and starts
// updating it every interval (DefaultGRPCUpdateInterval when zero). The
// service reports NOT_SERVING until the first readiness run completes.
func (c *Checker) RegisterWithGRPC(server *grpc.Server, interval time.Duration) *GRPCUpdater {
	if interval <= 0 {
		interval = DefaultGRPCUpdateInterval
	}

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	u := &GRPCUpdater{
		checker:  c,
		server:   hs,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go u.run()

	c.log.Info("gRPC health service registered", logger.DurationField("update_interval", interval))
	return u
}

func (u *GRPCUpdater) run() {
	defer close(u.done)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.update()
	for {
		select {
		case <-ticker.C:
			u.update()
		case <-u.stop:
			u.server.Shutdown()
			u.checker.log.Info("gRPC health updater stopped")
			return
		}
	}
}

func (u *GRPCUpdater) update() {
	ctx, cancel := context.WithTimeout(context.Background(), u.interval)
	defer cancel()

	status, err := u.checker.CheckReadiness(ctx)
	if err != nil || !status.Healthy {
		u.server.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		return
	}
	u.server.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}

// Stop marks the service NOT_SERVING and ends the update loop. It is safe to
// call more than once.
func (u *GRPCUpdater) Stop() {
	u.once.Do(func() { close(u.stop) })
	<-u.done
}
