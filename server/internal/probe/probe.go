package probe

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/fridgekeep/fridgekeep/server/internal/store"
)

// ServiceName is the grpc.health.v1 service name reported for the store.
const ServiceName = "fridgekeep.ResourceStore"

// Probe serves grpc.health.v1 for the resource store.
type Probe struct {
	Server *grpc.Server
	health *health.Server
	store  *store.Store
}

// New builds a gRPC server with the health service registered. Both the
// overall ("") and ServiceName statuses start as NOT_SERVING.
func New(st *store.Store, opts ...grpc.ServerOption) *Probe {
	p := &Probe{
		Server: grpc.NewServer(opts...),
		health: health.NewServer(),
		store:  st,
	}
	healthpb.RegisterHealthServer(p.Server, p.health)
	p.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return p
}

// MarkServing reports the store as ready.
func (p *Probe) MarkServing() {
	p.set(healthpb.HealthCheckResponse_SERVING)
	slog.Info("probe: serving", "service", ServiceName, "resources", p.store.Count())
}

// Shutdown flips every status to NOT_SERVING so watchers drain, then stops
// the gRPC server, forcing it after timeout.
func (p *Probe) Shutdown(timeout time.Duration) {
	p.health.Shutdown()

	done := make(chan struct{})
	go func() {
		p.Server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		p.Server.Stop()
	}
}

func (p *Probe) set(s healthpb.HealthCheckResponse_ServingStatus) {
	p.health.SetServingStatus("", s)
	p.health.SetServingStatus(ServiceName, s)
}

// Check asks a remote probe for the status of ServiceName. It is used by
// fridgectl and by tests.
func Check(ctx context.Context, conn grpc.ClientConnInterface) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
