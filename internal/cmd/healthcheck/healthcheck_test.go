package healthcheck

import (
	"context"
	"flag"
	"net"
	"testing"
	"time"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/app"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(flag.NewFlagSet("healthcheck", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Service != app.HealthService {
		t.Fatalf("service = %q, want %q", cfg.Service, app.HealthService)
	}
	if cfg.Timeout != 3*time.Second {
		t.Fatalf("timeout = %v, want 3s", cfg.Timeout)
	}
}

func TestRunProbesService(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(app.HealthService, grpc_health_v1.HealthCheckResponse_SERVING)
	go func() { _ = server.Serve(listener) }()
	defer server.Stop()

	cfg := Config{Addr: listener.Addr().String(), Service: app.HealthService, Timeout: 2 * time.Second}
	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunRequiresAddr(t *testing.T) {
	if err := Run(context.Background(), Config{}); err == nil {
		t.Fatal("expected error")
	}
}
