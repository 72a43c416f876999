package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const runtimeService = "crowdfund.runtime"

// serveHealth starts a health server reporting status for the runtime
// service and returns its address.
func serveHealth(t *testing.T, initial grpc_health_v1.HealthCheckResponse_ServingStatus) (string, *health.Server) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := gogrpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(runtimeService, initial)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)
	return listener.Addr().String(), healthServer
}

func newClient(t *testing.T, addr string) *gogrpc.ClientConn {
	t.Helper()
	conn, err := gogrpc.NewClient(addr, ClientOptions()...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWaitForHealth(t *testing.T) {
	cases := []struct {
		name    string
		status  grpc_health_v1.HealthCheckResponse_ServingStatus
		service string
		timeout time.Duration
		wantErr error
		ok      bool
	}{
		{name: "serving service", status: grpc_health_v1.HealthCheckResponse_SERVING, service: runtimeService, timeout: 2 * time.Second, ok: true},
		{name: "serving server", status: grpc_health_v1.HealthCheckResponse_NOT_SERVING, service: "", timeout: 2 * time.Second, ok: true},
		{name: "unknown service", status: grpc_health_v1.HealthCheckResponse_SERVING, service: "crowdfund.other", timeout: 2 * time.Second, wantErr: ErrUnknownService},
		{name: "never serving", status: grpc_health_v1.HealthCheckResponse_NOT_SERVING, service: runtimeService, timeout: 250 * time.Millisecond, wantErr: context.DeadlineExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			addr, _ := serveHealth(t, tc.status)
			ctx, cancel := context.WithTimeout(context.Background(), tc.timeout)
			defer cancel()

			err := WaitForHealth(ctx, newClient(t, addr), tc.service, t.Logf)
			if tc.ok {
				if err != nil {
					t.Fatalf("wait: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestWaitForHealthTransitionsToServing(t *testing.T) {
	addr, healthServer := serveHealth(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	go func() {
		time.Sleep(150 * time.Millisecond)
		healthServer.SetServingStatus(runtimeService, grpc_health_v1.HealthCheckResponse_SERVING)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := WaitForHealth(ctx, newClient(t, addr), runtimeService, nil); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestWaitForHealthRequiresConn(t *testing.T) {
	if err := WaitForHealth(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected error")
	}
}
