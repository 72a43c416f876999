package grpc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestDialWithHealth(t *testing.T) {
	addr, _ := serveHealth(t, grpc_health_v1.HealthCheckResponse_SERVING)

	conn, err := DialWithHealth(context.Background(), addr, runtimeService, time.Second, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDialWithHealthReportsHealthStage(t *testing.T) {
	addr, _ := serveHealth(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	_, err := DialWithHealth(context.Background(), addr, runtimeService, 200*time.Millisecond, nil)
	var dialErr *DialError
	if !errors.As(err, &dialErr) {
		t.Fatalf("err = %v, want *DialError", err)
	}
	if dialErr.Stage != DialStageHealth {
		t.Fatalf("stage = %q, want %q", dialErr.Stage, DialStageHealth)
	}
}

func TestProbe(t *testing.T) {
	addr, _ := serveHealth(t, grpc_health_v1.HealthCheckResponse_SERVING)

	if err := Probe(context.Background(), addr, runtimeService, time.Second, nil); err != nil {
		t.Fatalf("check: %v", err)
	}
	err := Probe(context.Background(), addr, "crowdfund.unknown", time.Second, nil)
	if !errors.Is(err, ErrUnknownService) {
		t.Fatalf("check unknown service = %v, want ErrUnknownService", err)
	}
}

func TestDialErrorFormatting(t *testing.T) {
	var nilErr *DialError
	if nilErr.Error() != "gRPC dial error" || nilErr.Unwrap() != nil {
		t.Fatal("nil DialError should format safely")
	}
	err := &DialError{Stage: DialStageConnect, Err: errors.New("refused")}
	if !strings.Contains(err.Error(), "connect") || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("error = %q", err.Error())
	}
}
