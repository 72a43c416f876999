// Package grpc holds the gRPC health helpers shared by crowdshare probes.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const (
	healthCallTimeout = time.Second
	healthMinBackoff  = 100 * time.Millisecond
	healthMaxBackoff  = time.Second
)

// ErrUnknownService is returned when the server has no status for the
// requested health service. Waiting longer cannot change that.
var ErrUnknownService = errors.New("health service is not registered")

// WaitForHealth polls the health service until it reports SERVING, the
// service turns out to be unknown, or ctx ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return errors.New("gRPC connection is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	client := grpc_health_v1.NewHealthClient(conn)
	delay := healthMinBackoff
	for attempt := 1; ; attempt++ {
		serving, err := checkHealth(ctx, client, service)
		if serving {
			logf("health %q SERVING after %d attempt(s)", service, attempt)
			return nil
		}
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %q", ErrUnknownService, service)
		}
		logf("health %q not ready (attempt %d): %v", service, attempt, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for health %q: %w", service, ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, healthMaxBackoff)
	}
}

func checkHealth(ctx context.Context, client grpc_health_v1.HealthClient, service string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, healthCallTimeout)
	defer cancel()
	resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return false, err
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return false, fmt.Errorf("status %s", resp.GetStatus())
	}
	return true, nil
}
