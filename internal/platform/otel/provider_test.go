package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/crowdshare/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("CROWDSHARE_OTEL_ENDPOINT", "")
	t.Setenv("CROWDSHARE_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("CROWDSHARE_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("CROWDSHARE_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_RejectsMalformedEnv(t *testing.T) {
	t.Setenv("CROWDSHARE_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("CROWDSHARE_OTEL_ENABLED", "maybe")

	if _, err := otel.Setup(context.Background(), "test-service"); err == nil {
		t.Fatal("expected malformed boolean to fail")
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export happens.
	t.Setenv("CROWDSHARE_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("CROWDSHARE_OTEL_ENABLED", "true")
	t.Setenv("CROWDSHARE_OTEL_SAMPLE_RATIO", "0.5")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
