// Package cmd holds the startup plumbing shared by every crowdshare binary.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/crowdshare/internal/platform/config"
	"github.com/louisbranch/crowdshare/internal/platform/otel"
)

// ServiceCrowdfund is reported as the OpenTelemetry service name.
const ServiceCrowdfund = "crowdfund"

const telemetryFlushTimeout = 5 * time.Second

// ParseConfig loads environment defaults into cfg. Commands register flags
// seeded from cfg afterwards, so flags win over the environment.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry installs tracing for service, runs run and flushes
// pending spans before returning. A flush failure is joined with the run
// error.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}

	runErr := run(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
	defer cancel()
	if err := shutdown(flushCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("flush %s telemetry: %w", service, err))
	}
	return runErr
}
