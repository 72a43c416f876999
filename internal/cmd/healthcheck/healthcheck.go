// Package healthcheck probes a running crowdfund process over gRPC health.
package healthcheck

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/crowdshare/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/crowdshare/internal/platform/grpc"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/app"
)

// Config holds probe configuration.
type Config struct {
	Addr    string        `env:"CROWDSHARE_HEALTHCHECK_ADDR" envDefault:"127.0.0.1:8091"`
	Service string        `env:"CROWDSHARE_HEALTHCHECK_SERVICE"`
	Timeout time.Duration `env:"CROWDSHARE_HEALTHCHECK_TIMEOUT" envDefault:"3s"`
	Verbose bool          `env:"CROWDSHARE_HEALTHCHECK_VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.Service) == "" {
		cfg.Service = app.HealthService
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The gRPC health address to probe")
	fs.StringVar(&cfg.Service, "service", cfg.Service, "The health service name (empty probes the server)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Probe timeout")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Log probe progress")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run returns nil once the service reports SERVING within the timeout.
func Run(ctx context.Context, cfg Config) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return errors.New("health address is required")
	}
	var logf func(string, ...any)
	if cfg.Verbose {
		logf = log.Printf
	}
	return platformgrpc.Probe(ctx, cfg.Addr, cfg.Service, cfg.Timeout, logf)
}
