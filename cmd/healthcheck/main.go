// Package main probes the crowdfund gRPC health endpoint for container checks.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/louisbranch/crowdshare/internal/cmd/healthcheck"
	"github.com/louisbranch/crowdshare/internal/platform/config"
)

func main() {
	cfg, err := healthcheck.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := healthcheck.Run(context.Background(), cfg); err != nil {
		config.Exitf("unhealthy: %v", err)
	}
}
