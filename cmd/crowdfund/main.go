// Package main starts the crowdfund service process lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	crowdfundcmd "github.com/louisbranch/crowdshare/internal/cmd/crowdfund"
	"github.com/louisbranch/crowdshare/internal/platform/config"
)

func main() {
	cfg, err := crowdfundcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := crowdfundcmd.Run(ctx, cfg); err != nil {
		config.Exitf("failed to serve: %v", err)
	}
}
