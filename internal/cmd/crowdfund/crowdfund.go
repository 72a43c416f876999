// Package crowdfund parses crowdfund command flags and launches the runtime.
package crowdfund

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/crowdshare/internal/platform/cmd"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/app"
)

// Config holds crowdfund command configuration.
type Config struct {
	HTTPAddr    string `env:"CROWDSHARE_HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"CROWDSHARE_METRICS_ADDR" envDefault:":9090"`
	HealthAddr  string `env:"CROWDSHARE_HEALTH_ADDR" envDefault:":8091"`
	DBPath      string `env:"CROWDSHARE_DB_PATH" envDefault:"data/crowdfund.db"`

	HMACKey         string `env:"CROWDSHARE_EVENT_HMAC_KEY"`
	HMACKeys        string `env:"CROWDSHARE_EVENT_HMAC_KEYS"`
	HMACActiveKeyID string `env:"CROWDSHARE_EVENT_HMAC_KEY_ID"`

	Admin        string `env:"CROWDSHARE_ADMIN" envDefault:"admin"`
	Treasury     string `env:"CROWDSHARE_TREASURY" envDefault:"treasury"`
	Scheduler    string `env:"CROWDSHARE_SCHEDULER" envDefault:"keeper"`
	CreationFee  string `env:"CROWDSHARE_CREATION_FEE" envDefault:"0"`
	FeeReference string `env:"CROWDSHARE_CREATION_FEE_REFERENCE"`
	FeeRate      string `env:"CROWDSHARE_CREATION_FEE_RATE"`

	KeeperEnabled      bool          `env:"CROWDSHARE_KEEPER_ENABLED" envDefault:"true"`
	KeeperPollInterval time.Duration `env:"CROWDSHARE_KEEPER_POLL_INTERVAL" envDefault:"30s"`
	KeeperMaxBatch     int           `env:"CROWDSHARE_KEEPER_MAX_BATCH" envDefault:"10"`
	BusBuffer          int           `env:"CROWDSHARE_BUS_BUFFER" envDefault:"64"`
	LogMode            string        `env:"CROWDSHARE_LOG_MODE" envDefault:"development"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The JSON API listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "The Prometheus metrics listen address (empty disables)")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "The gRPC health listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite journal path (empty keeps state in memory)")
	fs.StringVar(&cfg.Admin, "admin", cfg.Admin, "The registry admin account")
	fs.StringVar(&cfg.Treasury, "treasury", cfg.Treasury, "The commission treasury account")
	fs.StringVar(&cfg.Scheduler, "scheduler", cfg.Scheduler, "The scheduler account allowed to finalize rounds")
	fs.StringVar(&cfg.CreationFee, "creation-fee", cfg.CreationFee, "Static campaign creation fee")
	fs.BoolVar(&cfg.KeeperEnabled, "keeper", cfg.KeeperEnabled, "Run the finalization keeper loop")
	fs.DurationVar(&cfg.KeeperPollInterval, "keeper-poll-interval", cfg.KeeperPollInterval, "Keeper sweep interval")
	fs.IntVar(&cfg.KeeperMaxBatch, "keeper-max-batch", cfg.KeeperMaxBatch, "Maximum campaigns finalized per sweep")
	fs.StringVar(&cfg.LogMode, "log-mode", cfg.LogMode, "Logger mode: development or production")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the crowdfund runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCrowdfund, func(ctx context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			HTTPAddr:           cfg.HTTPAddr,
			MetricsAddr:        cfg.MetricsAddr,
			HealthAddr:         cfg.HealthAddr,
			DBPath:             cfg.DBPath,
			HMACKey:            cfg.HMACKey,
			HMACKeys:           cfg.HMACKeys,
			HMACActiveKeyID:    cfg.HMACActiveKeyID,
			Admin:              cfg.Admin,
			Treasury:           cfg.Treasury,
			Scheduler:          cfg.Scheduler,
			CreationFee:        cfg.CreationFee,
			FeeReference:       cfg.FeeReference,
			FeeRate:            cfg.FeeRate,
			KeeperEnabled:      cfg.KeeperEnabled,
			KeeperPollInterval: cfg.KeeperPollInterval,
			KeeperMaxBatch:     cfg.KeeperMaxBatch,
			BusBuffer:          cfg.BusBuffer,
			LogMode:            cfg.LogMode,
		})
	})
}
