// Package app assembles the crowdfunding runtime: storage, engine, registry,
// keeper and the HTTP, metrics and gRPC health listeners.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/crowdshare/internal/platform/logger"
	"github.com/louisbranch/crowdshare/internal/platform/telemetry/metrics"
	"github.com/louisbranch/crowdshare/internal/platform/timeouts"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/api/httpapi"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/bus"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/engine"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/feeoracle"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/keeper"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/registry"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/service"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/integrity"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/memory"
	crowdsqlite "github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/sqlite"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported while serving.
const HealthService = "crowdfund.runtime"

// RuntimeConfig controls crowdfund startup and keeper behavior.
type RuntimeConfig struct {
	HTTPAddr    string
	MetricsAddr string
	HealthAddr  string
	// DBPath selects the SQLite journal. Empty keeps everything in memory.
	DBPath string

	HMACKey         string
	HMACKeys        string
	HMACActiveKeyID string

	Admin     string
	Treasury  string
	Scheduler string
	// CreationFee is a fixed fee in the unit of account. When FeeReference
	// and FeeRate are both set, the fee is converted from the reference
	// currency instead.
	CreationFee  string
	FeeReference string
	FeeRate      string

	KeeperEnabled      bool
	KeeperPollInterval time.Duration
	KeeperMaxBatch     int
	BusBuffer          int
	LogMode            string
}

const (
	defaultHTTPAddr   = ":8080"
	defaultHealthAddr = ":8091"
)

// Runtime is an assembled crowdfund process before its listeners start.
type Runtime struct {
	Handler  http.Handler
	Keeper   *keeper.Keeper
	Registry *registry.Registry
	Service  *service.Service
	Store    storage.Store
	Metrics  *metrics.Registry
	Log      *logger.Logger
}

// Close releases the store.
func (rt *Runtime) Close() error {
	if rt == nil || rt.Store == nil {
		return nil
	}
	return rt.Store.Close()
}

// Build wires every component without opening listeners.
func Build(ctx context.Context, cfg RuntimeConfig, log *logger.Logger) (*Runtime, error) {
	if log == nil {
		log = logger.Nop()
	}
	cfg.Admin = strings.TrimSpace(cfg.Admin)
	cfg.Treasury = strings.TrimSpace(cfg.Treasury)
	cfg.Scheduler = strings.TrimSpace(cfg.Scheduler)
	switch {
	case cfg.Admin == "":
		return nil, errors.New("admin account is required")
	case cfg.Treasury == "":
		return nil, errors.New("treasury account is required")
	case cfg.Scheduler == "":
		return nil, errors.New("scheduler account is required")
	}

	keyring, err := buildKeyring(cfg)
	if err != nil {
		return nil, err
	}
	oracle, err := buildOracle(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg.DBPath, keyring)
	if err != nil {
		return nil, err
	}

	reg := metrics.New()
	events := bus.New(cfg.BusBuffer)

	// The keeper needs the service and the engine hook needs the keeper.
	var k *keeper.Keeper
	h, err := engine.NewHandler(engine.Options{
		Journal:   store,
		Publisher: events,
		Hooks: []engine.PostCommitHook{func(_ context.Context, result engine.Result) {
			if k == nil {
				return
			}
			for _, evt := range result.Events {
				if evt.Type == event.TypeRoundStarted {
					k.Register(evt.CampaignID)
				}
			}
		}},
		Keyring: keyring,
		Metrics: reg,
		Logger:  log.With("component", "engine"),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	svc, err := service.New(h, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build service: %w", err)
	}

	k, err = keeper.New(svc, store, reg, log.With("component", "keeper"), keeper.Config{
		Principal:    cfg.Scheduler,
		MaxBatch:     cfg.KeeperMaxBatch,
		PollInterval: cfg.KeeperPollInterval,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build keeper: %w", err)
	}

	campaigns, err := registry.New(registry.Config{
		Admin:     cfg.Admin,
		Treasury:  cfg.Treasury,
		Scheduler: cfg.Scheduler,
		Oracle:    oracle,
	}, h, store, k, log.With("component", "registry"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build registry: %w", err)
	}
	restored, err := campaigns.RegisterExisting(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("register existing campaigns: %w", err)
	}
	if restored > 0 {
		log.Info("registered existing campaigns with keeper", "count", restored)
	}

	router, err := httpapi.NewRouter(httpapi.Deps{
		Service:  svc,
		Registry: campaigns,
		Vault:    store,
		Attempts: store,
		Keeper:   k,
		Stream:   events,
		Metrics:  reg,
		Logger:   log.With("component", "http"),
		// Streams stay open; every other request is bounded.
		RequestTimeout: timeouts.Request,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build router: %w", err)
	}

	return &Runtime{
		Handler:  router,
		Keeper:   k,
		Registry: campaigns,
		Service:  svc,
		Store:    store,
		Metrics:  reg,
		Log:      log,
	}, nil
}

func buildKeyring(cfg RuntimeConfig) (*integrity.Keyring, error) {
	if strings.TrimSpace(cfg.HMACKey) == "" && strings.TrimSpace(cfg.HMACKeys) == "" {
		return nil, nil
	}
	keyring, err := integrity.ParseKeyring(cfg.HMACKey, cfg.HMACKeys, cfg.HMACActiveKeyID)
	if err != nil {
		return nil, fmt.Errorf("parse event hmac keys: %w", err)
	}
	return keyring, nil
}

func buildOracle(cfg RuntimeConfig) (feeoracle.Oracle, error) {
	reference := strings.TrimSpace(cfg.FeeReference)
	rate := strings.TrimSpace(cfg.FeeRate)
	if reference != "" && rate != "" {
		ref, err := decimal.NewFromString(reference)
		if err != nil {
			return nil, fmt.Errorf("parse fee reference: %w", err)
		}
		r, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("parse fee rate: %w", err)
		}
		if !r.IsPositive() {
			return nil, fmt.Errorf("fee rate must be positive")
		}
		return feeoracle.Converting{
			Reference: ref,
			Rates: feeoracle.RateFunc(func(context.Context) (decimal.Decimal, error) {
				return r, nil
			}),
		}, nil
	}
	fee := strings.TrimSpace(cfg.CreationFee)
	if fee == "" {
		fee = "0"
	}
	amount, err := money.ParseAmount(fee)
	if err != nil {
		return nil, fmt.Errorf("parse creation fee: %w", err)
	}
	return feeoracle.Static(amount), nil
}

func openStore(ctx context.Context, path string, keyring *integrity.Keyring) (storage.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return memory.New(keyring), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create crowdfund storage dir: %w", err)
		}
	}
	store, err := crowdsqlite.Open(ctx, path, keyring)
	if err != nil {
		return nil, fmt.Errorf("open crowdfund sqlite store: %w", err)
	}
	return store, nil
}

// Run builds the runtime and serves until ctx ends or a listener fails.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if strings.TrimSpace(cfg.HealthAddr) == "" {
		cfg.HealthAddr = defaultHealthAddr
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	rt, err := Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			log.Error("close crowdfund store", "error", closeErr)
		}
	}()

	apiListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}
	healthListener, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		apiListener.Close()
		return fmt.Errorf("listen on health addr %s: %w", cfg.HealthAddr, err)
	}
	var metricsListener net.Listener
	if strings.TrimSpace(cfg.MetricsAddr) != "" {
		metricsListener, err = net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			apiListener.Close()
			healthListener.Close()
			return fmt.Errorf("listen on metrics addr %s: %w", cfg.MetricsAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	apiServer := &http.Server{
		Handler: rt.Handler,
		BaseContext: func(net.Listener) context.Context {
			return gctx
		},
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	g.Go(func() error {
		log.Info("crowdfund http listening", "addr", apiListener.Addr().String())
		return serveHTTP(apiServer, apiListener)
	})
	g.Go(func() error {
		return shutdownOnDone(gctx, apiServer)
	})

	if metricsListener != nil {
		metricsServer := &http.Server{Handler: rt.Metrics.Handler(), ReadHeaderTimeout: timeouts.ReadHeader}
		g.Go(func() error {
			log.Info("crowdfund metrics listening", "addr", metricsListener.Addr().String())
			return serveHTTP(metricsServer, metricsListener)
		})
		g.Go(func() error {
			return shutdownOnDone(gctx, metricsServer)
		})
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)
	g.Go(func() error {
		log.Info("crowdfund health listening", "addr", healthListener.Addr().String())
		return grpcServer.Serve(healthListener)
	})
	g.Go(func() error {
		<-gctx.Done()
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})

	if cfg.KeeperEnabled {
		g.Go(func() error {
			return rt.Keeper.Run(gctx)
		})
	}

	return g.Wait()
}

func serveHTTP(server *http.Server, listener net.Listener) error {
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdownOnDone(ctx context.Context, server *http.Server) error {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
