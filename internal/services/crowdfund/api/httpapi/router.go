// Package httpapi exposes the crowdfunding registry, campaigns, vault and
// keeper over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/louisbranch/crowdshare/internal/platform/logger"
	"github.com/louisbranch/crowdshare/internal/platform/telemetry/metrics"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/keeper"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/registry"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/service"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Keeper is the finalization scheduler surface exposed over HTTP.
type Keeper interface {
	Sweep(ctx context.Context) (keeper.Report, error)
	Registered() []string
}

// Deps wires the handlers to the service layer.
type Deps struct {
	Service  *service.Service
	Registry *registry.Registry
	Vault    storage.VaultStore
	Attempts storage.AttemptStore
	Keeper   Keeper
	Stream   Stream
	Metrics  *metrics.Registry
	Logger   *logger.Logger
	// RequestTimeout bounds every route except the event stream. Zero
	// disables it.
	RequestTimeout time.Duration
}

type handler struct {
	svc      *service.Service
	registry *registry.Registry
	vault    storage.VaultStore
	attempts storage.AttemptStore
	keeper   Keeper
	stream   Stream
	log      *logger.Logger
}

// NewRouter builds the HTTP handler. The returned handler is wrapped for
// OpenTelemetry tracing.
func NewRouter(deps Deps) (http.Handler, error) {
	switch {
	case deps.Service == nil:
		return nil, errors.New("service is required")
	case deps.Registry == nil:
		return nil, errors.New("registry is required")
	case deps.Vault == nil:
		return nil, errors.New("vault is required")
	}
	h := &handler{
		svc:      deps.Service,
		registry: deps.Registry,
		vault:    deps.Vault,
		attempts: deps.Attempts,
		keeper:   deps.Keeper,
		stream:   deps.Stream,
		log:      deps.Logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(deps.Logger))
	r.Use(loggingMiddleware(deps.Logger, deps.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		bounded := timeoutMiddleware(deps.RequestTimeout)

		r.With(bounded).Route("/registry", func(r chi.Router) {
			r.Get("/", h.getRegistry)
			r.Post("/pause", h.pause)
			r.Post("/unpause", h.unpause)
			r.Put("/treasury", h.setTreasury)
			r.Put("/scheduler", h.setScheduler)
			r.Put("/creation-fee", h.setCreationFee)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.With(bounded).Get("/", h.listCampaigns)
			r.With(bounded).Post("/", h.createCampaign)
			r.Route("/{campaignID}", func(r chi.Router) {
				r.Get("/stream", h.streamEvents)
				r.Group(func(r chi.Router) {
					r.Use(bounded)
					r.Get("/", h.getCampaign)
					r.Get("/due", h.isDue)
					r.Get("/events", h.listEvents)
					r.Post("/purchases", h.buyShares)
					r.Post("/refunds", h.refundShares)
					r.Post("/rounds", h.startRound)
					r.Post("/rounds/current/finalize", h.finalizeRound)
					r.Post("/escrow/claim", h.claimEscrow)
					r.Post("/dividends", h.distributeDividends)
					r.Post("/dividends/claim", h.claimDividends)
					r.Get("/dividends/{holder}", h.unclaimed)
					r.Get("/certificates", h.listCertificates)
					r.Get("/certificates/{certificateID}", h.getCertificate)
					r.Get("/certificates/{certificateID}/token-uri", h.tokenURI)
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(bounded)
			r.Post("/vault/deposits", h.deposit)
			r.Get("/vault/accounts/{account}", h.balance)
			r.Route("/keeper", func(r chi.Router) {
				r.Get("/", h.keeperStatus)
				r.Post("/sweep", h.sweep)
				r.Get("/attempts", h.listAttempts)
			})
		})
	})

	return otelhttp.NewHandler(r, "crowdfund.http"), nil
}
