// Package keeper finalizes expired funding rounds automatically.
//
// Campaigns register with the keeper when they are created. Each sweep runs
// CheckDue to collect a bounded batch of campaigns whose current round has
// ended without being finalized, then PerformFinalize to finalize them one by
// one. A failure on one campaign is recorded and never stops the batch, and
// successive sweeps resume scanning after the last campaign they selected so
// campaigns that keep failing cannot starve the rest of the watch list.
package keeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/platform/logger"
	"github.com/louisbranch/crowdshare/internal/platform/telemetry/metrics"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/campaign"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
)

const (
	// DefaultMaxBatch bounds the campaigns finalized per sweep.
	DefaultMaxBatch = 10
	// DefaultPollInterval is the time between scheduled sweeps.
	DefaultPollInterval = 30 * time.Second
)

// Campaigns is the campaign surface the keeper drives.
type Campaigns interface {
	Campaign(ctx context.Context, campaignID string) (campaign.State, error)
	IsDue(ctx context.Context, campaignID string, now time.Time) (bool, error)
	FinalizeRound(ctx context.Context, campaignID, caller string) (campaign.Round, error)
}

// Config controls keeper behavior.
type Config struct {
	// Principal is the caller identity used for finalization. It must match
	// the scheduler recorded on each campaign; SetPrincipal replaces it at
	// runtime.
	Principal    string
	MaxBatch     int
	PollInterval time.Duration
	Now          func() time.Time
}

func (c Config) normalized() Config {
	c.Principal = strings.TrimSpace(c.Principal)
	if c.MaxBatch <= 0 {
		c.MaxBatch = DefaultMaxBatch
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Keeper tracks registered campaigns and finalizes the due ones.
type Keeper struct {
	campaigns Campaigns
	attempts  storage.AttemptStore
	metrics   *metrics.Registry
	log       *logger.Logger
	cfg       Config
	trigger   chan struct{}

	mu         sync.Mutex
	order      []string
	registered map[string]struct{}
	// next is the position in order where the following CheckDue starts.
	next       int
	principal  string
	principals map[string]struct{}
}

// New builds a keeper. attempts, reg and log may be nil.
func New(campaigns Campaigns, attempts storage.AttemptStore, reg *metrics.Registry, log *logger.Logger, cfg Config) (*Keeper, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign service is required")
	}
	cfg = cfg.normalized()
	if cfg.Principal == "" {
		return nil, fmt.Errorf("keeper principal is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Keeper{
		campaigns:  campaigns,
		attempts:   attempts,
		metrics:    reg,
		log:        log.With("component", "keeper"),
		cfg:        cfg,
		trigger:    make(chan struct{}, 1),
		registered: make(map[string]struct{}),
		principal:  cfg.Principal,
		principals: map[string]struct{}{cfg.Principal: {}},
	}, nil
}

// SetPrincipal makes principal the identity used for campaigns recorded with
// it. Campaigns recorded with an earlier principal of this keeper are still
// finalized as that principal.
func (k *Keeper) SetPrincipal(principal string) error {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return fmt.Errorf("keeper principal is required")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.principal = principal
	k.principals[principal] = struct{}{}
	k.log.Info("keeper principal changed", "principal", principal)
	return nil
}

// Principal returns the active finalization identity.
func (k *Keeper) Principal() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.principal
}

// actorFor picks the identity to finalize a campaign recorded with
// scheduler.
func (k *Keeper) actorFor(scheduler string) string {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.principals[scheduler]; ok {
		return scheduler
	}
	return k.principal
}

// Register adds a campaign to the watch list. Registering twice is a no-op.
func (k *Keeper) Register(campaignID string) {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.registered[campaignID]; ok {
		return
	}
	k.registered[campaignID] = struct{}{}
	k.order = append(k.order, campaignID)
	k.metrics.SetRegistered(len(k.order))
}

// Unregister removes a campaign from the watch list.
func (k *Keeper) Unregister(campaignID string) {
	campaignID = strings.TrimSpace(campaignID)
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.registered[campaignID]; !ok {
		return
	}
	delete(k.registered, campaignID)
	for i, id := range k.order {
		if id == campaignID {
			k.order = append(k.order[:i], k.order[i+1:]...)
			if i < k.next {
				k.next--
			}
			break
		}
	}
	k.metrics.SetRegistered(len(k.order))
}

// Registered returns the watch list in registration order.
func (k *Keeper) Registered() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.order...)
}

// selector is the perform data handed from CheckDue to PerformFinalize.
type selector struct {
	CampaignIDs []string `json:"campaign_ids"`
}

// CheckDue scans registered campaigns in registration order, starting where
// the previous scan stopped and wrapping around, and returns up to MaxBatch
// due campaign ids encoded as perform data. due is false when nothing is due.
func (k *Keeper) CheckDue(ctx context.Context) ([]byte, bool, error) {
	now := k.cfg.Now()
	k.mu.Lock()
	order := append([]string(nil), k.order...)
	start := 0
	if len(order) > 0 {
		start = k.next % len(order)
	}
	k.mu.Unlock()

	var due []string
	scanned := 0
	for scanned < len(order) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		campaignID := order[(start+scanned)%len(order)]
		scanned++
		ok, err := k.campaigns.IsDue(ctx, campaignID, now)
		if err != nil {
			k.log.Warn("check campaign", "campaign_id", campaignID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		due = append(due, campaignID)
		if len(due) == k.cfg.MaxBatch {
			break
		}
	}
	if len(order) > 0 {
		k.mu.Lock()
		k.next = (start + scanned) % len(order)
		k.mu.Unlock()
	}
	if len(due) == 0 {
		return nil, false, nil
	}
	data, err := json.Marshal(selector{CampaignIDs: due})
	if err != nil {
		return nil, false, fmt.Errorf("encode perform data: %w", err)
	}
	return data, true, nil
}

// Failure describes a campaign the keeper could not finalize.
type Failure struct {
	CampaignID string `json:"campaign_id"`
	Code       string `json:"code"`
	Error      string `json:"error"`
}

// Report summarizes one PerformFinalize call.
type Report struct {
	Finalized []string  `json:"finalized"`
	Failed    []Failure `json:"failed"`
}

// ErrInvalidPerformData indicates perform data CheckDue did not produce.
var ErrInvalidPerformData = apperrors.New(apperrors.CodeInvalidArgument, "invalid perform data")

// PerformFinalize finalizes every campaign named by performData. Per-campaign
// failures are recorded in the report; only malformed perform data fails the
// call.
func (k *Keeper) PerformFinalize(ctx context.Context, performData []byte) (Report, error) {
	var sel selector
	if err := json.Unmarshal(performData, &sel); err != nil {
		return Report{}, apperrors.Wrap(apperrors.CodeInvalidArgument, ErrInvalidPerformData.Message, err)
	}
	if len(sel.CampaignIDs) == 0 {
		return Report{}, ErrInvalidPerformData
	}

	var report Report
	for _, campaignID := range sel.CampaignIDs {
		actor := k.Principal()
		if state, err := k.campaigns.Campaign(ctx, campaignID); err == nil {
			actor = k.actorFor(state.Scheduler)
		}
		round, err := k.campaigns.FinalizeRound(ctx, campaignID, actor)
		attempt := storage.AttemptRecord{
			CampaignID: campaignID,
			Round:      round.Number,
			Outcome:    storage.OutcomeFinalized,
			CreatedAt:  k.cfg.Now(),
		}
		if err != nil {
			code := apperrors.CodeOf(err)
			attempt.Outcome = storage.OutcomeFailed
			attempt.LastError = err.Error()
			report.Failed = append(report.Failed, Failure{CampaignID: campaignID, Code: string(code), Error: err.Error()})
			k.log.Warn("finalize round failed",
				"campaign_id", campaignID,
				"code", string(code),
				"error", err,
			)
		} else {
			report.Finalized = append(report.Finalized, campaignID)
			k.log.Info("round finalized",
				"campaign_id", campaignID,
				"round", round.Number,
				"successful", round.Successful,
			)
		}
		k.metrics.ObserveFinalization(attempt.Outcome)
		k.record(ctx, attempt)
	}
	return report, nil
}

func (k *Keeper) record(ctx context.Context, attempt storage.AttemptRecord) {
	if k.attempts == nil {
		return
	}
	if err := k.attempts.RecordAttempt(ctx, attempt); err != nil && !errors.Is(err, context.Canceled) {
		k.log.Error("record keeper attempt", "campaign_id", attempt.CampaignID, "error", err)
	}
}

// Sweep runs CheckDue and, when something is due, PerformFinalize.
func (k *Keeper) Sweep(ctx context.Context) (Report, error) {
	data, due, err := k.CheckDue(ctx)
	if err != nil {
		k.metrics.ObserveSweep("error")
		return Report{}, err
	}
	if !due {
		k.metrics.ObserveSweep("idle")
		return Report{}, nil
	}
	k.metrics.ObserveSweep("due")
	return k.PerformFinalize(ctx, data)
}

// Trigger requests an immediate sweep from Run. It never blocks.
func (k *Keeper) Trigger() {
	select {
	case k.trigger <- struct{}{}:
	default:
	}
}

// Run sweeps on every poll interval and on Trigger until ctx ends.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.cfg.PollInterval)
	defer ticker.Stop()

	k.log.Info("keeper started",
		"poll_interval", k.cfg.PollInterval.String(),
		"max_batch", k.cfg.MaxBatch,
	)
	for {
		if _, err := k.Sweep(ctx); err != nil && ctx.Err() == nil {
			k.log.Error("keeper sweep", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-k.trigger:
		}
	}
}
