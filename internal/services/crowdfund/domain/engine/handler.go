package engine

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/platform/logger"
	platformotel "github.com/louisbranch/crowdshare/internal/platform/otel"
	"github.com/louisbranch/crowdshare/internal/platform/telemetry/metrics"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/campaign"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/command"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/integrity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/engine"

// Journal persists and replays campaign events.
type Journal interface {
	CommitEvents(ctx context.Context, commit storage.Commit) ([]event.Event, error)
	ListEvents(ctx context.Context, campaignID string, afterSeq uint64, limit int) ([]event.Event, error)
}

// Publisher fans committed events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, events []event.Event) error
}

// PostCommitHook runs after a successful commit with no campaign lock held.
type PostCommitHook func(ctx context.Context, result Result)

// Options configures a Handler.
type Options struct {
	Journal   Journal
	Publisher Publisher
	Hooks     []PostCommitHook
	// Keyring verifies the journal chain when a campaign is replayed. Nil
	// skips verification.
	Keyring *integrity.Keyring
	Metrics *metrics.Registry
	Logger  *logger.Logger
	Now     func() time.Time
}

// Result captures one accepted command.
type Result struct {
	Command command.Command
	// Events are the stored events with seq and chain fields assigned.
	Events []event.Event
	// State is the campaign state after the events were folded.
	State campaign.State
}

// Handler executes commands with per-campaign serialization.
type Handler struct {
	journal   Journal
	publisher Publisher
	hooks     []PostCommitHook
	keyring   *integrity.Keyring
	metrics   *metrics.Registry
	log       *logger.Logger
	now       func() time.Time
	tracer    trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string]snapshot
}

type snapshot struct {
	state campaign.State
	seq   uint64
}

// NewHandler builds a handler.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Journal == nil {
		return nil, ErrJournalRequired
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		journal:   opts.Journal,
		publisher: opts.Publisher,
		hooks:     append([]PostCommitHook(nil), opts.Hooks...),
		keyring:   opts.Keyring,
		metrics:   opts.Metrics,
		log:       log,
		now:       now,
		tracer:    platformotel.Tracer(tracerName),
		locks:     make(map[string]*sync.Mutex),
		cache:     make(map[string]snapshot),
	}, nil
}

// Execute decides and commits cmd. Rejections are returned as
// *apperrors.Error carrying the rejection code.
func (h *Handler) Execute(ctx context.Context, cmd command.Command) (Result, error) {
	normalized, err := cmd.Normalize()
	if err != nil {
		return Result{}, commandError(err)
	}
	cmd = normalized

	started := time.Now()
	ctx, span := h.tracer.Start(ctx, "crowdfund.command "+string(cmd.Type), trace.WithAttributes(
		attribute.String("crowdfund.campaign_id", cmd.CampaignID),
		attribute.String("crowdfund.command_type", string(cmd.Type)),
		attribute.String("crowdfund.actor_id", cmd.ActorID),
	))
	defer span.End()

	result, err := h.commit(ctx, cmd)
	h.observe(cmd, err, time.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		return Result{}, err
	}
	span.SetAttributes(attribute.Int("crowdfund.events", len(result.Events)))

	h.afterCommit(ctx, result)
	return result, nil
}

func (h *Handler) commit(ctx context.Context, cmd command.Command) (Result, error) {
	unlock := h.lock(cmd.CampaignID)
	defer unlock()

	snap, err := h.load(ctx, cmd.CampaignID)
	if err != nil {
		return Result{}, err
	}

	decision := campaign.Decide(snap.state, cmd, h.now)
	if decision.Rejected() {
		return Result{}, campaign.RejectionError(decision.Rejections[0])
	}
	if len(decision.Events) == 0 {
		return Result{Command: cmd, State: snap.state.Clone()}, nil
	}

	stored, err := h.journal.CommitEvents(ctx, storage.Commit{
		CampaignID:  cmd.CampaignID,
		ExpectedSeq: snap.seq,
		Events:      decision.Events,
		Transfers:   decision.Transfers,
	})
	if err != nil {
		// Another writer may own this campaign; the next load replays.
		h.forget(cmd.CampaignID)
		return Result{}, commitError(err)
	}

	state := snap.state
	for _, evt := range stored {
		state = campaign.Fold(state, evt)
	}
	h.remember(cmd.CampaignID, snapshot{state: state, seq: stored[len(stored)-1].Seq})
	return Result{Command: cmd, Events: stored, State: state.Clone()}, nil
}

func (h *Handler) afterCommit(ctx context.Context, result Result) {
	if len(result.Events) == 0 {
		return
	}
	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, result.Events); err != nil {
			h.log.Warn("publish events",
				"campaign_id", result.Command.CampaignID,
				"error", err,
			)
		}
	}
	for _, hook := range h.hooks {
		hook(ctx, result)
	}
}

// State returns a copy of the current campaign state and its latest seq.
func (h *Handler) State(ctx context.Context, campaignID string) (campaign.State, uint64, error) {
	unlock := h.lock(campaignID)
	defer unlock()

	snap, err := h.load(ctx, campaignID)
	if err != nil {
		return campaign.State{}, 0, err
	}
	return snap.state.Clone(), snap.seq, nil
}

func (h *Handler) load(ctx context.Context, campaignID string) (snapshot, error) {
	h.mu.Lock()
	snap, ok := h.cache[campaignID]
	h.mu.Unlock()
	if ok {
		return snap, nil
	}

	events, err := h.journal.ListEvents(ctx, campaignID, 0, 0)
	if err != nil {
		return snapshot{}, apperrors.Wrap(apperrors.CodeUnknown, "load campaign events", err)
	}
	if h.keyring != nil {
		if err := integrity.VerifyChain(h.keyring, events); err != nil {
			return snapshot{}, apperrors.Wrap(apperrors.CodeUnknown, "verify campaign journal", err)
		}
	}
	snap = snapshot{state: campaign.Replay(events)}
	if n := len(events); n > 0 {
		snap.seq = events[n-1].Seq
	}
	if snap.state.Created {
		h.remember(campaignID, snap)
	}
	return snap, nil
}

func (h *Handler) lock(campaignID string) func() {
	h.mu.Lock()
	m, ok := h.locks[campaignID]
	if !ok {
		m = &sync.Mutex{}
		h.locks[campaignID] = m
	}
	h.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (h *Handler) remember(campaignID string, snap snapshot) {
	h.mu.Lock()
	h.cache[campaignID] = snap
	h.mu.Unlock()
}

func (h *Handler) forget(campaignID string) {
	h.mu.Lock()
	delete(h.cache, campaignID)
	h.mu.Unlock()
}

func (h *Handler) observe(cmd command.Command, err error, elapsed time.Duration) {
	if err == nil {
		h.metrics.ObserveCommand(string(cmd.Type), metrics.OutcomeAccepted, "", elapsed)
		return
	}
	code := apperrors.CodeOf(err)
	outcome := metrics.OutcomeRejected
	if code.Kind() == apperrors.KindInternal {
		outcome = metrics.OutcomeFailed
	}
	h.metrics.ObserveCommand(string(cmd.Type), outcome, string(code), elapsed)
}
