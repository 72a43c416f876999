// Package storage defines the persistence contracts of the crowdfunding
// service: the campaign event journal, vault balances moved atomically with
// it, the campaign listing projection, and keeper attempt history.
package storage

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/platform/filter"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrConcurrentUpdate indicates the journal advanced past the expected seq.
var ErrConcurrentUpdate = apperrors.New(apperrors.CodeConcurrentUpdate, "campaign was updated concurrently")

// ErrInsufficientFunds indicates a transfer would overdraw an account. The
// whole commit is discarded.
var ErrInsufficientFunds = apperrors.New(apperrors.CodeInsufficientFunds, "insufficient funds")

// Commit is one atomic unit: every event is appended and every transfer is
// applied, or nothing is.
type Commit struct {
	CampaignID string
	// ExpectedSeq is the last seq the decision was made against.
	ExpectedSeq uint64
	Events      []event.Event
	Transfers   []money.Transfer
}

// Normalize validates events and transfers before a store opens a transaction.
func (c Commit) Normalize() (Commit, error) {
	c.CampaignID = strings.TrimSpace(c.CampaignID)
	if c.CampaignID == "" {
		return Commit{}, event.ErrCampaignIDRequired
	}
	events := make([]event.Event, 0, len(c.Events))
	for _, evt := range c.Events {
		if strings.TrimSpace(evt.CampaignID) != c.CampaignID {
			return Commit{}, apperrors.New(apperrors.CodeInvalidArgument, "event belongs to another campaign")
		}
		validated, err := event.ValidateForAppend(evt)
		if err != nil {
			return Commit{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid event", err)
		}
		events = append(events, validated)
	}
	for _, t := range c.Transfers {
		if err := t.Validate(); err != nil {
			return Commit{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid transfer", err)
		}
	}
	c.Events = events
	return c, nil
}

// EventStore owns the campaign journal.
type EventStore interface {
	// CommitEvents atomically appends events with seq, hash and chain set, and
	// applies transfers. It fails with ErrConcurrentUpdate when the journal's
	// latest seq differs from ExpectedSeq, and with ErrInsufficientFunds when
	// any account would go negative.
	CommitEvents(ctx context.Context, commit Commit) ([]event.Event, error)
	// ListEvents returns events ordered by seq ascending.
	ListEvents(ctx context.Context, campaignID string, afterSeq uint64, limit int) ([]event.Event, error)
	// LatestSeq returns the latest seq for a campaign, or 0.
	LatestSeq(ctx context.Context, campaignID string) (uint64, error)
	// ListEventsPage returns a filtered page of events for indexers.
	ListEventsPage(ctx context.Context, req ListEventsPageRequest) (ListEventsPageResult, error)
}

// ListEventsPageRequest describes an event history query.
type ListEventsPageRequest struct {
	CampaignID string
	// AfterSeq returns events with seq greater than this value (ascending) or
	// lower than it when Descending and non-zero.
	AfterSeq   uint64
	PageSize   int
	Descending bool
	Filter     filter.Filter
}

// ListEventsPageResult is one page of events.
type ListEventsPageResult struct {
	Events      []event.Event
	HasNextPage bool
}

// FilterFields exposes an event to the in-memory filter predicate.
func FilterFields(evt event.Event) filter.Fields {
	return filter.Fields{
		Type:       string(evt.Type),
		ActorID:    evt.ActorID,
		RequestID:  evt.RequestID,
		EntityType: evt.EntityType,
		EntityID:   evt.EntityID,
		Seq:        int64(evt.Seq),
		Timestamp:  evt.Timestamp,
	}
}

// VaultStore holds account balances in the unit of account.
type VaultStore interface {
	// Deposit credits an account outside of any campaign and returns the new balance.
	Deposit(ctx context.Context, account string, amount money.Amount) (money.Amount, error)
	// Balance returns an account balance; unknown accounts hold zero.
	Balance(ctx context.Context, account string) (money.Amount, error)
}

// CampaignRecord is the listing projection of a created campaign.
type CampaignRecord struct {
	ID        string
	Owner     string
	Name      string
	Category  string
	Position  uint64
	CreatedAt time.Time
}

// CampaignPage is one page of the listing.
type CampaignPage struct {
	Campaigns []CampaignRecord
	// NextPosition is the position to resume after, or 0 on the last page.
	NextPosition uint64
}

// CampaignIndex is maintained in the same transaction as campaign.created.
type CampaignIndex interface {
	GetCampaign(ctx context.Context, id string) (CampaignRecord, error)
	ListCampaigns(ctx context.Context, afterPosition uint64, limit int) (CampaignPage, error)
	CountCampaigns(ctx context.Context) (int, error)
}

// AttemptRecord is one keeper finalization outcome.
type AttemptRecord struct {
	ID         int64
	CampaignID string
	Round      int
	Outcome    string
	LastError  string
	CreatedAt  time.Time
}

// Keeper attempt outcomes.
const (
	OutcomeFinalized = "finalized"
	OutcomeFailed    = "failed"
)

// Normalize validates an attempt before it is persisted.
func (a AttemptRecord) Normalize() (AttemptRecord, error) {
	a.CampaignID = strings.TrimSpace(a.CampaignID)
	a.Outcome = strings.TrimSpace(a.Outcome)
	a.LastError = strings.TrimSpace(a.LastError)
	if a.CampaignID == "" {
		return AttemptRecord{}, apperrors.New(apperrors.CodeInvalidArgument, "campaign id is required")
	}
	if a.Outcome == "" {
		return AttemptRecord{}, apperrors.New(apperrors.CodeInvalidArgument, "outcome is required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Millisecond)
	return a, nil
}

// AttemptStore persists keeper finalization attempts.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	ListAttempts(ctx context.Context, limit int) ([]AttemptRecord, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	EventStore
	VaultStore
	CampaignIndex
	AttemptStore
	Close() error
}

// NormalizeDeposit validates a vault deposit.
func NormalizeDeposit(account string, amount money.Amount) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return "", apperrors.New(apperrors.CodeAddressZero, "account is required")
	}
	if !amount.IsPositive() {
		return "", apperrors.New(apperrors.CodeAmountZero, "amount must be greater than zero")
	}
	return account, nil
}
