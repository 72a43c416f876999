// Package event defines the append-only campaign journal record.
//
// Every campaign state transition is one event. Events carry enough payload
// to rebuild the round, certificate, escrow and dividend state without
// re-querying, which is what indexers and the scheduler rely on.
package event

import (
	"errors"
	"strings"
	"time"
)

// Type identifies the type of a campaign event.
type Type string

// Campaign lifecycle events.
const (
	// TypeCampaignCreated records the creation of a campaign by the registry.
	TypeCampaignCreated Type = "campaign.created"
	// TypeRoundStarted records a new funding round opening.
	TypeRoundStarted Type = "round.started"
	// TypeRoundFinalized records the irreversible close of a round.
	TypeRoundFinalized Type = "round.finalized"
	// TypeEscrowReleased records net proceeds paid to the campaign owner.
	TypeEscrowReleased Type = "escrow.released"
)

// Share events.
const (
	// TypeSharesPurchased records a batch of minted certificates.
	TypeSharesPurchased Type = "shares.purchased"
	// TypeSharesRefunded records a batch of burned certificates and the payout.
	TypeSharesRefunded Type = "shares.refunded"
)

// Dividend events.
const (
	// TypeDividendsDistributed records point-in-time credits to holders.
	TypeDividendsDistributed Type = "dividends.distributed"
	// TypeDividendClaimed records one holder withdrawing their balance.
	TypeDividendClaimed Type = "dividend.claimed"
)

// Types lists every known event type in journal order of introduction.
var Types = []Type{
	TypeCampaignCreated,
	TypeRoundStarted,
	TypeSharesPurchased,
	TypeSharesRefunded,
	TypeRoundFinalized,
	TypeEscrowReleased,
	TypeDividendsDistributed,
	TypeDividendClaimed,
}

var (
	// ErrTypeUnknown indicates an unregistered event type.
	ErrTypeUnknown = errors.New("event type is not registered")
	// ErrCampaignIDRequired indicates a missing campaign id.
	ErrCampaignIDRequired = errors.New("event campaign id is required")
)

// Event represents an immutable event in the campaign journal.
type Event struct {
	// CampaignID is the campaign this event belongs to.
	CampaignID string
	// Seq is the event sequence number within the campaign (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Type identifies the kind of event.
	Type Type
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// ActorID is the caller whose command produced the event.
	ActorID string
	// RequestID correlates events produced by one command.
	RequestID string
	// EntityType is the type of entity affected (round, certificate, escrow).
	EntityType string
	// EntityID is the ID of the entity affected.
	EntityID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte

	// Hash is the content hash. Assigned by storage on append.
	Hash string
	// PrevHash is the chain hash of the previous event in the campaign.
	PrevHash string
	// ChainHash links this event to PrevHash.
	ChainHash string
	// Signature is the HMAC of ChainHash, when a keyring is configured.
	Signature string
	// SignatureKeyID identifies the key that produced Signature.
	SignatureKeyID string
}

// Known reports whether t is a registered event type.
func Known(t Type) bool {
	for _, known := range Types {
		if known == t {
			return true
		}
	}
	return false
}

// ValidateForAppend checks that an event is ready to be journaled.
func ValidateForAppend(evt Event) (Event, error) {
	evt.CampaignID = strings.TrimSpace(evt.CampaignID)
	if evt.CampaignID == "" {
		return Event{}, ErrCampaignIDRequired
	}
	if !Known(evt.Type) {
		return Event{}, ErrTypeUnknown
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)
	return evt, nil
}
