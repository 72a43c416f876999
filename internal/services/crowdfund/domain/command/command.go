// Package command defines the command envelope and decision values shared by
// the campaign decider and the engine.
package command

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

var (
	// ErrCampaignIDRequired indicates a missing campaign id.
	ErrCampaignIDRequired = errors.New("campaign id is required")
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrActorIDRequired indicates a missing caller.
	ErrActorIDRequired = errors.New("actor id is required")
	// ErrPayloadInvalid indicates malformed payload JSON.
	ErrPayloadInvalid = errors.New("payload json must be valid")
)

// Type identifies the command type string.
type Type string

// Command captures the canonical command envelope. The caller is always
// explicit; nothing is read from ambient context.
type Command struct {
	CampaignID  string
	Type        Type
	ActorID     string
	RequestID   string
	PayloadJSON []byte
}

// New builds a command with payload marshalled to JSON.
func New(campaignID string, typ Type, actorID string, payload any) (Command, error) {
	cmd := Command{
		CampaignID: campaignID,
		Type:       typ,
		ActorID:    actorID,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Command{}, err
		}
		cmd.PayloadJSON = data
	}
	return cmd, nil
}

// Normalize trims identifiers and validates the envelope.
func (c Command) Normalize() (Command, error) {
	c.CampaignID = strings.TrimSpace(c.CampaignID)
	c.ActorID = strings.TrimSpace(c.ActorID)
	c.RequestID = strings.TrimSpace(c.RequestID)
	c.Type = Type(strings.TrimSpace(string(c.Type)))
	if c.CampaignID == "" {
		return Command{}, ErrCampaignIDRequired
	}
	if c.Type == "" {
		return Command{}, ErrTypeRequired
	}
	if c.ActorID == "" {
		return Command{}, ErrActorIDRequired
	}
	if len(c.PayloadJSON) > 0 && !json.Valid(c.PayloadJSON) {
		return Command{}, ErrPayloadInvalid
	}
	return c, nil
}

// Decision represents the pure outcome of handling a command: either
// rejections, or the events and value transfers to commit together.
type Decision struct {
	Events     []event.Event
	Transfers  []money.Transfer
	Rejections []Rejection
}

// Rejection captures a domain-level reason a command was declined.
type Rejection struct {
	Code    string
	Message string
}

// Accept returns a decision that emits the provided events.
func Accept(events ...event.Event) Decision {
	return Decision{Events: append([]event.Event(nil), events...)}
}

// Reject returns a decision that carries the provided rejections.
func Reject(rejections ...Rejection) Decision {
	return Decision{Rejections: append([]Rejection(nil), rejections...)}
}

// WithTransfers attaches value transfers to an accepted decision.
func (d Decision) WithTransfers(transfers ...money.Transfer) Decision {
	d.Transfers = append(d.Transfers, transfers...)
	return d
}

// Rejected reports whether the decision carries any rejection.
func (d Decision) Rejected() bool {
	return len(d.Rejections) > 0
}
