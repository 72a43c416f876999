// Package service is the campaign facade: it turns caller requests into
// campaign commands and answers queries from the folded campaign state.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/platform/requestctx"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/campaign"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/command"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/engine"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/metadata"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
)

// Executor runs commands and loads campaign state.
type Executor interface {
	Execute(ctx context.Context, cmd command.Command) (engine.Result, error)
	State(ctx context.Context, campaignID string) (campaign.State, uint64, error)
}

// Service exposes campaign operations and queries.
type Service struct {
	engine   Executor
	events   storage.EventStore
	metadata metadata.Provider
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetadataProvider renders certificate documents with p.
func WithMetadataProvider(p metadata.Provider) Option {
	return func(s *Service) { s.metadata = p }
}

// WithClock overrides the clock used by IsDue callers that pass a zero time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a Service.
func New(exec Executor, events storage.EventStore, opts ...Option) (*Service, error) {
	if exec == nil {
		return nil, fmt.Errorf("command executor is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	s := &Service{engine: exec, events: events, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Execute runs a command built from the arguments, tagging it with the
// request id carried in ctx.
func (s *Service) Execute(ctx context.Context, campaignID, caller string, typ command.Type, payload any) (engine.Result, error) {
	cmd, err := command.New(campaignID, typ, caller, payload)
	if err != nil {
		return engine.Result{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "build command", err)
	}
	cmd.RequestID = requestctx.RequestIDFromContext(ctx)
	return s.engine.Execute(ctx, cmd)
}

// payloadsOf decodes the payloads of every event of type typ.
func payloadsOf[T any](result engine.Result, typ event.Type) ([]T, error) {
	var out []T
	for _, evt := range result.Events {
		if evt.Type != typ {
			continue
		}
		var payload T
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeUnknown, "decode "+string(typ)+" payload", err)
		}
		out = append(out, payload)
	}
	return out, nil
}

// payloadOf decodes the payload of the first event of type typ.
func payloadOf[T any](result engine.Result, typ event.Type) (T, bool, error) {
	var zero T
	payloads, err := payloadsOf[T](result, typ)
	if err != nil || len(payloads) == 0 {
		return zero, false, err
	}
	return payloads[0], true, nil
}

func (s *Service) state(ctx context.Context, campaignID string) (campaign.State, error) {
	state, _, err := s.engine.State(ctx, campaignID)
	if err != nil {
		return campaign.State{}, err
	}
	if !state.Created {
		return campaign.State{}, campaign.ErrNotFound
	}
	return state, nil
}
