package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/platform/filter"
	"github.com/louisbranch/crowdshare/internal/platform/grpc/pagination"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/campaign"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/ledger"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/metadata"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/cursor"
)

var eventsPaging = pagination.Config{
	DefaultPageSize: 50,
	MaxPageSize:     200,
	DefaultOrder:    "seq",
	Orders:          map[string]bool{"seq": false, "seq desc": true},
}

// Campaign returns a snapshot of the campaign state.
func (s *Service) Campaign(ctx context.Context, campaignID string) (campaign.State, error) {
	return s.state(ctx, campaignID)
}

// Certificate returns one certificate, including burned ones.
func (s *Service) Certificate(ctx context.Context, campaignID string, certificateID uint64) (ledger.Certificate, error) {
	state, err := s.state(ctx, campaignID)
	if err != nil {
		return ledger.Certificate{}, err
	}
	cert, ok := state.Ledger.Get(certificateID)
	if !ok {
		return ledger.Certificate{}, campaign.ErrCertificateNotFound
	}
	return cert, nil
}

// Certificates returns the outstanding certificates held by owner.
func (s *Service) Certificates(ctx context.Context, campaignID, owner string) ([]ledger.Certificate, error) {
	state, err := s.state(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return state.Ledger.Owned(owner), nil
}

// Unclaimed returns the holder's claimable dividends.
func (s *Service) Unclaimed(ctx context.Context, campaignID, holder string) (money.Amount, error) {
	state, err := s.state(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	return state.Unclaimed(holder), nil
}

// TokenURI renders the metadata URI of an outstanding certificate.
func (s *Service) TokenURI(ctx context.Context, campaignID string, certificateID uint64) (string, error) {
	state, err := s.state(ctx, campaignID)
	if err != nil {
		return "", err
	}
	cert, ok := state.Ledger.Get(certificateID)
	if !ok || cert.Burned {
		return "", campaign.ErrCertificateNotFound
	}
	uri, err := metadata.TokenURI(ctx, s.metadata, metadata.CertificateView{
		CampaignID:       state.ID,
		CampaignName:     state.Name,
		Category:         state.Category,
		CertificateID:    cert.ID,
		Round:            cert.Round,
		Sequence:         cert.Sequence,
		Owner:            cert.Owner,
		PurchasePriceNet: cert.PurchasePriceNet,
		Customization:    state.Customization,
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnknown, "render token uri", err)
	}
	return uri, nil
}

// IsDue reports whether the campaign's current round awaits finalization at
// now. A zero now uses the service clock.
func (s *Service) IsDue(ctx context.Context, campaignID string, now time.Time) (bool, error) {
	state, err := s.state(ctx, campaignID)
	if err != nil {
		return false, err
	}
	if now.IsZero() {
		now = s.now()
	}
	return state.IsDue(now), nil
}

// EventsQuery selects a page of a campaign journal.
type EventsQuery struct {
	CampaignID string
	PageSize   int
	PageToken  string
	// OrderBy is "seq" or "seq desc".
	OrderBy string
	// Filter is an AIP-160 expression over event_type, actor_id, request_id,
	// entity_type, entity_id, seq and ts.
	Filter string
}

// EventsPage is one page of journal events.
type EventsPage struct {
	Events        []event.Event
	NextPageToken string
}

// Events lists journal events with filtering and page tokens.
func (s *Service) Events(ctx context.Context, query EventsQuery) (EventsPage, error) {
	if _, err := s.state(ctx, query.CampaignID); err != nil {
		return EventsPage{}, err
	}
	_, descending, err := eventsPaging.Order(query.OrderBy)
	if err != nil {
		return EventsPage{}, apperrors.Wrap(apperrors.CodeInvalidArgument, err.Error(), err)
	}
	parsed, err := filter.Parse(query.Filter)
	if err != nil {
		return EventsPage{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid filter", err)
	}

	req := storage.ListEventsPageRequest{
		CampaignID: query.CampaignID,
		PageSize:   eventsPaging.PageSize(query.PageSize),
		Descending: descending,
		Filter:     parsed,
	}
	if query.PageToken != "" {
		c, err := cursor.Decode(query.PageToken)
		if err == nil {
			err = cursor.Validate(c, descending, query.Filter)
		}
		if err != nil {
			if errors.Is(err, cursor.ErrFilterChanged) {
				return EventsPage{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "page token does not match the query", err)
			}
			return EventsPage{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid page token", err)
		}
		req.AfterSeq = c.Position
	}

	result, err := s.events.ListEventsPage(ctx, req)
	if err != nil {
		return EventsPage{}, apperrors.Wrap(apperrors.CodeUnknown, "list events", err)
	}
	page := EventsPage{Events: result.Events}
	if result.HasNextPage && len(result.Events) > 0 {
		last := result.Events[len(result.Events)-1]
		token, err := cursor.Encode(cursor.New(last.Seq, descending, query.Filter))
		if err != nil {
			return EventsPage{}, apperrors.Wrap(apperrors.CodeUnknown, "encode page token", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}
