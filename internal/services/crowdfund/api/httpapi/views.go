package httpapi

import (
	"encoding/json"
	"time"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/campaign"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/ledger"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
)

type campaignView struct {
	ID                string             `json:"id"`
	Owner             string             `json:"owner"`
	Name              string             `json:"name"`
	Category          string             `json:"category,omitempty"`
	Treasury          string             `json:"treasury"`
	Scheduler         string             `json:"scheduler"`
	Customization     map[string]string  `json:"customization,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	Rounds            []campaign.Round   `json:"rounds"`
	Escrows           []campaign.Escrow  `json:"escrows"`
	Escrowed          money.Amount       `json:"escrowed"`
	Dividends         campaign.Dividends `json:"dividends"`
	OutstandingShares int64              `json:"outstanding_shares"`
}

func newCampaignView(state campaign.State) campaignView {
	view := campaignView{
		ID:            state.ID,
		Owner:         state.Owner,
		Name:          state.Name,
		Category:      state.Category,
		Treasury:      state.Treasury,
		Scheduler:     state.Scheduler,
		Customization: state.Customization,
		CreatedAt:     state.CreatedAt,
		Rounds:        state.Rounds,
		Escrows:       state.Escrows,
		Escrowed:      state.Escrowed(),
		Dividends:     state.Dividends,
	}
	if view.Rounds == nil {
		view.Rounds = []campaign.Round{}
	}
	if view.Escrows == nil {
		view.Escrows = []campaign.Escrow{}
	}
	if state.Ledger != nil {
		view.OutstandingShares = state.Ledger.Outstanding()
	}
	return view
}

type campaignRecordView struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newCampaignRecordView(record storage.CampaignRecord) campaignRecordView {
	return campaignRecordView{
		ID:        record.ID,
		Owner:     record.Owner,
		Name:      record.Name,
		Category:  record.Category,
		CreatedAt: record.CreatedAt,
	}
}

type eventView struct {
	Seq        uint64          `json:"seq"`
	Type       event.Type      `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	ActorID    string          `json:"actor_id"`
	RequestID  string          `json:"request_id,omitempty"`
	EntityType string          `json:"entity_type,omitempty"`
	EntityID   string          `json:"entity_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ChainHash  string          `json:"chain_hash"`
	Signature  string          `json:"signature,omitempty"`
}

func newEventView(evt event.Event) eventView {
	view := eventView{
		Seq:        evt.Seq,
		Type:       evt.Type,
		Timestamp:  evt.Timestamp,
		ActorID:    evt.ActorID,
		RequestID:  evt.RequestID,
		EntityType: evt.EntityType,
		EntityID:   evt.EntityID,
		ChainHash:  evt.ChainHash,
		Signature:  evt.Signature,
	}
	if len(evt.PayloadJSON) > 0 {
		view.Payload = json.RawMessage(evt.PayloadJSON)
	}
	return view
}

func certificateList(certs []ledger.Certificate) []ledger.Certificate {
	if certs == nil {
		return []ledger.Certificate{}
	}
	return certs
}

type attemptView struct {
	CampaignID string    `json:"campaign_id"`
	Round      int       `json:"round"`
	Outcome    string    `json:"outcome"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
