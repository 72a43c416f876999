package campaign

import (
	"encoding/json"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/ledger"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

// Fold applies an event to campaign state. Collections touched by the event
// are copied first, so earlier State values stay valid.
func Fold(state State, evt event.Event) State {
	switch evt.Type {
	case event.TypeCampaignCreated:
		var payload CreatePayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Created = true
		state.ID = evt.CampaignID
		state.Owner = payload.Owner
		state.Name = payload.Name
		state.Category = payload.Category
		state.Treasury = payload.Treasury
		state.Scheduler = payload.Scheduler
		state.Customization = cloneStrings(payload.Customization)
		state.CreatedAt = evt.Timestamp
		state.Ledger = ledger.New()

	case event.TypeRoundStarted:
		var payload RoundStartedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Rounds = append(append([]Round(nil), state.Rounds...), Round{
			Number:     payload.Round,
			Target:     payload.Target,
			SharePrice: payload.SharePrice,
			StartTime:  payload.StartTime,
			EndTime:    payload.EndTime,
		})

	case event.TypeSharesPurchased:
		var payload PurchasedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Ledger = state.Ledger.Clone()
		for _, cert := range payload.Certificates {
			_ = state.Ledger.Mint(ledger.Certificate{
				ID:               cert.ID,
				Round:            payload.Round,
				Sequence:         cert.Sequence,
				Owner:            payload.Buyer,
				PurchasePriceNet: payload.PurchasePriceNet,
			})
		}
		state = updateRound(state, payload.Round, func(r *Round) {
			r.FundsRaisedNet = payload.FundsRaisedNet
			r.SharesSold = payload.SharesSold
			r.Minted += len(payload.Certificates)
		})

	case event.TypeSharesRefunded:
		var payload RefundedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Ledger = state.Ledger.Clone()
		for _, id := range payload.CertificateIDs {
			_ = state.Ledger.Burn(id)
		}
		state = updateRound(state, payload.Round, func(r *Round) {
			r.FundsRaisedNet = payload.FundsRaisedNet
			r.SharesSold = payload.SharesSold
		})

	case event.TypeRoundFinalized:
		var payload RoundFinalizedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state = updateRound(state, payload.Round, func(r *Round) {
			r.Finalized = true
			r.Successful = payload.Successful
			r.FinalizedAt = payload.FinalizedAt
		})
		if payload.Escrow != nil {
			state.Escrows = append(append([]Escrow(nil), state.Escrows...), *payload.Escrow)
		}

	case event.TypeEscrowReleased:
		var payload EscrowReleasedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		escrows := append([]Escrow(nil), state.Escrows...)
		for i := range escrows {
			if escrows[i].Round == payload.Round {
				escrows[i].Released = true
				escrows[i].ReleasedAt = payload.ReleasedAt
			}
		}
		state.Escrows = escrows

	case event.TypeDividendsDistributed:
		var payload DividendsDistributedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		unclaimed := cloneAmounts(state.Dividends.Unclaimed)
		for _, credit := range payload.Credits {
			if credit.Amount.IsPositive() {
				unclaimed[credit.Holder] += credit.Amount
			}
		}
		state.Dividends.Unclaimed = unclaimed
		state.Dividends.TotalDistributed += payload.Amount
		state.Dividends.Distributions++

	case event.TypeDividendClaimed:
		var payload DividendClaimedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		unclaimed := cloneAmounts(state.Dividends.Unclaimed)
		delete(unclaimed, payload.Holder)
		state.Dividends.Unclaimed = unclaimed
		state.Dividends.TotalClaimed += payload.Amount
	}
	return state
}

func updateRound(state State, number int, apply func(*Round)) State {
	rounds := append([]Round(nil), state.Rounds...)
	for i := range rounds {
		if rounds[i].Number == number {
			apply(&rounds[i])
		}
	}
	state.Rounds = rounds
	return state
}

// Replay folds events onto an empty state.
func Replay(events []event.Event) State {
	var state State
	for _, evt := range events {
		state = Fold(state, evt)
	}
	return state
}

// Escrowed returns the total net proceeds still held in escrow.
func (s State) Escrowed() money.Amount {
	var total money.Amount
	for _, escrow := range s.Escrows {
		if !escrow.Released {
			total += escrow.Amount
		}
	}
	return total
}
