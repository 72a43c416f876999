package campaign

import (
	"time"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/ledger"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

const (
	// EscrowDelay is how long net proceeds stay locked after a successful round.
	EscrowDelay = 60 * time.Hour
	// MaxPriceMultiplier caps a new round's share price relative to the
	// previous round's price.
	MaxPriceMultiplier = 2
	// MaxPurchaseQuantity bounds the certificates minted by one purchase.
	MaxPurchaseQuantity = 10_000
)

// State captures the replayed campaign aggregate state used by Decide.
type State struct {
	// Created indicates whether campaign.created has been applied.
	Created bool
	ID      string
	// Owner is the creator; only the owner may start rounds, claim escrow
	// and distribute dividends.
	Owner    string
	Name     string
	Category string
	// Treasury receives purchase commissions.
	Treasury string
	// Scheduler may finalize expired rounds alongside the owner.
	Scheduler     string
	Customization map[string]string
	CreatedAt     time.Time

	Rounds    []Round
	Ledger    *ledger.Ledger
	Escrows   []Escrow
	Dividends Dividends
}

// Round is one time-boxed, priced share-sale window.
type Round struct {
	Number         int          `json:"number"`
	Target         money.Amount `json:"target"`
	SharePrice     money.Amount `json:"share_price"`
	StartTime      time.Time    `json:"start_time"`
	EndTime        time.Time    `json:"end_time"`
	FundsRaisedNet money.Amount `json:"funds_raised_net"`
	SharesSold     int64        `json:"shares_sold"`
	// Minted counts every certificate issued in the round, burned or not,
	// so sequence numbers are never reused.
	Minted      int       `json:"minted"`
	Finalized   bool      `json:"finalized"`
	Successful  bool      `json:"successful"`
	FinalizedAt time.Time `json:"finalized_at,omitzero"`
}

// Active reports whether the round still accepts purchases and refunds
// (subject to its end time).
func (r Round) Active() bool {
	return r.Number > 0 && !r.Finalized
}

// Ended reports whether the round's end time has passed at now.
func (r Round) Ended(now time.Time) bool {
	return !now.Before(r.EndTime)
}

// FundsRaisedGross is the gross amount paid for the round's live shares.
// Every live certificate in a round was bought at its share price.
func (r Round) FundsRaisedGross() (money.Amount, error) {
	return r.SharePrice.MulInt(r.SharesSold)
}

// TargetReached reports whether gross proceeds reached the target.
func (r Round) TargetReached() bool {
	gross, err := r.FundsRaisedGross()
	if err != nil {
		return true
	}
	return gross >= r.Target
}

// Escrow holds one successful round's net proceeds until ReleaseTime.
type Escrow struct {
	Round       int          `json:"round"`
	Amount      money.Amount `json:"amount"`
	ReleaseTime time.Time    `json:"release_time"`
	Released    bool         `json:"released"`
	ReleasedAt  time.Time    `json:"released_at,omitzero"`
}

// Dividends is the pull-based dividend ledger.
type Dividends struct {
	TotalDistributed money.Amount            `json:"total_distributed"`
	TotalClaimed     money.Amount            `json:"total_claimed"`
	Distributions    int                     `json:"distributions"`
	Unclaimed        map[string]money.Amount `json:"unclaimed,omitempty"`
}

// CurrentRound returns the latest round, if any.
func (s State) CurrentRound() (Round, bool) {
	if len(s.Rounds) == 0 {
		return Round{}, false
	}
	return s.Rounds[len(s.Rounds)-1], true
}

// Unclaimed returns the holder's claimable dividend balance.
func (s State) Unclaimed(holder string) money.Amount {
	return s.Dividends.Unclaimed[holder]
}

// IsDue reports whether the current round has expired and still awaits
// finalization.
func (s State) IsDue(now time.Time) bool {
	if !s.Created {
		return false
	}
	round, ok := s.CurrentRound()
	return ok && round.Active() && round.Ended(now)
}

// Clone returns a deep copy safe to hand to readers.
func (s State) Clone() State {
	out := s
	out.Customization = cloneStrings(s.Customization)
	out.Rounds = append([]Round(nil), s.Rounds...)
	out.Escrows = append([]Escrow(nil), s.Escrows...)
	out.Ledger = s.Ledger.Clone()
	out.Dividends.Unclaimed = cloneAmounts(s.Dividends.Unclaimed)
	return out
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneAmounts(in map[string]money.Amount) map[string]money.Amount {
	out := make(map[string]money.Amount, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
