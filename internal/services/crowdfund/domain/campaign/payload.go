package campaign

import (
	"time"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

// CreatePayload captures the payload for campaign.create commands and
// campaign.created events.
type CreatePayload struct {
	Owner           string            `json:"owner,omitempty"`
	Name            string            `json:"name"`
	Category        string            `json:"category,omitempty"`
	Treasury        string            `json:"treasury"`
	Scheduler       string            `json:"scheduler,omitempty"`
	Target          money.Amount      `json:"target"`
	SharePrice      money.Amount      `json:"share_price"`
	DurationSeconds int64             `json:"duration_seconds"`
	Fee             money.Amount      `json:"fee"`
	Customization   map[string]string `json:"customization,omitempty"`
}

// BuyPayload captures the payload for shares.buy commands.
type BuyPayload struct {
	Quantity int64        `json:"quantity"`
	Payment  money.Amount `json:"payment"`
}

// PurchasedCertificate describes one minted certificate.
type PurchasedCertificate struct {
	ID       uint64 `json:"id"`
	Sequence int    `json:"sequence"`
}

// PurchasedPayload captures the payload for shares.purchased events.
type PurchasedPayload struct {
	Round            int                    `json:"round"`
	Buyer            string                 `json:"buyer"`
	Quantity         int64                  `json:"quantity"`
	Gross            money.Amount           `json:"gross"`
	Net              money.Amount           `json:"net"`
	Commission       money.Amount           `json:"commission"`
	PurchasePriceNet money.Amount           `json:"purchase_price_net"`
	Certificates     []PurchasedCertificate `json:"certificates"`
	FundsRaisedNet   money.Amount           `json:"funds_raised_net"`
	SharesSold       int64                  `json:"shares_sold"`
}

// RefundPayload captures the payload for shares.refund commands.
type RefundPayload struct {
	CertificateIDs []uint64 `json:"certificate_ids"`
}

// RefundedPayload captures the payload for shares.refunded events.
type RefundedPayload struct {
	Round          int          `json:"round"`
	Holder         string       `json:"holder"`
	CertificateIDs []uint64     `json:"certificate_ids"`
	Amount         money.Amount `json:"amount"`
	FundsRaisedNet money.Amount `json:"funds_raised_net"`
	SharesSold     int64        `json:"shares_sold"`
}

// StartRoundPayload captures the payload for round.start commands.
type StartRoundPayload struct {
	Target          money.Amount `json:"target"`
	SharePrice      money.Amount `json:"share_price"`
	DurationSeconds int64        `json:"duration_seconds"`
}

// RoundStartedPayload captures the payload for round.started events.
type RoundStartedPayload struct {
	Round      int          `json:"round"`
	Target     money.Amount `json:"target"`
	SharePrice money.Amount `json:"share_price"`
	StartTime  time.Time    `json:"start_time"`
	EndTime    time.Time    `json:"end_time"`
}

// RoundFinalizedPayload captures the payload for round.finalized events.
type RoundFinalizedPayload struct {
	Round          int          `json:"round"`
	Successful     bool         `json:"successful"`
	Automatic      bool         `json:"automatic"`
	FundsRaisedNet money.Amount `json:"funds_raised_net"`
	SharesSold     int64        `json:"shares_sold"`
	FinalizedAt    time.Time    `json:"finalized_at"`
	// Escrow is set only when the round reached its target.
	Escrow *Escrow `json:"escrow,omitempty"`
}

// EscrowReleasedPayload captures the payload for escrow.released events.
type EscrowReleasedPayload struct {
	Round      int          `json:"round"`
	Recipient  string       `json:"recipient"`
	Amount     money.Amount `json:"amount"`
	ReleasedAt time.Time    `json:"released_at"`
}

// DistributePayload captures the payload for dividends.distribute commands.
type DistributePayload struct {
	Amount money.Amount `json:"amount"`
}

// DividendCredit is one holder's share of a distribution.
type DividendCredit struct {
	Holder string       `json:"holder"`
	Shares int64        `json:"shares"`
	Amount money.Amount `json:"amount"`
}

// DividendsDistributedPayload captures the payload for dividends.distributed
// events. Dust is the rounding remainder left in the campaign account.
type DividendsDistributedPayload struct {
	Amount      money.Amount     `json:"amount"`
	Outstanding int64            `json:"outstanding"`
	Credits     []DividendCredit `json:"credits"`
	Dust        money.Amount     `json:"dust"`
}

// DividendClaimedPayload captures the payload for dividend.claimed events.
type DividendClaimedPayload struct {
	Holder string       `json:"holder"`
	Amount money.Amount `json:"amount"`
}
