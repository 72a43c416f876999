package service

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/campaign"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

// Purchase summarizes an accepted share purchase.
type Purchase struct {
	Round          int          `json:"round"`
	CertificateIDs []uint64     `json:"certificate_ids"`
	Gross          money.Amount `json:"gross"`
	Net            money.Amount `json:"net"`
	Commission     money.Amount `json:"commission"`
	// RoundFinalized is set when the purchase reached the round target.
	RoundFinalized bool `json:"round_finalized"`
}

// BuyShares buys quantity shares of the current round for exactly payment.
func (s *Service) BuyShares(ctx context.Context, campaignID, caller string, quantity int64, payment money.Amount) (Purchase, error) {
	result, err := s.Execute(ctx, campaignID, caller, campaign.CommandTypeBuy, campaign.BuyPayload{
		Quantity: quantity,
		Payment:  payment,
	})
	if err != nil {
		return Purchase{}, err
	}
	purchased, _, err := payloadOf[campaign.PurchasedPayload](result, event.TypeSharesPurchased)
	if err != nil {
		return Purchase{}, err
	}
	ids := make([]uint64, 0, len(purchased.Certificates))
	for _, cert := range purchased.Certificates {
		ids = append(ids, cert.ID)
	}
	_, finalized, err := payloadOf[campaign.RoundFinalizedPayload](result, event.TypeRoundFinalized)
	if err != nil {
		return Purchase{}, err
	}
	return Purchase{
		Round:          purchased.Round,
		CertificateIDs: ids,
		Gross:          purchased.Gross,
		Net:            purchased.Net,
		Commission:     purchased.Commission,
		RoundFinalized: finalized,
	}, nil
}

// RefundShares burns the caller's certificates of the active round and
// returns the refunded net amount.
func (s *Service) RefundShares(ctx context.Context, campaignID, caller string, certificateIDs []uint64) (money.Amount, error) {
	result, err := s.Execute(ctx, campaignID, caller, campaign.CommandTypeRefund, campaign.RefundPayload{
		CertificateIDs: certificateIDs,
	})
	if err != nil {
		return 0, err
	}
	refunded, _, err := payloadOf[campaign.RefundedPayload](result, event.TypeSharesRefunded)
	if err != nil {
		return 0, err
	}
	return refunded.Amount, nil
}

// StartNewRound opens the next funding round.
func (s *Service) StartNewRound(ctx context.Context, campaignID, caller string, target, sharePrice money.Amount, duration time.Duration) (campaign.Round, error) {
	result, err := s.Execute(ctx, campaignID, caller, campaign.CommandTypeStartRound, campaign.StartRoundPayload{
		Target:          target,
		SharePrice:      sharePrice,
		DurationSeconds: int64(duration / time.Second),
	})
	if err != nil {
		return campaign.Round{}, err
	}
	round, _ := result.State.CurrentRound()
	return round, nil
}

// FinalizeRound closes an expired round. Only the owner or the campaign's
// scheduler may call it.
func (s *Service) FinalizeRound(ctx context.Context, campaignID, caller string) (campaign.Round, error) {
	result, err := s.Execute(ctx, campaignID, caller, campaign.CommandTypeFinalize, struct{}{})
	if err != nil {
		return campaign.Round{}, err
	}
	round, _ := result.State.CurrentRound()
	return round, nil
}

// ClaimEscrow releases every escrow whose release time has passed and
// returns the total paid to the owner.
func (s *Service) ClaimEscrow(ctx context.Context, campaignID, caller string) (money.Amount, error) {
	result, err := s.Execute(ctx, campaignID, caller, campaign.CommandTypeClaimEscrow, struct{}{})
	if err != nil {
		return 0, err
	}
	released, err := payloadsOf[campaign.EscrowReleasedPayload](result, event.TypeEscrowReleased)
	if err != nil {
		return 0, err
	}
	var total money.Amount
	for _, r := range released {
		total += r.Amount
	}
	return total, nil
}

// DistributeDividends credits amount pro rata to outstanding certificate
// holders.
func (s *Service) DistributeDividends(ctx context.Context, campaignID, caller string, amount money.Amount) (campaign.DividendsDistributedPayload, error) {
	result, err := s.Execute(ctx, campaignID, caller, campaign.CommandTypeDistribute, campaign.DistributePayload{Amount: amount})
	if err != nil {
		return campaign.DividendsDistributedPayload{}, err
	}
	distributed, ok, err := payloadOf[campaign.DividendsDistributedPayload](result, event.TypeDividendsDistributed)
	if err != nil {
		return campaign.DividendsDistributedPayload{}, err
	}
	if !ok {
		return campaign.DividendsDistributedPayload{}, apperrors.New(apperrors.CodeUnknown, "distribution event missing")
	}
	return distributed, nil
}

// ClaimDividends pays out the caller's unclaimed dividends.
func (s *Service) ClaimDividends(ctx context.Context, campaignID, caller string) (money.Amount, error) {
	result, err := s.Execute(ctx, campaignID, caller, campaign.CommandTypeClaimDividends, struct{}{})
	if err != nil {
		return 0, err
	}
	claimed, _, err := payloadOf[campaign.DividendClaimedPayload](result, event.TypeDividendClaimed)
	if err != nil {
		return 0, err
	}
	return claimed.Amount, nil
}
