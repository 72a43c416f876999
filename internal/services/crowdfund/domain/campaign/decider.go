package campaign

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/command"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

// Command types handled by Decide.
const (
	CommandTypeCreate         command.Type = "campaign.create"
	CommandTypeBuy            command.Type = "shares.buy"
	CommandTypeRefund         command.Type = "shares.refund"
	CommandTypeStartRound     command.Type = "round.start"
	CommandTypeFinalize       command.Type = "round.finalize"
	CommandTypeClaimEscrow    command.Type = "escrow.claim"
	CommandTypeDistribute     command.Type = "dividends.distribute"
	CommandTypeClaimDividends command.Type = "dividends.claim"
)

// Decide returns the decision for a campaign command against current state.
// It never mutates state.
func Decide(state State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	at := now().UTC()

	if cmd.Type == CommandTypeCreate {
		return decideCreate(state, cmd, at)
	}
	if !state.Created {
		return reject(apperrors.CodeCampaignNotFound)
	}

	switch cmd.Type {
	case CommandTypeBuy:
		return decideBuy(state, cmd, at)
	case CommandTypeRefund:
		return decideRefund(state, cmd, at)
	case CommandTypeStartRound:
		return decideStartRound(state, cmd, at)
	case CommandTypeFinalize:
		return decideFinalize(state, cmd, at)
	case CommandTypeClaimEscrow:
		return decideClaimEscrow(state, cmd, at)
	case CommandTypeDistribute:
		return decideDistribute(state, cmd, at)
	case CommandTypeClaimDividends:
		return decideClaimDividends(state, cmd, at)
	default:
		return command.Reject(command.Rejection{
			Code:    string(apperrors.CodeInvalidArgument),
			Message: "command type is not supported",
		})
	}
}

// unmarshalPayload unmarshals the command payload. An absent payload leaves dst
// at its zero value.
func unmarshalPayload(cmd command.Command, dst any) error {
	if len(cmd.PayloadJSON) == 0 {
		return nil
	}
	return json.Unmarshal(cmd.PayloadJSON, dst)
}

func rejectPayload(err error) command.Decision {
	return command.Reject(command.Rejection{
		Code:    string(apperrors.CodeInvalidArgument),
		Message: "invalid command payload: " + err.Error(),
	})
}

func decideCreate(state State, cmd command.Command, at time.Time) command.Decision {
	if state.Created {
		return reject(apperrors.CodeCampaignAlreadyExists)
	}
	var payload CreatePayload
	if err := unmarshalPayload(cmd, &payload); err != nil {
		return rejectPayload(err)
	}
	payload.Owner = cmd.ActorID
	payload.Name = strings.TrimSpace(payload.Name)
	payload.Category = strings.TrimSpace(payload.Category)
	payload.Treasury = strings.TrimSpace(payload.Treasury)
	payload.Scheduler = strings.TrimSpace(payload.Scheduler)

	if payload.Name == "" {
		return reject(apperrors.CodeCampaignNameEmpty)
	}
	if payload.Treasury == "" {
		return reject(apperrors.CodeAddressZero)
	}
	if !payload.Target.IsPositive() {
		return reject(apperrors.CodeTargetZero)
	}
	if !payload.SharePrice.IsPositive() {
		return reject(apperrors.CodeSharePriceZero)
	}
	if payload.DurationSeconds <= 0 {
		return reject(apperrors.CodeDurationInvalid)
	}
	if payload.Fee < 0 {
		return reject(apperrors.CodeFeeMismatch)
	}

	created := newEvent(cmd, event.TypeCampaignCreated, at, "campaign", cmd.CampaignID, payload)
	started := newEvent(cmd, event.TypeRoundStarted, at, "round", "1", RoundStartedPayload{
		Round:      1,
		Target:     payload.Target,
		SharePrice: payload.SharePrice,
		StartTime:  at,
		EndTime:    at.Add(time.Duration(payload.DurationSeconds) * time.Second),
	})
	decision := command.Accept(created, started)
	if payload.Fee.IsPositive() {
		decision = decision.WithTransfers(money.Transfer{
			From:   cmd.ActorID,
			To:     payload.Treasury,
			Amount: payload.Fee,
			Memo:   "creation fee",
		})
	}
	return decision
}

func decideBuy(state State, cmd command.Command, at time.Time) command.Decision {
	if cmd.ActorID == state.Owner {
		return reject(apperrors.CodeOwnerCannotInvest)
	}
	var payload BuyPayload
	if err := unmarshalPayload(cmd, &payload); err != nil {
		return rejectPayload(err)
	}
	if payload.Quantity < 1 {
		return reject(apperrors.CodeQuantityZero)
	}
	if payload.Quantity > MaxPurchaseQuantity {
		return reject(apperrors.CodeQuantityTooLarge)
	}
	round, ok := state.CurrentRound()
	if !ok {
		return reject(apperrors.CodeNoActiveRound)
	}
	if round.Finalized {
		return reject(apperrors.CodeRoundFinalized)
	}
	if round.Ended(at) {
		return reject(apperrors.CodeRoundEnded)
	}
	gross, err := round.SharePrice.MulInt(payload.Quantity)
	if err != nil || gross != payload.Payment {
		return reject(apperrors.CodePaymentMismatch)
	}

	priceNet := money.Net(round.SharePrice)
	net := priceNet * money.Amount(payload.Quantity)
	commission := gross - net

	certs := make([]PurchasedCertificate, 0, payload.Quantity)
	nextID := state.Ledger.NextID()
	for i := int64(0); i < payload.Quantity; i++ {
		certs = append(certs, PurchasedCertificate{
			ID:       nextID + uint64(i),
			Sequence: round.Minted + int(i) + 1,
		})
	}
	round.FundsRaisedNet += net
	round.SharesSold += payload.Quantity

	roundID := strconv.Itoa(round.Number)
	purchased := newEvent(cmd, event.TypeSharesPurchased, at, "round", roundID, PurchasedPayload{
		Round:            round.Number,
		Buyer:            cmd.ActorID,
		Quantity:         payload.Quantity,
		Gross:            gross,
		Net:              net,
		Commission:       commission,
		PurchasePriceNet: priceNet,
		Certificates:     certs,
		FundsRaisedNet:   round.FundsRaisedNet,
		SharesSold:       round.SharesSold,
	})
	events := []event.Event{purchased}
	if round.TargetReached() {
		events = append(events, finalizedEvent(cmd, round, at, true))
	}

	transfers := []money.Transfer{{
		From:   cmd.ActorID,
		To:     money.CampaignAccount(state.ID),
		Amount: net,
		Memo:   "share purchase",
	}}
	if commission.IsPositive() {
		transfers = append(transfers, money.Transfer{
			From:   cmd.ActorID,
			To:     state.Treasury,
			Amount: commission,
			Memo:   "commission",
		})
	}
	return command.Accept(events...).WithTransfers(transfers...)
}

func decideRefund(state State, cmd command.Command, at time.Time) command.Decision {
	var payload RefundPayload
	if err := unmarshalPayload(cmd, &payload); err != nil {
		return rejectPayload(err)
	}
	if len(payload.CertificateIDs) == 0 {
		return reject(apperrors.CodeCertificatesEmpty)
	}
	round, ok := state.CurrentRound()
	if !ok {
		return reject(apperrors.CodeNoActiveRound)
	}

	seen := make(map[uint64]struct{}, len(payload.CertificateIDs))
	var amount money.Amount
	for _, id := range payload.CertificateIDs {
		if _, dup := seen[id]; dup {
			return reject(apperrors.CodeCertificateDuplicate)
		}
		seen[id] = struct{}{}
		cert, ok := state.Ledger.Get(id)
		if !ok {
			return reject(apperrors.CodeCertificateNotFound)
		}
		if cert.Owner != cmd.ActorID {
			return reject(apperrors.CodeNotCertificateOwner)
		}
		if cert.Burned {
			return reject(apperrors.CodeCertificateBurned)
		}
		if cert.Round != round.Number {
			return reject(apperrors.CodeInvalidRound)
		}
		amount += cert.PurchasePriceNet
	}
	if !round.Active() {
		return reject(apperrors.CodeRoundNotActive)
	}
	if round.Ended(at) {
		return reject(apperrors.CodeRoundEnded)
	}

	ids := append([]uint64(nil), payload.CertificateIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	refunded := newEvent(cmd, event.TypeSharesRefunded, at, "round", strconv.Itoa(round.Number), RefundedPayload{
		Round:          round.Number,
		Holder:         cmd.ActorID,
		CertificateIDs: ids,
		Amount:         amount,
		FundsRaisedNet: round.FundsRaisedNet - amount,
		SharesSold:     round.SharesSold - int64(len(ids)),
	})
	return command.Accept(refunded).WithTransfers(money.Transfer{
		From:   money.CampaignAccount(state.ID),
		To:     cmd.ActorID,
		Amount: amount,
		Memo:   "refund",
	})
}

func decideStartRound(state State, cmd command.Command, at time.Time) command.Decision {
	if cmd.ActorID != state.Owner {
		return reject(apperrors.CodeNotOwner)
	}
	prev, ok := state.CurrentRound()
	if ok && !prev.Finalized {
		return reject(apperrors.CodeRoundNotFinalized)
	}
	var payload StartRoundPayload
	if err := unmarshalPayload(cmd, &payload); err != nil {
		return rejectPayload(err)
	}
	if !payload.Target.IsPositive() {
		return reject(apperrors.CodeTargetZero)
	}
	if !payload.SharePrice.IsPositive() {
		return reject(apperrors.CodeSharePriceZero)
	}
	if payload.DurationSeconds <= 0 {
		return reject(apperrors.CodeDurationInvalid)
	}
	if ok {
		if payload.SharePrice <= prev.SharePrice {
			return reject(apperrors.CodePriceNotIncreasing)
		}
		limit, err := prev.SharePrice.MulInt(MaxPriceMultiplier)
		if err == nil && payload.SharePrice > limit {
			return reject(apperrors.CodePriceIncreaseTooLarge)
		}
	}

	number := prev.Number + 1
	started := newEvent(cmd, event.TypeRoundStarted, at, "round", strconv.Itoa(number), RoundStartedPayload{
		Round:      number,
		Target:     payload.Target,
		SharePrice: payload.SharePrice,
		StartTime:  at,
		EndTime:    at.Add(time.Duration(payload.DurationSeconds) * time.Second),
	})
	return command.Accept(started)
}

func decideFinalize(state State, cmd command.Command, at time.Time) command.Decision {
	if cmd.ActorID != state.Owner && (state.Scheduler == "" || cmd.ActorID != state.Scheduler) {
		return reject(apperrors.CodeNotScheduler)
	}
	round, ok := state.CurrentRound()
	if !ok {
		return reject(apperrors.CodeNoActiveRound)
	}
	if round.Finalized {
		return reject(apperrors.CodeRoundFinalized)
	}
	if !round.Ended(at) {
		return reject(apperrors.CodeRoundNotEnded)
	}
	return command.Accept(finalizedEvent(cmd, round, at, false))
}

// finalizedEvent closes round at time at. Escrow is created only when gross
// proceeds reached the target.
func finalizedEvent(cmd command.Command, round Round, at time.Time, automatic bool) event.Event {
	payload := RoundFinalizedPayload{
		Round:          round.Number,
		Automatic:      automatic,
		FundsRaisedNet: round.FundsRaisedNet,
		SharesSold:     round.SharesSold,
		FinalizedAt:    at,
	}
	if round.TargetReached() && round.FundsRaisedNet.IsPositive() {
		payload.Successful = true
		payload.Escrow = &Escrow{
			Round:       round.Number,
			Amount:      round.FundsRaisedNet,
			ReleaseTime: at.Add(EscrowDelay),
		}
	}
	return newEvent(cmd, event.TypeRoundFinalized, at, "round", strconv.Itoa(round.Number), payload)
}

func decideClaimEscrow(state State, cmd command.Command, at time.Time) command.Decision {
	if cmd.ActorID != state.Owner {
		return reject(apperrors.CodeNotOwner)
	}
	if len(state.Escrows) == 0 {
		return reject(apperrors.CodeEscrowNotFound)
	}
	var (
		pending   int
		events    []event.Event
		transfers []money.Transfer
	)
	for _, escrow := range state.Escrows {
		if escrow.Released {
			continue
		}
		pending++
		if at.Before(escrow.ReleaseTime) {
			continue
		}
		events = append(events, newEvent(cmd, event.TypeEscrowReleased, at, "escrow", strconv.Itoa(escrow.Round), EscrowReleasedPayload{
			Round:      escrow.Round,
			Recipient:  state.Owner,
			Amount:     escrow.Amount,
			ReleasedAt: at,
		}))
		transfers = append(transfers, money.Transfer{
			From:   money.CampaignAccount(state.ID),
			To:     state.Owner,
			Amount: escrow.Amount,
			Memo:   "escrow release",
		})
	}
	if pending == 0 {
		return reject(apperrors.CodeEscrowAlreadyReleased)
	}
	if len(events) == 0 {
		return reject(apperrors.CodeReleaseTimeNotReached)
	}
	return command.Accept(events...).WithTransfers(transfers...)
}

func decideDistribute(state State, cmd command.Command, at time.Time) command.Decision {
	if cmd.ActorID != state.Owner {
		return reject(apperrors.CodeNotOwner)
	}
	var payload DistributePayload
	if err := unmarshalPayload(cmd, &payload); err != nil {
		return rejectPayload(err)
	}
	if !payload.Amount.IsPositive() {
		return reject(apperrors.CodeAmountZero)
	}
	outstanding := state.Ledger.Outstanding()
	if outstanding == 0 {
		return reject(apperrors.CodeNoOutstandingShares)
	}

	holdings := state.Ledger.Holdings()
	holders := make([]string, 0, len(holdings))
	for holder := range holdings {
		holders = append(holders, holder)
	}
	sort.Strings(holders)

	credits := make([]DividendCredit, 0, len(holders))
	var credited money.Amount
	for _, holder := range holders {
		shares := holdings[holder]
		amount := money.ProRata(payload.Amount, shares, outstanding)
		credited += amount
		credits = append(credits, DividendCredit{Holder: holder, Shares: shares, Amount: amount})
	}

	distributed := newEvent(cmd, event.TypeDividendsDistributed, at, "dividend", strconv.Itoa(state.Dividends.Distributions+1), DividendsDistributedPayload{
		Amount:      payload.Amount,
		Outstanding: outstanding,
		Credits:     credits,
		Dust:        payload.Amount - credited,
	})
	return command.Accept(distributed).WithTransfers(money.Transfer{
		From:   cmd.ActorID,
		To:     money.CampaignAccount(state.ID),
		Amount: payload.Amount,
		Memo:   "dividend deposit",
	})
}

func decideClaimDividends(state State, cmd command.Command, at time.Time) command.Decision {
	if state.Ledger.Count(cmd.ActorID) == 0 {
		return reject(apperrors.CodeNoSharesOwned)
	}
	amount := state.Unclaimed(cmd.ActorID)
	if !amount.IsPositive() {
		return reject(apperrors.CodeNoDividends)
	}
	claimed := newEvent(cmd, event.TypeDividendClaimed, at, "dividend", cmd.ActorID, DividendClaimedPayload{
		Holder: cmd.ActorID,
		Amount: amount,
	})
	return command.Accept(claimed).WithTransfers(money.Transfer{
		From:   money.CampaignAccount(state.ID),
		To:     cmd.ActorID,
		Amount: amount,
		Memo:   "dividend claim",
	})
}

func newEvent(cmd command.Command, typ event.Type, at time.Time, entityType, entityID string, payload any) event.Event {
	payloadJSON, _ := json.Marshal(payload)
	return event.Event{
		CampaignID:  cmd.CampaignID,
		Type:        typ,
		Timestamp:   at,
		ActorID:     cmd.ActorID,
		RequestID:   cmd.RequestID,
		EntityType:  entityType,
		EntityID:    entityID,
		PayloadJSON: payloadJSON,
	}
}
