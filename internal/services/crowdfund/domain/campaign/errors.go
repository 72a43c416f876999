package campaign

import (
	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/command"
)

// rejectionMessages holds the user-visible reason for each rejection code.
var rejectionMessages = map[apperrors.Code]string{
	apperrors.CodeCampaignAlreadyExists: "campaign already exists",
	apperrors.CodeCampaignNotFound:      "campaign does not exist",
	apperrors.CodeCampaignNameEmpty:     "campaign name is required",
	apperrors.CodeAmountZero:            "amount must be greater than zero",
	apperrors.CodeTargetZero:            "target amount must be greater than zero",
	apperrors.CodeSharePriceZero:        "share price must be greater than zero",
	apperrors.CodeDurationInvalid:       "round duration must be positive",
	apperrors.CodeQuantityZero:          "quantity must be at least one",
	apperrors.CodeQuantityTooLarge:      "quantity exceeds the per-purchase limit",
	apperrors.CodePaymentMismatch:       "payment must equal quantity times share price",
	apperrors.CodePriceNotIncreasing:    "share price must exceed previous round price",
	apperrors.CodePriceIncreaseTooLarge: "share price increase exceeds 200%",
	apperrors.CodeCertificatesEmpty:     "certificate ids are required",
	apperrors.CodeCertificateDuplicate:  "certificate listed more than once",
	apperrors.CodeAddressZero:           "address must not be empty",
	apperrors.CodeNotOwner:              "caller is not campaign owner",
	apperrors.CodeOwnerCannotInvest:     "campaign owner cannot buy own shares",
	apperrors.CodeNotCertificateOwner:   "caller does not own certificate",
	apperrors.CodeNotScheduler:          "caller is not campaign owner or scheduler",
	apperrors.CodeNoActiveRound:         "no active round",
	apperrors.CodeRoundFinalized:        "round already finalized",
	apperrors.CodeRoundEnded:            "round ended",
	apperrors.CodeRoundNotActive:        "round not active",
	apperrors.CodeRoundNotEnded:         "round end time not reached",
	apperrors.CodeRoundNotFinalized:     "current round is not finalized",
	apperrors.CodeEscrowNotFound:        "no escrow to release",
	apperrors.CodeEscrowAlreadyReleased: "escrow already released",
	apperrors.CodeReleaseTimeNotReached: "release time not reached",
	apperrors.CodeNoSharesOwned:         "no shares owned",
	apperrors.CodeNoDividends:           "no dividends to claim",
	apperrors.CodeNoOutstandingShares:   "no outstanding shares",
	apperrors.CodeCertificateNotFound:   "certificate does not exist",
	apperrors.CodeCertificateBurned:     "certificate already refunded",
	apperrors.CodeInvalidRound:          "invalid round",
	apperrors.CodeInsufficientFunds:     "insufficient funds",
	apperrors.CodeRegistryPaused:        "campaign creation is paused",
	apperrors.CodeFeeMismatch:           "creation fee does not match oracle fee",
	apperrors.CodeNotAdmin:              "caller is not registry admin",
}

// Message returns the rejection message for code.
func Message(code apperrors.Code) string {
	if msg, ok := rejectionMessages[code]; ok {
		return msg
	}
	return string(code)
}

func reject(code apperrors.Code) command.Decision {
	return command.Reject(command.Rejection{Code: string(code), Message: Message(code)})
}

// RejectionError converts a rejection into a structured application error.
func RejectionError(r command.Rejection) *apperrors.Error {
	return apperrors.New(apperrors.Code(r.Code), r.Message)
}

var (
	// ErrNotFound indicates a command against a campaign that was never created.
	ErrNotFound = apperrors.New(apperrors.CodeCampaignNotFound, Message(apperrors.CodeCampaignNotFound))
	// ErrCertificateNotFound indicates an unknown certificate id.
	ErrCertificateNotFound = apperrors.New(apperrors.CodeCertificateNotFound, Message(apperrors.CodeCertificateNotFound))
)
