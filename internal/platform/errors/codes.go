// Package errors provides structured error handling with a fixed taxonomy.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

// Kind groups codes into the failure taxonomy callers branch on.
type Kind string

const (
	// KindValidation marks malformed input.
	KindValidation Kind = "validation"
	// KindAuthorization marks a caller that may not perform the operation.
	KindAuthorization Kind = "authorization"
	// KindState marks an operation that is invalid for the current lifecycle state.
	KindState Kind = "state"
	// KindConsistency marks a reference to a missing or mismatched record.
	KindConsistency Kind = "consistency"
	// KindInternal marks an unexpected failure.
	KindInternal Kind = "internal"
)

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation
	CodeCampaignNameEmpty     Code = "CAMPAIGN_NAME_EMPTY"
	CodeAmountZero            Code = "AMOUNT_ZERO"
	CodeTargetZero            Code = "TARGET_ZERO"
	CodeSharePriceZero        Code = "SHARE_PRICE_ZERO"
	CodeDurationInvalid       Code = "DURATION_INVALID"
	CodeQuantityZero          Code = "QUANTITY_ZERO"
	CodeQuantityTooLarge      Code = "QUANTITY_TOO_LARGE"
	CodePaymentMismatch       Code = "PAYMENT_MISMATCH"
	CodePriceNotIncreasing    Code = "PRICE_NOT_INCREASING"
	CodePriceIncreaseTooLarge Code = "PRICE_INCREASE_TOO_LARGE"
	CodeCertificatesEmpty     Code = "CERTIFICATES_EMPTY"
	CodeCertificateDuplicate  Code = "CERTIFICATE_DUPLICATE"
	CodeFeeMismatch           Code = "FEE_MISMATCH"
	CodeAddressZero           Code = "ADDRESS_ZERO"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"

	// Authorization
	CodeNotOwner            Code = "NOT_OWNER"
	CodeOwnerCannotInvest   Code = "OWNER_CANNOT_INVEST"
	CodeNotCertificateOwner Code = "NOT_CERTIFICATE_OWNER"
	CodeNotScheduler        Code = "NOT_SCHEDULER"
	CodeNotAdmin            Code = "NOT_ADMIN"
	CodeCallerRequired      Code = "CALLER_REQUIRED"

	// State
	CodeCampaignAlreadyExists Code = "CAMPAIGN_ALREADY_EXISTS"
	CodeNoActiveRound         Code = "NO_ACTIVE_ROUND"
	CodeRoundFinalized        Code = "ROUND_FINALIZED"
	CodeRoundEnded            Code = "ROUND_ENDED"
	CodeRoundNotActive        Code = "ROUND_NOT_ACTIVE"
	CodeRoundNotEnded         Code = "ROUND_NOT_ENDED"
	CodeRoundNotFinalized     Code = "ROUND_NOT_FINALIZED"
	CodeEscrowNotFound        Code = "ESCROW_NOT_FOUND"
	CodeEscrowAlreadyReleased Code = "ESCROW_ALREADY_RELEASED"
	CodeReleaseTimeNotReached Code = "RELEASE_TIME_NOT_REACHED"
	CodeNoSharesOwned         Code = "NO_SHARES_OWNED"
	CodeNoDividends           Code = "NO_DIVIDENDS"
	CodeNoOutstandingShares   Code = "NO_OUTSTANDING_SHARES"
	CodeCertificateBurned     Code = "CERTIFICATE_BURNED"
	CodeInsufficientFunds     Code = "INSUFFICIENT_FUNDS"
	CodeRegistryPaused        Code = "REGISTRY_PAUSED"
	CodeConcurrentUpdate      Code = "CONCURRENT_UPDATE"

	// Consistency
	CodeCampaignNotFound    Code = "CAMPAIGN_NOT_FOUND"
	CodeCertificateNotFound Code = "CERTIFICATE_NOT_FOUND"
	CodeInvalidRound        Code = "INVALID_ROUND"
	CodeNotFound            Code = "NOT_FOUND"
)

// Kind maps a code to its taxonomy bucket.
func (c Code) Kind() Kind {
	switch c {
	case CodeCampaignNameEmpty,
		CodeAmountZero,
		CodeTargetZero,
		CodeSharePriceZero,
		CodeDurationInvalid,
		CodeQuantityZero,
		CodeQuantityTooLarge,
		CodePaymentMismatch,
		CodePriceNotIncreasing,
		CodePriceIncreaseTooLarge,
		CodeCertificatesEmpty,
		CodeCertificateDuplicate,
		CodeFeeMismatch,
		CodeAddressZero,
		CodeInvalidArgument:
		return KindValidation

	case CodeNotOwner,
		CodeOwnerCannotInvest,
		CodeNotCertificateOwner,
		CodeNotScheduler,
		CodeNotAdmin,
		CodeCallerRequired:
		return KindAuthorization

	case CodeCampaignAlreadyExists,
		CodeNoActiveRound,
		CodeRoundFinalized,
		CodeRoundEnded,
		CodeRoundNotActive,
		CodeRoundNotEnded,
		CodeRoundNotFinalized,
		CodeEscrowNotFound,
		CodeEscrowAlreadyReleased,
		CodeReleaseTimeNotReached,
		CodeNoSharesOwned,
		CodeNoDividends,
		CodeNoOutstandingShares,
		CodeCertificateBurned,
		CodeInsufficientFunds,
		CodeRegistryPaused,
		CodeConcurrentUpdate:
		return KindState

	case CodeCampaignNotFound,
		CodeCertificateNotFound,
		CodeInvalidRound,
		CodeNotFound:
		return KindConsistency

	default:
		return KindInternal
	}
}

// HTTPStatus maps a code to the HTTP status used by the JSON API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeCampaignNotFound, CodeCertificateNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeCallerRequired:
		return http.StatusUnauthorized
	case CodeConcurrentUpdate:
		return http.StatusConflict
	}
	switch c.Kind() {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindState, KindConsistency:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
