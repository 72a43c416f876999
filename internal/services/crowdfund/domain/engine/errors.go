package engine

import (
	"errors"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/campaign"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/command"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
)

// ErrJournalRequired indicates a handler built without an event journal.
var ErrJournalRequired = errors.New("event journal is required")

func commandError(err error) error {
	switch {
	case errors.Is(err, command.ErrActorIDRequired):
		return apperrors.Wrap(apperrors.CodeCallerRequired, "caller is required", err)
	default:
		return apperrors.Wrap(apperrors.CodeInvalidArgument, err.Error(), err)
	}
}

func commitError(err error) error {
	switch {
	case errors.Is(err, storage.ErrInsufficientFunds):
		return apperrors.Wrap(apperrors.CodeInsufficientFunds, campaign.Message(apperrors.CodeInsufficientFunds), err)
	case errors.Is(err, storage.ErrConcurrentUpdate):
		return apperrors.Wrap(apperrors.CodeConcurrentUpdate, "campaign changed concurrently", err)
	default:
		if _, ok := apperrors.As(err); ok {
			return err
		}
		return apperrors.Wrap(apperrors.CodeUnknown, "commit events", err)
	}
}
