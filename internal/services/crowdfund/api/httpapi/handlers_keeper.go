package httpapi

import (
	"net/http"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/keeper"
)

const defaultAttemptLimit = 50

func (h *handler) keeperStatus(w http.ResponseWriter, r *http.Request) {
	if h.keeper == nil {
		writeError(w, apperrors.New(apperrors.CodeNotFound, "keeper is disabled"))
		return
	}
	registered := h.keeper.Registered()
	if registered == nil {
		registered = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"registered": registered})
}

// sweep runs one check-and-finalize pass synchronously.
func (h *handler) sweep(w http.ResponseWriter, r *http.Request) {
	if h.keeper == nil {
		writeError(w, apperrors.New(apperrors.CodeNotFound, "keeper is disabled"))
		return
	}
	report, err := h.keeper.Sweep(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if report.Finalized == nil {
		report.Finalized = []string{}
	}
	if report.Failed == nil {
		report.Failed = []keeper.Failure{}
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	if h.attempts == nil {
		writeError(w, apperrors.New(apperrors.CodeNotFound, "attempt log is disabled"))
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	if limit <= 0 {
		limit = defaultAttemptLimit
	}
	records, err := h.attempts.ListAttempts(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]attemptView, 0, len(records))
	for _, record := range records {
		out = append(out, attemptView{
			CampaignID: record.CampaignID,
			Round:      record.Round,
			Outcome:    record.Outcome,
			LastError:  record.LastError,
			CreatedAt:  record.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string][]attemptView{"attempts": out})
}
