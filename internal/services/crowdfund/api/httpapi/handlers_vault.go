package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

type depositRequest struct {
	Account string       `json:"account"`
	Amount  money.Amount `json:"amount"`
}

type balanceResponse struct {
	Account string       `json:"account"`
	Balance money.Amount `json:"balance"`
}

// deposit mints funds into an account. Only the registry admin may deposit.
func (h *handler) deposit(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	if caller == "" {
		writeError(w, apperrors.New(apperrors.CodeCallerRequired, "caller is required"))
		return
	}
	if caller != h.registry.Settings().Admin {
		writeError(w, apperrors.New(apperrors.CodeNotAdmin, "only the admin may deposit"))
		return
	}
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	balance, err := h.vault.Deposit(r.Context(), req.Account, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	h.log.Info("vault deposit", "account", req.Account, "amount", req.Amount.String(), "actor_id", caller)
	writeJSON(w, http.StatusCreated, balanceResponse{Account: req.Account, Balance: balance})
}

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	balance, err := h.vault.Balance(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: account, Balance: balance})
}
