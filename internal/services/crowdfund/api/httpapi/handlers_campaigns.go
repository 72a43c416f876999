package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/campaign"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/ledger"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/service"
)

func campaignID(r *http.Request) string {
	return chi.URLParam(r, "campaignID")
}

func (h *handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.Campaign(r.Context(), campaignID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCampaignView(state))
}

func (h *handler) isDue(w http.ResponseWriter, r *http.Request) {
	due, err := h.svc.IsDue(r.Context(), campaignID(r), time.Time{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"due": due})
}

type buySharesRequest struct {
	Quantity int64        `json:"quantity"`
	Payment  money.Amount `json:"payment"`
}

type purchaseResponse struct {
	Round          int          `json:"round"`
	CertificateIDs []uint64     `json:"certificate_ids"`
	Gross          money.Amount `json:"gross"`
	Net            money.Amount `json:"net"`
	Commission     money.Amount `json:"commission"`
	RoundFinalized bool         `json:"round_finalized"`
}

func (h *handler) buyShares(w http.ResponseWriter, r *http.Request) {
	var req buySharesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	purchase, err := h.svc.BuyShares(r.Context(), campaignID(r), callerOf(r), req.Quantity, req.Payment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchaseResponse{
		Round:          purchase.Round,
		CertificateIDs: purchase.CertificateIDs,
		Gross:          purchase.Gross,
		Net:            purchase.Net,
		Commission:     purchase.Commission,
		RoundFinalized: purchase.RoundFinalized,
	})
}

type refundRequest struct {
	CertificateIDs []uint64 `json:"certificate_ids"`
}

func (h *handler) refundShares(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := h.svc.RefundShares(r.Context(), campaignID(r), callerOf(r), req.CertificateIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]money.Amount{"refunded": amount})
}

type startRoundRequest struct {
	Target          money.Amount `json:"target"`
	SharePrice      money.Amount `json:"share_price"`
	DurationSeconds int64        `json:"duration_seconds"`
}

func (h *handler) startRound(w http.ResponseWriter, r *http.Request) {
	var req startRoundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	round, err := h.svc.StartNewRound(r.Context(), campaignID(r), callerOf(r), req.Target, req.SharePrice, duration)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

func (h *handler) finalizeRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.svc.FinalizeRound(r.Context(), campaignID(r), callerOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *handler) claimEscrow(w http.ResponseWriter, r *http.Request) {
	amount, err := h.svc.ClaimEscrow(r.Context(), campaignID(r), callerOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]money.Amount{"released": amount})
}

type distributeRequest struct {
	Amount money.Amount `json:"amount"`
}

func (h *handler) distributeDividends(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	payload, err := h.svc.DistributeDividends(r.Context(), campaignID(r), callerOf(r), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if payload.Credits == nil {
		payload.Credits = []campaign.DividendCredit{}
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (h *handler) claimDividends(w http.ResponseWriter, r *http.Request) {
	amount, err := h.svc.ClaimDividends(r.Context(), campaignID(r), callerOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]money.Amount{"claimed": amount})
}

func (h *handler) unclaimed(w http.ResponseWriter, r *http.Request) {
	amount, err := h.svc.Unclaimed(r.Context(), campaignID(r), chi.URLParam(r, "holder"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]money.Amount{"unclaimed": amount})
}

type certificatesResponse struct {
	Certificates []ledger.Certificate `json:"certificates"`
}

// listCertificates returns the outstanding certificates of ?owner=.
func (h *handler) listCertificates(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "owner is required"))
		return
	}
	certs, err := h.svc.Certificates(r.Context(), campaignID(r), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certificatesResponse{Certificates: certificateList(certs)})
}

func certificateID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "certificateID"), 10, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInvalidArgument, "certificate id must be an unsigned integer", err)
	}
	return id, nil
}

func (h *handler) getCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := certificateID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cert, err := h.svc.Certificate(r.Context(), campaignID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cert)
}

func (h *handler) tokenURI(w http.ResponseWriter, r *http.Request) {
	id, err := certificateID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	uri, err := h.svc.TokenURI(r.Context(), campaignID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token_uri": uri})
}

type eventsResponse struct {
	Events        []eventView `json:"events"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	pageSize, err := intParam(r, "page_size")
	if err != nil {
		writeError(w, err)
		return
	}
	query := r.URL.Query()
	page, err := h.svc.Events(r.Context(), service.EventsQuery{
		CampaignID: campaignID(r),
		PageSize:   pageSize,
		PageToken:  query.Get("page_token"),
		OrderBy:    query.Get("order_by"),
		Filter:     query.Get("filter"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := eventsResponse{
		Events:        make([]eventView, 0, len(page.Events)),
		NextPageToken: page.NextPageToken,
	}
	for _, evt := range page.Events {
		resp.Events = append(resp.Events, newEventView(evt))
	}
	writeJSON(w, http.StatusOK, resp)
}
