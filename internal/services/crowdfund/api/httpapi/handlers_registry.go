package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/feeoracle"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/registry"
)

type registryResponse struct {
	registry.Settings
	Campaigns int `json:"campaigns"`
}

func (h *handler) getRegistry(w http.ResponseWriter, r *http.Request) {
	count, err := h.registry.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registryResponse{Settings: h.registry.Settings(), Campaigns: count})
}

func (h *handler) pause(w http.ResponseWriter, r *http.Request) {
	h.updateRegistry(w, h.registry.Pause(callerOf(r)))
}

func (h *handler) unpause(w http.ResponseWriter, r *http.Request) {
	h.updateRegistry(w, h.registry.Unpause(callerOf(r)))
}

type accountRequest struct {
	Account string `json:"account"`
}

func (h *handler) setTreasury(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.updateRegistry(w, h.registry.SetTreasury(callerOf(r), req.Account))
}

func (h *handler) setScheduler(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.updateRegistry(w, h.registry.SetScheduler(callerOf(r), req.Account))
}

type creationFeeRequest struct {
	Fee money.Amount `json:"fee"`
}

// setCreationFee replaces the fee oracle with a static fee.
func (h *handler) setCreationFee(w http.ResponseWriter, r *http.Request) {
	var req creationFeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Fee < 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "fee must not be negative"))
		return
	}
	h.updateRegistry(w, h.registry.SetFeeOracle(callerOf(r), feeoracle.Static(req.Fee)))
}

func (h *handler) updateRegistry(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.registry.Settings())
}

type createCampaignRequest struct {
	Name            string            `json:"name"`
	Category        string            `json:"category"`
	Target          money.Amount      `json:"target"`
	SharePrice      money.Amount      `json:"share_price"`
	DurationSeconds int64             `json:"duration_seconds"`
	Fee             money.Amount      `json:"fee"`
	Customization   map[string]string `json:"customization"`
}

func (h *handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	state, err := h.registry.Create(r.Context(), callerOf(r), registry.CreateInput{
		Name:          req.Name,
		Category:      req.Category,
		Target:        req.Target,
		SharePrice:    req.SharePrice,
		Duration:      time.Duration(req.DurationSeconds) * time.Second,
		Fee:           req.Fee,
		Customization: req.Customization,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCampaignView(state))
}

type listCampaignsResponse struct {
	Campaigns     []campaignRecordView `json:"campaigns"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

func (h *handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	pageSize, err := intParam(r, "page_size")
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := h.registry.List(r.Context(), pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := listCampaignsResponse{
		Campaigns:     make([]campaignRecordView, 0, len(page.Campaigns)),
		NextPageToken: page.NextPageToken,
	}
	for _, record := range page.Campaigns {
		resp.Campaigns = append(resp.Campaigns, newCampaignRecordView(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInvalidArgument, name+" must be an integer", err)
	}
	return value, nil
}
