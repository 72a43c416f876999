package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/bus"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/engine"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/feeoracle"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/keeper"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/registry"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/service"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock  *clock
	keeper *keeper.Keeper
	server http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New(nil)
	events := bus.New(bus.DefaultBuffer)
	h, err := engine.NewHandler(engine.Options{Journal: store, Publisher: events, Now: c.Now})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	svc, err := service.New(h, store, service.WithClock(c.Now))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	k, err := keeper.New(svc, store, nil, nil, keeper.Config{Principal: "keeper", Now: c.Now})
	if err != nil {
		t.Fatalf("keeper: %v", err)
	}
	next := 0
	reg, err := registry.New(registry.Config{
		Admin:     "admin",
		Treasury:  "treasury",
		Scheduler: "keeper",
		Oracle:    feeoracle.Static(money.MustParse("0.5")),
		NewID: func() (string, error) {
			next++
			return fmt.Sprintf("c%d", next), nil
		},
	}, h, store, k, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	router, err := NewRouter(Deps{
		Service:  svc,
		Registry: reg,
		Vault:    store,
		Attempts: store,
		Keeper:   k,
		Stream:   events,
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return &fixture{clock: c, keeper: k, server: router}
}

func (f *fixture) do(t *testing.T, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != "" {
		req.Header.Set(HeaderActorID, actor)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decode[errorBody](t, rec)
	if body.Code != code {
		t.Fatalf("code = %q, want %q", body.Code, code)
	}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	for _, deposit := range []depositRequest{
		{Account: "owner", Amount: money.MustParse("5")},
		{Account: "alice", Amount: money.MustParse("20")},
	} {
		rec := f.do(t, http.MethodPost, "/v1/vault/deposits", "admin", deposit)
		if rec.Code != http.StatusCreated {
			t.Fatalf("deposit status = %d (%s)", rec.Code, rec.Body.String())
		}
	}
	rec := f.do(t, http.MethodPost, "/v1/campaigns/", "owner", map[string]any{
		"name":             "Solar Co-op",
		"category":         "energy",
		"target":           "10",
		"share_price":      "0.1",
		"duration_seconds": 3600,
		"fee":              "0.5",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestHealthzAndRequestID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Fatal("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	out := httptest.NewRecorder()
	f.server.ServeHTTP(out, req)
	if got := out.Header().Get(HeaderRequestID); got != "req-1" {
		t.Fatalf("request id = %q, want req-1", got)
	}
}

func TestDepositRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	body := depositRequest{Account: "alice", Amount: money.MustParse("1")}

	wantError(t, f.do(t, http.MethodPost, "/v1/vault/deposits", "", body), http.StatusUnauthorized, "CALLER_REQUIRED")
	wantError(t, f.do(t, http.MethodPost, "/v1/vault/deposits", "alice", body), http.StatusForbidden, "NOT_ADMIN")
	wantError(t, f.do(t, http.MethodPost, "/v1/vault/deposits", "admin", depositRequest{Account: "alice"}), http.StatusBadRequest, "AMOUNT_ZERO")

	rec := f.do(t, http.MethodPost, "/v1/vault/deposits", "admin", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/v1/vault/accounts/alice", "", nil)
	got := decode[balanceResponse](t, rec)
	if got.Balance != money.MustParse("1") {
		t.Fatalf("balance = %s, want 1", got.Balance)
	}
}

func TestCampaignFlow(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/v1/campaigns/c1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d (%s)", rec.Code, rec.Body.String())
	}
	view := decode[campaignView](t, rec)
	if view.Owner != "owner" || len(view.Rounds) != 1 || view.Treasury != "treasury" {
		t.Fatalf("campaign = %+v", view)
	}

	wantError(t, f.do(t, http.MethodPost, "/v1/campaigns/c1/purchases", "", buySharesRequest{Quantity: 1, Payment: money.MustParse("0.1")}),
		http.StatusUnauthorized, "CALLER_REQUIRED")
	wantError(t, f.do(t, http.MethodPost, "/v1/campaigns/c1/purchases", "alice", `{"quantity":1,"payment":"0.1","tip":1}`),
		http.StatusBadRequest, "INVALID_ARGUMENT")
	wantError(t, f.do(t, http.MethodPost, "/v1/campaigns/c1/purchases", "owner", buySharesRequest{Quantity: 1, Payment: money.MustParse("0.1")}),
		http.StatusForbidden, "OWNER_CANNOT_INVEST")

	rec = f.do(t, http.MethodPost, "/v1/campaigns/c1/purchases", "alice", buySharesRequest{Quantity: 40, Payment: money.MustParse("4")})
	if rec.Code != http.StatusCreated {
		t.Fatalf("buy status = %d (%s)", rec.Code, rec.Body.String())
	}
	purchase := decode[purchaseResponse](t, rec)
	if len(purchase.CertificateIDs) != 40 {
		t.Fatalf("certificates = %d, want 40", len(purchase.CertificateIDs))
	}
	if purchase.Net != money.MustParse("3.52") || purchase.Commission != money.MustParse("0.48") {
		t.Fatalf("net/commission = %s/%s, want 3.52/0.48", purchase.Net, purchase.Commission)
	}

	rec = f.do(t, http.MethodGet, "/v1/campaigns/c1/certificates?owner=alice", "", nil)
	if got := decode[certificatesResponse](t, rec); len(got.Certificates) != 40 {
		t.Fatalf("owned = %d, want 40", len(got.Certificates))
	}

	first := purchase.CertificateIDs[0]
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/campaigns/c1/certificates/%d/token-uri", first), "", nil)
	uri := decode[map[string]string](t, rec)["token_uri"]
	if !strings.HasPrefix(uri, "data:application/json;base64,") {
		t.Fatalf("token uri = %q", uri)
	}

	rec = f.do(t, http.MethodPost, "/v1/campaigns/c1/refunds", "alice", refundRequest{CertificateIDs: []uint64{first}})
	if rec.Code != http.StatusOK {
		t.Fatalf("refund status = %d (%s)", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]money.Amount](t, rec)["refunded"]; got != money.MustParse("0.088") {
		t.Fatalf("refunded = %s, want 0.088", got)
	}
	wantError(t, f.do(t, http.MethodGet, fmt.Sprintf("/v1/campaigns/c1/certificates/%d/token-uri", first), "", nil),
		http.StatusNotFound, "CERTIFICATE_NOT_FOUND")
	wantError(t, f.do(t, http.MethodGet, "/v1/campaigns/c1/certificates/abc", "", nil),
		http.StatusBadRequest, "INVALID_ARGUMENT")

	filter := url.QueryEscape(`event_type = "shares.purchased"`)
	rec = f.do(t, http.MethodGet, "/v1/campaigns/c1/events?filter="+filter, "", nil)
	events := decode[eventsResponse](t, rec)
	if len(events.Events) != 1 || events.Events[0].ActorID != "alice" {
		t.Fatalf("events = %+v", events.Events)
	}
}

func TestUnknownCampaign(t *testing.T) {
	f := newFixture(t)
	wantError(t, f.do(t, http.MethodGet, "/v1/campaigns/missing", "", nil), http.StatusNotFound, "CAMPAIGN_NOT_FOUND")
	wantError(t, f.do(t, http.MethodGet, "/v1/campaigns/missing/due", "", nil), http.StatusNotFound, "CAMPAIGN_NOT_FOUND")
}

func TestRegistryAdmin(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	wantError(t, f.do(t, http.MethodPost, "/v1/registry/pause", "alice", nil), http.StatusForbidden, "NOT_ADMIN")
	rec := f.do(t, http.MethodPost, "/v1/registry/pause", "admin", nil)
	if got := decode[registry.Settings](t, rec); !got.Paused {
		t.Fatalf("settings = %+v, want paused", got)
	}
	wantError(t, f.do(t, http.MethodPost, "/v1/campaigns/", "owner", createCampaignRequest{
		Name: "Paused", Target: money.MustParse("1"), SharePrice: money.MustParse("0.1"), DurationSeconds: 60, Fee: money.MustParse("0.5"),
	}), http.StatusUnprocessableEntity, "REGISTRY_PAUSED")
	f.do(t, http.MethodPost, "/v1/registry/unpause", "admin", nil)

	rec = f.do(t, http.MethodPut, "/v1/registry/creation-fee", "admin", creationFeeRequest{Fee: money.MustParse("1")})
	if rec.Code != http.StatusOK {
		t.Fatalf("fee status = %d (%s)", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/v1/campaigns/", "owner", createCampaignRequest{
		Name: "Second", Target: money.MustParse("1"), SharePrice: money.MustParse("0.1"), DurationSeconds: 60, Fee: money.MustParse("0.5"),
	})
	wantError(t, rec, http.StatusBadRequest, "FEE_MISMATCH")
	if got := decode[errorBody](t, rec).Metadata["expected_fee"]; got != "1" {
		t.Fatalf("expected_fee = %q, want 1", got)
	}

	rec = f.do(t, http.MethodGet, "/v1/registry/", "", nil)
	if got := decode[registryResponse](t, rec); got.Campaigns != 1 || got.Admin != "admin" {
		t.Fatalf("registry = %+v", got)
	}
	rec = f.do(t, http.MethodGet, "/v1/campaigns/?page_size=10", "", nil)
	if got := decode[listCampaignsResponse](t, rec); len(got.Campaigns) != 1 || got.Campaigns[0].ID != "c1" {
		t.Fatalf("list = %+v", got)
	}
	wantError(t, f.do(t, http.MethodGet, "/v1/campaigns/?page_size=x", "", nil), http.StatusBadRequest, "INVALID_ARGUMENT")
}

func TestKeeperSweep(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/v1/keeper/", "", nil)
	if got := decode[map[string][]string](t, rec)["registered"]; len(got) != 1 || got[0] != "c1" {
		t.Fatalf("registered = %v, want [c1]", got)
	}

	rec = f.do(t, http.MethodPost, "/v1/keeper/sweep", "", nil)
	if got := decode[keeper.Report](t, rec); len(got.Finalized) != 0 {
		t.Fatalf("idle sweep finalized %v", got.Finalized)
	}

	f.clock.Advance(2 * time.Hour)
	rec = f.do(t, http.MethodGet, "/v1/campaigns/c1/due", "", nil)
	if !decode[map[string]bool](t, rec)["due"] {
		t.Fatal("expected campaign to be due")
	}
	rec = f.do(t, http.MethodPost, "/v1/keeper/sweep", "", nil)
	if got := decode[keeper.Report](t, rec); len(got.Finalized) != 1 || got.Finalized[0] != "c1" {
		t.Fatalf("finalized = %v, want [c1]", got.Finalized)
	}

	rec = f.do(t, http.MethodGet, "/v1/keeper/attempts", "", nil)
	attempts := decode[map[string][]attemptView](t, rec)["attempts"]
	if len(attempts) != 1 || attempts[0].Outcome != "finalized" {
		t.Fatalf("attempts = %+v", attempts)
	}

	rec = f.do(t, http.MethodGet, "/v1/campaigns/c1", "", nil)
	if view := decode[campaignView](t, rec); !view.Rounds[0].Finalized {
		t.Fatalf("round = %+v, want finalized", view.Rounds[0])
	}
}

func TestKeeperFollowsSchedulerChange(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, http.MethodPut, "/v1/registry/scheduler", "admin", accountRequest{Account: "keeper-2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("scheduler status = %d (%s)", rec.Code, rec.Body.String())
	}
	if got := f.keeper.Principal(); got != "keeper-2" {
		t.Fatalf("keeper principal = %q, want keeper-2", got)
	}
	rec = f.do(t, http.MethodPost, "/v1/campaigns/", "owner", createCampaignRequest{
		Name: "Second", Target: money.MustParse("1"), SharePrice: money.MustParse("0.1"), DurationSeconds: 3600, Fee: money.MustParse("0.5"),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", rec.Code, rec.Body.String())
	}

	f.clock.Advance(2 * time.Hour)
	rec = f.do(t, http.MethodPost, "/v1/keeper/sweep", "", nil)
	got := decode[keeper.Report](t, rec)
	if len(got.Finalized) != 2 || len(got.Failed) != 0 {
		t.Fatalf("report = %+v, want c1 and c2 finalized", got)
	}
}

func TestStreamRelaysCommittedEvents(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	srv := httptest.NewServer(f.server)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/campaigns/c1/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	reader := bufio.NewReader(resp.Body)
	if line, err := reader.ReadString('\n'); err != nil || !strings.HasPrefix(line, ": subscribed") {
		t.Fatalf("first line = %q, %v", line, err)
	}

	rec := f.do(t, http.MethodPost, "/v1/campaigns/c1/purchases", "alice", buySharesRequest{Quantity: 2, Payment: money.MustParse("0.2")})
	if rec.Code != http.StatusCreated {
		t.Fatalf("buy status = %d (%s)", rec.Code, rec.Body.String())
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "event: ") {
			if got := strings.TrimSpace(strings.TrimPrefix(line, "event: ")); got != "shares.purchased" {
				t.Fatalf("event = %q, want shares.purchased", got)
			}
			return
		}
	}
}

func TestStreamUnknownCampaign(t *testing.T) {
	f := newFixture(t)
	wantError(t, f.do(t, http.MethodGet, "/v1/campaigns/missing/stream", "", nil), http.StatusNotFound, "CAMPAIGN_NOT_FOUND")
}
