// Package storagetest holds behavior tests shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/crowdshare/internal/platform/filter"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/integrity"
)

// Factory opens an empty store signed with keyring.
type Factory func(t *testing.T, keyring *integrity.Keyring) storage.Store

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Run exercises the storage contract against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("commit assigns seq and chain", func(t *testing.T) { testCommitChain(t, open) })
	t.Run("stale expected seq", func(t *testing.T) { testConcurrentUpdate(t, open) })
	t.Run("insufficient funds aborts commit", func(t *testing.T) { testInsufficientFunds(t, open) })
	t.Run("transfers move balances", func(t *testing.T) { testTransfers(t, open) })
	t.Run("event pages", func(t *testing.T) { testEventPages(t, open) })
	t.Run("campaign index", func(t *testing.T) { testCampaignIndex(t, open) })
	t.Run("attempts", func(t *testing.T) { testAttempts(t, open) })
}

func keyring(t *testing.T) *integrity.Keyring {
	t.Helper()
	ring, err := integrity.ParseKeyring("test-secret", "", "")
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	return ring
}

func evt(campaignID string, typ event.Type, offset time.Duration, actor string) event.Event {
	return event.Event{
		CampaignID:  campaignID,
		Type:        typ,
		Timestamp:   baseTime.Add(offset),
		ActorID:     actor,
		EntityType:  "round",
		EntityID:    "1",
		PayloadJSON: []byte(`{"name":"` + campaignID + `","owner":"` + actor + `"}`),
	}
}

func commit(t *testing.T, s storage.Store, c storage.Commit) []event.Event {
	t.Helper()
	stored, err := s.CommitEvents(context.Background(), c)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return stored
}

func testCommitChain(t *testing.T, open Factory) {
	ring := keyring(t)
	s := open(t, ring)
	ctx := context.Background()

	first := commit(t, s, storage.Commit{CampaignID: "c1", Events: []event.Event{
		evt("c1", event.TypeCampaignCreated, 0, "owner"),
		evt("c1", event.TypeRoundStarted, 0, "owner"),
	}})
	if len(first) != 2 || first[0].Seq != 1 || first[1].Seq != 2 {
		t.Fatalf("stored = %+v, want seq 1 and 2", first)
	}
	commit(t, s, storage.Commit{CampaignID: "c1", ExpectedSeq: 2, Events: []event.Event{
		evt("c1", event.TypeSharesPurchased, time.Minute, "alice"),
	}})

	latest, err := s.LatestSeq(ctx, "c1")
	if err != nil || latest != 3 {
		t.Fatalf("latest = %d, %v; want 3", latest, err)
	}
	journal, err := s.ListEvents(ctx, "c1", 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(journal) != 3 {
		t.Fatalf("journal len = %d, want 3", len(journal))
	}
	if err := integrity.VerifyChain(ring, journal); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if !journal[2].Timestamp.Equal(baseTime.Add(time.Minute)) {
		t.Fatalf("timestamp = %v", journal[2].Timestamp)
	}

	tail, err := s.ListEvents(ctx, "c1", 2, 10)
	if err != nil || len(tail) != 1 || tail[0].Type != event.TypeSharesPurchased {
		t.Fatalf("tail = %+v, %v", tail, err)
	}
	if other, _ := s.LatestSeq(ctx, "c2"); other != 0 {
		t.Fatalf("other campaign seq = %d, want 0", other)
	}
}

func testConcurrentUpdate(t *testing.T, open Factory) {
	s := open(t, keyring(t))
	commit(t, s, storage.Commit{CampaignID: "c1", Events: []event.Event{evt("c1", event.TypeCampaignCreated, 0, "owner")}})

	_, err := s.CommitEvents(context.Background(), storage.Commit{
		CampaignID: "c1",
		Events:     []event.Event{evt("c1", event.TypeRoundStarted, 0, "owner")},
	})
	if !errors.Is(err, storage.ErrConcurrentUpdate) {
		t.Fatalf("err = %v, want %v", err, storage.ErrConcurrentUpdate)
	}
}

func testInsufficientFunds(t *testing.T, open Factory) {
	s := open(t, keyring(t))
	ctx := context.Background()
	if _, err := s.Deposit(ctx, "alice", money.MustParse("1")); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, err := s.CommitEvents(ctx, storage.Commit{
		CampaignID: "c1",
		Events:     []event.Event{evt("c1", event.TypeSharesPurchased, 0, "alice")},
		Transfers: []money.Transfer{
			{From: "alice", To: "campaign:c1", Amount: money.MustParse("0.88")},
			{From: "alice", To: "treasury", Amount: money.MustParse("0.12")},
			{From: "alice", To: "treasury", Amount: money.MustParse("0.01")},
		},
	})
	if !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want %v", err, storage.ErrInsufficientFunds)
	}
	if seq, _ := s.LatestSeq(ctx, "c1"); seq != 0 {
		t.Fatalf("seq = %d, want 0 after aborted commit", seq)
	}
	for account, want := range map[string]money.Amount{"alice": money.MustParse("1"), "treasury": 0, "campaign:c1": 0} {
		if got, _ := s.Balance(ctx, account); got != want {
			t.Fatalf("%s balance = %s, want %s", account, got, want)
		}
	}
}

func testTransfers(t *testing.T, open Factory) {
	s := open(t, keyring(t))
	ctx := context.Background()
	if _, err := s.Deposit(ctx, "alice", money.MustParse("0.4")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := s.Deposit(ctx, "alice", money.MustParse("0.6")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := s.Deposit(ctx, " ", 1); err == nil {
		t.Fatal("expected deposit to empty account to fail")
	}
	if _, err := s.Deposit(ctx, "alice", 0); err == nil {
		t.Fatal("expected zero deposit to fail")
	}

	commit(t, s, storage.Commit{
		CampaignID: "c1",
		Events:     []event.Event{evt("c1", event.TypeSharesPurchased, 0, "alice")},
		Transfers: []money.Transfer{
			{From: "alice", To: "campaign:c1", Amount: money.MustParse("0.88")},
			{From: "alice", To: "treasury", Amount: money.MustParse("0.12")},
		},
	})
	for account, want := range map[string]money.Amount{"alice": 0, "treasury": money.MustParse("0.12"), "campaign:c1": money.MustParse("0.88")} {
		if got, _ := s.Balance(ctx, account); got != want {
			t.Fatalf("%s balance = %s, want %s", account, got, want)
		}
	}
}

func testEventPages(t *testing.T, open Factory) {
	s := open(t, keyring(t))
	ctx := context.Background()
	events := []event.Event{
		evt("c1", event.TypeCampaignCreated, 0, "owner"),
		evt("c1", event.TypeRoundStarted, 0, "owner"),
		evt("c1", event.TypeSharesPurchased, time.Minute, "alice"),
		evt("c1", event.TypeSharesPurchased, 2*time.Minute, "bob"),
		evt("c1", event.TypeSharesPurchased, 3*time.Minute, "alice"),
	}
	commit(t, s, storage.Commit{CampaignID: "c1", Events: events})

	f, err := filter.Parse(`type = "shares.purchased"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	page, err := s.ListEventsPage(ctx, storage.ListEventsPageRequest{CampaignID: "c1", PageSize: 2, Filter: f})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page.Events) != 2 || !page.HasNextPage || page.Events[0].Seq != 3 || page.Events[1].Seq != 4 {
		t.Fatalf("page = %+v", page)
	}
	page, err = s.ListEventsPage(ctx, storage.ListEventsPageRequest{CampaignID: "c1", PageSize: 2, Filter: f, AfterSeq: 4})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page.Events) != 1 || page.HasNextPage || page.Events[0].Seq != 5 {
		t.Fatalf("page = %+v", page)
	}

	page, err = s.ListEventsPage(ctx, storage.ListEventsPageRequest{CampaignID: "c1", PageSize: 10, Descending: true})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page.Events) != 5 || page.Events[0].Seq != 5 {
		t.Fatalf("descending page = %+v", page)
	}

	byActor, _ := filter.Parse(`actor_id = "alice" AND seq >= 4`)
	page, err = s.ListEventsPage(ctx, storage.ListEventsPageRequest{CampaignID: "c1", PageSize: 10, Filter: byActor})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].Seq != 5 {
		t.Fatalf("filtered page = %+v", page)
	}
}

func testCampaignIndex(t *testing.T, open Factory) {
	s := open(t, keyring(t))
	ctx := context.Background()
	for _, id := range []string{"c1", "c2", "c3"} {
		commit(t, s, storage.Commit{CampaignID: id, Events: []event.Event{evt(id, event.TypeCampaignCreated, 0, "owner-"+id)}})
	}

	count, err := s.CountCampaigns(ctx)
	if err != nil || count != 3 {
		t.Fatalf("count = %d, %v; want 3", count, err)
	}
	record, err := s.GetCampaign(ctx, "c2")
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if record.Owner != "owner-c2" || record.Name != "c2" {
		t.Fatalf("record = %+v", record)
	}
	if _, err := s.GetCampaign(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, storage.ErrNotFound)
	}

	page, err := s.ListCampaigns(ctx, 0, 2)
	if err != nil {
		t.Fatalf("list campaigns: %v", err)
	}
	if len(page.Campaigns) != 2 || page.Campaigns[0].ID != "c1" || page.NextPosition == 0 {
		t.Fatalf("page = %+v", page)
	}
	page, err = s.ListCampaigns(ctx, page.NextPosition, 2)
	if err != nil {
		t.Fatalf("list campaigns: %v", err)
	}
	if len(page.Campaigns) != 1 || page.Campaigns[0].ID != "c3" || page.NextPosition != 0 {
		t.Fatalf("page = %+v", page)
	}
}

func testAttempts(t *testing.T, open Factory) {
	s := open(t, keyring(t))
	ctx := context.Background()

	if err := s.RecordAttempt(ctx, storage.AttemptRecord{}); err == nil {
		t.Fatal("expected validation error for empty attempt")
	}
	if err := s.RecordAttempt(ctx, storage.AttemptRecord{CampaignID: "c1", Round: 1, Outcome: storage.OutcomeFailed, LastError: "boom", CreatedAt: baseTime}); err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	if err := s.RecordAttempt(ctx, storage.AttemptRecord{CampaignID: "c1", Round: 1, Outcome: storage.OutcomeFinalized, CreatedAt: baseTime.Add(time.Minute)}); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	attempts, err := s.ListAttempts(ctx, 10)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts len = %d, want 2", len(attempts))
	}
	if attempts[0].Outcome != storage.OutcomeFinalized || attempts[1].LastError != "boom" {
		t.Fatalf("attempts = %+v", attempts)
	}
}
