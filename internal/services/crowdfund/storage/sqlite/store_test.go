package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/integrity"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, keyring *integrity.Keyring) storage.Store {
		return openTempStore(t, keyring)
	})
}

func TestReopenKeepsJournalAndBalances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crowdshare.db")
	ring, err := integrity.ParseKeyring("secret", "", "")
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	ctx := context.Background()

	store, err := Open(ctx, path, ring)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.Deposit(ctx, "alice", money.MustParse("2")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := store.CommitEvents(ctx, storage.Commit{
		CampaignID: "c1",
		Events:     []event.Event{{CampaignID: "c1", Type: event.TypeSharesPurchased, ActorID: "alice"}},
		Transfers:  []money.Transfer{{From: "alice", To: "campaign:c1", Amount: money.MustParse("0.5")}},
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path, ring)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	journal, err := reopened.ListEvents(ctx, "c1", 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if err := integrity.VerifyChain(ring, journal); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if got, _ := reopened.Balance(ctx, "alice"); got != money.MustParse("1.5") {
		t.Fatalf("alice balance = %s, want 1.5", got)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " ", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func openTempStore(t *testing.T, keyring *integrity.Keyring) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crowdshare.db")
	store, err := Open(context.Background(), path, keyring)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
