package ledger

import (
	"errors"
	"testing"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

func mintN(t *testing.T, l *Ledger, owner string, round, n int) []uint64 {
	t.Helper()
	ids := make([]uint64, 0, n)
	for i := 1; i <= n; i++ {
		id := l.NextID()
		if err := l.Mint(Certificate{ID: id, Round: round, Sequence: i, Owner: owner, PurchasePriceNet: 88_000}); err != nil {
			t.Fatalf("mint: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestMintAssignsSequentialIDs(t *testing.T) {
	l := New()
	ids := mintN(t, l, "alice", 1, 3)
	if ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("ids = %v, want [1 2 3]", ids)
	}
	if l.NextID() != 4 {
		t.Fatalf("next id = %d, want 4", l.NextID())
	}
	if err := l.Mint(Certificate{ID: 2, Owner: "bob"}); !errors.Is(err, ErrCertificateExists) {
		t.Fatalf("err = %v, want %v", err, ErrCertificateExists)
	}
}

func TestBurnIsPermanent(t *testing.T) {
	l := New()
	ids := mintN(t, l, "alice", 1, 2)

	if err := l.Burn(ids[0]); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if err := l.Burn(ids[0]); !errors.Is(err, ErrCertificateBurned) {
		t.Fatalf("err = %v, want %v", err, ErrCertificateBurned)
	}
	if err := l.Burn(99); !errors.Is(err, ErrCertificateNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrCertificateNotFound)
	}
	if err := l.Mint(Certificate{ID: ids[0], Owner: "bob"}); !errors.Is(err, ErrCertificateExists) {
		t.Fatalf("burned id reused: %v", err)
	}
	if l.Outstanding() != 1 {
		t.Fatalf("outstanding = %d, want 1", l.Outstanding())
	}
}

func TestHoldingsAndOwned(t *testing.T) {
	l := New()
	mintN(t, l, "alice", 1, 3)
	bobIDs := mintN(t, l, "bob", 1, 2)
	_ = l.Burn(bobIDs[0])

	holdings := l.Holdings()
	if holdings["alice"] != 3 || holdings["bob"] != 1 {
		t.Fatalf("holdings = %v", holdings)
	}
	owned := l.Owned("bob")
	if len(owned) != 1 || owned[0].ID != bobIDs[1] {
		t.Fatalf("owned = %+v", owned)
	}
	if got := l.Count("alice"); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
	if got, want := l.RoundNet(1), money.Amount(4*88_000); got != want {
		t.Fatalf("round net = %d, want %d", got, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	l := New()
	ids := mintN(t, l, "alice", 1, 1)
	clone := l.Clone()
	if err := clone.Burn(ids[0]); err != nil {
		t.Fatalf("burn clone: %v", err)
	}
	if cert, _ := l.Get(ids[0]); cert.Burned {
		t.Fatal("burning the clone changed the original")
	}
}
