// Package ledger holds the share ledger: one certificate per purchased share
// unit. It records ownership and burn state and carries no policy; the
// campaign aggregate decides who may mint and burn.
package ledger

import (
	"errors"
	"sort"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

var (
	// ErrCertificateNotFound indicates an unknown certificate id.
	ErrCertificateNotFound = errors.New("certificate not found")
	// ErrCertificateBurned indicates a certificate that was already burned.
	ErrCertificateBurned = errors.New("certificate already burned")
	// ErrCertificateExists indicates a duplicate mint.
	ErrCertificateExists = errors.New("certificate already exists")
)

// Certificate is the proof of one purchased share unit.
type Certificate struct {
	ID               uint64       `json:"id"`
	Round            int          `json:"round"`
	Sequence         int          `json:"sequence"`
	Owner            string       `json:"owner"`
	PurchasePriceNet money.Amount `json:"purchase_price_net"`
	Burned           bool         `json:"burned"`
}

// Ledger maps certificate ids to certificates.
type Ledger struct {
	certs  map[uint64]Certificate
	lastID uint64
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{certs: make(map[uint64]Certificate)}
}

// NextID returns the id the next minted certificate will receive.
func (l *Ledger) NextID() uint64 {
	if l == nil {
		return 1
	}
	return l.lastID + 1
}

// Mint records a new certificate. Ids must be unique and never reused.
func (l *Ledger) Mint(cert Certificate) error {
	if _, ok := l.certs[cert.ID]; ok || cert.ID <= l.lastID {
		return ErrCertificateExists
	}
	cert.Burned = false
	l.certs[cert.ID] = cert
	l.lastID = cert.ID
	return nil
}

// Burn marks a certificate burned.
func (l *Ledger) Burn(id uint64) error {
	cert, ok := l.certs[id]
	if !ok {
		return ErrCertificateNotFound
	}
	if cert.Burned {
		return ErrCertificateBurned
	}
	cert.Burned = true
	l.certs[id] = cert
	return nil
}

// Get returns a certificate by id.
func (l *Ledger) Get(id uint64) (Certificate, bool) {
	if l == nil {
		return Certificate{}, false
	}
	cert, ok := l.certs[id]
	return cert, ok
}

// Owned returns the outstanding certificates of owner ordered by id.
func (l *Ledger) Owned(owner string) []Certificate {
	if l == nil {
		return nil
	}
	var out []Certificate
	for _, cert := range l.certs {
		if !cert.Burned && cert.Owner == owner {
			out = append(out, cert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Holdings returns owner -> outstanding certificate count.
func (l *Ledger) Holdings() map[string]int64 {
	holdings := make(map[string]int64)
	if l == nil {
		return holdings
	}
	for _, cert := range l.certs {
		if !cert.Burned {
			holdings[cert.Owner]++
		}
	}
	return holdings
}

// Count returns the number of outstanding certificates held by owner.
func (l *Ledger) Count(owner string) int64 {
	if l == nil {
		return 0
	}
	var n int64
	for _, cert := range l.certs {
		if !cert.Burned && cert.Owner == owner {
			n++
		}
	}
	return n
}

// Outstanding returns the number of non-burned certificates.
func (l *Ledger) Outstanding() int64 {
	if l == nil {
		return 0
	}
	var n int64
	for _, cert := range l.certs {
		if !cert.Burned {
			n++
		}
	}
	return n
}

// RoundNet sums purchase prices of outstanding certificates in round.
func (l *Ledger) RoundNet(round int) money.Amount {
	if l == nil {
		return 0
	}
	var total money.Amount
	for _, cert := range l.certs {
		if !cert.Burned && cert.Round == round {
			total += cert.PurchasePriceNet
		}
	}
	return total
}

// Len returns the number of certificates ever minted.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.certs)
}

// Clone returns a deep copy so folds never mutate a shared ledger.
func (l *Ledger) Clone() *Ledger {
	out := New()
	if l == nil {
		return out
	}
	for id, cert := range l.certs {
		out.certs[id] = cert
	}
	out.lastID = l.lastID
	return out
}
