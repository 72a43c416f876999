// Package memory implements the storage contracts in process memory. It backs
// tests and ephemeral runs and shares commit semantics with the sqlite store.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/integrity"
)

// Store is an in-memory storage.Store.
type Store struct {
	keyring *integrity.Keyring

	mu        sync.RWMutex
	events    map[string][]event.Event
	balances  map[string]money.Amount
	campaigns map[string]storage.CampaignRecord
	order     []string
	attempts  []storage.AttemptRecord
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store. keyring may be nil to leave events unsigned.
func New(keyring *integrity.Keyring) *Store {
	return &Store{
		keyring:   keyring,
		events:    make(map[string][]event.Event),
		balances:  make(map[string]money.Amount),
		campaigns: make(map[string]storage.CampaignRecord),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// CommitEvents appends events and applies transfers atomically.
func (s *Store) CommitEvents(ctx context.Context, commit storage.Commit) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commit, err := commit.Normalize()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.events[commit.CampaignID]
	latest := uint64(len(journal))
	if latest != commit.ExpectedSeq {
		return nil, storage.ErrConcurrentUpdate
	}

	changes := money.NetChanges(commit.Transfers)
	for account, delta := range changes {
		if s.balances[account]+delta < 0 {
			return nil, storage.ErrInsufficientFunds
		}
	}

	prevChain := ""
	if latest > 0 {
		prevChain = journal[latest-1].ChainHash
	}
	sealed, err := integrity.Seal(s.keyring, commit.Events, latest, prevChain)
	if err != nil {
		return nil, err
	}

	for account, delta := range changes {
		s.balances[account] += delta
	}
	s.events[commit.CampaignID] = append(journal, sealed...)
	for _, evt := range sealed {
		if evt.Type == event.TypeCampaignCreated {
			s.indexCampaign(evt)
		}
	}
	return append([]event.Event(nil), sealed...), nil
}

func (s *Store) indexCampaign(evt event.Event) {
	var payload struct {
		Owner    string `json:"owner"`
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	_ = json.Unmarshal(evt.PayloadJSON, &payload)
	s.order = append(s.order, evt.CampaignID)
	s.campaigns[evt.CampaignID] = storage.CampaignRecord{
		ID:        evt.CampaignID,
		Owner:     payload.Owner,
		Name:      payload.Name,
		Category:  payload.Category,
		Position:  uint64(len(s.order)),
		CreatedAt: evt.Timestamp,
	}
}

// ListEvents returns events ordered by seq ascending.
func (s *Store) ListEvents(ctx context.Context, campaignID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	journal := s.events[strings.TrimSpace(campaignID)]
	if afterSeq >= uint64(len(journal)) {
		return nil, nil
	}
	out := journal[afterSeq:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]event.Event(nil), out...), nil
}

// LatestSeq returns the latest seq for a campaign.
func (s *Store) LatestSeq(ctx context.Context, campaignID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.events[strings.TrimSpace(campaignID)])), nil
}

// ListEventsPage returns a filtered page of events.
func (s *Store) ListEventsPage(ctx context.Context, req storage.ListEventsPageRequest) (storage.ListEventsPageResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.ListEventsPageResult{}, err
	}
	s.mu.RLock()
	journal := append([]event.Event(nil), s.events[strings.TrimSpace(req.CampaignID)]...)
	s.mu.RUnlock()

	if req.Descending {
		sort.Slice(journal, func(i, j int) bool { return journal[i].Seq > journal[j].Seq })
	}
	var result storage.ListEventsPageResult
	for _, evt := range journal {
		if req.AfterSeq > 0 {
			if !req.Descending && evt.Seq <= req.AfterSeq {
				continue
			}
			if req.Descending && evt.Seq >= req.AfterSeq {
				continue
			}
		}
		if !req.Filter.Match(storage.FilterFields(evt)) {
			continue
		}
		if len(result.Events) == req.PageSize {
			result.HasNextPage = true
			break
		}
		result.Events = append(result.Events, evt)
	}
	return result, nil
}

// Deposit credits an account.
func (s *Store) Deposit(ctx context.Context, account string, amount money.Amount) (money.Amount, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	account, err := storage.NormalizeDeposit(account, amount)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] += amount
	return s.balances[account], nil
}

// Balance returns an account balance.
func (s *Store) Balance(ctx context.Context, account string) (money.Amount, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[strings.TrimSpace(account)], nil
}

// GetCampaign returns one listing record.
func (s *Store) GetCampaign(ctx context.Context, id string) (storage.CampaignRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CampaignRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.campaigns[strings.TrimSpace(id)]
	if !ok {
		return storage.CampaignRecord{}, storage.ErrNotFound
	}
	return record, nil
}

// ListCampaigns returns campaigns in creation order.
func (s *Store) ListCampaigns(ctx context.Context, afterPosition uint64, limit int) (storage.CampaignPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.CampaignPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var page storage.CampaignPage
	if afterPosition >= uint64(len(s.order)) {
		return page, nil
	}
	ids := s.order[afterPosition:]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
		page.NextPosition = afterPosition + uint64(limit)
	}
	for _, id := range ids {
		page.Campaigns = append(page.Campaigns, s.campaigns[id])
	}
	return page, nil
}

// CountCampaigns returns the number of created campaigns.
func (s *Store) CountCampaigns(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

// RecordAttempt appends one keeper attempt.
func (s *Store) RecordAttempt(ctx context.Context, attempt storage.AttemptRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	attempt, err := attempt.Normalize()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.ID = int64(len(s.attempts) + 1)
	s.attempts = append(s.attempts, attempt)
	return nil
}

// ListAttempts lists newest-first attempt records.
func (s *Store) ListAttempts(ctx context.Context, limit int) ([]storage.AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.AttemptRecord, 0, len(s.attempts))
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.attempts[i])
	}
	return out, nil
}
