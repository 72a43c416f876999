package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/integrity"
)

const eventColumns = `campaign_id, seq, event_type, ts, actor_id, request_id, entity_type, entity_id,
	payload_json, event_hash, prev_hash, chain_hash, signature, signature_key_id`

// CommitEvents appends events and applies transfers in one transaction.
func (s *Store) CommitEvents(ctx context.Context, commit storage.Commit) ([]event.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	commit, err := commit.Normalize()
	if err != nil {
		return nil, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var latest uint64
	var prevChain string
	err = tx.QueryRowContext(ctx,
		`SELECT seq, chain_hash FROM events WHERE campaign_id = ? ORDER BY seq DESC LIMIT 1`,
		commit.CampaignID,
	).Scan(&latest, &prevChain)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load latest event: %w", err)
	}
	if latest != commit.ExpectedSeq {
		return nil, storage.ErrConcurrentUpdate
	}

	if err := applyTransfers(ctx, tx, commit.CampaignID, latest+1, commit.Transfers); err != nil {
		return nil, err
	}

	sealed, err := integrity.Seal(s.keyring, commit.Events, latest, prevChain)
	if err != nil {
		return nil, err
	}
	for _, evt := range sealed {
		if _, err := tx.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			evt.CampaignID,
			int64(evt.Seq),
			string(evt.Type),
			toMillis(evt.Timestamp),
			evt.ActorID,
			evt.RequestID,
			evt.EntityType,
			evt.EntityID,
			evt.PayloadJSON,
			evt.Hash,
			evt.PrevHash,
			evt.ChainHash,
			evt.Signature,
			evt.SignatureKeyID,
		); err != nil {
			if isConstraintError(err) {
				return nil, storage.ErrConcurrentUpdate
			}
			return nil, fmt.Errorf("append event: %w", err)
		}
		if evt.Type == event.TypeCampaignCreated {
			if err := indexCampaign(ctx, tx, evt); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sealed, nil
}

func applyTransfers(ctx context.Context, tx *sql.Tx, campaignID string, seq uint64, transfers []money.Transfer) error {
	for account, delta := range money.NetChanges(transfers) {
		var balance int64
		err := tx.QueryRowContext(ctx, `SELECT balance FROM vault_balances WHERE account = ?`, account).Scan(&balance)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("load balance: %w", err)
		}
		if balance+int64(delta) < 0 {
			return storage.ErrInsufficientFunds
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO vault_balances (account, balance) VALUES (?, ?)
ON CONFLICT(account) DO UPDATE SET balance = balance + excluded.balance`,
			account, int64(delta),
		); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
	}
	now := toMillis(timeNow())
	for _, t := range transfers {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO vault_entries (campaign_id, seq, from_account, to_account, amount, memo, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			campaignID, int64(seq), t.From, t.To, int64(t.Amount), t.Memo, now,
		); err != nil {
			return fmt.Errorf("record vault entry: %w", err)
		}
	}
	return nil
}

func indexCampaign(ctx context.Context, tx *sql.Tx, evt event.Event) error {
	var payload struct {
		Owner    string `json:"owner"`
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	_ = json.Unmarshal(evt.PayloadJSON, &payload)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO campaigns (id, owner, name, category, created_at) VALUES (?, ?, ?, ?, ?)`,
		evt.CampaignID, payload.Owner, payload.Name, payload.Category, toMillis(evt.Timestamp),
	); err != nil {
		return fmt.Errorf("index campaign: %w", err)
	}
	return nil
}

// ListEvents returns events ordered by seq ascending.
func (s *Store) ListEvents(ctx context.Context, campaignID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE campaign_id = ? AND seq > ? ORDER BY seq`
	args := []any{strings.TrimSpace(campaignID), int64(afterSeq)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryEvents(ctx, query, args...)
}

// LatestSeq returns the latest seq for a campaign.
func (s *Store) LatestSeq(ctx context.Context, campaignID string) (uint64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var seq int64
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE campaign_id = ?`, strings.TrimSpace(campaignID),
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return uint64(seq), nil
}

// ListEventsPage returns a filtered page of events.
func (s *Store) ListEventsPage(ctx context.Context, req storage.ListEventsPageRequest) (storage.ListEventsPageResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ListEventsPageResult{}, err
	}
	if req.PageSize <= 0 {
		return storage.ListEventsPageResult{}, fmt.Errorf("page size must be greater than zero")
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE campaign_id = ?`
	args := []any{strings.TrimSpace(req.CampaignID)}
	if req.AfterSeq > 0 {
		if req.Descending {
			query += ` AND seq < ?`
		} else {
			query += ` AND seq > ?`
		}
		args = append(args, int64(req.AfterSeq))
	}
	if cond := req.Filter.SQL(); cond.Clause != "" {
		query += ` AND ` + cond.Clause
		args = append(args, cond.Params...)
	}
	if req.Descending {
		query += ` ORDER BY seq DESC`
	} else {
		query += ` ORDER BY seq`
	}
	query += ` LIMIT ?`
	args = append(args, req.PageSize+1)

	events, err := s.queryEvents(ctx, query, args...)
	if err != nil {
		return storage.ListEventsPageResult{}, err
	}
	result := storage.ListEventsPageResult{Events: events}
	if len(events) > req.PageSize {
		result.Events = events[:req.PageSize]
		result.HasNextPage = true
	}
	return result, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]event.Event, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			evt event.Event
			seq int64
			ts  int64
			typ string
		)
		if err := rows.Scan(
			&evt.CampaignID,
			&seq,
			&typ,
			&ts,
			&evt.ActorID,
			&evt.RequestID,
			&evt.EntityType,
			&evt.EntityID,
			&evt.PayloadJSON,
			&evt.Hash,
			&evt.PrevHash,
			&evt.ChainHash,
			&evt.Signature,
			&evt.SignatureKeyID,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Type = event.Type(typ)
		evt.Timestamp = fromMillis(ts)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func isConstraintError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "constraint")
}
