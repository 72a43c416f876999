package sqlite

import (
	"context"
	"fmt"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
)

// RecordAttempt persists one keeper finalization attempt.
func (s *Store) RecordAttempt(ctx context.Context, attempt storage.AttemptRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	attempt, err := attempt.Normalize()
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO keeper_attempts (campaign_id, round, outcome, last_error, created_at)
VALUES (?, ?, ?, ?, ?)`,
		attempt.CampaignID,
		attempt.Round,
		attempt.Outcome,
		attempt.LastError,
		toMillis(attempt.CreatedAt),
	); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// ListAttempts lists newest-first attempt records.
func (s *Store) ListAttempts(ctx context.Context, limit int) ([]storage.AttemptRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, campaign_id, round, outcome, last_error, created_at
FROM keeper_attempts
ORDER BY created_at DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	records := make([]storage.AttemptRecord, 0, limit)
	for rows.Next() {
		var (
			record    storage.AttemptRecord
			createdAt int64
		)
		if err := rows.Scan(&record.ID, &record.CampaignID, &record.Round, &record.Outcome, &record.LastError, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return records, nil
}
