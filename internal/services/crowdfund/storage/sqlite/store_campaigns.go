package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
)

// GetCampaign returns one listing record.
func (s *Store) GetCampaign(ctx context.Context, id string) (storage.CampaignRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.CampaignRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT position, id, owner, name, category, created_at FROM campaigns WHERE id = ?`, strings.TrimSpace(id))
	record, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.CampaignRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.CampaignRecord{}, fmt.Errorf("get campaign: %w", err)
	}
	return record, nil
}

// ListCampaigns returns campaigns in creation order after afterPosition.
func (s *Store) ListCampaigns(ctx context.Context, afterPosition uint64, limit int) (storage.CampaignPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.CampaignPage{}, err
	}
	if limit <= 0 {
		return storage.CampaignPage{}, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT position, id, owner, name, category, created_at FROM campaigns
WHERE position > ? ORDER BY position LIMIT ?`, int64(afterPosition), limit+1)
	if err != nil {
		return storage.CampaignPage{}, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var page storage.CampaignPage
	for rows.Next() {
		record, err := scanCampaign(rows)
		if err != nil {
			return storage.CampaignPage{}, fmt.Errorf("scan campaign: %w", err)
		}
		page.Campaigns = append(page.Campaigns, record)
	}
	if err := rows.Err(); err != nil {
		return storage.CampaignPage{}, fmt.Errorf("iterate campaigns: %w", err)
	}
	if len(page.Campaigns) > limit {
		page.Campaigns = page.Campaigns[:limit]
		page.NextPosition = page.Campaigns[limit-1].Position
	}
	return page, nil
}

// CountCampaigns returns the number of created campaigns.
func (s *Store) CountCampaigns(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count campaigns: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (storage.CampaignRecord, error) {
	var (
		record    storage.CampaignRecord
		position  int64
		createdAt int64
	)
	if err := row.Scan(&position, &record.ID, &record.Owner, &record.Name, &record.Category, &createdAt); err != nil {
		return storage.CampaignRecord{}, err
	}
	record.Position = uint64(position)
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
