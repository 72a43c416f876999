// Package registry creates campaigns and holds the platform-wide settings:
// admin, treasury, fee oracle, scheduler and the creation pause switch.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/platform/grpc/pagination"
	"github.com/louisbranch/crowdshare/internal/platform/id"
	"github.com/louisbranch/crowdshare/internal/platform/logger"
	"github.com/louisbranch/crowdshare/internal/platform/requestctx"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/campaign"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/command"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/feeoracle"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/service"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/cursor"
)

var listPaging = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

// Scheduler tracks campaigns that need automatic finalization.
type Scheduler interface {
	Register(campaignID string)
}

// Config seeds the registry settings.
type Config struct {
	Admin     string
	Treasury  string
	Scheduler string
	Oracle    feeoracle.Oracle
	// NewID generates campaign ids. Defaults to id.NewID.
	NewID func() (string, error)
}

// Settings is a snapshot of the registry configuration.
type Settings struct {
	Admin     string `json:"admin"`
	Treasury  string `json:"treasury"`
	Scheduler string `json:"scheduler"`
	Paused    bool   `json:"paused"`
}

// CreateInput describes a new campaign and its first round.
type CreateInput struct {
	Name          string
	Category      string
	Target        money.Amount
	SharePrice    money.Amount
	Duration      time.Duration
	Fee           money.Amount
	Customization map[string]string
}

// Registry is the campaign creation boundary.
type Registry struct {
	exec      service.Executor
	index     storage.CampaignIndex
	scheduler Scheduler
	log       *logger.Logger
	newID     func() (string, error)

	mu          sync.RWMutex
	admin       string
	treasury    string
	schedulerID string
	oracle      feeoracle.Oracle
	paused      bool
}

// New builds a registry.
func New(cfg Config, exec service.Executor, index storage.CampaignIndex, scheduler Scheduler, log *logger.Logger) (*Registry, error) {
	cfg.Admin = strings.TrimSpace(cfg.Admin)
	cfg.Treasury = strings.TrimSpace(cfg.Treasury)
	switch {
	case exec == nil:
		return nil, fmt.Errorf("command executor is required")
	case index == nil:
		return nil, fmt.Errorf("campaign index is required")
	case cfg.Admin == "":
		return nil, fmt.Errorf("admin is required")
	case cfg.Treasury == "":
		return nil, fmt.Errorf("treasury is required")
	case cfg.Oracle == nil:
		return nil, fmt.Errorf("fee oracle is required")
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		exec:        exec,
		index:       index,
		scheduler:   scheduler,
		log:         log.With("component", "registry"),
		newID:       cfg.NewID,
		admin:       cfg.Admin,
		treasury:    cfg.Treasury,
		schedulerID: strings.TrimSpace(cfg.Scheduler),
		oracle:      cfg.Oracle,
	}, nil
}

// Create validates the input against the registry settings and creates the
// campaign with its first round. The creation fee moves to the treasury in
// the same commit.
func (r *Registry) Create(ctx context.Context, creator string, in CreateInput) (campaign.State, error) {
	creator = strings.TrimSpace(creator)
	if creator == "" {
		return campaign.State{}, apperrors.New(apperrors.CodeCallerRequired, "caller is required")
	}

	r.mu.RLock()
	paused, treasury, schedulerID, oracle := r.paused, r.treasury, r.schedulerID, r.oracle
	r.mu.RUnlock()

	if paused {
		return campaign.State{}, rejection(apperrors.CodeRegistryPaused)
	}
	switch {
	case strings.TrimSpace(in.Name) == "":
		return campaign.State{}, rejection(apperrors.CodeCampaignNameEmpty)
	case !in.Target.IsPositive():
		return campaign.State{}, rejection(apperrors.CodeTargetZero)
	case !in.SharePrice.IsPositive():
		return campaign.State{}, rejection(apperrors.CodeSharePriceZero)
	case in.Duration < time.Second:
		return campaign.State{}, rejection(apperrors.CodeDurationInvalid)
	}

	fee, err := oracle.CreationFee(ctx)
	if err != nil {
		return campaign.State{}, apperrors.Wrap(apperrors.CodeUnknown, "load creation fee", err)
	}
	if in.Fee != fee {
		return campaign.State{}, apperrors.WithMetadata(apperrors.CodeFeeMismatch, campaign.Message(apperrors.CodeFeeMismatch), map[string]string{
			"expected_fee": fee.String(),
		})
	}

	campaignID, err := r.newID()
	if err != nil {
		return campaign.State{}, apperrors.Wrap(apperrors.CodeUnknown, "generate campaign id", err)
	}
	cmd, err := command.New(campaignID, campaign.CommandTypeCreate, creator, campaign.CreatePayload{
		Name:            in.Name,
		Category:        in.Category,
		Treasury:        treasury,
		Scheduler:       schedulerID,
		Target:          in.Target,
		SharePrice:      in.SharePrice,
		DurationSeconds: int64(in.Duration / time.Second),
		Fee:             fee,
		Customization:   in.Customization,
	})
	if err != nil {
		return campaign.State{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "build command", err)
	}
	cmd.RequestID = requestctx.RequestIDFromContext(ctx)

	result, err := r.exec.Execute(ctx, cmd)
	if err != nil {
		return campaign.State{}, err
	}
	if r.scheduler != nil {
		r.scheduler.Register(campaignID)
	}
	r.log.Info("campaign created",
		"campaign_id", campaignID,
		"owner", creator,
		"fee", fee.String(),
	)
	return result.State, nil
}

// Get returns the listing record of a campaign.
func (r *Registry) Get(ctx context.Context, campaignID string) (storage.CampaignRecord, error) {
	record, err := r.index.GetCampaign(ctx, campaignID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.CampaignRecord{}, campaign.ErrNotFound
	}
	if err != nil {
		return storage.CampaignRecord{}, apperrors.Wrap(apperrors.CodeUnknown, "get campaign", err)
	}
	return record, nil
}

// ListPage is one page of the campaign listing.
type ListPage struct {
	Campaigns     []storage.CampaignRecord
	NextPageToken string
}

// List returns campaigns in creation order.
func (r *Registry) List(ctx context.Context, pageSize int, pageToken string) (ListPage, error) {
	pageSize = listPaging.PageSize(pageSize)
	var after uint64
	if pageToken != "" {
		c, err := cursor.Decode(pageToken)
		if err == nil {
			err = cursor.Validate(c, false, "")
		}
		if err != nil {
			return ListPage{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid page token", err)
		}
		after = c.Position
	}
	page, err := r.index.ListCampaigns(ctx, after, pageSize)
	if err != nil {
		return ListPage{}, apperrors.Wrap(apperrors.CodeUnknown, "list campaigns", err)
	}
	out := ListPage{Campaigns: page.Campaigns}
	if page.NextPosition > 0 {
		token, err := cursor.Encode(cursor.New(page.NextPosition, false, ""))
		if err != nil {
			return ListPage{}, apperrors.Wrap(apperrors.CodeUnknown, "encode page token", err)
		}
		out.NextPageToken = token
	}
	return out, nil
}

// Count returns the number of campaigns created.
func (r *Registry) Count(ctx context.Context) (int, error) {
	n, err := r.index.CountCampaigns(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUnknown, "count campaigns", err)
	}
	return n, nil
}

// RegisterExisting hands every indexed campaign to the scheduler. Runtimes
// call it on startup so the keeper resumes watching campaigns it tracked
// before a restart.
func (r *Registry) RegisterExisting(ctx context.Context) (int, error) {
	if r.scheduler == nil {
		return 0, nil
	}
	var (
		after uint64
		count int
	)
	for {
		page, err := r.index.ListCampaigns(ctx, after, listPaging.MaxPageSize)
		if err != nil {
			return count, apperrors.Wrap(apperrors.CodeUnknown, "list campaigns", err)
		}
		for _, record := range page.Campaigns {
			r.scheduler.Register(record.ID)
			count++
		}
		if page.NextPosition == 0 {
			return count, nil
		}
		after = page.NextPosition
	}
}

func rejection(code apperrors.Code) *apperrors.Error {
	return apperrors.New(code, campaign.Message(code))
}
