package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/repository"
)

type CampaignRepository interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	ListByStatus(ctx context.Context, status model.CampaignStatus, limit int) ([]*model.Campaign, error)
}

// SendResult distinguishes "dispatch started" from "campaign is not in a
// sendable state". A state conflict is a result, not an error, so callers
// answer 409 instead of retrying.
type SendResult struct {
	Accepted bool
	Status   model.CampaignStatus
}

// CampaignService creates campaigns and hands sendable ones to the batch
// orchestrator through the queue.
type CampaignService struct {
	campaigns  CampaignRepository
	dispatcher jobs.Dispatcher
	batchSize  int
}

// batchSize sets the per-pass recipient count on dispatch jobs; zero lets
// the orchestrator fall back to its own default.
func NewCampaignService(campaigns CampaignRepository, dispatcher jobs.Dispatcher, batchSize int) *CampaignService {
	return &CampaignService{
		campaigns:  campaigns,
		dispatcher: dispatcher,
		batchSize:  batchSize,
	}
}

func (s *CampaignService) Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	targetKind := req.TargetKind
	if targetKind == "" {
		targetKind = model.TargetAllOptedIn
	}

	c := &model.Campaign{
		Name:         req.Name,
		Channel:      req.Channel,
		Subject:      req.Subject,
		Template:     req.Template,
		HTMLTemplate: req.HTMLTemplate,
		SenderName:   req.SenderName,
		TargetKind:   targetKind,
		SegmentID:    req.SegmentID,
		AudienceRule: req.AudienceRule,
		Status:       model.CampaignStatusScheduled,
		ScheduledAt:  req.ScheduledAt,
	}

	created, err := s.campaigns.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return created, nil
}

// Send enqueues the first orchestration batch. The sendability check here
// is advisory; the dispatcher re-checks under its optimistic status claim,
// so a double Send loses the race rather than double-sending.
func (s *CampaignService) Send(ctx context.Context, id int64) (*SendResult, error) {
	c, err := s.campaigns.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !c.Sendable() {
		return &SendResult{Accepted: false, Status: c.Status}, nil
	}

	jobType := jobs.TypeSendEmailCampaign
	if c.Channel == model.ChannelSMS {
		jobType = jobs.TypeSendSMSCampaign
	}

	payload := jobs.SendCampaign{CampaignID: c.ID, BatchSize: s.batchSize}
	if err := s.dispatcher.Enqueue(ctx, jobType, payload); err != nil {
		return nil, fmt.Errorf("enqueue campaign dispatch: %w", err)
	}

	return &SendResult{Accepted: true, Status: c.Status}, nil
}

func (s *CampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	c, err := s.campaigns.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) ListByStatus(ctx context.Context, status model.CampaignStatus, limit int) ([]*model.Campaign, error) {
	return s.campaigns.ListByStatus(ctx, status, limit)
}
