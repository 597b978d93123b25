package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
)

// EngagementService accepts tracking events from the HTTP surface and turns
// them into score-update jobs. Persistence and rescoring happen in the
// processor, so ingest stays a single enqueue.
type EngagementService struct {
	dispatcher jobs.Dispatcher
}

func NewEngagementService(dispatcher jobs.Dispatcher) *EngagementService {
	return &EngagementService{dispatcher: dispatcher}
}

func (s *EngagementService) Record(ctx context.Context, req model.EngagementEventCreateRequest) error {
	payload := jobs.UpdateLeadScore{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    strings.TrimSpace(req.Phone),
		Action:   req.Type,
		Points:   req.Points,
		Metadata: req.Metadata,
	}
	if req.CustomerID != 0 {
		id := req.CustomerID
		payload.CustomerID = &id
	}
	if err := payload.Validate(); err != nil {
		return err
	}
	if _, ok := model.EngagementPoints[req.Type]; !ok {
		return errors.New("unknown engagement type")
	}
	return s.dispatcher.Enqueue(ctx, jobs.TypeUpdateLeadScore, payload)
}
