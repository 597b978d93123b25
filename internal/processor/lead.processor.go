package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/queue"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/dealerdesk/lead-engine/pkg/logger"
	"github.com/dealerdesk/lead-engine/pkg/prom"
)

type LeadScorer interface {
	Score(ctx context.Context, ref model.LeadRef, incremental bool, reason string) (*model.LeadScore, error)
}

type LeadAssigner interface {
	Assign(ctx context.Context, criteria model.AssignmentCriteria) (*model.AssignmentResult, error)
}

type EngagementStore interface {
	Get(ctx context.Context, id int64) (*model.Customer, error)
	FindByContact(ctx context.Context, email, phone string) (*model.Customer, error)
	CreateEngagementEvent(ctx context.Context, e *model.EngagementEvent) (*model.EngagementEvent, error)
}

type AssignmentReader interface {
	Get(ctx context.Context, id int64) (*model.LeadAssignment, error)
}

type RepresentativeReader interface {
	Get(ctx context.Context, id int64) (*model.Representative, error)
}

// LeadProcessor consumes the lead lifecycle jobs: scoring, assignment,
// engagement-driven rescoring and follow-up reminders.
type LeadProcessor struct {
	scorer      LeadScorer
	assigner    LeadAssigner
	customers   EngagementStore
	assignments AssignmentReader
	reps        RepresentativeReader
	dispatcher  jobs.Dispatcher
}

func NewLeadProcessor(
	scorer LeadScorer,
	assigner LeadAssigner,
	customers EngagementStore,
	assignments AssignmentReader,
	reps RepresentativeReader,
	dispatcher jobs.Dispatcher,
) *LeadProcessor {
	return &LeadProcessor{
		scorer:      scorer,
		assigner:    assigner,
		customers:   customers,
		assignments: assignments,
		reps:        reps,
		dispatcher:  dispatcher,
	}
}

func (p *LeadProcessor) ProcessCalculateScore(ctx context.Context, job *queue.Job) error {
	var payload jobs.CalculateLeadScore
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		logger.Error("malformed score payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}
	if err := payload.Validate(); err != nil {
		logger.Error("invalid score payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	if len(payload.BatchCustomerIDs) > 0 {
		return p.scoreBatch(ctx, payload)
	}

	ref := model.LeadRef{CustomerID: payload.CustomerID, InquiryID: payload.InquiryID}
	return p.scoreOne(ctx, ref, payload)
}

func (p *LeadProcessor) scoreOne(ctx context.Context, ref model.LeadRef, payload jobs.CalculateLeadScore) error {
	score, err := p.scorer.Score(ctx, ref, !payload.ForceRecalculation && payload.Reason != "", payload.Reason)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) || errors.Is(err, repository.ErrInquiryNotFound) {
			logger.Warn("score subject no longer exists, dropping",
				"customer_id", ref.CustomerID, "inquiry_id", ref.InquiryID)
			return nil
		}
		return err
	}

	prom.ObserveLeadScore(string(score.QualificationLevel), score.ScorePercentage)
	return nil
}

// scoreBatch scores each customer independently; one missing customer must
// not fail the rest, and a transient failure retries the whole batch, which
// is safe because scoring is append-only.
func (p *LeadProcessor) scoreBatch(ctx context.Context, payload jobs.CalculateLeadScore) error {
	var firstErr error
	for _, id := range payload.BatchCustomerIDs {
		customerID := id
		ref := model.LeadRef{CustomerID: &customerID}
		if err := p.scoreOne(ctx, ref, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *LeadProcessor) ProcessAssign(ctx context.Context, job *queue.Job) error {
	var payload jobs.AssignLead
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		logger.Error("malformed assignment payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}
	if err := payload.Validate(); err != nil {
		logger.Error("invalid assignment payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	criteria := model.AssignmentCriteria{
		Lead:        model.LeadRef{CustomerID: payload.CustomerID, InquiryID: payload.InquiryID},
		LeadScore:   payload.LeadScore,
		VehicleType: payload.VehicleType,
		PriceRange:  payload.PriceRange,
		Location:    payload.Location,
		Urgency:     payload.Urgency,
		Source:      payload.Source,
	}

	result, err := p.assigner.Assign(ctx, criteria)
	if err != nil {
		return err
	}

	switch {
	case result.AlreadyAssigned:
		prom.IncAssignmentOutcome("already_assigned")
	case result.Assigned:
		prom.IncAssignmentOutcome("assigned")
	default:
		prom.IncAssignmentOutcome("wait_queue")
	}
	return nil
}

func (p *LeadProcessor) ProcessUpdateScore(ctx context.Context, job *queue.Job) error {
	var payload jobs.UpdateLeadScore
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		logger.Error("malformed engagement payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}
	if err := payload.Validate(); err != nil {
		logger.Error("invalid engagement payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	customer, err := p.resolveCustomer(ctx, payload)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			logger.Warn("engagement event for unknown customer, dropping",
				"email", payload.Email, "phone", payload.Phone)
			return nil
		}
		return err
	}

	points := payload.Points
	if points == 0 {
		points = model.EngagementPoints[payload.Action]
	}

	event := &model.EngagementEvent{
		CustomerID: customer.ID,
		Type:       payload.Action,
		Points:     points,
		Metadata:   payload.Metadata,
	}
	if _, err := p.customers.CreateEngagementEvent(ctx, event); err != nil {
		return fmt.Errorf("record engagement event: %w", err)
	}

	rescore := jobs.CalculateLeadScore{
		CustomerID: &customer.ID,
		Reason:     "engagement:" + string(payload.Action),
	}
	if err := p.dispatcher.Enqueue(ctx, jobs.TypeCalculateLeadScore, rescore); err != nil {
		// The event is durable; the next scoring pass picks it up.
		logger.Error("failed to enqueue rescore", "customer_id", customer.ID, "error", err)
	}
	return nil
}

func (p *LeadProcessor) resolveCustomer(ctx context.Context, payload jobs.UpdateLeadScore) (*model.Customer, error) {
	if payload.CustomerID != nil {
		return p.customers.Get(ctx, *payload.CustomerID)
	}
	return p.customers.FindByContact(ctx, payload.Email, payload.Phone)
}

// ProcessFollowUpReminder nudges the assigned representative when a
// follow-up comes due. Closed or expired assignments make the reminder a
// no-op.
func (p *LeadProcessor) ProcessFollowUpReminder(ctx context.Context, job *queue.Job) error {
	var payload jobs.FollowUpReminder
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		logger.Error("malformed follow-up payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}
	if err := payload.Validate(); err != nil {
		logger.Error("invalid follow-up payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	assignment, err := p.assignments.Get(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrAssignmentNotFound) {
			logger.Warn("follow-up for unknown assignment, dropping", "assignment_id", payload.AssignmentID)
			return nil
		}
		return err
	}
	if !assignment.Status.IsOpen() {
		logger.Info("assignment no longer open, follow-up skipped",
			"assignment_id", assignment.ID, "status", assignment.Status)
		return nil
	}

	rep, err := p.reps.Get(ctx, assignment.RepresentativeID)
	if err != nil {
		return err
	}

	reminder := jobs.SendSingleEmail{
		To:      rep.Email,
		Subject: fmt.Sprintf("Follow up due: lead assignment #%d", assignment.ID),
		Content: fmt.Sprintf(
			"Hi %s, your %s follow-up for assignment #%d is due. The lead has not been closed out yet.",
			rep.Name, followUpLabel(payload.Type), assignment.ID),
	}
	return p.dispatcher.Enqueue(ctx, jobs.TypeSendSingleEmail, reminder)
}

func followUpLabel(t model.FollowUpType) string {
	if t == model.FollowUpTypeInitialContact {
		return "initial contact"
	}
	return "scheduled"
}
