package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/dealerdesk/lead-engine/pkg/logger"
)

type AssignmentStore interface {
	FindOpenForLead(ctx context.Context, lead model.LeadRef) (*model.LeadAssignment, error)
	Create(ctx context.Context, a *model.LeadAssignment) (*model.LeadAssignment, error)
}

type WaitQueueStore interface {
	Enqueue(ctx context.Context, entry *model.WaitQueueEntry) (*model.WaitQueueEntry, error)
	ListWaiting(ctx context.Context, limit int) ([]*model.WaitQueueEntry, error)
	MarkAssigned(ctx context.Context, id int64) error
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type RepresentativeStore interface {
	ListAvailable(ctx context.Context) ([]*model.Representative, error)
	AdjustLoad(ctx context.Context, id int64, delta int) error
}

type CustomerStore interface {
	Get(ctx context.Context, id int64) (*model.Customer, error)
}

type InquiryStore interface {
	Get(ctx context.Context, id int64) (*model.Inquiry, error)
}

type Engine struct {
	assignments AssignmentStore
	waitQueue   WaitQueueStore
	reps        RepresentativeStore
	customers   CustomerStore
	inquiries   InquiryStore
	scheduler   *FollowUpScheduler
	dispatcher  jobs.Dispatcher
	now         func() time.Time
}

func NewEngine(
	assignments AssignmentStore,
	waitQueue WaitQueueStore,
	reps RepresentativeStore,
	customers CustomerStore,
	inquiries InquiryStore,
	scheduler *FollowUpScheduler,
	dispatcher jobs.Dispatcher,
) *Engine {
	return &Engine{
		assignments: assignments,
		waitQueue:   waitQueue,
		reps:        reps,
		customers:   customers,
		inquiries:   inquiries,
		scheduler:   scheduler,
		dispatcher:  dispatcher,
		now:         time.Now,
	}
}

// Assign matches a lead to a representative. A miss is a result with
// Assigned=false, never an error: the idempotency guard short-circuits with
// AlreadyAssigned, and an empty candidate pool parks the lead on the wait
// queue.
func (e *Engine) Assign(ctx context.Context, criteria model.AssignmentCriteria) (*model.AssignmentResult, error) {
	if err := criteria.Lead.Validate(); err != nil {
		return nil, err
	}

	existing, err := e.assignments.FindOpenForLead(ctx, criteria.Lead)
	if err != nil && !errors.Is(err, repository.ErrAssignmentNotFound) {
		return nil, fmt.Errorf("assignment guard: %w", err)
	}
	if existing != nil {
		return &model.AssignmentResult{
			AlreadyAssigned: true,
			Assignment:      existing,
			Reason:          "lead already has an open assignment",
		}, nil
	}

	candidates, err := e.reps.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list representatives: %w", err)
	}

	best, confidence := pickRepresentative(candidates, criteria)
	if best == nil {
		return e.deferToWaitQueue(ctx, criteria)
	}

	assignment, err := e.assignments.Create(ctx, &model.LeadAssignment{
		CustomerID:       criteria.Lead.CustomerID,
		InquiryID:        criteria.Lead.InquiryID,
		RepresentativeID: best.ID,
		Status:           model.AssignmentStatusActive,
		AssignedAt:       e.now(),
		Confidence:       confidence,
		AssignmentReason: matchReason(best, criteria),
		Urgency:          normalizeUrgency(criteria.Urgency),
	})
	if err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	if err := e.reps.AdjustLoad(ctx, best.ID, 1); err != nil {
		logger.Error("failed to bump representative load",
			"representative_id", best.ID, "error", err)
	}

	// Each side effect is its own queued job so one failing link does not
	// unwind the assignment.
	e.notifyRepresentative(ctx, best, assignment, criteria)
	e.acknowledgeCustomer(ctx, criteria)
	if _, err := e.scheduler.Schedule(ctx, assignment); err != nil {
		logger.Error("failed to schedule follow-up",
			"assignment_id", assignment.ID, "error", err)
	}

	return &model.AssignmentResult{
		Assigned:       true,
		Assignment:     assignment,
		Representative: best,
		Confidence:     confidence,
		Reason:         assignment.AssignmentReason,
		RecommendedActions: []string{
			"Contact the lead before the follow-up deadline",
			"Review the lead's score breakdown before calling",
		},
	}, nil
}

func (e *Engine) deferToWaitQueue(ctx context.Context, criteria model.AssignmentCriteria) (*model.AssignmentResult, error) {
	entry, err := e.waitQueue.Enqueue(ctx, &model.WaitQueueEntry{
		CustomerID: criteria.Lead.CustomerID,
		InquiryID:  criteria.Lead.InquiryID,
		Priority:   waitPriority(criteria.Urgency),
		Reason:     "no representative available",
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue wait entry: %w", err)
	}

	logger.Warn("lead deferred to wait queue",
		"customer_id", criteria.Lead.CustomerID,
		"inquiry_id", criteria.Lead.InquiryID,
		"wait_entry_id", entry.ID)

	return &model.AssignmentResult{
		Assigned:         false,
		Reason:           "no representative available",
		WaitQueueEntryID: entry.ID,
		RecommendedActions: []string{
			"Notify sales ops that leads are waiting",
		},
	}, nil
}

// SweepWaitQueue re-submits parked leads as assignment jobs. Called when
// representative capacity frees up.
func (e *Engine) SweepWaitQueue(ctx context.Context, limit int) (int, error) {
	entries, err := e.waitQueue.ListWaiting(ctx, limit)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, entry := range entries {
		payload := jobs.AssignLead{
			CustomerID: entry.CustomerID,
			InquiryID:  entry.InquiryID,
			Urgency:    urgencyForWaitPriority(entry.Priority),
			Source:     "wait_queue",
		}
		if err := e.dispatcher.Enqueue(ctx, jobs.TypeAssignLead, payload); err != nil {
			return submitted, err
		}
		submitted++
	}
	return submitted, nil
}

// ExpireStaleWaitEntries retires entries that waited longer than ttl.
func (e *Engine) ExpireStaleWaitEntries(ctx context.Context, ttl time.Duration) (int64, error) {
	return e.waitQueue.ExpireOlderThan(ctx, e.now().Add(-ttl))
}

func (e *Engine) notifyRepresentative(ctx context.Context, rep *model.Representative, a *model.LeadAssignment, criteria model.AssignmentCriteria) {
	if rep.Email == "" {
		return
	}
	payload := jobs.SendSingleEmail{
		To:      rep.Email,
		Subject: "New lead assigned to you",
		Content: fmt.Sprintf("A new lead (score %.0f, urgency %s) has been assigned to you. Assignment #%d.",
			criteria.LeadScore, a.Urgency, a.ID),
		Priority: 1,
	}
	if err := e.dispatcher.Enqueue(ctx, jobs.TypeSendSingleEmail, payload, jobs.HighPriority()); err != nil {
		logger.Error("failed to enqueue representative notification",
			"assignment_id", a.ID, "error", err)
	}
}

// acknowledgeCustomer sends a transactional confirmation. It bypasses the
// marketing opt-out gate because the customer initiated the contact.
func (e *Engine) acknowledgeCustomer(ctx context.Context, criteria model.AssignmentCriteria) {
	email, name := e.resolveContact(ctx, criteria.Lead)
	if email == "" {
		return
	}

	payload := jobs.SendSingleEmail{
		To:      email,
		Subject: "We received your inquiry",
		Content: "Hi {{firstName}}, thanks for reaching out. One of our sales team members will contact you shortly.",
		PersonalizationData: map[string]string{
			"firstName": name,
		},
		CustomerID: criteria.Lead.CustomerID,
	}
	if err := e.dispatcher.Enqueue(ctx, jobs.TypeSendSingleEmail, payload); err != nil {
		logger.Error("failed to enqueue customer acknowledgment", "error", err)
	}
}

func (e *Engine) resolveContact(ctx context.Context, lead model.LeadRef) (email, firstName string) {
	if lead.CustomerID != nil {
		c, err := e.customers.Get(ctx, *lead.CustomerID)
		if err != nil {
			return "", ""
		}
		return c.Email, c.FirstName
	}
	if lead.InquiryID != nil {
		inq, err := e.inquiries.Get(ctx, *lead.InquiryID)
		if err != nil {
			return "", ""
		}
		return inq.Email, inq.FirstName
	}
	return "", ""
}

func normalizeUrgency(u model.Urgency) model.Urgency {
	switch u {
	case model.UrgencyHigh, model.UrgencyNormal, model.UrgencyLow:
		return u
	default:
		return model.UrgencyNormal
	}
}

func waitPriority(u model.Urgency) int {
	switch u {
	case model.UrgencyHigh:
		return 1
	case model.UrgencyLow:
		return 5
	default:
		return 3
	}
}

func urgencyForWaitPriority(p int) model.Urgency {
	switch {
	case p <= 1:
		return model.UrgencyHigh
	case p >= 5:
		return model.UrgencyLow
	default:
		return model.UrgencyNormal
	}
}
