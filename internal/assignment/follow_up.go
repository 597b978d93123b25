package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
)

type FollowUpStore interface {
	Create(ctx context.Context, task *model.FollowUpTask) (*model.FollowUpTask, error)
}

// FollowUpScheduler creates the initial-contact reminder when a lead is
// assigned. The due time tracks the assignment's urgency.
type FollowUpScheduler struct {
	tasks      FollowUpStore
	dispatcher jobs.Dispatcher
	now        func() time.Time
}

func NewFollowUpScheduler(tasks FollowUpStore, dispatcher jobs.Dispatcher) *FollowUpScheduler {
	return &FollowUpScheduler{
		tasks:      tasks,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

func (s *FollowUpScheduler) Schedule(ctx context.Context, a *model.LeadAssignment) (*model.FollowUpTask, error) {
	due := s.now().Add(DueIn(a.Urgency))

	task, err := s.tasks.Create(ctx, &model.FollowUpTask{
		AssignmentID:     a.ID,
		RepresentativeID: a.RepresentativeID,
		Type:             model.FollowUpTypeInitialContact,
		DueAt:            due,
	})
	if err != nil {
		return nil, fmt.Errorf("create follow-up task: %w", err)
	}

	payload := jobs.FollowUpReminder{
		AssignmentID: a.ID,
		Type:         model.FollowUpTypeInitialContact,
	}
	if err := s.dispatcher.Enqueue(ctx, jobs.TypeFollowUpReminder, payload, jobs.WithDelay(time.Until(due))); err != nil {
		return nil, fmt.Errorf("enqueue follow-up reminder: %w", err)
	}
	return task, nil
}

// DueIn maps urgency to the initial-contact deadline.
func DueIn(u model.Urgency) time.Duration {
	switch u {
	case model.UrgencyHigh:
		return time.Hour
	case model.UrgencyLow:
		return 72 * time.Hour
	default:
		return 24 * time.Hour
	}
}
