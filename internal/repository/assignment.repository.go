package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
)

type AssignmentRepository struct {
	*pg.DB
}

func NewAssignmentRepository(db *pg.DB) *AssignmentRepository {
	return &AssignmentRepository{
		db,
	}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *model.LeadAssignment) (*model.LeadAssignment, error) {
	entity := toAssignmentEntity(a)
	entity.ID = 0
	if entity.AssignedAt.IsZero() {
		entity.AssignedAt = time.Now()
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toAssignmentModel(entity), nil
}

func (r *AssignmentRepository) Get(ctx context.Context, id int64) (*model.LeadAssignment, error) {
	var entity LeadAssignmentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return toAssignmentModel(&entity), nil
}

// FindOpenForLead is the existence guard backing the one-open-assignment
// rule. CLOSED and EXPIRED rows never block a new assignment.
func (r *AssignmentRepository) FindOpenForLead(ctx context.Context, lead model.LeadRef) (*model.LeadAssignment, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&LeadAssignmentEntity{}).
		Where("status IN ?", statusStrings(model.OpenAssignmentStatuses))

	q = leadFilter(q, lead)

	var entity LeadAssignmentEntity
	if err := q.Order("id DESC").First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return toAssignmentModel(&entity), nil
}

// UpdateStatus moves an assignment along its lifecycle. The transition table
// is checked first and the write is guarded on the status the caller read,
// so concurrent updaters cannot both win.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id int64, to model.AssignmentStatus) (*model.LeadAssignment, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: assignment %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	res := r.Write(ctx).WithContext(ctx).
		Model(&LeadAssignmentEntity{}).
		Where("id = ? AND status = ?", id, string(current.Status)).
		Update("status", string(to))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: assignment %d changed concurrently", ErrInvalidTransition, id)
	}

	current.Status = to
	return current, nil
}

// CloseWithTasks moves an assignment to a terminal status and cancels its
// pending follow-up tasks in the same transaction, so a closed lead never
// triggers a reminder.
func (r *AssignmentRepository) CloseWithTasks(ctx context.Context, id int64, to model.AssignmentStatus) (*model.LeadAssignment, error) {
	if to != model.AssignmentStatusClosed && to != model.AssignmentStatusExpired {
		return nil, fmt.Errorf("%w: %s is not a terminal assignment status", ErrInvalidTransition, to)
	}

	var closed *model.LeadAssignment
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		a, err := r.UpdateStatus(ctx, id, to)
		if err != nil {
			return err
		}
		closed = a

		return r.Write(ctx).WithContext(ctx).
			Model(&FollowUpTaskEntity{}).
			Where("assignment_id = ? AND status = ?", id, string(model.FollowUpStatusPending)).
			Update("status", string(model.FollowUpStatusCancelled)).
			Error
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (r *AssignmentRepository) ListByRepresentative(ctx context.Context, repID int64, statuses []model.AssignmentStatus) ([]*model.LeadAssignment, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&LeadAssignmentEntity{}).
		Where("representative_id = ?", repID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(statuses))
	}

	var entities []*LeadAssignmentEntity
	if err := q.Order("id DESC").Find(&entities).Error; err != nil {
		return nil, err
	}

	out := make([]*model.LeadAssignment, 0, len(entities))
	for _, e := range entities {
		out = append(out, toAssignmentModel(e))
	}
	return out, nil
}

func statusStrings(statuses []model.AssignmentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func leadFilter(q *gorm.DB, lead model.LeadRef) *gorm.DB {
	if lead.CustomerID != nil {
		q = q.Where("customer_id = ?", *lead.CustomerID)
	}
	if lead.InquiryID != nil {
		q = q.Where("inquiry_id = ?", *lead.InquiryID)
	}
	return q
}
