package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrFollowUpNotFound = errors.New("follow-up task not found")
)

type FollowUpRepository struct {
	*pg.DB
}

func NewFollowUpRepository(db *pg.DB) *FollowUpRepository {
	return &FollowUpRepository{
		db,
	}
}

func (r *FollowUpRepository) Create(ctx context.Context, task *model.FollowUpTask) (*model.FollowUpTask, error) {
	entity := &FollowUpTaskEntity{
		AssignmentID:     task.AssignmentID,
		RepresentativeID: task.RepresentativeID,
		Type:             string(task.Type),
		DueAt:            task.DueAt,
		Status:           string(model.FollowUpStatusPending),
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toFollowUpModel(entity), nil
}

func (r *FollowUpRepository) Get(ctx context.Context, id int64) (*model.FollowUpTask, error) {
	var entity FollowUpTaskEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFollowUpNotFound
		}
		return nil, err
	}
	return toFollowUpModel(&entity), nil
}

// Due lists pending tasks whose due time has passed, oldest first.
func (r *FollowUpRepository) Due(ctx context.Context, now time.Time, limit int) ([]*model.FollowUpTask, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entities []*FollowUpTaskEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND due_at <= ?", string(model.FollowUpStatusPending), now).
		Order("due_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.FollowUpTask, 0, len(entities))
	for _, e := range entities {
		out = append(out, toFollowUpModel(e))
	}
	return out, nil
}

func (r *FollowUpRepository) Complete(ctx context.Context, id int64, at time.Time) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&FollowUpTaskEntity{}).
		Where("id = ? AND status = ?", id, string(model.FollowUpStatusPending)).
		Updates(map[string]interface{}{
			"status":       string(model.FollowUpStatusCompleted),
			"completed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFollowUpNotFound
	}
	return nil
}

func (r *FollowUpRepository) Cancel(ctx context.Context, id int64) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&FollowUpTaskEntity{}).
		Where("id = ? AND status = ?", id, string(model.FollowUpStatusPending)).
		Update("status", string(model.FollowUpStatusCancelled))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFollowUpNotFound
	}
	return nil
}
