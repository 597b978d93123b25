package repository

import (
	"context"
	"errors"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrLeadScoreNotFound = errors.New("lead score not found")
)

// LeadScoreRepository is append-only: every scoring run inserts a new row
// so the score history stays auditable. There is no update path.
type LeadScoreRepository struct {
	*pg.DB
}

func NewLeadScoreRepository(db *pg.DB) *LeadScoreRepository {
	return &LeadScoreRepository{
		db,
	}
}

func (r *LeadScoreRepository) Append(ctx context.Context, score *model.LeadScore) (*model.LeadScore, error) {
	entity := toLeadScoreEntity(score)
	entity.ID = 0

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toLeadScoreModel(entity), nil
}

// Latest returns the most recent score row for the lead.
func (r *LeadScoreRepository) Latest(ctx context.Context, ref model.LeadRef) (*model.LeadScore, error) {
	var entity LeadScoreEntity
	err := r.leadQuery(ctx, ref).
		Order("id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadScoreNotFound
		}
		return nil, err
	}
	return toLeadScoreModel(&entity), nil
}

// History returns the lead's score rows, newest first.
func (r *LeadScoreRepository) History(ctx context.Context, ref model.LeadRef, limit int) ([]*model.LeadScore, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	var entities []*LeadScoreEntity
	err := r.leadQuery(ctx, ref).
		Order("id DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toLeadScoreModels(entities), nil
}

func (r *LeadScoreRepository) leadQuery(ctx context.Context, ref model.LeadRef) *gorm.DB {
	q := r.Read(ctx).WithContext(ctx).Model(&LeadScoreEntity{})
	if ref.CustomerID != nil {
		q = q.Where("customer_id = ?", *ref.CustomerID)
	}
	if ref.InquiryID != nil {
		q = q.Where("inquiry_id = ?", *ref.InquiryID)
	}
	return q
}
