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
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrSegmentNotFound  = errors.New("segment not found")
)

// CampaignCounters is a delta applied atomically, so concurrent batch
// workers and delivery receipts never lose increments.
type CampaignCounters struct {
	Sent      int
	Delivered int
	Bounced   int
	Failed    int
}

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := toCampaignEntity(c)
	entity.ID = 0
	if entity.Status == "" {
		entity.Status = string(model.CampaignStatusScheduled)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toCampaignModel(entity), nil
}

func (r *CampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

func (r *CampaignRepository) ListByStatus(ctx context.Context, status model.CampaignStatus, limit int) ([]*model.Campaign, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var entities []*CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ?", string(status)).
		Order("id DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.Campaign, 0, len(entities))
	for _, e := range entities {
		out = append(out, toCampaignModel(e))
	}
	return out, nil
}

// UpdateStatus moves a campaign along SCHEDULED -> SENDING ->
// SENT/FAILED. The write is guarded on the status the caller read, which
// makes the SENDING claim a lock: only one orchestrator wins it.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int64, to model.CampaignStatus) (*model.Campaign, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: campaign %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	updates := map[string]interface{}{"status": string(to)}
	if to == model.CampaignStatusSent {
		now := time.Now()
		updates["sent_at"] = now
		current.SentAt = &now
	}

	res := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ? AND status = ?", id, string(current.Status)).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: campaign %d changed concurrently", ErrInvalidTransition, id)
	}

	current.Status = to
	return current, nil
}

func (r *CampaignRepository) SetTotalRecipients(ctx context.Context, id int64, total int) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Update("total_recipients", total)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// IncrementCounters applies the delta with column expressions so the
// read-modify-write stays inside the database.
func (r *CampaignRepository) IncrementCounters(ctx context.Context, id int64, delta CampaignCounters) error {
	updates := map[string]interface{}{}
	if delta.Sent != 0 {
		updates["sent_count"] = gorm.Expr("sent_count + ?", delta.Sent)
	}
	if delta.Delivered != 0 {
		updates["delivered_count"] = gorm.Expr("delivered_count + ?", delta.Delivered)
	}
	if delta.Bounced != 0 {
		updates["bounced_count"] = gorm.Expr("bounced_count + ?", delta.Bounced)
	}
	if delta.Failed != 0 {
		updates["failed_count"] = gorm.Expr("failed_count + ?", delta.Failed)
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

func (r *CampaignRepository) GetSegment(ctx context.Context, id int64) (*model.Segment, error) {
	var entity SegmentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSegmentNotFound
		}
		return nil, err
	}
	return &model.Segment{ID: entity.ID, Name: entity.Name, Description: entity.Description}, nil
}

// SegmentMemberIDs pages through a segment's membership in id order.
func (r *CampaignRepository) SegmentMemberIDs(ctx context.Context, segmentID int64, limit, offset int) ([]int64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var ids []int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&SegmentMemberEntity{}).
		Where("segment_id = ?", segmentID).
		Order("customer_id ASC").
		Limit(limit).
		Offset(offset).
		Pluck("customer_id", &ids).
		Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *CampaignRepository) CountSegmentMembers(ctx context.Context, segmentID int64) (int64, error) {
	var total int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&SegmentMemberEntity{}).
		Where("segment_id = ?", segmentID).
		Count(&total).
		Error
	return total, err
}
