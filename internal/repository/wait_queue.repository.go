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
	ErrWaitEntryNotFound = errors.New("wait queue entry not found")
)

type WaitQueueRepository struct {
	*pg.DB
}

func NewWaitQueueRepository(db *pg.DB) *WaitQueueRepository {
	return &WaitQueueRepository{
		db,
	}
}

// Enqueue parks a lead that could not be assigned. If the lead already
// has a WAITING entry the attempt counter is bumped instead of inserting
// a duplicate row.
func (r *WaitQueueRepository) Enqueue(ctx context.Context, entry *model.WaitQueueEntry) (*model.WaitQueueEntry, error) {
	existing, err := r.findWaiting(ctx, model.LeadRef{CustomerID: entry.CustomerID, InquiryID: entry.InquiryID})
	if err != nil && !errors.Is(err, ErrWaitEntryNotFound) {
		return nil, err
	}
	if existing != nil {
		res := r.Write(ctx).WithContext(ctx).
			Model(&WaitQueueEntity{}).
			Where("id = ?", existing.ID).
			Update("attempts", gorm.Expr("attempts + 1"))
		if res.Error != nil {
			return nil, res.Error
		}
		existing.Attempts++
		return existing, nil
	}

	entity := &WaitQueueEntity{
		CustomerID: entry.CustomerID,
		InquiryID:  entry.InquiryID,
		Priority:   entry.Priority,
		Reason:     entry.Reason,
		Status:     string(model.WaitStatusWaiting),
		Attempts:   1,
	}
	if entity.Priority <= 0 {
		entity.Priority = 3
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toWaitQueueModel(entity), nil
}

// ListWaiting returns parked leads, most urgent and oldest first, for the
// retry sweep that runs when representative capacity frees up.
func (r *WaitQueueRepository) ListWaiting(ctx context.Context, limit int) ([]*model.WaitQueueEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var entities []*WaitQueueEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ?", string(model.WaitStatusWaiting)).
		Order("priority ASC, created_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.WaitQueueEntry, 0, len(entities))
	for _, e := range entities {
		out = append(out, toWaitQueueModel(e))
	}
	return out, nil
}

func (r *WaitQueueRepository) MarkAssigned(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, model.WaitStatusAssigned)
}

// ExpireOlderThan retires WAITING entries created before the cutoff. Returns
// the number of entries expired.
func (r *WaitQueueRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).
		Model(&WaitQueueEntity{}).
		Where("status = ? AND created_at < ?", string(model.WaitStatusWaiting), cutoff).
		Update("status", string(model.WaitStatusExpired))
	return res.RowsAffected, res.Error
}

func (r *WaitQueueRepository) setStatus(ctx context.Context, id int64, to model.WaitStatus) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&WaitQueueEntity{}).
		Where("id = ? AND status = ?", id, string(model.WaitStatusWaiting)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWaitEntryNotFound
	}
	return nil
}

func (r *WaitQueueRepository) findWaiting(ctx context.Context, lead model.LeadRef) (*model.WaitQueueEntry, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&WaitQueueEntity{}).
		Where("status = ?", string(model.WaitStatusWaiting))
	q = leadFilter(q, lead)

	var entity WaitQueueEntity
	if err := q.First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWaitEntryNotFound
		}
		return nil, err
	}
	return toWaitQueueModel(&entity), nil
}
