package repository

import (
	"context"
	"errors"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrDeliveryLogNotFound = errors.New("delivery log not found")
)

// DeliveryLogRepository is append-only. Provider callbacks append a new row
// rather than editing the SENT row, so the send history stays auditable.
type DeliveryLogRepository struct {
	*pg.DB
}

func NewDeliveryLogRepository(db *pg.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{
		db,
	}
}

func (r *DeliveryLogRepository) Append(ctx context.Context, l *model.DeliveryLog) (*model.DeliveryLog, error) {
	entity := toDeliveryLogEntity(l)
	entity.ID = 0

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toDeliveryLogModel(entity), nil
}

// LatestByProviderMessageID resolves a provider callback to the send it
// refers to. The newest row wins when a message has multiple entries.
func (r *DeliveryLogRepository) LatestByProviderMessageID(ctx context.Context, providerMessageID string) (*model.DeliveryLog, error) {
	if providerMessageID == "" {
		return nil, ErrDeliveryLogNotFound
	}

	var entity DeliveryLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		Order("id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryLogNotFound
		}
		return nil, err
	}
	return toDeliveryLogModel(&entity), nil
}

// HasStatusForProviderMessageID reports whether the given terminal status was
// already recorded for a provider message, which keeps replayed callbacks
// from double-counting.
func (r *DeliveryLogRepository) HasStatusForProviderMessageID(ctx context.Context, providerMessageID string, status model.DeliveryStatus) (bool, error) {
	var total int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&DeliveryLogEntity{}).
		Where("provider_message_id = ? AND status = ?", providerMessageID, string(status)).
		Count(&total).
		Error
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

func (r *DeliveryLogRepository) ListForCampaign(ctx context.Context, campaignID int64, limit, offset int) ([]*model.DeliveryLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var entities []*DeliveryLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.DeliveryLog, 0, len(entities))
	for _, e := range entities {
		out = append(out, toDeliveryLogModel(e))
	}
	return out, nil
}

func (r *DeliveryLogRepository) ListForCustomer(ctx context.Context, customerID int64, limit int) ([]*model.DeliveryLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var entities []*DeliveryLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("id DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.DeliveryLog, 0, len(entities))
	for _, e := range entities {
		out = append(out, toDeliveryLogModel(e))
	}
	return out, nil
}
