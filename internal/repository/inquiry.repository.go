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
	ErrInquiryNotFound = errors.New("inquiry not found")
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrInvalidTransition is returned when a status change is not in the
	// transition table. Rejected at the data-access boundary so callers
	// cannot write an inconsistent state.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type InquiryRepository struct {
	*pg.DB
}

func NewInquiryRepository(db *pg.DB) *InquiryRepository {
	return &InquiryRepository{
		db,
	}
}

func (r *InquiryRepository) Create(ctx context.Context, inq *model.Inquiry) (*model.Inquiry, error) {
	if inq.Status == "" {
		inq.Status = model.InquiryStatusNew
	}
	entity := toInquiryEntity(inq)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toInquiryModel(entity), nil
}

func (r *InquiryRepository) Get(ctx context.Context, id int64) (*model.Inquiry, error) {
	var entity InquiryEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInquiryNotFound
		}
		return nil, err
	}
	return toInquiryModel(&entity), nil
}

// UpdateStatus moves an inquiry through its lifecycle. The current status
// is part of the WHERE clause so concurrent transitions cannot clobber each
// other.
func (r *InquiryRepository) UpdateStatus(ctx context.Context, id int64, next model.InquiryStatus) error {
	inq, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !inq.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: inquiry %s -> %s", ErrInvalidTransition, inq.Status, next)
	}

	updates := map[string]interface{}{"status": string(next)}
	if next == model.InquiryStatusResponded {
		now := time.Now()
		updates["responded_at"] = &now
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&InquiryEntity{}).
		Where("id = ? AND status = ?", id, string(inq.Status)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: inquiry %d changed concurrently", ErrInvalidTransition, id)
	}
	return nil
}

func (r *InquiryRepository) ListByStatus(ctx context.Context, status model.InquiryStatus, limit int) ([]*model.Inquiry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var entities []*InquiryEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toInquiryModels(entities), nil
}

func (r *InquiryRepository) GetVehicle(ctx context.Context, id int64) (*model.Vehicle, error) {
	var entity VehicleEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return toVehicleModel(&entity), nil
}
