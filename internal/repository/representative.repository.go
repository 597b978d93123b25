package repository

import (
	"context"
	"errors"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrRepresentativeNotFound = errors.New("representative not found")
)

type RepresentativeRepository struct {
	*pg.DB
}

func NewRepresentativeRepository(db *pg.DB) *RepresentativeRepository {
	return &RepresentativeRepository{
		db,
	}
}

func (r *RepresentativeRepository) Create(ctx context.Context, rep *model.Representative) (*model.Representative, error) {
	entity := toRepresentativeEntity(rep)
	entity.ID = 0
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toRepresentativeModel(entity), nil
}

func (r *RepresentativeRepository) Get(ctx context.Context, id int64) (*model.Representative, error) {
	var entity RepresentativeEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRepresentativeNotFound
		}
		return nil, err
	}
	return toRepresentativeModel(&entity), nil
}

// ListAvailable returns active, available reps ordered by current load so
// the matcher can prefer the least loaded candidate on a score tie.
// Specialty, location, and price matching happen in the matcher; they live
// in JSON columns the database cannot index usefully.
func (r *RepresentativeRepository) ListAvailable(ctx context.Context) ([]*model.Representative, error) {
	var entities []*RepresentativeEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("active = ? AND available = ?", true, true).
		Order("current_load ASC, id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.Representative, 0, len(entities))
	for _, e := range entities {
		out = append(out, toRepresentativeModel(e))
	}
	return out, nil
}

// AdjustLoad bumps a representative's live assignment count. Delta may be
// negative when an assignment closes; the load never drops below zero.
func (r *RepresentativeRepository) AdjustLoad(ctx context.Context, id int64, delta int) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&RepresentativeEntity{}).
		Where("id = ?", id).
		Update("current_load", gorm.Expr("CASE WHEN current_load + ? < 0 THEN 0 ELSE current_load + ? END", delta, delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRepresentativeNotFound
	}
	return nil
}

func (r *RepresentativeRepository) SetAvailable(ctx context.Context, id int64, available bool) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&RepresentativeEntity{}).
		Where("id = ?", id).
		Update("available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRepresentativeNotFound
	}
	return nil
}
