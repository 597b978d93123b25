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
	ErrCustomerNotFound = errors.New("customer not found")
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCustomerModel(entity), nil
}

func (r *CustomerRepository) Get(ctx context.Context, id int64) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

// FindByContact resolves a customer by email or phone; engagement webhooks
// often carry only one of the two.
func (r *CustomerRepository) FindByContact(ctx context.Context, email, phone string) (*model.Customer, error) {
	if email == "" && phone == "" {
		return nil, ErrCustomerNotFound
	}

	q := r.Read(ctx).WithContext(ctx).Model(&CustomerEntity{})
	switch {
	case email != "" && phone != "":
		q = q.Where("email = ? OR phone = ?", email, phone)
	case email != "":
		q = q.Where("email = ?", email)
	default:
		q = q.Where("phone = ?", phone)
	}

	var entity CustomerEntity
	if err := q.First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

// ListActiveOptedIn pages through the fallback campaign audience: active
// customers with marketing consent and an address on the channel.
func (r *CustomerRepository) ListActiveOptedIn(ctx context.Context, ch model.Channel, limit, offset int) ([]*model.Customer, error) {
	q := r.optedInQuery(ctx, ch)

	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var entities []*CustomerEntity
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, err
	}
	return toCustomerModels(entities), nil
}

func (r *CustomerRepository) CountActiveOptedIn(ctx context.Context, ch model.Channel) (int64, error) {
	var total int64
	if err := r.optedInQuery(ctx, ch).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *CustomerRepository) optedInQuery(ctx context.Context, ch model.Channel) *gorm.DB {
	q := r.Read(ctx).WithContext(ctx).Model(&CustomerEntity{}).
		Where("active = ?", true).
		Where("marketing_opt_in = ?", true)

	if ch == model.ChannelSMS {
		q = q.Where("sms_opt_in = ?", true).Where("phone <> ''")
	} else {
		q = q.Where("email_opt_in = ?", true).Where("email <> ''")
	}
	return q
}

// CreateEngagementEvent records a touchpoint feeding the engagement scoring
// factor.
func (r *CustomerRepository) CreateEngagementEvent(ctx context.Context, e *model.EngagementEvent) (*model.EngagementEvent, error) {
	entity := &EngagementEventEntity{
		CustomerID: e.CustomerID,
		Type:       string(e.Type),
		Points:     e.Points,
		Metadata:   e.Metadata,
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	e.ID = entity.ID
	e.CreatedAt = entity.CreatedAt
	return e, nil
}

// EngagementCounts aggregates touchpoints per type for one customer.
func (r *CustomerRepository) EngagementCounts(ctx context.Context, customerID int64) (map[model.EngagementType]int64, error) {
	type row struct {
		Type  string
		Count int64
	}
	var rows []row
	err := r.Read(ctx).WithContext(ctx).
		Model(&EngagementEventEntity{}).
		Select("type, COUNT(*) AS count").
		Where("customer_id = ?", customerID).
		Group("type").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.EngagementType]int64, len(rows))
	for _, rw := range rows {
		counts[model.EngagementType(rw.Type)] = rw.Count
	}
	return counts, nil
}

func (r *CustomerRepository) CreatePurchase(ctx context.Context, p *model.Purchase) (*model.Purchase, error) {
	entity := &PurchaseEntity{
		CustomerID: p.CustomerID,
		VehicleID:  p.VehicleID,
		Amount:     p.Amount,
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	p.ID = entity.ID
	p.CreatedAt = entity.CreatedAt
	return p, nil
}

// PurchaseSummary aggregates purchase history for scoring, including the
// month-over-month revenue trend used by the market multiplier.
func (r *CustomerRepository) PurchaseSummary(ctx context.Context, customerID int64, now time.Time) (*model.PurchaseSummary, error) {
	type agg struct {
		Count   int64
		Total   float64
		FirstAt *time.Time
		LastAt  *time.Time
	}
	var a agg
	err := r.Read(ctx).WithContext(ctx).
		Model(&PurchaseEntity{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total, MIN(created_at) AS first_at, MAX(created_at) AS last_at").
		Where("customer_id = ?", customerID).
		Find(&a).
		Error
	if err != nil {
		return nil, err
	}

	summary := &model.PurchaseSummary{
		Count:       a.Count,
		TotalAmount: a.Total,
		FirstAt:     a.FirstAt,
		LastAt:      a.LastAt,
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	prevStart := monthStart.AddDate(0, -1, 0)

	current, err := r.revenueBetween(ctx, monthStart, now)
	if err != nil {
		return nil, err
	}
	previous, err := r.revenueBetween(ctx, prevStart, monthStart)
	if err != nil {
		return nil, err
	}
	if previous > 0 {
		summary.MonthlyTrend = (current - previous) / previous
	}

	return summary, nil
}

func (r *CustomerRepository) revenueBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.Read(ctx).WithContext(ctx).
		Model(&PurchaseEntity{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("created_at >= ? AND created_at < ?", from, to).
		Scan(&total).
		Error
	return total, err
}
