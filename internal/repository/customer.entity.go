package repository

import (
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
)

type CustomerEntity struct {
	ID             int64      `gorm:"primaryKey;autoIncrement;column:id"`
	FirstName      string     `gorm:"column:first_name"`
	LastName       string     `gorm:"column:last_name"`
	Email          string     `gorm:"column:email;index"`
	EmailVerified  bool       `gorm:"column:email_verified;default:false"`
	Phone          string     `gorm:"column:phone;index"`
	Address        string     `gorm:"column:address"`
	BirthDate      *time.Time `gorm:"column:birth_date"`
	EmailOptIn     bool       `gorm:"column:email_opt_in;default:false"`
	SMSOptIn       bool       `gorm:"column:sms_opt_in;default:false"`
	MarketingOptIn bool       `gorm:"column:marketing_opt_in;default:false"`
	Active         bool       `gorm:"column:active;default:true;index"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

type EngagementEventEntity struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID int64     `gorm:"column:customer_id;not null;index"`
	Type       string    `gorm:"column:type;not null"`
	Points     int       `gorm:"column:points;not null;default:0"`
	Metadata   string    `gorm:"column:metadata"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (EngagementEventEntity) TableName() string {
	return "engagement_events"
}

type PurchaseEntity struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID int64     `gorm:"column:customer_id;not null;index"`
	VehicleID  *int64    `gorm:"column:vehicle_id"`
	Amount     float64   `gorm:"column:amount;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PurchaseEntity) TableName() string {
	return "purchases"
}

// SegmentMemberEntity joins customers into campaign segments.
type SegmentMemberEntity struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	SegmentID  int64     `gorm:"column:segment_id;not null;index"`
	CustomerID int64     `gorm:"column:customer_id;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SegmentMemberEntity) TableName() string {
	return "segment_members"
}

type SegmentEntity struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SegmentEntity) TableName() string {
	return "segments"
}

func toCustomerEntity(c *model.Customer) *CustomerEntity {
	if c == nil {
		return nil
	}
	return &CustomerEntity{
		ID:             c.ID,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		EmailVerified:  c.EmailVerified,
		Phone:          c.Phone,
		Address:        c.Address,
		BirthDate:      c.BirthDate,
		EmailOptIn:     c.EmailOptIn,
		SMSOptIn:       c.SMSOptIn,
		MarketingOptIn: c.MarketingOptIn,
		Active:         c.Active,
		CreatedAt:      c.CreatedAt,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:             e.ID,
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		Email:          e.Email,
		EmailVerified:  e.EmailVerified,
		Phone:          e.Phone,
		Address:        e.Address,
		BirthDate:      e.BirthDate,
		EmailOptIn:     e.EmailOptIn,
		SMSOptIn:       e.SMSOptIn,
		MarketingOptIn: e.MarketingOptIn,
		Active:         e.Active,
		CreatedAt:      e.CreatedAt,
	}
}

func toCustomerModels(entities []*CustomerEntity) []*model.Customer {
	if entities == nil {
		return nil
	}
	models := make([]*model.Customer, len(entities))
	for i, e := range entities {
		models[i] = toCustomerModel(e)
	}
	return models
}
