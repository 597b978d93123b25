package repository

import (
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
)

type InquiryEntity struct {
	ID          int64      `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID  *int64     `gorm:"column:customer_id;index"`
	FirstName   string     `gorm:"column:first_name"`
	LastName    string     `gorm:"column:last_name"`
	Email       string     `gorm:"column:email;index"`
	Phone       string     `gorm:"column:phone"`
	Type        string     `gorm:"column:type;not null"`
	Message     string     `gorm:"column:message"`
	VehicleID   *int64     `gorm:"column:vehicle_id"`
	Status      string     `gorm:"column:status;not null;default:NEW;index"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	RespondedAt *time.Time `gorm:"column:responded_at"`
}

func (InquiryEntity) TableName() string {
	return "inquiries"
}

type VehicleEntity struct {
	ID           int64   `gorm:"primaryKey;autoIncrement;column:id"`
	Make         string  `gorm:"column:make"`
	Model        string  `gorm:"column:model"`
	Year         int     `gorm:"column:year"`
	FuelType     string  `gorm:"column:fuel_type"`
	Price        float64 `gorm:"column:price"`
	MarketPrice  float64 `gorm:"column:market_price"`
	ViewCount    int     `gorm:"column:view_count;default:0"`
	InquiryCount int     `gorm:"column:inquiry_count;default:0"`
}

func (VehicleEntity) TableName() string {
	return "vehicles"
}

func toInquiryEntity(i *model.Inquiry) *InquiryEntity {
	if i == nil {
		return nil
	}
	return &InquiryEntity{
		ID:          i.ID,
		CustomerID:  i.CustomerID,
		FirstName:   i.FirstName,
		LastName:    i.LastName,
		Email:       i.Email,
		Phone:       i.Phone,
		Type:        string(i.Type),
		Message:     i.Message,
		VehicleID:   i.VehicleID,
		Status:      string(i.Status),
		CreatedAt:   i.CreatedAt,
		RespondedAt: i.RespondedAt,
	}
}

func toInquiryModel(e *InquiryEntity) *model.Inquiry {
	if e == nil {
		return nil
	}
	return &model.Inquiry{
		ID:          e.ID,
		CustomerID:  e.CustomerID,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Email:       e.Email,
		Phone:       e.Phone,
		Type:        model.InquiryType(e.Type),
		Message:     e.Message,
		VehicleID:   e.VehicleID,
		Status:      model.InquiryStatus(e.Status),
		CreatedAt:   e.CreatedAt,
		RespondedAt: e.RespondedAt,
	}
}

func toInquiryModels(entities []*InquiryEntity) []*model.Inquiry {
	if entities == nil {
		return nil
	}
	models := make([]*model.Inquiry, len(entities))
	for i, e := range entities {
		models[i] = toInquiryModel(e)
	}
	return models
}

func toVehicleModel(e *VehicleEntity) *model.Vehicle {
	if e == nil {
		return nil
	}
	return &model.Vehicle{
		ID:           e.ID,
		Make:         e.Make,
		Model:        e.Model,
		Year:         e.Year,
		FuelType:     e.FuelType,
		Price:        e.Price,
		MarketPrice:  e.MarketPrice,
		ViewCount:    e.ViewCount,
		InquiryCount: e.InquiryCount,
	}
}
