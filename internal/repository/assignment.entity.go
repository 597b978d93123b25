package repository

import (
	"encoding/json"
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
)

type LeadAssignmentEntity struct {
	ID               int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID       *int64    `gorm:"column:customer_id;index"`
	InquiryID        *int64    `gorm:"column:inquiry_id;index"`
	RepresentativeID int64     `gorm:"column:representative_id;not null;index"`
	Status           string    `gorm:"column:status;not null;index"`
	AssignedAt       time.Time `gorm:"column:assigned_at"`
	Confidence       float64   `gorm:"column:confidence"`
	AssignmentReason string    `gorm:"column:assignment_reason"`
	Urgency          string    `gorm:"column:urgency"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (LeadAssignmentEntity) TableName() string {
	return "lead_assignments"
}

type WaitQueueEntity struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID *int64    `gorm:"column:customer_id;index"`
	InquiryID  *int64    `gorm:"column:inquiry_id;index"`
	Priority   int       `gorm:"column:priority;not null;default:3"`
	Reason     string    `gorm:"column:reason"`
	Status     string    `gorm:"column:status;not null;index"`
	Attempts   int       `gorm:"column:attempts;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (WaitQueueEntity) TableName() string {
	return "wait_queue_entries"
}

type FollowUpTaskEntity struct {
	ID               int64      `gorm:"primaryKey;autoIncrement;column:id"`
	AssignmentID     int64      `gorm:"column:assignment_id;not null;index"`
	RepresentativeID int64      `gorm:"column:representative_id;not null;index"`
	Type             string     `gorm:"column:type;not null"`
	DueAt            time.Time  `gorm:"column:due_at;not null;index"`
	Status           string     `gorm:"column:status;not null;index"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
}

func (FollowUpTaskEntity) TableName() string {
	return "follow_up_tasks"
}

// RepresentativeEntity stores specialties and locations as JSON text so the
// same schema works on postgres and the sqlite test database.
type RepresentativeEntity struct {
	ID          int64   `gorm:"primaryKey;autoIncrement;column:id"`
	Name        string  `gorm:"column:name;not null"`
	Email       string  `gorm:"column:email"`
	Phone       string  `gorm:"column:phone"`
	Active      bool    `gorm:"column:active;default:true;index"`
	Available   bool    `gorm:"column:available;default:true;index"`
	Specialties string  `gorm:"column:specialties"`
	Locations   string  `gorm:"column:locations"`
	MinPrice    float64 `gorm:"column:min_price;default:0"`
	MaxPrice    float64 `gorm:"column:max_price;default:0"`
	CurrentLoad int     `gorm:"column:current_load;default:0"`
	MaxLoad     int     `gorm:"column:max_load;default:0"`
}

func (RepresentativeEntity) TableName() string {
	return "representatives"
}

func toAssignmentEntity(a *model.LeadAssignment) *LeadAssignmentEntity {
	if a == nil {
		return nil
	}
	return &LeadAssignmentEntity{
		ID:               a.ID,
		CustomerID:       a.CustomerID,
		InquiryID:        a.InquiryID,
		RepresentativeID: a.RepresentativeID,
		Status:           string(a.Status),
		AssignedAt:       a.AssignedAt,
		Confidence:       a.Confidence,
		AssignmentReason: a.AssignmentReason,
		Urgency:          string(a.Urgency),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func toAssignmentModel(e *LeadAssignmentEntity) *model.LeadAssignment {
	if e == nil {
		return nil
	}
	return &model.LeadAssignment{
		ID:               e.ID,
		CustomerID:       e.CustomerID,
		InquiryID:        e.InquiryID,
		RepresentativeID: e.RepresentativeID,
		Status:           model.AssignmentStatus(e.Status),
		AssignedAt:       e.AssignedAt,
		Confidence:       e.Confidence,
		AssignmentReason: e.AssignmentReason,
		Urgency:          model.Urgency(e.Urgency),
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func toWaitQueueModel(e *WaitQueueEntity) *model.WaitQueueEntry {
	if e == nil {
		return nil
	}
	return &model.WaitQueueEntry{
		ID:         e.ID,
		CustomerID: e.CustomerID,
		InquiryID:  e.InquiryID,
		Priority:   e.Priority,
		Reason:     e.Reason,
		Status:     model.WaitStatus(e.Status),
		Attempts:   e.Attempts,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func toFollowUpModel(e *FollowUpTaskEntity) *model.FollowUpTask {
	if e == nil {
		return nil
	}
	return &model.FollowUpTask{
		ID:               e.ID,
		AssignmentID:     e.AssignmentID,
		RepresentativeID: e.RepresentativeID,
		Type:             model.FollowUpType(e.Type),
		DueAt:            e.DueAt,
		Status:           model.FollowUpStatus(e.Status),
		CreatedAt:        e.CreatedAt,
		CompletedAt:      e.CompletedAt,
	}
}

func toRepresentativeModel(e *RepresentativeEntity) *model.Representative {
	if e == nil {
		return nil
	}

	rep := &model.Representative{
		ID:          e.ID,
		Name:        e.Name,
		Email:       e.Email,
		Phone:       e.Phone,
		Active:      e.Active,
		Available:   e.Available,
		MinPrice:    e.MinPrice,
		MaxPrice:    e.MaxPrice,
		CurrentLoad: e.CurrentLoad,
		MaxLoad:     e.MaxLoad,
	}
	if e.Specialties != "" {
		_ = json.Unmarshal([]byte(e.Specialties), &rep.Specialties)
	}
	if e.Locations != "" {
		_ = json.Unmarshal([]byte(e.Locations), &rep.Locations)
	}
	return rep
}

func toRepresentativeEntity(rep *model.Representative) *RepresentativeEntity {
	if rep == nil {
		return nil
	}

	specialties, _ := json.Marshal(rep.Specialties)
	locations, _ := json.Marshal(rep.Locations)

	return &RepresentativeEntity{
		ID:          rep.ID,
		Name:        rep.Name,
		Email:       rep.Email,
		Phone:       rep.Phone,
		Active:      rep.Active,
		Available:   rep.Available,
		Specialties: string(specialties),
		Locations:   string(locations),
		MinPrice:    rep.MinPrice,
		MaxPrice:    rep.MaxPrice,
		CurrentLoad: rep.CurrentLoad,
		MaxLoad:     rep.MaxLoad,
	}
}
