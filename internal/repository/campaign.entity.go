package repository

import (
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
)

type CampaignEntity struct {
	ID              int64      `gorm:"primaryKey;autoIncrement;column:id"`
	Name            string     `gorm:"column:name;not null"`
	Channel         string     `gorm:"column:channel;not null"`
	Subject         string     `gorm:"column:subject"`
	Template        string     `gorm:"column:template;not null"`
	HTMLTemplate    string     `gorm:"column:html_template"`
	SenderName      string     `gorm:"column:sender_name"`
	TargetKind      string     `gorm:"column:target_kind;not null"`
	SegmentID       *int64     `gorm:"column:segment_id"`
	AudienceRule    string     `gorm:"column:audience_rule"`
	Status          string     `gorm:"column:status;not null;index"`
	ScheduledAt     *time.Time `gorm:"column:scheduled_at"`
	SentAt          *time.Time `gorm:"column:sent_at"`
	TotalRecipients int        `gorm:"column:total_recipients;default:0"`
	SentCount       int        `gorm:"column:sent_count;default:0"`
	DeliveredCount  int        `gorm:"column:delivered_count;default:0"`
	BouncedCount    int        `gorm:"column:bounced_count;default:0"`
	FailedCount     int        `gorm:"column:failed_count;default:0"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

type DeliveryLogEntity struct {
	ID                int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Channel           string    `gorm:"column:channel;not null"`
	CampaignID        *int64    `gorm:"column:campaign_id;index"`
	CustomerID        *int64    `gorm:"column:customer_id;index"`
	Recipient         string    `gorm:"column:recipient;not null"`
	Subject           string    `gorm:"column:subject"`
	Content           string    `gorm:"column:content"`
	Status            string    `gorm:"column:status;not null;index"`
	ProviderMessageID string    `gorm:"column:provider_message_id;index"`
	ErrorMessage      string    `gorm:"column:error_message"`
	Cost              float64   `gorm:"column:cost;default:0"`
	Segments          int       `gorm:"column:segments;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DeliveryLogEntity) TableName() string {
	return "delivery_logs"
}

func toCampaignEntity(c *model.Campaign) *CampaignEntity {
	if c == nil {
		return nil
	}
	return &CampaignEntity{
		ID:              c.ID,
		Name:            c.Name,
		Channel:         string(c.Channel),
		Subject:         c.Subject,
		Template:        c.Template,
		HTMLTemplate:    c.HTMLTemplate,
		SenderName:      c.SenderName,
		TargetKind:      string(c.TargetKind),
		SegmentID:       c.SegmentID,
		AudienceRule:    c.AudienceRule,
		Status:          string(c.Status),
		ScheduledAt:     c.ScheduledAt,
		SentAt:          c.SentAt,
		TotalRecipients: c.TotalRecipients,
		SentCount:       c.SentCount,
		DeliveredCount:  c.DeliveredCount,
		BouncedCount:    c.BouncedCount,
		FailedCount:     c.FailedCount,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:              e.ID,
		Name:            e.Name,
		Channel:         model.Channel(e.Channel),
		Subject:         e.Subject,
		Template:        e.Template,
		HTMLTemplate:    e.HTMLTemplate,
		SenderName:      e.SenderName,
		TargetKind:      model.TargetKind(e.TargetKind),
		SegmentID:       e.SegmentID,
		AudienceRule:    e.AudienceRule,
		Status:          model.CampaignStatus(e.Status),
		ScheduledAt:     e.ScheduledAt,
		SentAt:          e.SentAt,
		TotalRecipients: e.TotalRecipients,
		SentCount:       e.SentCount,
		DeliveredCount:  e.DeliveredCount,
		BouncedCount:    e.BouncedCount,
		FailedCount:     e.FailedCount,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toDeliveryLogEntity(l *model.DeliveryLog) *DeliveryLogEntity {
	if l == nil {
		return nil
	}
	return &DeliveryLogEntity{
		ID:                l.ID,
		Channel:           string(l.Channel),
		CampaignID:        l.CampaignID,
		CustomerID:        l.CustomerID,
		Recipient:         l.Recipient,
		Subject:           l.Subject,
		Content:           l.Content,
		Status:            string(l.Status),
		ProviderMessageID: l.ProviderMessageID,
		ErrorMessage:      l.ErrorMessage,
		Cost:              l.Cost,
		Segments:          l.Segments,
		CreatedAt:         l.CreatedAt,
	}
}

func toDeliveryLogModel(e *DeliveryLogEntity) *model.DeliveryLog {
	if e == nil {
		return nil
	}
	return &model.DeliveryLog{
		ID:                e.ID,
		Channel:           model.Channel(e.Channel),
		CampaignID:        e.CampaignID,
		CustomerID:        e.CustomerID,
		Recipient:         e.Recipient,
		Subject:           e.Subject,
		Content:           e.Content,
		Status:            model.DeliveryStatus(e.Status),
		ProviderMessageID: e.ProviderMessageID,
		ErrorMessage:      e.ErrorMessage,
		Cost:              e.Cost,
		Segments:          e.Segments,
		CreatedAt:         e.CreatedAt,
	}
}
