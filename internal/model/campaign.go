package model

import (
	"errors"
	"time"
)

// TargetKind selects how a campaign resolves its recipient set.
type TargetKind string

const (
	TargetSegment        TargetKind = "segment"
	TargetCustomAudience TargetKind = "custom"
	TargetAllOptedIn     TargetKind = "all"
)

type Campaign struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Channel         Channel        `json:"channel"`
	Subject         string         `json:"subject,omitempty"`
	Template        string         `json:"template"`
	HTMLTemplate    string         `json:"html_template,omitempty"`
	SenderName      string         `json:"sender_name,omitempty"`
	TargetKind      TargetKind     `json:"target_kind"`
	SegmentID       *int64         `json:"segment_id,omitempty"`
	AudienceRule    string         `json:"audience_rule,omitempty"`
	Status          CampaignStatus `json:"status"`
	ScheduledAt     *time.Time     `json:"scheduled_at,omitempty"`
	SentAt          *time.Time     `json:"sent_at,omitempty"`
	TotalRecipients int            `json:"total_recipients"`
	SentCount       int            `json:"sent_count"`
	DeliveredCount  int            `json:"delivered_count"`
	BouncedCount    int            `json:"bounced_count"`
	FailedCount     int            `json:"failed_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Sendable reports whether the campaign may enter dispatch.
func (c *Campaign) Sendable() bool {
	return c.Status == CampaignStatusScheduled
}

type CampaignCreateRequest struct {
	Name         string     `json:"name"`
	Channel      Channel    `json:"channel"`
	Subject      string     `json:"subject"`
	Template     string     `json:"template"`
	HTMLTemplate string     `json:"html_template"`
	SenderName   string     `json:"sender_name"`
	TargetKind   TargetKind `json:"target_kind"`
	SegmentID    *int64     `json:"segment_id"`
	AudienceRule string     `json:"audience_rule"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
}

func (p CampaignCreateRequest) Validate() error {
	if p.Name == "" {
		return errors.New("campaign name is required")
	}
	if p.Channel != ChannelEmail && p.Channel != ChannelSMS {
		return errors.New("channel must be email or sms")
	}
	if p.Template == "" {
		return errors.New("message template is required")
	}
	if p.Channel == ChannelEmail && p.Subject == "" {
		return errors.New("subject is required for email campaigns")
	}
	switch p.TargetKind {
	case TargetSegment:
		if p.SegmentID == nil {
			return errors.New("segment_id is required for segment targeting")
		}
	case TargetCustomAudience, TargetAllOptedIn, "":
	default:
		return errors.New("unknown target kind")
	}
	return nil
}

type Segment struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DeliveryLog is one append-only row per send attempt or provider
// callback. History is never edited in place.
type DeliveryLog struct {
	ID                int64          `json:"id"`
	Channel           Channel        `json:"channel"`
	CampaignID        *int64         `json:"campaign_id,omitempty"`
	CustomerID        *int64         `json:"customer_id,omitempty"`
	Recipient         string         `json:"recipient"`
	Subject           string         `json:"subject,omitempty"`
	Content           string         `json:"content"`
	Status            DeliveryStatus `json:"status"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	Cost              float64        `json:"cost"`
	Segments          int            `json:"segments"`
	CreatedAt         time.Time      `json:"created_at"`
}
