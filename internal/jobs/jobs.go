package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
)

// Job type names. Each type is backed by its own queue with its own
// concurrency limit.
const (
	TypeSendSingleEmail    = "send_single_email"
	TypeSendEmailCampaign  = "send_email_campaign"
	TypeProcessEmailBounce = "process_email_bounce"
	TypeSendSingleSMS      = "send_single_sms"
	TypeSendSMSCampaign    = "send_sms_campaign"
	TypeDeliveryReceipt    = "process_delivery_receipt"
	TypeCalculateLeadScore = "calculate_lead_score"
	TypeAssignLead         = "assign_lead"
	TypeUpdateLeadScore    = "update_lead_score"
	TypeFollowUpReminder   = "follow_up_reminder"
)

// Types lists every job type the processor consumes.
var Types = []string{
	TypeSendSingleEmail,
	TypeSendEmailCampaign,
	TypeProcessEmailBounce,
	TypeSendSingleSMS,
	TypeSendSMSCampaign,
	TypeDeliveryReceipt,
	TypeCalculateLeadScore,
	TypeAssignLead,
	TypeUpdateLeadScore,
	TypeFollowUpReminder,
}

// Concurrency is the worker limit per job type. Campaign orchestration runs
// single-flight so only one batch of a campaign is ever being expanded.
var Concurrency = map[string]int{
	TypeSendSingleEmail:    5,
	TypeSendEmailCampaign:  1,
	TypeProcessEmailBounce: 3,
	TypeSendSingleSMS:      3,
	TypeSendSMSCampaign:    1,
	TypeDeliveryReceipt:    3,
	TypeCalculateLeadScore: 2,
	TypeAssignLead:         2,
	TypeUpdateLeadScore:    2,
	TypeFollowUpReminder:   2,
}

// NoRetry marks job types whose failures must not be re-run automatically.
// Re-running a batch orchestration job could re-enqueue recipients that
// were already sent.
var NoRetry = map[string]bool{
	TypeSendEmailCampaign: true,
	TypeSendSMSCampaign:   true,
}

// Option tunes a single enqueue.
type Option func(*EnqueueOptions)

type EnqueueOptions struct {
	Delay        time.Duration
	HighPriority bool
}

func WithDelay(d time.Duration) Option {
	return func(o *EnqueueOptions) { o.Delay = d }
}

func HighPriority() Option {
	return func(o *EnqueueOptions) { o.HighPriority = true }
}

// Dispatcher is the queue-runtime handle components receive. No component
// talks to a global queue instance; an in-memory fake satisfies this in
// tests.
type Dispatcher interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}, opts ...Option) error
}

var ErrUnknownJobType = errors.New("unknown job type")

/* ------------------------------ payloads ---------------------------------- */

type SendSingleEmail struct {
	To                  string            `json:"to"`
	Subject             string            `json:"subject"`
	Content             string            `json:"content"`
	HTMLContent         string            `json:"htmlContent,omitempty"`
	CustomerID          *int64            `json:"customerId,omitempty"`
	CampaignID          *int64            `json:"campaignId,omitempty"`
	PersonalizationData map[string]string `json:"personalizationData,omitempty"`
	Priority            int               `json:"priority,omitempty"`
}

func (p SendSingleEmail) Validate() error {
	if p.To == "" {
		return errors.New("to is required")
	}
	if p.Content == "" && p.HTMLContent == "" {
		return errors.New("content is required")
	}
	return nil
}

type SendSingleSMS struct {
	To                  string            `json:"to"`
	Message             string            `json:"message"`
	MediaURLs           []string          `json:"mediaUrls,omitempty"`
	CustomerID          *int64            `json:"customerId,omitempty"`
	CampaignID          *int64            `json:"campaignId,omitempty"`
	PersonalizationData map[string]string `json:"personalizationData,omitempty"`
	SenderName          string            `json:"senderName,omitempty"`
}

func (p SendSingleSMS) Validate() error {
	if p.To == "" {
		return errors.New("to is required")
	}
	if p.Message == "" {
		return errors.New("message is required")
	}
	return nil
}

type SendCampaign struct {
	CampaignID int64 `json:"campaignId"`
	BatchSize  int   `json:"batchSize,omitempty"`
	StartIndex int   `json:"startIndex,omitempty"`
}

func (p SendCampaign) Validate() error {
	if p.CampaignID == 0 {
		return errors.New("campaignId is required")
	}
	return nil
}

type ProcessEmailBounce struct {
	MessageID  string `json:"messageId"`
	Email      string `json:"email"`
	CampaignID *int64 `json:"campaignId,omitempty"`
	BounceType string `json:"bounceType"`
}

func (p ProcessEmailBounce) Validate() error {
	if p.MessageID == "" {
		return errors.New("messageId is required")
	}
	return nil
}

// DeliveryReceipt is the async provider callback for a send, keyed by the
// provider message id.
type DeliveryReceipt struct {
	MessageID string        `json:"messageId"`
	Channel   model.Channel `json:"channel"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
}

func (p DeliveryReceipt) Validate() error {
	if p.MessageID == "" {
		return errors.New("messageId is required")
	}
	if p.Channel != model.ChannelEmail && p.Channel != model.ChannelSMS {
		return errors.New("channel must be email or sms")
	}
	return nil
}

type CalculateLeadScore struct {
	CustomerID         *int64  `json:"customerId,omitempty"`
	InquiryID          *int64  `json:"inquiryId,omitempty"`
	BatchCustomerIDs   []int64 `json:"batchCustomerIds,omitempty"`
	ForceRecalculation bool    `json:"forceRecalculation,omitempty"`
	Reason             string  `json:"reason,omitempty"`
}

func (p CalculateLeadScore) Validate() error {
	if p.CustomerID == nil && p.InquiryID == nil && len(p.BatchCustomerIDs) == 0 {
		return errors.New("customerId, inquiryId or batchCustomerIds is required")
	}
	return nil
}

type AssignLead struct {
	CustomerID  *int64            `json:"customerId,omitempty"`
	InquiryID   *int64            `json:"inquiryId,omitempty"`
	LeadScore   float64           `json:"leadScore"`
	VehicleType string            `json:"vehicleType,omitempty"`
	PriceRange  *model.PriceRange `json:"priceRange,omitempty"`
	Location    string            `json:"location,omitempty"`
	Urgency     model.Urgency     `json:"urgency"`
	Source      string            `json:"source,omitempty"`
}

func (p AssignLead) Validate() error {
	if p.CustomerID == nil && p.InquiryID == nil {
		return errors.New("customerId or inquiryId is required")
	}
	return nil
}

type UpdateLeadScore struct {
	Email      string               `json:"email,omitempty"`
	Phone      string               `json:"phone,omitempty"`
	CustomerID *int64               `json:"customerId,omitempty"`
	Action     model.EngagementType `json:"action"`
	Points     int                  `json:"points"`
	Metadata   string               `json:"metadata,omitempty"`
}

func (p UpdateLeadScore) Validate() error {
	if p.CustomerID == nil && p.Email == "" && p.Phone == "" {
		return errors.New("customerId, email or phone is required")
	}
	if p.Action == "" {
		return errors.New("action is required")
	}
	return nil
}

type FollowUpReminder struct {
	AssignmentID int64              `json:"assignmentId"`
	Type         model.FollowUpType `json:"type"`
}

func (p FollowUpReminder) Validate() error {
	if p.AssignmentID == 0 {
		return errors.New("assignmentId is required")
	}
	return nil
}
