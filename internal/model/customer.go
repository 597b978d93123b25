package model

import "time"

type Customer struct {
	ID             int64      `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	EmailVerified  bool       `json:"email_verified"`
	Phone          string     `json:"phone"`
	Address        string     `json:"address"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	EmailOptIn     bool       `json:"email_opt_in"`
	SMSOptIn       bool       `json:"sms_opt_in"`
	MarketingOptIn bool       `json:"marketing_opt_in"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (c *Customer) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Age returns the customer's age in years, or 0 when the birth date is
// unknown.
func (c *Customer) Age(now time.Time) int {
	if c.BirthDate == nil {
		return 0
	}
	years := now.Year() - c.BirthDate.Year()
	anniversary := c.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

// AccountAgeDays returns how long the customer record has existed.
func (c *Customer) AccountAgeDays(now time.Time) int {
	return int(now.Sub(c.CreatedAt).Hours() / 24)
}

// OptedIn reports channel-level marketing consent.
func (c *Customer) OptedIn(ch Channel) bool {
	if !c.MarketingOptIn {
		return false
	}
	switch ch {
	case ChannelEmail:
		return c.EmailOptIn && c.Email != ""
	case ChannelSMS:
		return c.SMSOptIn && c.Phone != ""
	}
	return false
}

// Contactable reports whether the channel has an address to send to at all.
func (c *Customer) Contactable(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return c.Email != ""
	case ChannelSMS:
		return c.Phone != ""
	}
	return false
}

// EngagementType is a tracked customer touchpoint.
type EngagementType string

const (
	EngagementView       EngagementType = "view"
	EngagementInquiry    EngagementType = "inquiry"
	EngagementTestDrive  EngagementType = "test_drive"
	EngagementEmailOpen  EngagementType = "email_open"
	EngagementEmailClick EngagementType = "email_click"
)

// EngagementPoints is the per-touchpoint contribution to the engagement
// scoring factor.
var EngagementPoints = map[EngagementType]int{
	EngagementView:       1,
	EngagementInquiry:    5,
	EngagementTestDrive:  10,
	EngagementEmailOpen:  2,
	EngagementEmailClick: 3,
}

type EngagementEvent struct {
	ID         int64          `json:"id"`
	CustomerID int64          `json:"customer_id"`
	Type       EngagementType `json:"type"`
	Points     int            `json:"points"`
	Metadata   string         `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type EngagementEventCreateRequest struct {
	CustomerID int64          `json:"customer_id"`
	Email      string         `json:"email"`
	Phone      string         `json:"phone"`
	Type       EngagementType `json:"type"`
	Points     int            `json:"points"`
	Metadata   string         `json:"metadata"`
}

type Purchase struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	VehicleID  *int64    `json:"vehicle_id,omitempty"`
	Amount     float64   `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// PurchaseSummary is the aggregate the scoring engine consumes instead of
// loading every purchase row.
type PurchaseSummary struct {
	Count        int64
	TotalAmount  float64
	FirstAt      *time.Time
	LastAt       *time.Time
	MonthlyTrend float64 // month-over-month revenue growth ratio, e.g. 0.12
}

func (p PurchaseSummary) AverageAmount() float64 {
	if p.Count == 0 {
		return 0
	}
	return p.TotalAmount / float64(p.Count)
}

// FrequencyPer30Days computes purchases per 30-day window over the
// first-to-last purchase span.
func (p PurchaseSummary) FrequencyPer30Days() float64 {
	if p.Count == 0 || p.FirstAt == nil || p.LastAt == nil {
		return 0
	}
	spanDays := p.LastAt.Sub(*p.FirstAt).Hours() / 24
	if spanDays < 30 {
		spanDays = 30
	}
	return float64(p.Count) / (spanDays / 30)
}
