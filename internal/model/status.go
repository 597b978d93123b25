package model

// InquiryStatus is the lifecycle state of an inquiry.
type InquiryStatus string

const (
	InquiryStatusNew        InquiryStatus = "NEW"
	InquiryStatusInProgress InquiryStatus = "IN_PROGRESS"
	InquiryStatusResponded  InquiryStatus = "RESPONDED"
	InquiryStatusClosed     InquiryStatus = "CLOSED"
)

var inquiryTransitions = map[InquiryStatus][]InquiryStatus{
	InquiryStatusNew:        {InquiryStatusInProgress, InquiryStatusClosed},
	InquiryStatusInProgress: {InquiryStatusResponded, InquiryStatusClosed},
	InquiryStatusResponded:  {InquiryStatusClosed},
	InquiryStatusClosed:     {},
}

func (s InquiryStatus) CanTransitionTo(next InquiryStatus) bool {
	for _, allowed := range inquiryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AssignmentStatus is the lifecycle state of a lead assignment.
type AssignmentStatus string

const (
	AssignmentStatusActive    AssignmentStatus = "ACTIVE"
	AssignmentStatusContacted AssignmentStatus = "CONTACTED"
	AssignmentStatusFollowUp  AssignmentStatus = "FOLLOW_UP"
	AssignmentStatusClosed    AssignmentStatus = "CLOSED"
	AssignmentStatusExpired   AssignmentStatus = "EXPIRED"
)

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusActive:    {AssignmentStatusContacted, AssignmentStatusClosed, AssignmentStatusExpired},
	AssignmentStatusContacted: {AssignmentStatusFollowUp, AssignmentStatusClosed, AssignmentStatusExpired},
	AssignmentStatusFollowUp:  {AssignmentStatusContacted, AssignmentStatusClosed, AssignmentStatusExpired},
	AssignmentStatusClosed:    {},
	AssignmentStatusExpired:   {},
}

func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsOpen reports whether the assignment still claims the lead. At most one
// open assignment may exist per lead.
func (s AssignmentStatus) IsOpen() bool {
	return s == AssignmentStatusActive || s == AssignmentStatusContacted || s == AssignmentStatusFollowUp
}

// OpenAssignmentStatuses is the set used by the pre-assignment existence check.
var OpenAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusActive,
	AssignmentStatusContacted,
	AssignmentStatusFollowUp,
}

// WaitStatus is the state of a wait-queue entry.
type WaitStatus string

const (
	WaitStatusWaiting  WaitStatus = "WAITING"
	WaitStatusAssigned WaitStatus = "ASSIGNED"
	WaitStatusExpired  WaitStatus = "EXPIRED"
)

var waitTransitions = map[WaitStatus][]WaitStatus{
	WaitStatusWaiting:  {WaitStatusAssigned, WaitStatusExpired},
	WaitStatusAssigned: {},
	WaitStatusExpired:  {},
}

func (s WaitStatus) CanTransitionTo(next WaitStatus) bool {
	for _, allowed := range waitTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusScheduled CampaignStatus = "SCHEDULED"
	CampaignStatusSending   CampaignStatus = "SENDING"
	CampaignStatusSent      CampaignStatus = "SENT"
	CampaignStatusFailed    CampaignStatus = "FAILED"
)

// SCHEDULED may go straight to SENT when a campaign resolves zero recipients.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusScheduled: {CampaignStatusSending, CampaignStatusSent, CampaignStatusFailed},
	CampaignStatusSending:   {CampaignStatusSent, CampaignStatusFailed},
	CampaignStatusSent:      {},
	CampaignStatusFailed:    {},
}

func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusSent || s == CampaignStatusFailed
}

// DeliveryStatus is the outcome recorded for one send attempt. Rows are
// append-only; a provider callback appends a later row rather than editing
// the original.
type DeliveryStatus string

const (
	DeliveryStatusSent        DeliveryStatus = "SENT"
	DeliveryStatusDelivered   DeliveryStatus = "DELIVERED"
	DeliveryStatusBounced     DeliveryStatus = "BOUNCED"
	DeliveryStatusUndelivered DeliveryStatus = "UNDELIVERED"
	DeliveryStatusFailed      DeliveryStatus = "FAILED"
	DeliveryStatusSkipped     DeliveryStatus = "SKIPPED"
)

// FollowUpType distinguishes the first touch from later reminders.
type FollowUpType string

const (
	FollowUpTypeInitialContact FollowUpType = "INITIAL_CONTACT"
	FollowUpTypeFollowUp       FollowUpType = "FOLLOW_UP"
)

type FollowUpStatus string

const (
	FollowUpStatusPending   FollowUpStatus = "PENDING"
	FollowUpStatusCompleted FollowUpStatus = "COMPLETED"
	FollowUpStatusCancelled FollowUpStatus = "CANCELLED"
)

// QualificationLevel buckets a score percentage. Grades mirror the levels
// as letters (A..F) for reporting.
type QualificationLevel string

const (
	QualificationQualified QualificationLevel = "QUALIFIED"
	QualificationHot       QualificationLevel = "HOT"
	QualificationWarm      QualificationLevel = "WARM"
	QualificationCold      QualificationLevel = "COLD"
)

// LevelForPercentage maps a 0-100 score percentage onto a qualification
// level and letter grade. Boundaries are inclusive on the lower edge:
// exactly 80.0 is QUALIFIED.
func LevelForPercentage(pct float64) (QualificationLevel, string) {
	switch {
	case pct >= 80:
		return QualificationQualified, "A"
	case pct >= 60:
		return QualificationHot, "B"
	case pct >= 40:
		return QualificationWarm, "C"
	case pct >= 20:
		return QualificationCold, "D"
	default:
		return QualificationCold, "F"
	}
}

// Channel is the outbound message channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)
