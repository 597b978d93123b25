package model

import "time"

// Urgency drives assignment priority and follow-up due times.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyNormal Urgency = "normal"
	UrgencyLow    Urgency = "low"
)

// LeadAssignment links a lead to exactly one sales representative. At most
// one open (ACTIVE/CONTACTED/FOLLOW_UP) assignment may exist per lead.
type LeadAssignment struct {
	ID               int64            `json:"id"`
	CustomerID       *int64           `json:"customer_id,omitempty"`
	InquiryID        *int64           `json:"inquiry_id,omitempty"`
	RepresentativeID int64            `json:"representative_id"`
	Status           AssignmentStatus `json:"status"`
	AssignedAt       time.Time        `json:"assigned_at"`
	Confidence       float64          `json:"confidence"`
	AssignmentReason string           `json:"assignment_reason"`
	Urgency          Urgency          `json:"urgency"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// AssignmentCriteria is what the matcher weighs against representative
// availability and specialization.
type AssignmentCriteria struct {
	Lead        LeadRef
	LeadScore   float64
	VehicleType string
	PriceRange  *PriceRange
	Location    string
	Urgency     Urgency
	Source      string
}

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AssignmentResult carries both positive and negative outcomes; a miss (no
// representative available, lead already assigned) is a result, not an
// error, so callers branch instead of retrying.
type AssignmentResult struct {
	Assigned           bool
	AlreadyAssigned    bool
	Assignment         *LeadAssignment
	Representative     *Representative
	Confidence         float64
	Reason             string
	RecommendedActions []string
	WaitQueueEntryID   int64
}

type WaitQueueEntry struct {
	ID         int64      `json:"id"`
	CustomerID *int64     `json:"customer_id,omitempty"`
	InquiryID  *int64     `json:"inquiry_id,omitempty"`
	Priority   int        `json:"priority"`
	Reason     string     `json:"reason"`
	Status     WaitStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type FollowUpTask struct {
	ID               int64          `json:"id"`
	AssignmentID     int64          `json:"assignment_id"`
	RepresentativeID int64          `json:"representative_id"`
	Type             FollowUpType   `json:"type"`
	DueAt            time.Time      `json:"due_at"`
	Status           FollowUpStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// Representative is a sales rep as the matcher sees them: availability,
// specialization, and current load.
type Representative struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Active      bool     `json:"active"`
	Available   bool     `json:"available"`
	Specialties []string `json:"specialties"`
	Locations   []string `json:"locations"`
	MinPrice    float64  `json:"min_price"`
	MaxPrice    float64  `json:"max_price"`
	CurrentLoad int      `json:"current_load"`
	MaxLoad     int      `json:"max_load"`
}

func (r *Representative) HasCapacity() bool {
	return r.MaxLoad == 0 || r.CurrentLoad < r.MaxLoad
}
