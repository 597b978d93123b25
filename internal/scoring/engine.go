package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/pkg/logger"
)

// Weights for customer scoring. Each factor is normalized to 0-100 before
// weighting, so the weighted total is itself a 0-100 percentage.
const (
	weightPurchase     = 0.40
	weightEngagement   = 0.25
	weightDemographics = 0.20
	weightRecency      = 0.15
)

// Weights for inquiry-only scoring, where no customer history exists.
const (
	weightInquiryType  = 0.30
	weightContact      = 0.20
	weightResponseTime = 0.25
	weightVehicle      = 0.15
	weightTiming       = 0.10
)

// hotAssignmentDelay holds HOT leads back briefly so a quick follow-up
// engagement can still upgrade them to QUALIFIED before a rep is picked.
const hotAssignmentDelay = 5 * time.Minute

var (
	ErrNoSubject = errors.New("scoring requires a customer id or inquiry id")
)

type CustomerStore interface {
	Get(ctx context.Context, id int64) (*model.Customer, error)
	EngagementCounts(ctx context.Context, customerID int64) (map[model.EngagementType]int64, error)
	PurchaseSummary(ctx context.Context, customerID int64, now time.Time) (*model.PurchaseSummary, error)
}

type InquiryStore interface {
	Get(ctx context.Context, id int64) (*model.Inquiry, error)
	GetVehicle(ctx context.Context, id int64) (*model.Vehicle, error)
}

type ScoreStore interface {
	Append(ctx context.Context, score *model.LeadScore) (*model.LeadScore, error)
	Latest(ctx context.Context, ref model.LeadRef) (*model.LeadScore, error)
}

type Engine struct {
	customers  CustomerStore
	inquiries  InquiryStore
	scores     ScoreStore
	dispatcher jobs.Dispatcher
	now        func() time.Time
}

func NewEngine(customers CustomerStore, inquiries InquiryStore, scores ScoreStore, dispatcher jobs.Dispatcher) *Engine {
	return &Engine{
		customers:  customers,
		inquiries:  inquiries,
		scores:     scores,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Score computes and persists a lead score. The computation is a pure
// function of the lead's current data; persistence appends a new row every
// time, so re-scoring identical inputs yields identical scores in two rows.
func (e *Engine) Score(ctx context.Context, ref model.LeadRef, incremental bool, reason string) (*model.LeadScore, error) {
	if err := ref.Validate(); err != nil {
		return nil, ErrNoSubject
	}

	var (
		score *model.LeadScore
		err   error
	)
	if ref.CustomerID != nil {
		score, err = e.scoreCustomer(ctx, *ref.CustomerID)
	} else {
		score, err = e.scoreInquiry(ctx, *ref.InquiryID)
	}
	if err != nil {
		return nil, err
	}

	score.IncrementalUpdate = incremental
	score.Reason = reason

	persisted, err := e.scores.Append(ctx, score)
	if err != nil {
		return nil, fmt.Errorf("persist lead score: %w", err)
	}

	if err := e.enqueueAssignment(ctx, persisted); err != nil {
		// The score is already durable; assignment can be re-driven by a
		// recalculation, so a publish failure is logged rather than undone.
		logger.Error("failed to enqueue assignment job",
			"customer_id", persisted.CustomerID,
			"inquiry_id", persisted.InquiryID,
			"error", err)
	}

	return persisted, nil
}

func (e *Engine) scoreCustomer(ctx context.Context, customerID int64) (*model.LeadScore, error) {
	customer, err := e.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	now := e.now()

	purchases, err := e.customers.PurchaseSummary(ctx, customerID, now)
	if err != nil {
		return nil, err
	}
	engagement, err := e.customers.EngagementCounts(ctx, customerID)
	if err != nil {
		return nil, err
	}

	factors := map[string]float64{
		"purchase_history": purchaseScore(purchases),
		"engagement":       engagementScore(engagement),
		"demographics":     demographicsScore(customer, now),
		"recency":          recencyScore(customer.AccountAgeDays(now)),
	}

	total := factors["purchase_history"]*weightPurchase +
		factors["engagement"]*weightEngagement +
		factors["demographics"]*weightDemographics +
		factors["recency"]*weightRecency

	total = clamp(total*marketTrendMultiplier(purchases.MonthlyTrend), 0, 100)

	level, grade := model.LevelForPercentage(total)
	return &model.LeadScore{
		CustomerID:         &customerID,
		TotalScore:         total,
		MaxPossibleScore:   100,
		ScorePercentage:    total,
		QualificationLevel: level,
		Grade:              grade,
		Breakdown:          factors,
		Recommendations:    recommendationsFor(level, factors),
	}, nil
}

func (e *Engine) scoreInquiry(ctx context.Context, inquiryID int64) (*model.LeadScore, error) {
	inquiry, err := e.inquiries.Get(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	now := e.now()

	var vehicle *model.Vehicle
	if inquiry.VehicleID != nil {
		vehicle, err = e.inquiries.GetVehicle(ctx, *inquiry.VehicleID)
		if err != nil {
			// A dangling vehicle reference falls back to the neutral
			// appeal score instead of blocking the inquiry.
			logger.Warn("inquiry references unknown vehicle",
				"inquiry_id", inquiryID, "vehicle_id", *inquiry.VehicleID)
			vehicle = nil
		}
	}

	factors := map[string]float64{
		"inquiry_type":   inquiryTypeScore(inquiry.Type),
		"contact":        contactScore(inquiry),
		"response_time":  responseTimeScore(inquiry, now),
		"vehicle_appeal": vehicleAppealScore(vehicle, now),
		"timing":         timingScore(inquiry.CreatedAt, now),
	}

	total := factors["inquiry_type"]*weightInquiryType +
		factors["contact"]*weightContact +
		factors["response_time"]*weightResponseTime +
		factors["vehicle_appeal"]*weightVehicle +
		factors["timing"]*weightTiming
	total = clamp(total, 0, 100)

	level, grade := model.LevelForPercentage(total)
	return &model.LeadScore{
		InquiryID:          &inquiryID,
		TotalScore:         total,
		MaxPossibleScore:   100,
		ScorePercentage:    total,
		QualificationLevel: level,
		Grade:              grade,
		Breakdown:          factors,
		Recommendations:    recommendationsFor(level, factors),
	}, nil
}

// enqueueAssignment pushes QUALIFIED leads to a representative immediately
// and HOT leads after a short delay. WARM and COLD leads stay in nurture.
func (e *Engine) enqueueAssignment(ctx context.Context, score *model.LeadScore) error {
	payload := jobs.AssignLead{
		CustomerID: score.CustomerID,
		InquiryID:  score.InquiryID,
		LeadScore:  score.ScorePercentage,
	}

	switch score.QualificationLevel {
	case model.QualificationQualified:
		payload.Urgency = model.UrgencyHigh
		return e.dispatcher.Enqueue(ctx, jobs.TypeAssignLead, payload, jobs.HighPriority())
	case model.QualificationHot:
		payload.Urgency = model.UrgencyNormal
		return e.dispatcher.Enqueue(ctx, jobs.TypeAssignLead, payload, jobs.WithDelay(hotAssignmentDelay))
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
