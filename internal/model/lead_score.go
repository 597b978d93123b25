package model

import (
	"errors"
	"time"
)

// LeadScore is one scoring run for a customer or standalone inquiry. Rows
// are append-only; recalculation inserts a new row so the score history
// stays auditable.
type LeadScore struct {
	ID                 int64              `json:"id"`
	CustomerID         *int64             `json:"customer_id,omitempty"`
	InquiryID          *int64             `json:"inquiry_id,omitempty"`
	TotalScore         float64            `json:"total_score"`
	MaxPossibleScore   float64            `json:"max_possible_score"`
	ScorePercentage    float64            `json:"score_percentage"`
	QualificationLevel QualificationLevel `json:"qualification_level"`
	Grade              string             `json:"grade"`
	Breakdown          map[string]float64 `json:"breakdown"`
	Recommendations    []string           `json:"recommendations"`
	IncrementalUpdate  bool               `json:"incremental_update"`
	Reason             string             `json:"reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// LeadRef identifies the subject of a scoring or assignment operation:
// either a customer with full history, or a standalone inquiry.
type LeadRef struct {
	CustomerID *int64
	InquiryID  *int64
}

func (r LeadRef) Validate() error {
	if r.CustomerID == nil && r.InquiryID == nil {
		return errors.New("lead ref requires a customer id or inquiry id")
	}
	return nil
}
