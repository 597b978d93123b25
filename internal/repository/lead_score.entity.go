package repository

import (
	"encoding/json"
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
)

type LeadScoreEntity struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID         *int64    `gorm:"column:customer_id;index"`
	InquiryID          *int64    `gorm:"column:inquiry_id;index"`
	TotalScore         float64   `gorm:"column:total_score;not null"`
	MaxPossibleScore   float64   `gorm:"column:max_possible_score;not null"`
	ScorePercentage    float64   `gorm:"column:score_percentage;not null"`
	QualificationLevel string    `gorm:"column:qualification_level;not null"`
	Grade              string    `gorm:"column:grade"`
	Breakdown          string    `gorm:"column:breakdown"`
	Recommendations    string    `gorm:"column:recommendations"`
	IncrementalUpdate  bool      `gorm:"column:incremental_update;default:false"`
	Reason             string    `gorm:"column:reason"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (LeadScoreEntity) TableName() string {
	return "lead_scores"
}

func toLeadScoreEntity(s *model.LeadScore) *LeadScoreEntity {
	if s == nil {
		return nil
	}

	// Breakdown and recommendations are stored as JSON text; both are
	// read back whole, never queried by key.
	breakdown, _ := json.Marshal(s.Breakdown)
	recommendations, _ := json.Marshal(s.Recommendations)

	return &LeadScoreEntity{
		ID:                 s.ID,
		CustomerID:         s.CustomerID,
		InquiryID:          s.InquiryID,
		TotalScore:         s.TotalScore,
		MaxPossibleScore:   s.MaxPossibleScore,
		ScorePercentage:    s.ScorePercentage,
		QualificationLevel: string(s.QualificationLevel),
		Grade:              s.Grade,
		Breakdown:          string(breakdown),
		Recommendations:    string(recommendations),
		IncrementalUpdate:  s.IncrementalUpdate,
		Reason:             s.Reason,
		CreatedAt:          s.CreatedAt,
	}
}

func toLeadScoreModel(e *LeadScoreEntity) *model.LeadScore {
	if e == nil {
		return nil
	}

	s := &model.LeadScore{
		ID:                 e.ID,
		CustomerID:         e.CustomerID,
		InquiryID:          e.InquiryID,
		TotalScore:         e.TotalScore,
		MaxPossibleScore:   e.MaxPossibleScore,
		ScorePercentage:    e.ScorePercentage,
		QualificationLevel: model.QualificationLevel(e.QualificationLevel),
		Grade:              e.Grade,
		IncrementalUpdate:  e.IncrementalUpdate,
		Reason:             e.Reason,
		CreatedAt:          e.CreatedAt,
	}

	if e.Breakdown != "" {
		_ = json.Unmarshal([]byte(e.Breakdown), &s.Breakdown)
	}
	if e.Recommendations != "" {
		_ = json.Unmarshal([]byte(e.Recommendations), &s.Recommendations)
	}

	return s
}

func toLeadScoreModels(entities []*LeadScoreEntity) []*model.LeadScore {
	if entities == nil {
		return nil
	}
	models := make([]*model.LeadScore, len(entities))
	for i, e := range entities {
		models[i] = toLeadScoreModel(e)
	}
	return models
}
