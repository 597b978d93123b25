package repository

import (
	"context"
	"testing"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadScoreRepository_AppendOnly(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewLeadScoreRepository(db)
	ctx := context.Background()

	lead := model.LeadRef{CustomerID: int64Ptr(5)}

	first, err := repo.Append(ctx, &model.LeadScore{
		CustomerID:         lead.CustomerID,
		TotalScore:         72,
		MaxPossibleScore:   100,
		ScorePercentage:    72,
		QualificationLevel: model.QualificationHot,
		Grade:              "B",
		Breakdown:          map[string]float64{"engagement": 80},
		Recommendations:    []string{"Schedule test drive"},
	})
	require.NoError(t, err)

	second, err := repo.Append(ctx, &model.LeadScore{
		CustomerID:         lead.CustomerID,
		TotalScore:         85,
		MaxPossibleScore:   100,
		ScorePercentage:    85,
		QualificationLevel: model.QualificationQualified,
		Grade:              "A",
		IncrementalUpdate:  true,
		Reason:             "test_drive",
	})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	t.Run("latest returns the newest row", func(t *testing.T) {
		latest, err := repo.Latest(ctx, lead)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
		assert.Equal(t, model.QualificationQualified, latest.QualificationLevel)
		assert.True(t, latest.IncrementalUpdate)
	})

	t.Run("history keeps every run newest first", func(t *testing.T) {
		history, err := repo.History(ctx, lead, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, second.ID, history[0].ID)
		assert.Equal(t, first.ID, history[1].ID)
	})

	t.Run("breakdown round-trips", func(t *testing.T) {
		history, err := repo.History(ctx, lead, 10)
		require.NoError(t, err)
		assert.Equal(t, 80.0, history[1].Breakdown["engagement"])
		assert.Equal(t, []string{"Schedule test drive"}, history[1].Recommendations)
	})

	t.Run("no rows for unknown lead", func(t *testing.T) {
		_, err := repo.Latest(ctx, model.LeadRef{CustomerID: int64Ptr(404)})
		assert.ErrorIs(t, err, ErrLeadScoreNotFound)
	})
}
