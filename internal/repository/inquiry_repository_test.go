package repository

import (
	"context"
	"testing"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInquiryRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewInquiryRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Inquiry{
		FirstName: "Sam",
		LastName:  "Ortiz",
		Email:     "sam@example.com",
		Type:      model.InquiryTestDrive,
		Message:   "Interested in the new hybrid",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, model.InquiryStatusNew, created.Status)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam Ortiz", got.FullName())
}

func TestInquiryRepository_UpdateStatus(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewInquiryRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Inquiry{
		Email: "sam@example.com",
		Type:  model.InquiryGeneral,
	})
	require.NoError(t, err)

	t.Run("walks the lifecycle", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, created.ID, model.InquiryStatusInProgress))
		require.NoError(t, repo.UpdateStatus(ctx, created.ID, model.InquiryStatusResponded))

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.InquiryStatusResponded, got.Status)
		assert.NotNil(t, got.RespondedAt)
	})

	t.Run("cannot skip backwards", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, created.ID, model.InquiryStatusNew)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("closed is terminal", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, created.ID, model.InquiryStatusClosed))
		err := repo.UpdateStatus(ctx, created.ID, model.InquiryStatusInProgress)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown inquiry", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, 999, model.InquiryStatusClosed)
		assert.ErrorIs(t, err, ErrInquiryNotFound)
	})
}
