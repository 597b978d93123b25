package repository

import (
	"context"
	"testing"
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestAssignmentRepository_FindOpenForLead(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	t.Run("no assignment", func(t *testing.T) {
		_, err := repo.FindOpenForLead(ctx, model.LeadRef{CustomerID: int64Ptr(1)})
		assert.ErrorIs(t, err, ErrAssignmentNotFound)
	})

	t.Run("open assignment blocks", func(t *testing.T) {
		created, err := repo.Create(ctx, &model.LeadAssignment{
			CustomerID:       int64Ptr(10),
			RepresentativeID: 1,
			Status:           model.AssignmentStatusActive,
			Urgency:          model.UrgencyNormal,
		})
		require.NoError(t, err)

		found, err := repo.FindOpenForLead(ctx, model.LeadRef{CustomerID: int64Ptr(10)})
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.True(t, found.Status.IsOpen())
	})

	t.Run("closed assignment does not block", func(t *testing.T) {
		created, err := repo.Create(ctx, &model.LeadAssignment{
			CustomerID:       int64Ptr(20),
			RepresentativeID: 1,
			Status:           model.AssignmentStatusActive,
		})
		require.NoError(t, err)

		_, err = repo.UpdateStatus(ctx, created.ID, model.AssignmentStatusClosed)
		require.NoError(t, err)

		_, err = repo.FindOpenForLead(ctx, model.LeadRef{CustomerID: int64Ptr(20)})
		assert.ErrorIs(t, err, ErrAssignmentNotFound)
	})

	t.Run("inquiry-only lead filtered by inquiry id", func(t *testing.T) {
		created, err := repo.Create(ctx, &model.LeadAssignment{
			InquiryID:        int64Ptr(99),
			RepresentativeID: 2,
			Status:           model.AssignmentStatusContacted,
		})
		require.NoError(t, err)

		found, err := repo.FindOpenForLead(ctx, model.LeadRef{InquiryID: int64Ptr(99)})
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})
}

func TestAssignmentRepository_UpdateStatus(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.LeadAssignment{
		CustomerID:       int64Ptr(1),
		RepresentativeID: 1,
		Status:           model.AssignmentStatusActive,
	})
	require.NoError(t, err)

	t.Run("valid transition", func(t *testing.T) {
		updated, err := repo.UpdateStatus(ctx, created.ID, model.AssignmentStatusContacted)
		require.NoError(t, err)
		assert.Equal(t, model.AssignmentStatusContacted, updated.Status)
	})

	t.Run("invalid transition rejected", func(t *testing.T) {
		_, err := repo.UpdateStatus(ctx, created.ID, model.AssignmentStatusActive)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("terminal state is final", func(t *testing.T) {
		_, err := repo.UpdateStatus(ctx, created.ID, model.AssignmentStatusClosed)
		require.NoError(t, err)

		_, err = repo.UpdateStatus(ctx, created.ID, model.AssignmentStatusContacted)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.UpdateStatus(ctx, 12345, model.AssignmentStatusClosed)
		assert.ErrorIs(t, err, ErrAssignmentNotFound)
	})
}

func TestAssignmentRepository_CloseWithTasks(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewAssignmentRepository(db)
	followUps := NewFollowUpRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.LeadAssignment{
		CustomerID:       int64Ptr(30),
		RepresentativeID: 3,
		Status:           model.AssignmentStatusActive,
	})
	require.NoError(t, err)

	pending, err := followUps.Create(ctx, &model.FollowUpTask{
		AssignmentID:     created.ID,
		RepresentativeID: 3,
		Type:             model.FollowUpTypeInitialContact,
		DueAt:            time.Now().Add(2 * time.Hour),
		Status:           model.FollowUpStatusPending,
	})
	require.NoError(t, err)

	done, err := followUps.Create(ctx, &model.FollowUpTask{
		AssignmentID:     created.ID,
		RepresentativeID: 3,
		Type:             model.FollowUpTypeFollowUp,
		DueAt:            time.Now().Add(-time.Hour),
		Status:           model.FollowUpStatusCompleted,
	})
	require.NoError(t, err)

	t.Run("non-terminal target rejected", func(t *testing.T) {
		_, err := repo.CloseWithTasks(ctx, created.ID, model.AssignmentStatusContacted)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("close cancels pending tasks only", func(t *testing.T) {
		closed, err := repo.CloseWithTasks(ctx, created.ID, model.AssignmentStatusClosed)
		require.NoError(t, err)
		assert.Equal(t, model.AssignmentStatusClosed, closed.Status)

		task, err := followUps.Get(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, model.FollowUpStatusCancelled, task.Status)

		task, err = followUps.Get(ctx, done.ID)
		require.NoError(t, err)
		assert.Equal(t, model.FollowUpStatusCompleted, task.Status)
	})

	t.Run("already closed", func(t *testing.T) {
		_, err := repo.CloseWithTasks(ctx, created.ID, model.AssignmentStatusClosed)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestWaitQueueRepository(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewWaitQueueRepository(db)
	ctx := context.Background()

	t.Run("enqueue and list waiting", func(t *testing.T) {
		low, err := repo.Enqueue(ctx, &model.WaitQueueEntry{
			CustomerID: int64Ptr(1),
			Priority:   3,
			Reason:     "no representative available",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, low.Attempts)

		high, err := repo.Enqueue(ctx, &model.WaitQueueEntry{
			CustomerID: int64Ptr(2),
			Priority:   1,
			Reason:     "no representative available",
		})
		require.NoError(t, err)

		waiting, err := repo.ListWaiting(ctx, 10)
		require.NoError(t, err)
		require.Len(t, waiting, 2)
		assert.Equal(t, high.ID, waiting[0].ID)
	})

	t.Run("re-enqueue bumps attempts instead of duplicating", func(t *testing.T) {
		again, err := repo.Enqueue(ctx, &model.WaitQueueEntry{
			CustomerID: int64Ptr(1),
			Priority:   3,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, again.Attempts)

		waiting, err := repo.ListWaiting(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, waiting, 2)
	})

	t.Run("mark assigned removes from waiting set", func(t *testing.T) {
		waiting, err := repo.ListWaiting(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, waiting)

		err = repo.MarkAssigned(ctx, waiting[0].ID)
		require.NoError(t, err)

		after, err := repo.ListWaiting(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, after, len(waiting)-1)
	})
}

func TestFollowUpRepository(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewFollowUpRepository(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("due returns only pending past-due tasks", func(t *testing.T) {
		past, err := repo.Create(ctx, &model.FollowUpTask{
			AssignmentID:     1,
			RepresentativeID: 1,
			Type:             model.FollowUpTypeInitialContact,
			DueAt:            now.Add(-time.Hour),
		})
		require.NoError(t, err)

		_, err = repo.Create(ctx, &model.FollowUpTask{
			AssignmentID:     2,
			RepresentativeID: 1,
			Type:             model.FollowUpTypeFollowUp,
			DueAt:            now.Add(time.Hour),
		})
		require.NoError(t, err)

		due, err := repo.Due(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, past.ID, due[0].ID)
	})

	t.Run("completed task leaves the due list", func(t *testing.T) {
		due, err := repo.Due(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)

		err = repo.Complete(ctx, due[0].ID, now)
		require.NoError(t, err)

		due, err = repo.Due(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("complete twice fails", func(t *testing.T) {
		task, err := repo.Create(ctx, &model.FollowUpTask{
			AssignmentID:     3,
			RepresentativeID: 2,
			Type:             model.FollowUpTypeFollowUp,
			DueAt:            now,
		})
		require.NoError(t, err)

		require.NoError(t, repo.Complete(ctx, task.ID, now))
		assert.ErrorIs(t, repo.Complete(ctx, task.ID, now), ErrFollowUpNotFound)
	})
}
