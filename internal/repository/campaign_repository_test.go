package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduledCampaign(t *testing.T, repo *CampaignRepository) *model.Campaign {
	t.Helper()
	c, err := repo.Create(context.Background(), &model.Campaign{
		Name:       "spring clearance",
		Channel:    model.ChannelEmail,
		Subject:    "Spring deals at {{dealership_name}}",
		Template:   "Hi {{first_name}}, new offers are in.",
		TargetKind: model.TargetAllOptedIn,
		Status:     model.CampaignStatusScheduled,
	})
	require.NoError(t, err)
	return c
}

func TestCampaignRepository_UpdateStatus(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	t.Run("scheduled to sending to sent", func(t *testing.T) {
		c := newScheduledCampaign(t, repo)

		_, err := repo.UpdateStatus(ctx, c.ID, model.CampaignStatusSending)
		require.NoError(t, err)

		sent, err := repo.UpdateStatus(ctx, c.ID, model.CampaignStatusSent)
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusSent, sent.Status)
		assert.NotNil(t, sent.SentAt)
	})

	t.Run("scheduled straight to sent for empty audience", func(t *testing.T) {
		c := newScheduledCampaign(t, repo)

		sent, err := repo.UpdateStatus(ctx, c.ID, model.CampaignStatusSent)
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusSent, sent.Status)
	})

	t.Run("sent is terminal", func(t *testing.T) {
		c := newScheduledCampaign(t, repo)
		_, err := repo.UpdateStatus(ctx, c.ID, model.CampaignStatusSent)
		require.NoError(t, err)

		_, err = repo.UpdateStatus(ctx, c.ID, model.CampaignStatusSending)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("only one orchestrator claims sending", func(t *testing.T) {
		c := newScheduledCampaign(t, repo)

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = repo.UpdateStatus(ctx, c.ID, model.CampaignStatusSending)
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			}
		}
		assert.Equal(t, 1, wins)
	})
}

func TestCampaignRepository_IncrementCounters(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	c := newScheduledCampaign(t, repo)

	t.Run("concurrent increments never lose updates", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.IncrementCounters(ctx, c.ID, CampaignCounters{Sent: 1})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 20, got.SentCount)
	})

	t.Run("mixed delta", func(t *testing.T) {
		err := repo.IncrementCounters(ctx, c.ID, CampaignCounters{Delivered: 2, Bounced: 1, Failed: 3})
		require.NoError(t, err)

		got, err := repo.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.DeliveredCount)
		assert.Equal(t, 1, got.BouncedCount)
		assert.Equal(t, 3, got.FailedCount)
	})

	t.Run("empty delta is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.IncrementCounters(ctx, c.ID, CampaignCounters{}))
	})

	t.Run("unknown campaign", func(t *testing.T) {
		err := repo.IncrementCounters(ctx, 9999, CampaignCounters{Sent: 1})
		assert.ErrorIs(t, err, ErrCampaignNotFound)
	})
}

func TestCampaignRepository_SegmentMembers(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewCampaignRepository(tdb.DB)
	ctx := context.Background()

	require.NoError(t, tdb.rawDB.Create(&SegmentEntity{ID: 1, Name: "suv buyers"}).Error)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, tdb.rawDB.Create(&SegmentMemberEntity{SegmentID: 1, CustomerID: i}).Error)
	}

	t.Run("count", func(t *testing.T) {
		total, err := repo.CountSegmentMembers(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
	})

	t.Run("paged ids in order", func(t *testing.T) {
		first, err := repo.SegmentMemberIDs(ctx, 1, 3, 0)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, first)

		rest, err := repo.SegmentMemberIDs(ctx, 1, 3, 3)
		require.NoError(t, err)
		assert.Equal(t, []int64{4, 5}, rest)
	})

	t.Run("missing segment", func(t *testing.T) {
		_, err := repo.GetSegment(ctx, 42)
		assert.ErrorIs(t, err, ErrSegmentNotFound)
	})
}
