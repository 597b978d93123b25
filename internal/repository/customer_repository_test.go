package repository

import (
	"context"
	"testing"
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerRepository_FindByContact(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Customer{
		FirstName: "Jane",
		LastName:  "Miller",
		Email:     "jane@example.com",
		Phone:     "+15551234567",
		Active:    true,
	})
	require.NoError(t, err)

	t.Run("by email", func(t *testing.T) {
		got, err := repo.FindByContact(ctx, "jane@example.com", "")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("by phone", func(t *testing.T) {
		got, err := repo.FindByContact(ctx, "", "+15551234567")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("no contact given", func(t *testing.T) {
		_, err := repo.FindByContact(ctx, "", "")
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})

	t.Run("unknown contact", func(t *testing.T) {
		_, err := repo.FindByContact(ctx, "nobody@example.com", "")
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})
}

func TestCustomerRepository_ListActiveOptedIn(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	seed := []*model.Customer{
		{FirstName: "A", Email: "a@example.com", Active: true, MarketingOptIn: true, EmailOptIn: true},
		{FirstName: "B", Email: "b@example.com", Phone: "+15550000002", Active: true, MarketingOptIn: true, EmailOptIn: true, SMSOptIn: true},
		{FirstName: "C", Email: "c@example.com", Active: true, MarketingOptIn: false, EmailOptIn: true},
		{FirstName: "D", Email: "d@example.com", Active: false, MarketingOptIn: true, EmailOptIn: true},
		{FirstName: "E", Phone: "+15550000005", Active: true, MarketingOptIn: true, SMSOptIn: true},
	}
	for _, c := range seed {
		_, err := repo.Create(ctx, c)
		require.NoError(t, err)
	}

	t.Run("email audience excludes opted-out and inactive", func(t *testing.T) {
		got, err := repo.ListActiveOptedIn(ctx, model.ChannelEmail, 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a@example.com", got[0].Email)
		assert.Equal(t, "b@example.com", got[1].Email)
	})

	t.Run("sms audience requires a phone and sms consent", func(t *testing.T) {
		got, err := repo.ListActiveOptedIn(ctx, model.ChannelSMS, 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("count matches list", func(t *testing.T) {
		total, err := repo.CountActiveOptedIn(ctx, model.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})
}

func TestCustomerRepository_Engagement(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	for _, typ := range []model.EngagementType{
		model.EngagementView, model.EngagementView,
		model.EngagementTestDrive,
		model.EngagementEmailOpen,
	} {
		_, err := repo.CreateEngagementEvent(ctx, &model.EngagementEvent{
			CustomerID: 1,
			Type:       typ,
			Points:     model.EngagementPoints[typ],
		})
		require.NoError(t, err)
	}

	counts, err := repo.EngagementCounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.EngagementView])
	assert.Equal(t, int64(1), counts[model.EngagementTestDrive])
	assert.Equal(t, int64(0), counts[model.EngagementEmailClick])
}

func TestCustomerRepository_PurchaseSummary(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	now := time.Now()
	for _, amount := range []float64{20000, 30000} {
		_, err := repo.CreatePurchase(ctx, &model.Purchase{CustomerID: 1, Amount: amount})
		require.NoError(t, err)
	}

	summary, err := repo.PurchaseSummary(ctx, 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Count)
	assert.Equal(t, 50000.0, summary.TotalAmount)
	assert.Equal(t, 25000.0, summary.AverageAmount())

	t.Run("no purchases", func(t *testing.T) {
		summary, err := repo.PurchaseSummary(ctx, 42, now)
		require.NoError(t, err)
		assert.Equal(t, int64(0), summary.Count)
		assert.Equal(t, 0.0, summary.AverageAmount())
		assert.Equal(t, 0.0, summary.FrequencyPer30Days())
	})
}
