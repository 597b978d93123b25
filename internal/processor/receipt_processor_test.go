package processor

import (
	"context"
	"testing"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistoryStore struct {
	fakeLogStore
}

func (f *fakeHistoryStore) LatestByProviderMessageID(ctx context.Context, id string) (*model.DeliveryLog, error) {
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].ProviderMessageID == id {
			return f.rows[i], nil
		}
	}
	return nil, repository.ErrDeliveryLogNotFound
}

func (f *fakeHistoryStore) HasStatusForProviderMessageID(ctx context.Context, id string, status model.DeliveryStatus) (bool, error) {
	for _, row := range f.rows {
		if row.ProviderMessageID == id && row.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func newReceiptEnv() (*ReceiptProcessor, *fakeHistoryStore, *fakeCounterStore) {
	logs := &fakeHistoryStore{}
	counters := &fakeCounterStore{}
	return NewReceiptProcessor(logs, counters), logs, counters
}

func seedSentRow(logs *fakeHistoryStore, providerMessageID string, campaignID int64) {
	customerID := int64(7)
	logs.rows = append(logs.rows, &model.DeliveryLog{
		ID:                1,
		Channel:           model.ChannelEmail,
		CampaignID:        &campaignID,
		CustomerID:        &customerID,
		Recipient:         "jordan@example.com",
		Status:            model.DeliveryStatusSent,
		ProviderMessageID: providerMessageID,
	})
}

func TestReceiptProcessor(t *testing.T) {
	ctx := context.Background()

	t.Run("delivered receipt appends a row and bumps the counter", func(t *testing.T) {
		proc, logs, counters := newReceiptEnv()
		seedSentRow(logs, "em-9", 3)

		payload := jobs.DeliveryReceipt{MessageID: "em-9", Channel: model.ChannelEmail, Status: "delivered"}
		err := proc.ProcessReceipt(ctx, sendJob(t, payload))

		require.NoError(t, err)
		require.Len(t, logs.rows, 2)
		appended := logs.rows[1]
		assert.Equal(t, model.DeliveryStatusDelivered, appended.Status)
		assert.Equal(t, "jordan@example.com", appended.Recipient)
		require.Len(t, counters.deltas[3], 1)
		assert.Equal(t, repository.CampaignCounters{Delivered: 1}, counters.deltas[3][0])
	})

	t.Run("replayed receipt is a no-op", func(t *testing.T) {
		proc, logs, counters := newReceiptEnv()
		seedSentRow(logs, "em-9", 3)

		payload := jobs.DeliveryReceipt{MessageID: "em-9", Channel: model.ChannelEmail, Status: "delivered"}
		require.NoError(t, proc.ProcessReceipt(ctx, sendJob(t, payload)))
		require.NoError(t, proc.ProcessReceipt(ctx, sendJob(t, payload)))

		assert.Len(t, logs.rows, 2)
		assert.Len(t, counters.deltas[3], 1)
	})

	t.Run("receipt without a matching send requeues", func(t *testing.T) {
		proc, logs, _ := newReceiptEnv()

		payload := jobs.DeliveryReceipt{MessageID: "ghost", Channel: model.ChannelEmail, Status: "delivered"}
		err := proc.ProcessReceipt(ctx, sendJob(t, payload))

		require.Error(t, err)
		assert.Empty(t, logs.rows)
	})

	t.Run("unknown provider status counts as undelivered", func(t *testing.T) {
		proc, logs, counters := newReceiptEnv()
		seedSentRow(logs, "em-9", 3)

		payload := jobs.DeliveryReceipt{MessageID: "em-9", Channel: model.ChannelEmail, Status: "deferred"}
		require.NoError(t, proc.ProcessReceipt(ctx, sendJob(t, payload)))

		assert.Equal(t, model.DeliveryStatusUndelivered, logs.rows[1].Status)
		assert.Equal(t, repository.CampaignCounters{Failed: 1}, counters.deltas[3][0])
	})

	t.Run("invalid receipt payload is dropped", func(t *testing.T) {
		proc, logs, _ := newReceiptEnv()

		err := proc.ProcessReceipt(ctx, sendJob(t, jobs.DeliveryReceipt{Channel: model.ChannelEmail}))

		require.NoError(t, err)
		assert.Empty(t, logs.rows)
	})
}

func TestBounceProcessor(t *testing.T) {
	ctx := context.Background()

	t.Run("bounce appends a row and bumps the bounced counter", func(t *testing.T) {
		proc, logs, counters := newReceiptEnv()
		seedSentRow(logs, "em-9", 3)

		payload := jobs.ProcessEmailBounce{MessageID: "em-9", Email: "jordan@example.com", BounceType: "hard"}
		err := proc.ProcessBounce(ctx, sendJob(t, payload))

		require.NoError(t, err)
		require.Len(t, logs.rows, 2)
		assert.Equal(t, model.DeliveryStatusBounced, logs.rows[1].Status)
		assert.Equal(t, "hard bounce", logs.rows[1].ErrorMessage)
		assert.Equal(t, repository.CampaignCounters{Bounced: 1}, counters.deltas[3][0])
	})

	t.Run("replayed bounce is a no-op", func(t *testing.T) {
		proc, logs, counters := newReceiptEnv()
		seedSentRow(logs, "em-9", 3)

		payload := jobs.ProcessEmailBounce{MessageID: "em-9", Email: "jordan@example.com", BounceType: "hard"}
		require.NoError(t, proc.ProcessBounce(ctx, sendJob(t, payload)))
		require.NoError(t, proc.ProcessBounce(ctx, sendJob(t, payload)))

		assert.Len(t, logs.rows, 2)
		assert.Len(t, counters.deltas[3], 1)
	})
}
