package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCampaignStore struct {
	mu        sync.Mutex
	campaigns map[int64]*model.Campaign
	members   map[int64][]int64
	failIncr  bool
}

func (f *fakeCampaignStore) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, repository.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignStore) UpdateStatus(ctx context.Context, id int64, to model.CampaignStatus) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, repository.ErrCampaignNotFound
	}
	if !c.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, c.Status, to)
	}
	c.Status = to
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignStore) SetTotalRecipients(ctx context.Context, id int64, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaigns[id].TotalRecipients = total
	return nil
}

func (f *fakeCampaignStore) IncrementCounters(ctx context.Context, id int64, delta repository.CampaignCounters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIncr {
		return errors.New("increment failed")
	}
	c := f.campaigns[id]
	c.SentCount += delta.Sent
	c.DeliveredCount += delta.Delivered
	c.BouncedCount += delta.Bounced
	c.FailedCount += delta.Failed
	return nil
}

func (f *fakeCampaignStore) SegmentMemberIDs(ctx context.Context, segmentID int64, limit, offset int) ([]int64, error) {
	ids := f.members[segmentID]
	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end], nil
}

func (f *fakeCampaignStore) CountSegmentMembers(ctx context.Context, segmentID int64) (int64, error) {
	return int64(len(f.members[segmentID])), nil
}

type fakeCustomerStore struct {
	customers []*model.Customer
}

func (f *fakeCustomerStore) Get(ctx context.Context, id int64) (*model.Customer, error) {
	for _, c := range f.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrCustomerNotFound
}

func (f *fakeCustomerStore) ListActiveOptedIn(ctx context.Context, ch model.Channel, limit, offset int) ([]*model.Customer, error) {
	if offset >= len(f.customers) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.customers) {
		end = len(f.customers)
	}
	return f.customers[offset:end], nil
}

func (f *fakeCustomerStore) CountActiveOptedIn(ctx context.Context, ch model.Channel) (int64, error) {
	return int64(len(f.customers)), nil
}

type recordedJob struct {
	Type    string
	Payload interface{}
	Opts    jobs.EnqueueOptions
}

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []recordedJob
	fail bool
}

func (f *fakeDispatcher) Enqueue(ctx context.Context, jobType string, payload interface{}, opts ...jobs.Option) error {
	if f.fail {
		return errors.New("queue unavailable")
	}
	var o jobs.EnqueueOptions
	for _, opt := range opts {
		opt(&o)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, recordedJob{Type: jobType, Payload: payload, Opts: o})
	return nil
}

func (f *fakeDispatcher) byType(jobType string) []recordedJob {
	var out []recordedJob
	for _, j := range f.jobs {
		if j.Type == jobType {
			out = append(out, j)
		}
	}
	return out
}

func seedCustomers(n int) []*model.Customer {
	customers := make([]*model.Customer, 0, n)
	for i := 1; i <= n; i++ {
		customers = append(customers, &model.Customer{
			ID:             int64(i),
			Email:          fmt.Sprintf("c%d@example.com", i),
			Phone:          fmt.Sprintf("+1555000%04d", i),
			Active:         true,
			MarketingOptIn: true,
			EmailOptIn:     true,
			SMSOptIn:       true,
		})
	}
	return customers
}

func newTestDispatcher(campaign *model.Campaign, customers []*model.Customer) (*Dispatcher, *fakeCampaignStore, *fakeDispatcher) {
	store := &fakeCampaignStore{
		campaigns: map[int64]*model.Campaign{campaign.ID: campaign},
		members:   map[int64][]int64{},
	}
	queue := &fakeDispatcher{}
	d := NewDispatcher(store, &fakeCustomerStore{customers: customers}, queue)
	d.jitter = func(model.Channel) time.Duration { return 0 }
	return d, store, queue
}

func emailCampaign(id int64) *model.Campaign {
	return &model.Campaign{
		ID: id, Name: "test", Channel: model.ChannelEmail,
		Subject: "Hello", Template: "Hi {{firstName}}",
		TargetKind: model.TargetAllOptedIn,
		Status:     model.CampaignStatusScheduled,
	}
}

func TestDispatcher_ProcessBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("chained batches cover every recipient exactly once", func(t *testing.T) {
		d, store, queue := newTestDispatcher(emailCampaign(1), seedCustomers(120))

		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 0))
		c, _ := store.Get(ctx, 1)
		assert.Equal(t, model.CampaignStatusSending, c.Status)
		assert.Equal(t, 120, c.TotalRecipients)
		assert.Equal(t, 50, c.SentCount)

		next := queue.byType(jobs.TypeSendEmailCampaign)
		require.Len(t, next, 1)
		payload := next[0].Payload.(jobs.SendCampaign)
		assert.Equal(t, 50, payload.StartIndex)
		assert.Equal(t, emailBatchDelay, next[0].Opts.Delay)

		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 50))
		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 100))

		c, _ = store.Get(ctx, 1)
		assert.Equal(t, model.CampaignStatusSent, c.Status)
		assert.Equal(t, 120, c.SentCount)

		sends := queue.byType(jobs.TypeSendSingleEmail)
		require.Len(t, sends, 120)
		seen := map[string]bool{}
		for _, s := range sends {
			to := s.Payload.(jobs.SendSingleEmail).To
			assert.False(t, seen[to], "recipient %s enqueued twice", to)
			seen[to] = true
		}
	})

	t.Run("zero recipients goes straight to SENT", func(t *testing.T) {
		d, store, queue := newTestDispatcher(emailCampaign(1), nil)

		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 0))

		c, _ := store.Get(ctx, 1)
		assert.Equal(t, model.CampaignStatusSent, c.Status)
		assert.Equal(t, 0, c.SentCount)
		assert.Empty(t, queue.jobs)
	})

	t.Run("custom audience resolves empty and completes", func(t *testing.T) {
		campaign := emailCampaign(1)
		campaign.TargetKind = model.TargetCustomAudience
		campaign.AudienceRule = "bought_suv_last_year"
		d, store, queue := newTestDispatcher(campaign, seedCustomers(10))

		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 0))

		c, _ := store.Get(ctx, 1)
		assert.Equal(t, model.CampaignStatusSent, c.Status)
		assert.Empty(t, queue.jobs)
	})

	t.Run("segment campaign filters to opted-in members", func(t *testing.T) {
		campaign := emailCampaign(1)
		segID := int64(3)
		campaign.TargetKind = model.TargetSegment
		campaign.SegmentID = &segID

		customers := seedCustomers(4)
		customers[2].MarketingOptIn = false

		d, store, queue := newTestDispatcher(campaign, customers)
		store.members[segID] = []int64{1, 2, 3, 4}

		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 0))

		c, _ := store.Get(ctx, 1)
		assert.Equal(t, model.CampaignStatusSent, c.Status)
		assert.Equal(t, 3, c.SentCount)
		assert.Len(t, queue.byType(jobs.TypeSendSingleEmail), 3)
	})

	t.Run("sms campaign uses sms jobs and delays", func(t *testing.T) {
		campaign := emailCampaign(1)
		campaign.Channel = model.ChannelSMS
		campaign.Template = "Deal: {{firstName}}"
		d, store, queue := newTestDispatcher(campaign, seedCustomers(60))

		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 0))

		assert.Len(t, queue.byType(jobs.TypeSendSingleSMS), 50)
		next := queue.byType(jobs.TypeSendSMSCampaign)
		require.Len(t, next, 1)
		assert.Equal(t, smsBatchDelay, next[0].Opts.Delay)

		c, _ := store.Get(ctx, 1)
		assert.Equal(t, model.CampaignStatusSending, c.Status)
	})

	t.Run("orchestration failure marks campaign FAILED", func(t *testing.T) {
		d, store, queue := newTestDispatcher(emailCampaign(1), seedCustomers(10))
		queue.fail = true

		err := d.ProcessBatch(ctx, 1, 50, 0)
		require.Error(t, err)

		c, _ := store.Get(ctx, 1)
		assert.Equal(t, model.CampaignStatusFailed, c.Status)
	})

	t.Run("terminal campaign replays are no-ops", func(t *testing.T) {
		campaign := emailCampaign(1)
		campaign.Status = model.CampaignStatusSent
		d, _, queue := newTestDispatcher(campaign, seedCustomers(10))

		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 0))
		assert.Empty(t, queue.jobs)
	})

	t.Run("redelivered first batch leaves sending campaign intact", func(t *testing.T) {
		d, store, queue := newTestDispatcher(emailCampaign(1), seedCustomers(120))

		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 0))
		sendsAfterFirst := len(queue.byType(jobs.TypeSendSingleEmail))

		// The broker redelivers batch 0 after the visibility timeout.
		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 0))

		c, _ := store.Get(ctx, 1)
		assert.Equal(t, model.CampaignStatusSending, c.Status)
		assert.Equal(t, sendsAfterFirst, len(queue.byType(jobs.TypeSendSingleEmail)),
			"duplicate first batch must not enqueue more sends")
		assert.Equal(t, 50, c.SentCount)

		// The chain the original delivery started still completes.
		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 50))
		require.NoError(t, d.ProcessBatch(ctx, 1, 50, 100))
		c, _ = store.Get(ctx, 1)
		assert.Equal(t, model.CampaignStatusSent, c.Status)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		d, _, _ := newTestDispatcher(emailCampaign(1), nil)
		err := d.ProcessBatch(ctx, 99, 50, 0)
		assert.ErrorIs(t, err, repository.ErrCampaignNotFound)
	})
}

func TestRandomJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		email := randomJitter(model.ChannelEmail)
		assert.GreaterOrEqual(t, email, time.Duration(0))
		assert.Less(t, email, emailJitterMax)

		sms := randomJitter(model.ChannelSMS)
		assert.GreaterOrEqual(t, sms, smsJitterMin)
		assert.Less(t, sms, smsJitterMax)
	}
}
