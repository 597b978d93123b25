package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	gateway "github.com/dealerdesk/lead-engine/internal/gateways"
	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/personalize"
	"github.com/dealerdesk/lead-engine/internal/queue"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmailSender struct {
	reqs []*gateway.EmailRequest
	fail bool
}

func (f *fakeEmailSender) Send(ctx context.Context, req *gateway.EmailRequest) (*gateway.EmailResponse, error) {
	if f.fail {
		return nil, errors.New("provider down")
	}
	f.reqs = append(f.reqs, req)
	return &gateway.EmailResponse{MessageID: "em-1", Status: "queued"}, nil
}

type fakeSMSSender struct {
	reqs []*gateway.SMSRequest
	fail bool
}

func (f *fakeSMSSender) Send(ctx context.Context, req *gateway.SMSRequest) (*gateway.SMSResponse, error) {
	if f.fail {
		return nil, errors.New("provider down")
	}
	f.reqs = append(f.reqs, req)
	return &gateway.SMSResponse{MessageID: "sm-1", Status: "queued", Cost: 0.0225, Segments: 2}, nil
}

type fakeLogStore struct {
	rows []*model.DeliveryLog
}

func (f *fakeLogStore) Append(ctx context.Context, l *model.DeliveryLog) (*model.DeliveryLog, error) {
	row := *l
	row.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, &row)
	return &row, nil
}

func (f *fakeLogStore) lastStatus() model.DeliveryStatus {
	if len(f.rows) == 0 {
		return ""
	}
	return f.rows[len(f.rows)-1].Status
}

type fakeCounterStore struct {
	deltas map[int64][]repository.CampaignCounters
}

func (f *fakeCounterStore) IncrementCounters(ctx context.Context, id int64, delta repository.CampaignCounters) error {
	if f.deltas == nil {
		f.deltas = make(map[int64][]repository.CampaignCounters)
	}
	f.deltas[id] = append(f.deltas[id], delta)
	return nil
}

type fakeCustomerReader struct {
	customers map[int64]*model.Customer
}

func (f *fakeCustomerReader) Get(ctx context.Context, id int64) (*model.Customer, error) {
	if c, ok := f.customers[id]; ok {
		return c, nil
	}
	return nil, repository.ErrCustomerNotFound
}

type fakeOptOutProvider struct {
	optedOut map[string]bool
}

func (f *fakeOptOutProvider) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	return f.optedOut[phone], nil
}

type sendEnv struct {
	email     *fakeEmailSender
	sms       *fakeSMSSender
	logs      *fakeLogStore
	counters  *fakeCounterStore
	customers *fakeCustomerReader
	provider  *fakeOptOutProvider
	processor *SendProcessor
}

func newSendEnv(customers ...*model.Customer) *sendEnv {
	env := &sendEnv{
		email:     &fakeEmailSender{},
		sms:       &fakeSMSSender{},
		logs:      &fakeLogStore{},
		counters:  &fakeCounterStore{},
		customers: &fakeCustomerReader{customers: make(map[int64]*model.Customer)},
		provider:  &fakeOptOutProvider{optedOut: make(map[string]bool)},
	}
	for _, c := range customers {
		env.customers.customers[c.ID] = c
	}
	env.processor = NewSendProcessor(
		env.email,
		env.sms,
		env.logs,
		env.counters,
		env.customers,
		NewOptOutGate(env.provider),
		personalize.NewEngine(personalize.Dealership{Name: "Hilltop Motors"}),
		newTestDedupe(),
	)
	return env
}

func sendJob(t *testing.T, payload interface{}) *queue.Job {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{ID: "1-0", Data: data}
}

func optedInCustomer(id int64) *model.Customer {
	return &model.Customer{
		ID:             id,
		FirstName:      "Jordan",
		LastName:       "Avery",
		Email:          "jordan@example.com",
		Phone:          "+15551234567",
		EmailOptIn:     true,
		SMSOptIn:       true,
		MarketingOptIn: true,
		Active:         true,
	}
}

func TestSendProcessorEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("transactional send bypasses the opt-out gate", func(t *testing.T) {
		env := newSendEnv()
		payload := jobs.SendSingleEmail{
			To:      "someone@example.com",
			Subject: "Your inquiry",
			Content: "A representative will reach out shortly.",
		}

		err := env.processor.ProcessEmail(ctx, sendJob(t, payload))

		require.NoError(t, err)
		require.Len(t, env.email.reqs, 1)
		require.Len(t, env.logs.rows, 1)
		assert.Equal(t, model.DeliveryStatusSent, env.logs.rows[0].Status)
		assert.Equal(t, "em-1", env.logs.rows[0].ProviderMessageID)
	})

	t.Run("campaign send to an opted-out customer is skipped", func(t *testing.T) {
		customer := optedInCustomer(7)
		customer.MarketingOptIn = false
		env := newSendEnv(customer)

		campaignID := int64(3)
		payload := jobs.SendSingleEmail{
			To:         customer.Email,
			Subject:    "Spring sale",
			Content:    "Deals inside.",
			CustomerID: &customer.ID,
			CampaignID: &campaignID,
		}

		err := env.processor.ProcessEmail(ctx, sendJob(t, payload))

		require.NoError(t, err)
		assert.Empty(t, env.email.reqs)
		require.Len(t, env.logs.rows, 1)
		assert.Equal(t, model.DeliveryStatusSkipped, env.logs.rows[0].Status)
	})

	t.Run("campaign send renders personalization tokens", func(t *testing.T) {
		customer := optedInCustomer(7)
		env := newSendEnv(customer)

		campaignID := int64(3)
		payload := jobs.SendSingleEmail{
			To:         customer.Email,
			Subject:    "{{firstName}}, your next drive awaits",
			Content:    "Hi {{firstName}}, visit {{dealershipName}} this weekend.",
			CustomerID: &customer.ID,
			CampaignID: &campaignID,
		}

		err := env.processor.ProcessEmail(ctx, sendJob(t, payload))

		require.NoError(t, err)
		require.Len(t, env.email.reqs, 1)
		assert.Equal(t, "Jordan, your next drive awaits", env.email.reqs[0].Subject)
		assert.Equal(t, "Hi Jordan, visit Hilltop Motors this weekend.", env.email.reqs[0].Content)
	})

	t.Run("a redelivered campaign send goes out once", func(t *testing.T) {
		customer := optedInCustomer(7)
		env := newSendEnv(customer)

		campaignID := int64(3)
		payload := jobs.SendSingleEmail{
			To:         customer.Email,
			Subject:    "Spring sale",
			Content:    "Deals inside.",
			CustomerID: &customer.ID,
			CampaignID: &campaignID,
		}

		require.NoError(t, env.processor.ProcessEmail(ctx, sendJob(t, payload)))
		require.NoError(t, env.processor.ProcessEmail(ctx, sendJob(t, payload)))

		assert.Len(t, env.email.reqs, 1)
		sentRows := 0
		for _, row := range env.logs.rows {
			if row.Status == model.DeliveryStatusSent {
				sentRows++
			}
		}
		assert.Equal(t, 1, sentRows)
	})

	t.Run("provider failure logs FAILED and requeues, then a retry succeeds", func(t *testing.T) {
		customer := optedInCustomer(7)
		env := newSendEnv(customer)
		env.email.fail = true

		campaignID := int64(3)
		payload := jobs.SendSingleEmail{
			To:         customer.Email,
			Subject:    "Spring sale",
			Content:    "Deals inside.",
			CustomerID: &customer.ID,
			CampaignID: &campaignID,
		}

		err := env.processor.ProcessEmail(ctx, sendJob(t, payload))
		require.Error(t, err)
		assert.Equal(t, model.DeliveryStatusFailed, env.logs.lastStatus())

		env.email.fail = false
		require.NoError(t, env.processor.ProcessEmail(ctx, sendJob(t, payload)))
		assert.Equal(t, model.DeliveryStatusSent, env.logs.lastStatus())
	})

	t.Run("invalid payload is dropped without a provider call", func(t *testing.T) {
		env := newSendEnv()

		err := env.processor.ProcessEmail(ctx, sendJob(t, jobs.SendSingleEmail{Subject: "no recipient"}))

		require.NoError(t, err)
		assert.Empty(t, env.email.reqs)
		assert.Empty(t, env.logs.rows)
	})
}

func TestSendProcessorSMS(t *testing.T) {
	ctx := context.Background()

	t.Run("records provider cost and segment count", func(t *testing.T) {
		customer := optedInCustomer(7)
		env := newSendEnv(customer)

		campaignID := int64(4)
		payload := jobs.SendSingleSMS{
			To:         customer.Phone,
			Message:    "Hi {{firstName}}, your service slot is open.",
			CustomerID: &customer.ID,
			CampaignID: &campaignID,
		}

		err := env.processor.ProcessSMS(ctx, sendJob(t, payload))

		require.NoError(t, err)
		require.Len(t, env.sms.reqs, 1)
		assert.Equal(t, "Hi Jordan, your service slot is open.", env.sms.reqs[0].Message)
		require.Len(t, env.logs.rows, 1)
		assert.Equal(t, 0.0225, env.logs.rows[0].Cost)
		assert.Equal(t, 2, env.logs.rows[0].Segments)
	})

	t.Run("carrier-level opt-out blocks a campaign sms", func(t *testing.T) {
		customer := optedInCustomer(7)
		env := newSendEnv(customer)
		env.provider.optedOut[customer.Phone] = true

		campaignID := int64(4)
		payload := jobs.SendSingleSMS{
			To:         customer.Phone,
			Message:    "Deals inside.",
			CustomerID: &customer.ID,
			CampaignID: &campaignID,
		}

		err := env.processor.ProcessSMS(ctx, sendJob(t, payload))

		require.NoError(t, err)
		assert.Empty(t, env.sms.reqs)
		require.Len(t, env.logs.rows, 1)
		assert.Equal(t, model.DeliveryStatusSkipped, env.logs.rows[0].Status)
	})

	t.Run("transactional sms skips the carrier lookup", func(t *testing.T) {
		env := newSendEnv()
		env.provider.optedOut["+15550000000"] = true

		payload := jobs.SendSingleSMS{
			To:      "+15550000000",
			Message: "Your test drive is confirmed for tomorrow.",
		}

		err := env.processor.ProcessSMS(ctx, sendJob(t, payload))

		require.NoError(t, err)
		assert.Len(t, env.sms.reqs, 1)
	})
}
