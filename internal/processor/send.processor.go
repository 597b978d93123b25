package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gateway "github.com/dealerdesk/lead-engine/internal/gateways"
	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/personalize"
	"github.com/dealerdesk/lead-engine/internal/queue"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/dealerdesk/lead-engine/pkg/logger"
	"github.com/dealerdesk/lead-engine/pkg/prom"
)

type EmailSender interface {
	Send(ctx context.Context, req *gateway.EmailRequest) (*gateway.EmailResponse, error)
}

type SMSSender interface {
	Send(ctx context.Context, req *gateway.SMSRequest) (*gateway.SMSResponse, error)
}

type DeliveryLogStore interface {
	Append(ctx context.Context, l *model.DeliveryLog) (*model.DeliveryLog, error)
}

type CampaignCounterStore interface {
	IncrementCounters(ctx context.Context, id int64, delta repository.CampaignCounters) error
}

type CustomerReader interface {
	Get(ctx context.Context, id int64) (*model.Customer, error)
}

// SendProcessor delivers single messages: campaign fan-out jobs and
// transactional sends share the same path, differing only in the opt-out
// gate and dedupe key, which apply to campaign traffic alone.
type SendProcessor struct {
	email        EmailSender
	sms          SMSSender
	logs         DeliveryLogStore
	campaigns    CampaignCounterStore
	customers    CustomerReader
	gate         *OptOutGate
	personalizer *personalize.Engine
	dedupe       *DedupeService
}

func NewSendProcessor(
	email EmailSender,
	sms SMSSender,
	logs DeliveryLogStore,
	campaigns CampaignCounterStore,
	customers CustomerReader,
	gate *OptOutGate,
	personalizer *personalize.Engine,
	dedupe *DedupeService,
) *SendProcessor {
	return &SendProcessor{
		email:        email,
		sms:          sms,
		logs:         logs,
		campaigns:    campaigns,
		customers:    customers,
		gate:         gate,
		personalizer: personalizer,
		dedupe:       dedupe,
	}
}

func (p *SendProcessor) ProcessEmail(ctx context.Context, job *queue.Job) error {
	var payload jobs.SendSingleEmail
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		logger.Error("malformed email send payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}
	if err := payload.Validate(); err != nil {
		logger.Error("invalid email send payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	customer := p.loadCustomer(ctx, payload.CustomerID)

	entry := &model.DeliveryLog{
		Channel:    model.ChannelEmail,
		CampaignID: payload.CampaignID,
		CustomerID: payload.CustomerID,
		Recipient:  payload.To,
		Subject:    payload.Subject,
	}

	if payload.CampaignID != nil {
		if blocked, reason := p.gate.Blocked(ctx, customer, model.ChannelEmail); blocked {
			return p.skip(ctx, entry, reason)
		}
	}

	token, done, err := p.claim(ctx, payload.CampaignID, payload.CustomerID, entry)
	if done || err != nil {
		return err
	}

	subject := p.personalizer.Render(payload.Subject, customer, payload.PersonalizationData)
	content := p.personalizer.Render(payload.Content, customer, payload.PersonalizationData)
	htmlContent := p.personalizer.Render(payload.HTMLContent, customer, payload.PersonalizationData)
	entry.Subject = subject
	entry.Content = content

	resp, err := p.email.Send(ctx, &gateway.EmailRequest{
		To:          payload.To,
		Subject:     subject,
		Content:     content,
		HTMLContent: htmlContent,
	})
	if err != nil {
		return p.fail(ctx, entry, token, err)
	}

	entry.Status = model.DeliveryStatusSent
	entry.ProviderMessageID = resp.MessageID
	return p.sent(ctx, entry, token)
}

func (p *SendProcessor) ProcessSMS(ctx context.Context, job *queue.Job) error {
	var payload jobs.SendSingleSMS
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		logger.Error("malformed sms send payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}
	if err := payload.Validate(); err != nil {
		logger.Error("invalid sms send payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	customer := p.loadCustomer(ctx, payload.CustomerID)

	entry := &model.DeliveryLog{
		Channel:    model.ChannelSMS,
		CampaignID: payload.CampaignID,
		CustomerID: payload.CustomerID,
		Recipient:  payload.To,
	}

	if payload.CampaignID != nil {
		if blocked, reason := p.gate.Blocked(ctx, customer, model.ChannelSMS); blocked {
			return p.skip(ctx, entry, reason)
		}
	}

	token, done, err := p.claim(ctx, payload.CampaignID, payload.CustomerID, entry)
	if done || err != nil {
		return err
	}

	message := p.personalizer.Render(payload.Message, customer, payload.PersonalizationData)
	entry.Content = message

	resp, err := p.sms.Send(ctx, &gateway.SMSRequest{
		To:         payload.To,
		Message:    message,
		MediaURLs:  payload.MediaURLs,
		SenderName: payload.SenderName,
	})
	if err != nil {
		return p.fail(ctx, entry, token, err)
	}

	entry.Status = model.DeliveryStatusSent
	entry.ProviderMessageID = resp.MessageID
	entry.Cost = resp.Cost
	entry.Segments = resp.Segments
	return p.sent(ctx, entry, token)
}

func (p *SendProcessor) loadCustomer(ctx context.Context, id *int64) *model.Customer {
	if id == nil {
		return nil
	}
	c, err := p.customers.Get(ctx, *id)
	if err != nil {
		logger.Warn("send recipient customer lookup failed", "customer_id", *id, "error", err)
		return nil
	}
	return c
}

// claim takes the dedupe key for campaign sends. The bool result means the
// job is already resolved: either a duplicate (ack) or a contended lock
// (the returned error requeues it).
func (p *SendProcessor) claim(ctx context.Context, campaignID, customerID *int64, entry *model.DeliveryLog) (*SendToken, bool, error) {
	if campaignID == nil || customerID == nil {
		return nil, false, nil
	}

	key := fmt.Sprintf("%d:%d", *campaignID, *customerID)
	token, err := p.dedupe.Acquire(ctx, key)
	if err == nil {
		return token, false, nil
	}

	switch {
	case errors.Is(err, ErrAlreadySent):
		logger.Info("campaign send already completed, skipping", "key", key)
		return nil, true, nil
	case errors.Is(err, ErrTooManyAttempts):
		entry.Status = model.DeliveryStatusFailed
		entry.ErrorMessage = err.Error()
		if _, aerr := p.logs.Append(ctx, entry); aerr != nil {
			logger.Error("failed to append delivery log", "key", key, "error", aerr)
		}
		p.bump(ctx, entry.CampaignID, repository.CampaignCounters{Failed: 1})
		prom.IncDeliverySend(string(entry.Channel), string(model.DeliveryStatusFailed))
		return nil, true, nil
	default:
		return nil, true, err
	}
}

func (p *SendProcessor) skip(ctx context.Context, entry *model.DeliveryLog, reason string) error {
	entry.Status = model.DeliveryStatusSkipped
	entry.ErrorMessage = reason
	if _, err := p.logs.Append(ctx, entry); err != nil {
		logger.Error("failed to append skip log", "recipient", entry.Recipient, "error", err)
	}
	logger.Info("send skipped by opt-out gate",
		"channel", entry.Channel,
		"campaign_id", entry.CampaignID,
		"reason", reason)
	prom.IncDeliverySend(string(entry.Channel), string(model.DeliveryStatusSkipped))
	return nil
}

func (p *SendProcessor) fail(ctx context.Context, entry *model.DeliveryLog, token *SendToken, cause error) error {
	entry.Status = model.DeliveryStatusFailed
	entry.ErrorMessage = cause.Error()
	if _, err := p.logs.Append(ctx, entry); err != nil {
		logger.Error("failed to append failure log", "recipient", entry.Recipient, "error", err)
	}
	if token != nil {
		p.dedupe.MarkFailed(ctx, token, cause)
	}
	prom.IncDeliverySend(string(entry.Channel), string(model.DeliveryStatusFailed))
	return cause
}

func (p *SendProcessor) sent(ctx context.Context, entry *model.DeliveryLog, token *SendToken) error {
	if _, err := p.logs.Append(ctx, entry); err != nil {
		// The message is out; a log write failure must not trigger a
		// duplicate send on retry.
		logger.Error("failed to append sent log",
			"recipient", entry.Recipient,
			"provider_message_id", entry.ProviderMessageID,
			"error", err)
	}

	if token != nil {
		if err := p.dedupe.MarkSent(ctx, token); err != nil {
			logger.Error("failed to mark send complete", "key", token.Key, "error", err)
		}
	}

	prom.IncDeliverySend(string(entry.Channel), string(model.DeliveryStatusSent))
	logger.Info("message handed to provider",
		"channel", entry.Channel,
		"recipient", entry.Recipient,
		"provider_message_id", entry.ProviderMessageID,
		"campaign_id", entry.CampaignID)
	return nil
}

func (p *SendProcessor) bump(ctx context.Context, campaignID *int64, delta repository.CampaignCounters) {
	if campaignID == nil {
		return
	}
	if err := p.campaigns.IncrementCounters(ctx, *campaignID, delta); err != nil {
		logger.Error("failed to bump campaign counters", "campaign_id", *campaignID, "error", err)
	}
}
