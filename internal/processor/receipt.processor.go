package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/queue"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/dealerdesk/lead-engine/pkg/logger"
	"github.com/dealerdesk/lead-engine/pkg/prom"
)

// DeliveryHistoryStore is the append-only delivery log as the receipt
// processors see it: correlation by provider message id, replay detection,
// and appending the callback row.
type DeliveryHistoryStore interface {
	Append(ctx context.Context, l *model.DeliveryLog) (*model.DeliveryLog, error)
	LatestByProviderMessageID(ctx context.Context, providerMessageID string) (*model.DeliveryLog, error)
	HasStatusForProviderMessageID(ctx context.Context, providerMessageID string, status model.DeliveryStatus) (bool, error)
}

// ReceiptProcessor handles asynchronous provider callbacks. Callbacks may
// arrive more than once; a replayed status for the same provider message id
// is a no-op.
type ReceiptProcessor struct {
	logs      DeliveryHistoryStore
	campaigns CampaignCounterStore
}

func NewReceiptProcessor(logs DeliveryHistoryStore, campaigns CampaignCounterStore) *ReceiptProcessor {
	return &ReceiptProcessor{logs: logs, campaigns: campaigns}
}

func (p *ReceiptProcessor) ProcessReceipt(ctx context.Context, job *queue.Job) error {
	var payload jobs.DeliveryReceipt
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		logger.Error("malformed delivery receipt, dropping", "job_id", job.ID, "error", err)
		return nil
	}
	if err := payload.Validate(); err != nil {
		logger.Error("invalid delivery receipt, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	status := receiptStatus(payload.Status)
	return p.appendCallback(ctx, payload.MessageID, status, payload.Error)
}

func (p *ReceiptProcessor) ProcessBounce(ctx context.Context, job *queue.Job) error {
	var payload jobs.ProcessEmailBounce
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		logger.Error("malformed bounce payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}
	if err := payload.Validate(); err != nil {
		logger.Error("invalid bounce payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	reason := "bounce"
	if payload.BounceType != "" {
		reason = payload.BounceType + " bounce"
	}
	return p.appendCallback(ctx, payload.MessageID, model.DeliveryStatusBounced, reason)
}

func (p *ReceiptProcessor) appendCallback(ctx context.Context, providerMessageID string, status model.DeliveryStatus, detail string) error {
	seen, err := p.logs.HasStatusForProviderMessageID(ctx, providerMessageID, status)
	if err != nil {
		return fmt.Errorf("check callback replay: %w", err)
	}
	if seen {
		logger.Info("callback already recorded, skipping",
			"provider_message_id", providerMessageID, "status", status)
		return nil
	}

	original, err := p.logs.LatestByProviderMessageID(ctx, providerMessageID)
	if err != nil {
		if errors.Is(err, repository.ErrDeliveryLogNotFound) {
			// The callback can race the SENT row of a send still in
			// flight; requeue and let backoff close the gap.
			return fmt.Errorf("no send on record for provider message %s", providerMessageID)
		}
		return err
	}

	entry := &model.DeliveryLog{
		Channel:           original.Channel,
		CampaignID:        original.CampaignID,
		CustomerID:        original.CustomerID,
		Recipient:         original.Recipient,
		Status:            status,
		ProviderMessageID: providerMessageID,
		ErrorMessage:      detail,
	}
	if _, err := p.logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("append callback row: %w", err)
	}

	if original.CampaignID != nil {
		delta := counterDelta(status)
		if delta != (repository.CampaignCounters{}) {
			if err := p.campaigns.IncrementCounters(ctx, *original.CampaignID, delta); err != nil {
				logger.Error("failed to bump campaign counters",
					"campaign_id", *original.CampaignID, "error", err)
			}
		}
	}

	prom.IncDeliverySend(string(entry.Channel), string(status))
	logger.Info("provider callback recorded",
		"provider_message_id", providerMessageID,
		"status", status,
		"campaign_id", original.CampaignID)
	return nil
}

// receiptStatus maps the provider's status vocabulary onto ours. Anything
// unrecognized counts as undelivered rather than being dropped.
func receiptStatus(raw string) model.DeliveryStatus {
	switch strings.ToLower(raw) {
	case "delivered":
		return model.DeliveryStatusDelivered
	case "bounced":
		return model.DeliveryStatusBounced
	case "failed":
		return model.DeliveryStatusFailed
	default:
		return model.DeliveryStatusUndelivered
	}
}

func counterDelta(status model.DeliveryStatus) repository.CampaignCounters {
	switch status {
	case model.DeliveryStatusDelivered:
		return repository.CampaignCounters{Delivered: 1}
	case model.DeliveryStatusBounced:
		return repository.CampaignCounters{Bounced: 1}
	case model.DeliveryStatusFailed, model.DeliveryStatusUndelivered:
		return repository.CampaignCounters{Failed: 1}
	default:
		return repository.CampaignCounters{}
	}
}
