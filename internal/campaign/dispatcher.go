package campaign

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/dealerdesk/lead-engine/pkg/logger"
)

const (
	// DefaultBatchSize bounds how many send jobs one orchestration pass
	// enqueues.
	DefaultBatchSize = 50

	emailJitterMax = 5 * time.Second
	smsJitterMin   = 1 * time.Second
	smsJitterMax   = 3 * time.Second

	// Inter-batch delays are the primary throttle; per-message jitter only
	// softens bursts inside a batch.
	emailBatchDelay = 10 * time.Second
	smsBatchDelay   = 60 * time.Second
)

var (
	ErrNotSendable = errors.New("campaign is not in a sendable status")
)

type CampaignStore interface {
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	UpdateStatus(ctx context.Context, id int64, to model.CampaignStatus) (*model.Campaign, error)
	SetTotalRecipients(ctx context.Context, id int64, total int) error
	IncrementCounters(ctx context.Context, id int64, delta repository.CampaignCounters) error
	SegmentMemberIDs(ctx context.Context, segmentID int64, limit, offset int) ([]int64, error)
	CountSegmentMembers(ctx context.Context, segmentID int64) (int64, error)
}

type CustomerStore interface {
	Get(ctx context.Context, id int64) (*model.Customer, error)
	ListActiveOptedIn(ctx context.Context, ch model.Channel, limit, offset int) ([]*model.Customer, error)
	CountActiveOptedIn(ctx context.Context, ch model.Channel) (int64, error)
}

// Dispatcher fans a campaign out into individual send jobs, one batch per
// orchestration job. Batch jobs chain themselves via startIndex so slices
// never overlap, and the single-flight limit on the orchestration queue
// keeps one campaign from running two batches at once.
type Dispatcher struct {
	campaigns  CampaignStore
	customers  CustomerStore
	dispatcher jobs.Dispatcher
	jitter     func(ch model.Channel) time.Duration
}

func NewDispatcher(campaigns CampaignStore, customers CustomerStore, dispatcher jobs.Dispatcher) *Dispatcher {
	return &Dispatcher{
		campaigns:  campaigns,
		customers:  customers,
		dispatcher: dispatcher,
		jitter:     randomJitter,
	}
}

// ProcessBatch runs one batch of a campaign. Any orchestration error marks
// the campaign FAILED; send jobs already enqueued are not recalled.
func (d *Dispatcher) ProcessBatch(ctx context.Context, campaignID int64, batchSize, startIndex int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if startIndex < 0 {
		startIndex = 0
	}

	err := d.processBatch(ctx, campaignID, batchSize, startIndex)
	if err != nil && !errors.Is(err, repository.ErrCampaignNotFound) {
		logger.Error("campaign batch failed",
			"campaign_id", campaignID, "start_index", startIndex, "error", err)
		if _, ferr := d.campaigns.UpdateStatus(ctx, campaignID, model.CampaignStatusFailed); ferr != nil {
			logger.Error("failed to mark campaign FAILED",
				"campaign_id", campaignID, "error", ferr)
		}
	}
	return err
}

func (d *Dispatcher) processBatch(ctx context.Context, campaignID int64, batchSize, startIndex int) error {
	c, err := d.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.Status.Terminal() {
		// A replayed batch job after completion or failure is a no-op.
		logger.Warn("skipping batch for terminal campaign",
			"campaign_id", campaignID, "status", c.Status)
		return nil
	}

	if startIndex == 0 {
		if c.Status == model.CampaignStatusSending {
			// A redelivered first batch: the original delivery already moved
			// the campaign to SENDING and chained the next batch. Acking the
			// duplicate keeps the chain single-flight.
			logger.Warn("skipping duplicate first batch for sending campaign",
				"campaign_id", campaignID)
			return nil
		}
		if !c.Sendable() {
			return fmt.Errorf("%w: campaign %d is %s", ErrNotSendable, campaignID, c.Status)
		}

		total, err := d.countRecipients(ctx, c)
		if err != nil {
			return fmt.Errorf("resolve recipients: %w", err)
		}
		if err := d.campaigns.SetTotalRecipients(ctx, campaignID, total); err != nil {
			return err
		}
		if total == 0 {
			// SCHEDULED goes straight to SENT without entering SENDING.
			_, err := d.campaigns.UpdateStatus(ctx, campaignID, model.CampaignStatusSent)
			return err
		}
		updated, err := d.campaigns.UpdateStatus(ctx, campaignID, model.CampaignStatusSending)
		if err != nil {
			return err
		}
		c = updated
		c.TotalRecipients = total
	}

	total := c.TotalRecipients
	endIndex := startIndex + batchSize
	if endIndex > total {
		endIndex = total
	}

	recipients, err := d.resolveSlice(ctx, c, startIndex, endIndex-startIndex)
	if err != nil {
		return fmt.Errorf("resolve batch slice: %w", err)
	}

	queued := 0
	for _, recipient := range recipients {
		if !recipient.Contactable(c.Channel) {
			continue
		}
		if err := d.enqueueSend(ctx, c, recipient); err != nil {
			return fmt.Errorf("enqueue send for customer %d: %w", recipient.ID, err)
		}
		queued++
	}

	if queued > 0 {
		if err := d.campaigns.IncrementCounters(ctx, campaignID, repository.CampaignCounters{Sent: queued}); err != nil {
			return err
		}
	}

	logger.Info("campaign batch dispatched",
		"campaign_id", campaignID,
		"range_start", startIndex,
		"range_end", endIndex,
		"queued", queued)

	if endIndex < total {
		return d.enqueueNextBatch(ctx, c, batchSize, endIndex)
	}

	_, err = d.campaigns.UpdateStatus(ctx, campaignID, model.CampaignStatusSent)
	return err
}

func (d *Dispatcher) countRecipients(ctx context.Context, c *model.Campaign) (int, error) {
	switch c.TargetKind {
	case model.TargetSegment:
		if c.SegmentID == nil {
			return 0, errors.New("segment campaign without segment id")
		}
		n, err := d.campaigns.CountSegmentMembers(ctx, *c.SegmentID)
		return int(n), err
	case model.TargetCustomAudience:
		// Custom audience rules are not supported yet. Resolving to an
		// empty set is deliberate: falling through to all customers would
		// mass-send on a rule nobody wrote.
		logger.Warn("custom audience targeting is not supported, resolving zero recipients",
			"campaign_id", c.ID)
		return 0, nil
	default:
		n, err := d.customers.CountActiveOptedIn(ctx, c.Channel)
		return int(n), err
	}
}

func (d *Dispatcher) resolveSlice(ctx context.Context, c *model.Campaign, offset, limit int) ([]*model.Customer, error) {
	if limit <= 0 {
		return nil, nil
	}

	switch c.TargetKind {
	case model.TargetSegment:
		ids, err := d.campaigns.SegmentMemberIDs(ctx, *c.SegmentID, limit, offset)
		if err != nil {
			return nil, err
		}
		recipients := make([]*model.Customer, 0, len(ids))
		for _, id := range ids {
			customer, err := d.customers.Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrCustomerNotFound) {
					continue
				}
				return nil, err
			}
			if !customer.OptedIn(c.Channel) {
				continue
			}
			recipients = append(recipients, customer)
		}
		return recipients, nil
	case model.TargetCustomAudience:
		return nil, nil
	default:
		return d.customers.ListActiveOptedIn(ctx, c.Channel, limit, offset)
	}
}

func (d *Dispatcher) enqueueSend(ctx context.Context, c *model.Campaign, recipient *model.Customer) error {
	delay := d.jitter(c.Channel)

	if c.Channel == model.ChannelSMS {
		payload := jobs.SendSingleSMS{
			To:         recipient.Phone,
			Message:    c.Template,
			CustomerID: &recipient.ID,
			CampaignID: &c.ID,
			SenderName: c.SenderName,
		}
		return d.dispatcher.Enqueue(ctx, jobs.TypeSendSingleSMS, payload, jobs.WithDelay(delay))
	}

	payload := jobs.SendSingleEmail{
		To:          recipient.Email,
		Subject:     c.Subject,
		Content:     c.Template,
		HTMLContent: c.HTMLTemplate,
		CustomerID:  &recipient.ID,
		CampaignID:  &c.ID,
	}
	return d.dispatcher.Enqueue(ctx, jobs.TypeSendSingleEmail, payload, jobs.WithDelay(delay))
}

func (d *Dispatcher) enqueueNextBatch(ctx context.Context, c *model.Campaign, batchSize, nextStart int) error {
	jobType := jobs.TypeSendEmailCampaign
	delay := emailBatchDelay
	if c.Channel == model.ChannelSMS {
		jobType = jobs.TypeSendSMSCampaign
		delay = smsBatchDelay
	}

	payload := jobs.SendCampaign{
		CampaignID: c.ID,
		BatchSize:  batchSize,
		StartIndex: nextStart,
	}
	return d.dispatcher.Enqueue(ctx, jobType, payload, jobs.WithDelay(delay))
}

// randomJitter spreads sends inside a batch so the provider never sees a
// burst. Email tolerates more spread than SMS.
func randomJitter(ch model.Channel) time.Duration {
	if ch == model.ChannelSMS {
		return smsJitterMin + time.Duration(rand.Int63n(int64(smsJitterMax-smsJitterMin)))
	}
	return time.Duration(rand.Int63n(int64(emailJitterMax)))
}
