package processor

import (
	"context"
	"encoding/json"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/queue"
	"github.com/dealerdesk/lead-engine/pkg/logger"
)

type CampaignBatcher interface {
	ProcessBatch(ctx context.Context, campaignID int64, batchSize, startIndex int) error
}

// CampaignProcessor runs one batch-orchestration job. These jobs are never
// auto-retried; a failure lands in the DLQ with the campaign marked FAILED
// by the dispatcher.
type CampaignProcessor struct {
	batcher CampaignBatcher
}

func NewCampaignProcessor(batcher CampaignBatcher) *CampaignProcessor {
	return &CampaignProcessor{batcher: batcher}
}

func (p *CampaignProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload jobs.SendCampaign
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		logger.Error("malformed campaign batch payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}
	if err := payload.Validate(); err != nil {
		logger.Error("invalid campaign batch payload, dropping", "job_id", job.ID, "error", err)
		return nil
	}

	return p.batcher.ProcessBatch(ctx, payload.CampaignID, payload.BatchSize, payload.StartIndex)
}
