package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dealerdesk/lead-engine/internal/queue"
	"github.com/dealerdesk/lead-engine/pkg/redis"
)

// RuntimeConfig carries the queue settings shared by every job type; the
// per-type concurrency and retry policy come from the Concurrency and
// NoRetry tables.
type RuntimeConfig struct {
	StreamPrefix      string
	ConsumerGroup     string
	ConsumerName      string
	MaxAttempts       int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
	RetryBackoffBase  time.Duration
	RetryBackoffCap   time.Duration
}

// Runtime owns one queue per job type and implements Dispatcher. It is the
// single constructed handle that replaces global queue singletons.
type Runtime struct {
	queues map[string]*queue.Queue
}

func NewRuntime(adapter redis.RedisAdapter, cfg RuntimeConfig) (*Runtime, error) {
	if cfg.StreamPrefix == "" {
		cfg.StreamPrefix = "jobs"
	}

	r := &Runtime{queues: make(map[string]*queue.Queue, len(Types))}

	for _, jobType := range Types {
		q, err := queue.New(adapter, queue.Config{
			Name:              cfg.StreamPrefix + ":" + jobType,
			ConsumerGroup:     cfg.ConsumerGroup,
			ConsumerName:      cfg.ConsumerName + "-" + jobType,
			Concurrency:       Concurrency[jobType],
			MaxAttempts:       cfg.MaxAttempts,
			VisibilityTimeout: cfg.VisibilityTimeout,
			PollInterval:      cfg.PollInterval,
			BatchSize:         cfg.BatchSize,
			MaxLen:            cfg.MaxLen,
			EnableDLQ:         cfg.EnableDLQ,
			RetryBackoffBase:  cfg.RetryBackoffBase,
			RetryBackoffCap:   cfg.RetryBackoffCap,
			DisableRetry:      NoRetry[jobType],
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create queue for %s: %w", jobType, err)
		}
		r.queues[jobType] = q
	}

	return r, nil
}

// Enqueue publishes a payload onto the job type's queue.
func (r *Runtime) Enqueue(ctx context.Context, jobType string, payload interface{}, opts ...Option) error {
	q, ok := r.queues[jobType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}

	var o EnqueueOptions
	for _, opt := range opts {
		opt(&o)
	}

	meta := map[string]string{"type": jobType}

	var err error
	switch {
	case o.Delay > 0:
		_, err = q.PublishJSONDelayed(ctx, payload, meta, o.Delay)
	case o.HighPriority:
		_, err = q.PublishJSONHigh(ctx, payload, meta)
	default:
		_, err = q.PublishJSON(ctx, payload, meta)
	}
	return err
}

// Consume attaches a handler to one job type's queue and starts it.
func (r *Runtime) Consume(jobType string, handler queue.Handler) error {
	q, ok := r.queues[jobType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	return q.Consume(handler)
}

// Stats returns per-type queue stats.
func (r *Runtime) Stats() map[string]*queue.Stats {
	out := make(map[string]*queue.Stats, len(r.queues))
	for jobType, q := range r.queues {
		if s, err := q.GetStats(); err == nil {
			out[jobType] = s
		}
	}
	return out
}

// Stop shuts every queue down, bounded by timeout overall.
func (r *Runtime) Stop(timeout time.Duration) {
	for _, q := range r.queues {
		_ = q.Stop(timeout)
	}
}
