package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dealerdesk/lead-engine/pkg/logger"
	"github.com/dealerdesk/lead-engine/pkg/redis"
	"github.com/google/uuid"
)

// Job is one unit of queued work.
type Job struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
}

// Handler processes jobs.
// Return values:
//   - nil: success, the job is acked
//   - error: failure, the job is re-enqueued with backoff (or moved to the
//     DLQ once attempts run out)
type Handler func(ctx context.Context, job *Job) error

type Config struct {
	Name          string
	ConsumerGroup string
	ConsumerName  string

	// Concurrency is the number of parallel consume loops. 1 gives
	// single-flight semantics for the job type.
	Concurrency int

	MaxAttempts       int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool

	// Retry scheduling. Failed jobs re-enter through the delay set with
	// exponential backoff unless DisableRetry is set, in which case a
	// failure goes straight to the DLQ (used for campaign orchestration,
	// which must never silently re-run).
	RetryBackoffBase time.Duration
	RetryBackoffCap  time.Duration
	DisableRetry     bool
}

// Queue is an at-least-once job queue on Redis streams. Each queue owns a
// main stream, a high-priority stream consumed first, a sorted-set delay
// bucket promoted by a scheduler loop, and an optional DLQ stream.
type Queue struct {
	adapter redis.RedisAdapter
	config  Config
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Stats struct {
	ReadyJobs    int64
	PriorityJobs int64
	DelayedJobs  int64
	PendingJobs  int64
	Consumers    int64
}

// delayedEnvelope is the serialized form a job takes while parked in the
// delay set.
type delayedEnvelope struct {
	ID       string            `json:"id"`
	Data     string            `json:"data"`
	Metadata map[string]string `json:"metadata,omitempty"`
	High     bool              `json:"high,omitempty"`
	Attempts int               `json:"attempts,omitempty"`
}

func New(adapter redis.RedisAdapter, config Config) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.RetryBackoffBase == 0 {
		config.RetryBackoffBase = 5 * time.Second
	}
	if config.RetryBackoffCap == 0 {
		config.RetryBackoffCap = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, stream := range []string{q.mainStream(), q.highStream()} {
		if err := adapter.XGroupCreateMkStream(stream, config.ConsumerGroup, "0"); err != nil {
			// Group might already exist, which is fine
		}
	}

	return q, nil
}

func (q *Queue) mainStream() string { return q.config.Name }
func (q *Queue) highStream() string { return q.config.Name + ":high" }
func (q *Queue) delayedSet() string { return q.config.Name + ":delayed" }
func (q *Queue) dlqStream() string  { return q.config.Name + ":dlq" }

// Publish adds a job to the main stream.
func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	return q.publishTo(q.mainStream(), data, metadata, 0)
}

// PublishHigh adds a job to the high-priority stream, consumed before the
// main stream within each poll.
func (q *Queue) PublishHigh(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	return q.publishTo(q.highStream(), data, metadata, 0)
}

// PublishDelayed parks a job in the delay set until it is due, then the
// scheduler promotes it onto the main stream.
func (q *Queue) PublishDelayed(ctx context.Context, data []byte, metadata map[string]string, delay time.Duration) (string, error) {
	return q.publishDelayed(data, metadata, delay, false, 0)
}

func (q *Queue) PublishJSON(ctx context.Context, v interface{}, metadata map[string]string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.Publish(ctx, data, metadata)
}

func (q *Queue) PublishJSONHigh(ctx context.Context, v interface{}, metadata map[string]string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.PublishHigh(ctx, data, metadata)
}

func (q *Queue) PublishJSONDelayed(ctx context.Context, v interface{}, metadata map[string]string, delay time.Duration) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.PublishDelayed(ctx, data, metadata, delay)
}

func (q *Queue) publishTo(stream string, data []byte, metadata map[string]string, attempts int) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Unix(),
		"attempts":  attempts,
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(stream, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish job: %w", err)
	}

	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(stream, q.config.MaxLen)
	}

	return id, nil
}

func (q *Queue) publishDelayed(data []byte, metadata map[string]string, delay time.Duration, high bool, attempts int) (string, error) {
	env := delayedEnvelope{
		ID:       uuid.NewString(),
		Data:     string(data),
		Metadata: metadata,
		High:     high,
		Attempts: attempts,
	}
	member, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal delayed job: %w", err)
	}

	readyAt := float64(time.Now().Add(delay).UnixMilli())
	if err := q.adapter.ZAdd(q.delayedSet(), readyAt, string(member)); err != nil {
		return "", fmt.Errorf("failed to park delayed job: %w", err)
	}
	return env.ID, nil
}

// Consume starts the configured number of consume loops plus the delay
// scheduler.
func (q *Queue) Consume(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("job handler is required")
	}
	q.handler = handler

	for i := 0; i < q.config.Concurrency; i++ {
		q.wg.Add(1)
		go q.consumeLoop(i)
	}

	q.wg.Add(1)
	go q.schedulerLoop()

	return nil
}

func (q *Queue) consumeLoop(index int) {
	defer q.wg.Done()

	consumer := fmt.Sprintf("%s-%d", q.config.ConsumerName, index)

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processStream(q.highStream(), consumer)
			q.processStream(q.mainStream(), consumer)
			q.claimStuckJobs(q.highStream(), consumer)
			q.claimStuckJobs(q.mainStream(), consumer)
		}
	}
}

func (q *Queue) schedulerLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.promoteDueJobs()
		}
	}
}

// promoteDueJobs moves due delayed jobs onto their stream. ZRem before XAdd
// keeps concurrent schedulers from promoting the same entry twice; the
// stream side stays at-least-once.
func (q *Queue) promoteDueJobs() {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := q.adapter.ZRangeByScore(q.delayedSet(), "-inf", now, q.config.BatchSize)
	if err != nil || len(members) == 0 {
		return
	}

	for _, member := range members {
		if err := q.adapter.ZRem(q.delayedSet(), member); err != nil {
			continue
		}

		var env delayedEnvelope
		if err := json.Unmarshal([]byte(member), &env); err != nil {
			logger.Error("dropping malformed delayed job", "queue", q.config.Name, "error", err)
			continue
		}

		stream := q.mainStream()
		if env.High {
			stream = q.highStream()
		}
		if _, err := q.publishTo(stream, []byte(env.Data), env.Metadata, env.Attempts); err != nil {
			logger.Error("failed to promote delayed job", "queue", q.config.Name, "error", err)
		}
	}
}

func (q *Queue) processStream(stream, consumer string) {
	messages, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		consumer,
		stream,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		job := q.toJob(streamMsg)
		q.handleJob(stream, job)
	}
}

func (q *Queue) claimStuckJobs(stream, consumer string) {
	pending, err := q.adapter.XPending(stream, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(stream, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	var idsToReclaim []string
	for _, msg := range pendingExt {
		if msg.Idle >= q.config.VisibilityTimeout {
			idsToReclaim = append(idsToReclaim, msg.ID)
		}
	}
	if len(idsToReclaim) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(stream, q.config.ConsumerGroup, consumer, q.config.VisibilityTimeout, idsToReclaim...)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		job := q.toJob(streamMsg)
		job.Attempts++
		q.handleJob(stream, job)
	}
}

func (q *Queue) handleJob(stream string, job *Job) {
	if job.Attempts >= q.config.MaxAttempts {
		q.moveToDLQ(job)
		_ = q.adapter.XAck(stream, q.config.ConsumerGroup, job.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	err := q.handler(ctx, job)
	if err == nil {
		_ = q.adapter.XAck(stream, q.config.ConsumerGroup, job.ID)
		return
	}

	// Failure: ack the stream entry and re-enter through the delay set with
	// backoff, so a poisoned job cannot occupy the pending list forever.
	_ = q.adapter.XAck(stream, q.config.ConsumerGroup, job.ID)

	next := job.Attempts + 1
	if q.config.DisableRetry || next >= q.config.MaxAttempts {
		q.moveToDLQ(job)
		return
	}

	delay := q.backoff(next)
	logger.Warn("job failed, scheduling retry",
		"queue", q.config.Name,
		"job_id", job.ID,
		"attempt", next,
		"delay", delay.String(),
		"error", err)

	high := stream == q.highStream()
	if _, perr := q.publishDelayed(job.Data, job.Metadata, delay, high, next); perr != nil {
		logger.Error("failed to schedule retry", "queue", q.config.Name, "job_id", job.ID, "error", perr)
	}
}

func (q *Queue) backoff(attempt int) time.Duration {
	d := q.config.RetryBackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= q.config.RetryBackoffCap {
			return q.config.RetryBackoffCap
		}
	}
	if d > q.config.RetryBackoffCap {
		d = q.config.RetryBackoffCap
	}
	return d
}

func (q *Queue) moveToDLQ(job *Job) {
	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		"data":           string(job.Data),
		"original_id":    job.ID,
		"attempts":       job.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range job.Metadata {
		values["meta_"+k] = v
	}

	_, _ = q.adapter.XAdd(q.dlqStream(), values)
}

func (q *Queue) toJob(streamMsg redis.StreamMessage) *Job {
	job := &Job{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
	}

	for k, v := range streamMsg.Values {
		switch k {
		case "data":
			if data, ok := v.(string); ok {
				job.Data = []byte(data)
			}
		case "timestamp":
			if ts, ok := v.(string); ok {
				if unix, err := strconv.ParseInt(ts, 10, 64); err == nil {
					job.Timestamp = time.Unix(unix, 0)
				}
			}
		case "attempts":
			if attempts, ok := v.(string); ok {
				fmt.Sscanf(attempts, "%d", &job.Attempts)
			}
		default:
			if len(k) > 5 && k[:5] == "meta_" {
				if val, ok := v.(string); ok {
					job.Metadata[k[5:]] = val
				}
			}
		}
	}

	if job.Timestamp.IsZero() {
		job.Timestamp = time.Now()
	}

	return job
}

func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*Stats, error) {
	ready, err := q.adapter.XLen(q.mainStream())
	if err != nil {
		return nil, err
	}
	high, _ := q.adapter.XLen(q.highStream())
	delayed, _ := q.adapter.ZCard(q.delayedSet())

	stats := &Stats{
		ReadyJobs:    ready,
		PriorityJobs: high,
		DelayedJobs:  delayed,
	}

	if pending, err := q.adapter.XPending(q.mainStream(), q.config.ConsumerGroup); err == nil && pending != nil {
		stats.PendingJobs = pending.Count
		stats.Consumers = int64(len(pending.Consumers))
	}

	return stats, nil
}
