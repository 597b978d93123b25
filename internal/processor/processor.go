package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/queue"
	"github.com/dealerdesk/lead-engine/pkg/logger"
	"github.com/dealerdesk/lead-engine/pkg/prom"
	"github.com/dealerdesk/lead-engine/pkg/redis"
	"github.com/dealerdesk/lead-engine/pkg/worker"
)

// ProcessingTimeout bounds one job end to end, provider call included.
const ProcessingTimeout = 30 * time.Second
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

// ProcessFunc handles one job of a registered type. A nil return acks; an
// error requeues with backoff unless the type's queue disables retry.
type ProcessFunc func(ctx context.Context, job *queue.Job) error

// ProcessorService binds the per-type job queues to a shared worker pool.
// Per-type concurrency holds because each consume loop blocks until its job
// clears the pool; the pool only caps total parallelism across types.
type ProcessorService struct {
	adapter  redis.RedisAdapter
	runtime  *jobs.Runtime
	handlers map[string]ProcessFunc
	metrics  *ServiceMetrics
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	worker   *worker.WorkerManager
}

func NewProcessorService(adapter redis.RedisAdapter, runtime *jobs.Runtime) *ProcessorService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter:  adapter,
		runtime:  runtime,
		handlers: make(map[string]ProcessFunc),
		metrics:  NewServiceMetrics(),
		ctx:      ctx,
		cancel:   cancel,
		worker:   worker.NewWorkerManager(10_000, 50, nil),
	}
}

// Register attaches a handler to a job type. All registrations must happen
// before Start.
func (s *ProcessorService) Register(jobType string, fn ProcessFunc) {
	s.handlers[jobType] = fn
	logger.Info("registered job handler", "type", jobType)
}

func (s *ProcessorService) Start() error {
	logger.Info("starting processor service...")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	for jobType := range s.handlers {
		jt := jobType
		if err := s.runtime.Consume(jt, func(ctx context.Context, job *queue.Job) error {
			return s.dispatch(ctx, jt, job)
		}); err != nil {
			return fmt.Errorf("failed to start consumer for %s: %w", jt, err)
		}
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("processor service started", "job_types", len(s.handlers))
	return nil
}

type jobResult struct {
	jobType    string
	job        *queue.Job
	resultChan chan error
	ctx        context.Context
}

// dispatch hands the job to the worker pool and blocks the consume loop
// until it finishes, preserving the per-type concurrency limit.
func (s *ProcessorService) dispatch(ctx context.Context, jobType string, job *queue.Job) error {
	resultChan := make(chan error, 1)

	jobCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	s.worker.Enqueue(&jobResult{
		jobType:    jobType,
		job:        job,
		resultChan: resultChan,
		ctx:        jobCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process job: %w", jobCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-jobRes.ctx.Done():
		logger.Warn("job context cancelled before processing started",
			"worker", workerIndex, "type", jobRes.jobType)
		return
	default:
	}

	start := time.Now()
	var resultErr error

	handler, ok := s.handlers[jobRes.jobType]
	if !ok {
		// A type with no handler will never succeed on retry; ack it out.
		logger.Error("no handler for job type", "type", jobRes.jobType)
		s.metrics.RecordFailure(jobRes.jobType)
		resultErr = nil
	} else if err := handler(jobRes.ctx, jobRes.job); err != nil {
		s.metrics.RecordFailure(jobRes.jobType)
		prom.IncJobFailure(jobRes.jobType)
		logger.Error("job failed", "worker", workerIndex, "type", jobRes.jobType, "error", err)
		resultErr = err
	} else {
		duration := time.Since(start)
		s.metrics.RecordSuccess(jobRes.jobType, duration)
		prom.ObserveJobDuration(jobRes.jobType, duration.Seconds())
	}

	select {
	case jobRes.resultChan <- resultErr:
	case <-jobRes.ctx.Done():
		logger.Warn("consume loop gave up before result was ready",
			"worker", workerIndex, "type", jobRes.jobType)
	}
}

func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("processor metrics",
		"total_processed", stats["total_processed"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	for jobType, qStats := range s.runtime.Stats() {
		logger.Info("queue stats",
			"type", jobType,
			"ready", qStats.ReadyJobs,
			"priority", qStats.PriorityJobs,
			"delayed", qStats.DelayedJobs,
			"pending", qStats.PendingJobs)
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed: redis connection error", "error", err)
		return
	}

	for jobType, stats := range s.runtime.Stats() {
		if stats.PendingJobs > 10_000 {
			logger.Warn("health check warning: queue has high lag",
				"type", jobType, "pending", stats.PendingJobs)
		}
	}
}

// Stop drains the queues, shuts the worker pool down and waits for the
// background loops.
func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service...")

	s.cancel()
	s.runtime.Stop(ShutdownTimeout)
	s.worker.Exit()
	s.wg.Wait()

	s.reportMetrics()
	logger.Info("processor service stopped")
}
