package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dealerdesk/lead-engine/internal/assignment"
	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/processor"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/dealerdesk/lead-engine/internal/scoring"
	"github.com/dealerdesk/lead-engine/internal/services"
	"github.com/dealerdesk/lead-engine/pkg/pg"
	"github.com/dealerdesk/lead-engine/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerdesk/lead-engine/test/fixtures"
	"github.com/dealerdesk/lead-engine/test/helpers"
)

type TestEnvironment struct {
	DB             *pg.DB
	Redis          *miniredis.Miniredis
	RedisAdapter   redis.RedisAdapter
	Runtime        *jobs.Runtime
	CustomerRepo   *repository.CustomerRepository
	InquiryRepo    *repository.InquiryRepository
	ScoreRepo      *repository.LeadScoreRepository
	AssignmentRepo *repository.AssignmentRepository
	WaitQueueRepo  *repository.WaitQueueRepository
	FollowUpRepo   *repository.FollowUpRepository
	RepRepo        *repository.RepresentativeRepository
	InquiryService *services.InquiryService
	Processor      *processor.ProcessorService
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	mr, adapter := helpers.SetupTestRedis(t)

	runtime, err := jobs.NewRuntime(adapter, jobs.RuntimeConfig{
		StreamPrefix:      "test:jobs",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxAttempts:       3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      50 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	})
	require.NoError(t, err)

	customerRepo := repository.NewCustomerRepository(db)
	inquiryRepo := repository.NewInquiryRepository(db)
	scoreRepo := repository.NewLeadScoreRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	waitQueueRepo := repository.NewWaitQueueRepository(db)
	followUpRepo := repository.NewFollowUpRepository(db)
	repRepo := repository.NewRepresentativeRepository(db)

	scoringEngine := scoring.NewEngine(customerRepo, inquiryRepo, scoreRepo, runtime)
	followUps := assignment.NewFollowUpScheduler(followUpRepo, runtime)
	assignmentEngine := assignment.NewEngine(
		assignmentRepo, waitQueueRepo, repRepo, customerRepo, inquiryRepo, followUps, runtime)

	leadProc := processor.NewLeadProcessor(
		scoringEngine, assignmentEngine, customerRepo, assignmentRepo, repRepo, runtime)

	svc := processor.NewProcessorService(adapter, runtime)
	svc.Register(jobs.TypeCalculateLeadScore, leadProc.ProcessCalculateScore)
	svc.Register(jobs.TypeAssignLead, leadProc.ProcessAssign)
	svc.Register(jobs.TypeUpdateLeadScore, leadProc.ProcessUpdateScore)
	svc.Register(jobs.TypeFollowUpReminder, leadProc.ProcessFollowUpReminder)
	require.NoError(t, svc.Start())

	return &TestEnvironment{
		DB:             db,
		Redis:          mr,
		RedisAdapter:   adapter,
		Runtime:        runtime,
		CustomerRepo:   customerRepo,
		InquiryRepo:    inquiryRepo,
		ScoreRepo:      scoreRepo,
		AssignmentRepo: assignmentRepo,
		WaitQueueRepo:  waitQueueRepo,
		FollowUpRepo:   followUpRepo,
		RepRepo:        repRepo,
		InquiryService: services.NewInquiryService(inquiryRepo, customerRepo, runtime),
		Processor:      svc,
	}
}

func (env *TestEnvironment) Cleanup() {
	if env.Processor != nil {
		env.Processor.Stop()
	}
	time.Sleep(100 * time.Millisecond)
	if env.Redis != nil {
		env.Redis.Close()
	}
}

func TestE2E_InquiryIntakeScoring(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	inquiry, err := env.InquiryService.Create(ctx, fixtures.InquiryRequestPurchaseIntent())
	require.NoError(t, err)
	require.NotZero(t, inquiry.ID)
	assert.Equal(t, model.InquiryStatusNew, inquiry.Status)

	ref := model.LeadRef{InquiryID: &inquiry.ID}
	helpers.AssertEventually(t, 5*time.Second, func() bool {
		_, err := env.ScoreRepo.Latest(ctx, ref)
		return err == nil
	}, "inquiry was never scored")

	score, err := env.ScoreRepo.Latest(ctx, ref)
	require.NoError(t, err)
	assert.Greater(t, score.ScorePercentage, 0.0)
	assert.NotEmpty(t, score.QualificationLevel)
	assert.NotEmpty(t, score.Breakdown)
}

func TestE2E_QualifiedLeadAssignment(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	customer := helpers.CreateTestCustomer(t, env.DB, "qualified@example.com", "+15550001122")
	rep := helpers.CreateTestRepresentative(t, env.DB, "sam", 5)

	err := env.Runtime.Enqueue(ctx, jobs.TypeAssignLead, jobs.AssignLead{
		CustomerID: &customer.ID,
		LeadScore:  92,
		Urgency:    model.UrgencyHigh,
	}, jobs.HighPriority())
	require.NoError(t, err)

	ref := model.LeadRef{CustomerID: &customer.ID}
	helpers.AssertEventually(t, 5*time.Second, func() bool {
		_, err := env.AssignmentRepo.FindOpenForLead(ctx, ref)
		return err == nil
	}, "lead was never assigned")

	created, err := env.AssignmentRepo.FindOpenForLead(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, created.RepresentativeID)
	assert.Equal(t, model.AssignmentStatusActive, created.Status)

	updatedRep, err := env.RepRepo.Get(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updatedRep.CurrentLoad)

	var taskCount int64
	env.DB.Read(ctx).Model(&repository.FollowUpTaskEntity{}).
		Where("assignment_id = ?", created.ID).Count(&taskCount)
	assert.Equal(t, int64(1), taskCount)
}

func TestE2E_DuplicateAssignmentIsIdempotent(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	customer := helpers.CreateTestCustomer(t, env.DB, "dupe@example.com", "")
	helpers.CreateTestRepresentative(t, env.DB, "jo", 5)

	payload := jobs.AssignLead{
		CustomerID: &customer.ID,
		LeadScore:  88,
		Urgency:    model.UrgencyHigh,
	}
	require.NoError(t, env.Runtime.Enqueue(ctx, jobs.TypeAssignLead, payload, jobs.HighPriority()))
	require.NoError(t, env.Runtime.Enqueue(ctx, jobs.TypeAssignLead, payload, jobs.HighPriority()))

	ref := model.LeadRef{CustomerID: &customer.ID}
	helpers.AssertEventually(t, 5*time.Second, func() bool {
		_, err := env.AssignmentRepo.FindOpenForLead(ctx, ref)
		return err == nil
	}, "lead was never assigned")

	// Give the second job time to run through the idempotency guard.
	time.Sleep(500 * time.Millisecond)

	var count int64
	env.DB.Read(ctx).Model(&repository.LeadAssignmentEntity{}).
		Where("customer_id = ?", customer.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestE2E_NoRepresentativeDefersToWaitQueue(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	customer := helpers.CreateTestCustomer(t, env.DB, "waiting@example.com", "")

	err := env.Runtime.Enqueue(ctx, jobs.TypeAssignLead, jobs.AssignLead{
		CustomerID: &customer.ID,
		LeadScore:  95,
		Urgency:    model.UrgencyHigh,
	}, jobs.HighPriority())
	require.NoError(t, err)

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		entries, err := env.WaitQueueRepo.ListWaiting(ctx, 10)
		return err == nil && len(entries) == 1
	}, "lead never landed on the wait queue")

	entries, err := env.WaitQueueRepo.ListWaiting(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, customer.ID, *entries[0].CustomerID)

	_, err = env.AssignmentRepo.FindOpenForLead(ctx, model.LeadRef{CustomerID: &customer.ID})
	assert.ErrorIs(t, err, repository.ErrAssignmentNotFound)
}

func TestE2E_EngagementEventRescoresCustomer(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	customer := helpers.CreateTestCustomer(t, env.DB, "engaged@example.com", "")

	err := env.Runtime.Enqueue(ctx, jobs.TypeUpdateLeadScore, jobs.UpdateLeadScore{
		Email:  "engaged@example.com",
		Action: model.EngagementEmailClick,
	})
	require.NoError(t, err)

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		var count int64
		env.DB.Read(ctx).Model(&repository.EngagementEventEntity{}).
			Where("customer_id = ?", customer.ID).Count(&count)
		return count == 1
	}, "engagement event was never recorded")

	// The event handler chains a rescore job for the customer.
	ref := model.LeadRef{CustomerID: &customer.ID}
	helpers.AssertEventually(t, 5*time.Second, func() bool {
		_, err := env.ScoreRepo.Latest(ctx, ref)
		return err == nil
	}, "customer was never rescored after engagement")

	score, err := env.ScoreRepo.Latest(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "engagement:"+string(model.EngagementEmailClick), score.Reason)
}

func TestE2E_EngagementForUnknownContactIsDropped(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	err := env.Runtime.Enqueue(ctx, jobs.TypeUpdateLeadScore, jobs.UpdateLeadScore{
		Email:  "nobody@example.com",
		Action: model.EngagementEmailOpen,
	})
	require.NoError(t, err)

	// The job acks without side effects; nothing to wait on beyond the poll.
	time.Sleep(500 * time.Millisecond)

	var count int64
	env.DB.Read(ctx).Model(&repository.EngagementEventEntity{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
