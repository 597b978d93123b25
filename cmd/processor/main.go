package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dealerdesk/lead-engine/internal/assignment"
	"github.com/dealerdesk/lead-engine/internal/campaign"
	"github.com/dealerdesk/lead-engine/internal/config"
	gateway "github.com/dealerdesk/lead-engine/internal/gateways"
	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/personalize"
	"github.com/dealerdesk/lead-engine/internal/processor"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/dealerdesk/lead-engine/internal/scoring"
	"github.com/dealerdesk/lead-engine/pkg/logger"
	"github.com/dealerdesk/lead-engine/pkg/pg"
	"github.com/dealerdesk/lead-engine/pkg/prom"
	"github.com/dealerdesk/lead-engine/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	runtime, err := jobs.NewRuntime(redisAdap, jobs.RuntimeConfig{
		StreamPrefix:      config.Get().QueueStreamPrefix,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxAttempts:       config.Get().QueueMaxAttempts,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
		RetryBackoffBase:  config.Get().QueueRetryBackoffBase,
		RetryBackoffCap:   config.Get().QueueRetryBackoffCap,
	})
	if err != nil {
		logger.Error("failed creating job runtime", "error", err)
		return
	}

	providerTimeout := config.Get().ProviderTimeout
	if providerTimeout == 0 {
		providerTimeout = 10 * time.Second
	}
	emailClient := gateway.NewEmailClient(config.Get().EmailProviderUrl, providerTimeout)
	smsClient := gateway.NewSMSClient(config.Get().SMSProviderUrl, providerTimeout)

	customerRepo := repository.NewCustomerRepository(db)
	inquiryRepo := repository.NewInquiryRepository(db)
	scoreRepo := repository.NewLeadScoreRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	waitQueueRepo := repository.NewWaitQueueRepository(db)
	followUpRepo := repository.NewFollowUpRepository(db)
	repRepo := repository.NewRepresentativeRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	deliveryLogRepo := repository.NewDeliveryLogRepository(db)

	scoringEngine := scoring.NewEngine(customerRepo, inquiryRepo, scoreRepo, runtime)
	followUps := assignment.NewFollowUpScheduler(followUpRepo, runtime)
	assignmentEngine := assignment.NewEngine(
		assignmentRepo, waitQueueRepo, repRepo, customerRepo, inquiryRepo, followUps, runtime)
	campaignDispatcher := campaign.NewDispatcher(campaignRepo, customerRepo, runtime)

	personalizer := personalize.NewEngine(personalize.Dealership{
		Name:           config.Get().DealershipName,
		Phone:          config.Get().DealershipPhone,
		Address:        config.Get().DealershipAddress,
		UnsubscribeURL: config.Get().DealershipUnsubscribeUrl,
	})

	dedupe := processor.NewDedupeService(redisAdap, processor.DefaultDedupeConfig())
	gate := processor.NewOptOutGate(smsClient)

	sendProc := processor.NewSendProcessor(
		emailClient, smsClient, deliveryLogRepo, campaignRepo, customerRepo,
		gate, personalizer, dedupe)
	campaignProc := processor.NewCampaignProcessor(campaignDispatcher)
	receiptProc := processor.NewReceiptProcessor(deliveryLogRepo, campaignRepo)
	leadProc := processor.NewLeadProcessor(
		scoringEngine, assignmentEngine, customerRepo, assignmentRepo, repRepo, runtime)

	service := processor.NewProcessorService(redisAdap, runtime)
	service.Register(jobs.TypeSendSingleEmail, sendProc.ProcessEmail)
	service.Register(jobs.TypeSendSingleSMS, sendProc.ProcessSMS)
	service.Register(jobs.TypeSendEmailCampaign, campaignProc.Process)
	service.Register(jobs.TypeSendSMSCampaign, campaignProc.Process)
	service.Register(jobs.TypeDeliveryReceipt, receiptProc.ProcessReceipt)
	service.Register(jobs.TypeProcessEmailBounce, receiptProc.ProcessBounce)
	service.Register(jobs.TypeCalculateLeadScore, leadProc.ProcessCalculateScore)
	service.Register(jobs.TypeAssignLead, leadProc.ProcessAssign)
	service.Register(jobs.TypeUpdateLeadScore, leadProc.ProcessUpdateScore)
	service.Register(jobs.TypeFollowUpReminder, leadProc.ProcessFollowUpReminder)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start processor", "error", err)
		}
	}()

	reaper := assignment.NewReaper(assignmentEngine, 0, 0, 0)
	reaper.Start()

	select {
	case <-c:
		reaper.Stop()
		service.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
