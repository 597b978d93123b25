package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dealerdesk/lead-engine/internal/config"
	"github.com/dealerdesk/lead-engine/internal/handlers"
	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/dealerdesk/lead-engine/internal/services"
	xhttp "github.com/dealerdesk/lead-engine/pkg/http"
	"github.com/dealerdesk/lead-engine/pkg/logger"
	"github.com/dealerdesk/lead-engine/pkg/pg"
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

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

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

	inquiryRepo := repository.NewInquiryRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	scoreRepo := repository.NewLeadScoreRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	deliveryLogRepo := repository.NewDeliveryLogRepository(db)

	// services
	inquiryService := services.NewInquiryService(inquiryRepo, customerRepo, runtime)
	campaignService := services.NewCampaignService(campaignRepo, runtime, config.Get().CampaignBatchSize)
	engagementService := services.NewEngagementService(runtime)

	// v1 handlers
	inquiryHandler := handlers.NewInquiryHandler(inquiryService)
	campaignHandler := handlers.NewCampaignHandler(campaignService, deliveryLogRepo)
	eventHandler := handlers.NewEventHandler(engagementService)
	webhookHandler := handlers.NewWebhookHandler(runtime)
	leadHandler := handlers.NewLeadHandler(scoreRepo, assignmentRepo)
	healthHandler := handlers.NewHealthHandler(db, redisPinger{redisAdap}, runtime)

	g := s.Router.Group("/api/v1")
	handlers.RegisterInquiryRoutes(g, inquiryHandler)
	handlers.RegisterCampaignRoutes(g, campaignHandler)
	handlers.RegisterEventRoutes(g, eventHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterLeadRoutes(g, leadHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

type redisPinger struct {
	adapter redis.RedisAdapter
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.adapter.Client().Ping(ctx).Err()
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
