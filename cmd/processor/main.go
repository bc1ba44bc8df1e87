package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/younegotiate/settlement-engine/internal/config"
	gateway "github.com/younegotiate/settlement-engine/internal/gateways"
	"github.com/younegotiate/settlement-engine/internal/notify"
	"github.com/younegotiate/settlement-engine/internal/processor"
	"github.com/younegotiate/settlement-engine/internal/queue"
	"github.com/younegotiate/settlement-engine/internal/repository"
	"github.com/younegotiate/settlement-engine/internal/scheduler"
	"github.com/younegotiate/settlement-engine/internal/services"
	"github.com/younegotiate/settlement-engine/pkg/logger"
	"github.com/younegotiate/settlement-engine/pkg/pg"
	"github.com/younegotiate/settlement-engine/pkg/prom"
	"github.com/younegotiate/settlement-engine/pkg/redis"
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

	// The settlement queue carries due schedule transaction ids; the
	// notification queue carries post-settlement consumer events.
	settleQ, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating settlement queue", "error", err)
		return
	}

	notifyQ, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName + ":notifications",
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating notification queue", "error", err)
		return
	}

	consumerRepo := repository.NewConsumerRepository(db)
	negotiationRepo := repository.NewNegotiationRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	profileRepo := repository.NewPaymentProfileRepository(db)
	companyRepo := repository.NewCompanyRepository(db)

	timeout := time.Second * 15
	registry := gateway.NewRegistry(
		gateway.NewStripeAdapter(config.Get().StripeBaseUrl, config.Get().StripeApiKey, timeout),
		gateway.NewAuthorizeNetAdapter(config.Get().AuthorizeNetBaseUrl, config.Get().AuthorizeNetLoginID, config.Get().AuthorizeNetTransactionKey, timeout),
		gateway.NewUSAEpayAdapter(config.Get().USAEpayBaseUrl, config.Get().USAEpaySourceKey, config.Get().USAEpayPin, timeout),
		gateway.NewPaytabAdapter(config.Get().PaytabBaseUrl, config.Get().PaytabApiKey, timeout),
	)

	revenue := services.NewRevenueShareCalculator(companyRepo)
	coordinator := services.NewSettlementCoordinator(
		consumerRepo, negotiationRepo, scheduleRepo, transactionRepo,
		profileRepo, companyRepo, registry, revenue,
		notify.NewQueueNotifier(notifyQ),
	)

	// Initialize idempotency service
	idempotencyConfig := processor.DefaultIdempotencyConfig()
	idempotencyService := processor.NewIdempotencyService(redisAdap, idempotencyConfig)

	service, err := processor.NewProcessorService(redisAdap)
	if err != nil {
		logger.Error("failed to run the processor", "error", err)
		return
	}
	service.RegisterProcessor(processor.NewSettlementProcessor(coordinator, idempotencyService))

	sched := scheduler.New(scheduleRepo, settleQ, config.Get().SchedulerCronSpec)

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

	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return
	}

	select {
	case <-c:
		sched.Stop()
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
