package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/younegotiate/settlement-engine/internal/config"
	gateway "github.com/younegotiate/settlement-engine/internal/gateways"
	"github.com/younegotiate/settlement-engine/internal/handlers"
	"github.com/younegotiate/settlement-engine/internal/notify"
	"github.com/younegotiate/settlement-engine/internal/queue"
	"github.com/younegotiate/settlement-engine/internal/repository"
	"github.com/younegotiate/settlement-engine/internal/services"
	xhttp "github.com/younegotiate/settlement-engine/pkg/http"
	"github.com/younegotiate/settlement-engine/pkg/logger"
	"github.com/younegotiate/settlement-engine/pkg/pg"
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

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
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
		logger.Error("failed creating queue", "error", err)
	}

	consumerRepo := repository.NewConsumerRepository(db)
	negotiationRepo := repository.NewNegotiationRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	profileRepo := repository.NewPaymentProfileRepository(db)
	companyRepo := repository.NewCompanyRepository(db)

	registry := gatewayRegistry()

	// services
	discounts := services.NewDiscountEngine(companyRepo)
	revenue := services.NewRevenueShareCalculator(companyRepo)
	negotiationService := services.NewNegotiationService(consumerRepo, negotiationRepo, scheduleRepo, discounts, revenue)
	coordinator := services.NewSettlementCoordinator(
		consumerRepo, negotiationRepo, scheduleRepo, transactionRepo,
		profileRepo, companyRepo, registry, revenue,
		notify.NewQueueNotifier(notifyQ),
	)
	healthService := services.NewHealthService()

	// v1 handlers
	negotiationHandler := handlers.NewNegotiationHandler(negotiationService)
	scheduleHandler := handlers.NewScheduleHandler(negotiationService, scheduleRepo)
	paymentHandler := handlers.NewPaymentHandler(coordinator, profileRepo, registry)
	transactionHandler := handlers.NewTransactionHandler(transactionRepo)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterNegotiationRoutes(g, negotiationHandler)
	handlers.RegisterScheduleRoutes(g, scheduleHandler)
	handlers.RegisterPaymentRoutes(g, paymentHandler)
	handlers.RegisterTransactionRoutes(g, transactionHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

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

func gatewayRegistry() *gateway.Registry {
	timeout := time.Second * 15
	return gateway.NewRegistry(
		gateway.NewStripeAdapter(config.Get().StripeBaseUrl, config.Get().StripeApiKey, timeout),
		gateway.NewAuthorizeNetAdapter(config.Get().AuthorizeNetBaseUrl, config.Get().AuthorizeNetLoginID, config.Get().AuthorizeNetTransactionKey, timeout),
		gateway.NewUSAEpayAdapter(config.Get().USAEpayBaseUrl, config.Get().USAEpaySourceKey, config.Get().USAEpayPin, timeout),
		gateway.NewPaytabAdapter(config.Get().PaytabBaseUrl, config.Get().PaytabApiKey, timeout),
	)
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
