package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ChargeStatus represents the outcome of a charge attempt
type ChargeStatus string

const (
	StatusApproved ChargeStatus = "APPROVED"
	StatusDeclined ChargeStatus = "DECLINED"
)

// ChargeRequest represents a charge against a stored payment profile
type ChargeRequest struct {
	ProfileRef string `json:"profile_ref" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Currency   string `json:"currency"`
}

// ChargeResponse represents the result of a charge attempt
type ChargeResponse struct {
	ChargeID    string       `json:"charge_id"`
	ProfileRef  string       `json:"profile_ref"`
	Amount      string       `json:"amount"`
	Status      ChargeStatus `json:"status"`
	DeclineCode string       `json:"decline_code,omitempty"`
	DeclineMsg  string       `json:"decline_message,omitempty"`
	GatewayID   string       `json:"gateway_id"`
	ProcessedAt time.Time    `json:"processed_at"`
}

// ProfileRequest represents a tokenization request
type ProfileRequest struct {
	HolderName    string `json:"holder_name"`
	CardNumber    string `json:"card_number"`
	ExpMonth      string `json:"exp_month"`
	ExpYear       string `json:"exp_year"`
	CVV           string `json:"cvv"`
	RoutingNumber string `json:"routing_number"`
	AccountNumber string `json:"account_number"`
	Method        string `json:"method"`
}

// ProfileResponse carries the token the engine stores
type ProfileResponse struct {
	ProfileRef string    `json:"profile_ref"`
	Method     string    `json:"method"`
	GatewayID  string    `json:"gateway_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status       string    `json:"status"`
	GatewayID    string    `json:"gateway_id"`
	Timestamp    time.Time `json:"timestamp"`
	ApprovalRate float64   `json:"approval_rate"`
}

// MockGateway simulates a payment gateway service
type MockGateway struct {
	approvalRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	gatewayID    string
	rng          *rand.Rand
}

// NewMockGateway creates a new mock gateway instance
func NewMockGateway(approvalRate float64, minDelay, maxDelay time.Duration) *MockGateway {
	return &MockGateway{
		approvalRate: approvalRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		gatewayID:    "MOCK_GATEWAY_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// simulateCharge simulates the authorization round trip
func (m *MockGateway) simulateCharge(req *ChargeRequest) *ChargeResponse {
	delay := m.randomDelay()

	// Simulate network delay
	time.Sleep(delay)

	response := &ChargeResponse{
		ChargeID:    "ch_" + uuid.New().String()[:12],
		ProfileRef:  req.ProfileRef,
		Amount:      req.Amount,
		GatewayID:   m.gatewayID,
		ProcessedAt: time.Now(),
	}

	if m.shouldApprove() {
		response.Status = StatusApproved

		log.Info().
			Str("charge_id", response.ChargeID).
			Str("profile_ref", req.ProfileRef).
			Str("amount", req.Amount).
			Dur("delay", delay).
			Msg("Charge approved")
	} else {
		response.Status = StatusDeclined
		response.DeclineCode = m.randomDeclineCode()
		response.DeclineMsg = m.declineMessage(response.DeclineCode)

		log.Warn().
			Str("charge_id", response.ChargeID).
			Str("profile_ref", req.ProfileRef).
			Str("decline_code", response.DeclineCode).
			Msg("Charge declined")
	}

	return response
}

func (m *MockGateway) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	randomDelta := time.Duration(m.rng.Int63n(int64(delta)))
	return m.minDelay + randomDelta
}

func (m *MockGateway) shouldApprove() bool {
	return m.rng.Float64() < m.approvalRate
}

func (m *MockGateway) randomDeclineCode() string {
	declineCodes := []string{
		"card_declined",
		"insufficient_funds",
		"expired_card",
		"do_not_honor",
		"processing_error",
		"account_closed",
	}
	return declineCodes[m.rng.Intn(len(declineCodes))]
}

func (m *MockGateway) declineMessage(code string) string {
	messages := map[string]string{
		"card_declined":      "The card was declined by the issuer",
		"insufficient_funds": "The account has insufficient funds",
		"expired_card":       "The card has expired",
		"do_not_honor":       "The issuer declined without a reason",
		"processing_error":   "An error occurred while processing the charge",
		"account_closed":     "The bank account has been closed",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown decline reason"
}

// Handler struct holds the mock gateway and routes
type Handler struct {
	gateway *MockGateway
}

func NewHandler(gateway *MockGateway) *Handler {
	return &Handler{gateway: gateway}
}

// CreateCharge handles charge requests
func (h *Handler) CreateCharge(c *gin.Context) {
	var req ChargeRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("profile_ref", req.ProfileRef).
		Str("amount", req.Amount).
		Msg("Received charge request")

	response := h.gateway.simulateCharge(&req)

	statusCode := http.StatusOK
	if response.Status == StatusDeclined {
		statusCode = http.StatusPaymentRequired // 402: processed but declined
	}

	c.JSON(statusCode, response)
}

// CreateProfile handles tokenization requests
func (h *Handler) CreateProfile(c *gin.Context) {
	var req ProfileRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	method := req.Method
	if method == "" {
		method = "card"
	}
	if method == "card" && req.CardNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card_number is required"})
		return
	}
	if method == "ach" && req.AccountNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_number is required"})
		return
	}

	response := ProfileResponse{
		ProfileRef: "prof_" + uuid.New().String()[:12],
		Method:     method,
		GatewayID:  h.gateway.gatewayID,
		CreatedAt:  time.Now(),
	}

	log.Info().
		Str("profile_ref", response.ProfileRef).
		Str("method", method).
		Msg("Payment profile created")

	c.JSON(http.StatusCreated, response)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.gateway.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Gateway temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		GatewayID:    h.gateway.gatewayID,
		Timestamp:    time.Now(),
		ApprovalRate: h.gateway.approvalRate,
	})
}

// UpdateConfig allows changing gateway configuration at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		ApprovalRate *float64 `json:"approval_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.ApprovalRate != nil {
		if *config.ApprovalRate >= 0 && *config.ApprovalRate <= 1.0 {
			h.gateway.approvalRate = *config.ApprovalRate
			log.Info().Float64("rate", *config.ApprovalRate).Msg("Updated approval rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"approval_rate": h.gateway.approvalRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/charges", handler.CreateCharge)
		v1.POST("/profiles", handler.CreateProfile)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	approvalRate := getEnvFloat("APPROVAL_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 200*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 2*time.Second)

	log.Info().
		Str("port", port).
		Float64("approval_rate", approvalRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Payment Gateway")

	// Create mock gateway
	gateway := NewMockGateway(approvalRate, minDelay, maxDelay)
	handler := NewHandler(gateway)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
