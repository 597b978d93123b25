package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SendEmailRequest mirrors the engine's email gateway payload.
type SendEmailRequest struct {
	To          string `json:"to" binding:"required"`
	Subject     string `json:"subject"`
	Content     string `json:"content" binding:"required"`
	HTMLContent string `json:"html_content"`
	SenderName  string `json:"sender_name"`
}

type SendEmailResponse struct {
	MessageID   string    `json:"message_id"`
	Status      string    `json:"status"`
	ProcessedAt time.Time `json:"processed_at"`
}

// SendSMSRequest mirrors the engine's SMS gateway payload.
type SendSMSRequest struct {
	To         string   `json:"to" binding:"required"`
	Message    string   `json:"message" binding:"required"`
	MediaURLs  []string `json:"media_urls"`
	SenderName string   `json:"sender_name"`
}

type SendSMSResponse struct {
	MessageID   string    `json:"message_id"`
	Status      string    `json:"status"`
	Cost        float64   `json:"cost"`
	Segments    int       `json:"segments"`
	ProcessedAt time.Time `json:"processed_at"`
}

// MockProvider accepts sends synchronously and reports the delivery outcome
// later through the engine's webhook endpoints, the way real email and SMS
// providers do.
type MockProvider struct {
	deliveryRate float64
	bounceRate   float64
	minDelay     time.Duration
	maxDelay     time.Duration
	callbackURL  string
	providerID   string

	mu      sync.Mutex
	rng     *rand.Rand
	optOuts map[string]bool
}

func NewMockProvider(deliveryRate, bounceRate float64, minDelay, maxDelay time.Duration, callbackURL string) *MockProvider {
	return &MockProvider{
		deliveryRate: deliveryRate,
		bounceRate:   bounceRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		callbackURL:  callbackURL,
		providerID:   "MOCK_PROVIDER_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		optOuts:      make(map[string]bool),
	}
}

func (m *MockProvider) randomDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) roll() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64()
}

// scheduleEmailCallback posts the delivery or bounce event back to the
// engine after a simulated carrier delay.
func (m *MockProvider) scheduleEmailCallback(messageID, email string) {
	delay := m.randomDelay()
	outcome := m.roll()

	time.AfterFunc(delay, func() {
		payload := map[string]any{
			"message_id": messageID,
			"email":      email,
		}
		switch {
		case outcome < m.bounceRate:
			payload["event"] = "bounce"
			payload["bounce_type"] = m.randomBounceType()
		case outcome < m.bounceRate+(1-m.deliveryRate):
			payload["event"] = "failed"
			payload["error"] = "mailbox temporarily unavailable"
		default:
			payload["event"] = "delivered"
		}
		m.postCallback("/api/v1/webhooks/email", payload)
	})
}

func (m *MockProvider) scheduleSMSCallback(messageID, phone string) {
	delay := m.randomDelay()
	outcome := m.roll()

	time.AfterFunc(delay, func() {
		payload := map[string]any{
			"message_id": messageID,
		}
		if outcome < m.deliveryRate {
			payload["status"] = "delivered"
		} else {
			payload["status"] = "failed"
			payload["error"] = m.randomSMSError()
		}
		m.postCallback("/api/v1/webhooks/sms", payload)
	})
}

func (m *MockProvider) postCallback(path string, payload map[string]any) {
	if m.callbackURL == "" {
		return
	}
	body, _ := json.Marshal(payload)
	resp, err := http.Post(m.callbackURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Callback delivery failed")
		return
	}
	defer resp.Body.Close()

	log.Info().
		Str("path", path).
		Int("status", resp.StatusCode).
		Interface("payload", payload).
		Msg("Callback delivered")
}

func (m *MockProvider) randomBounceType() string {
	if m.roll() < 0.7 {
		return "hard"
	}
	return "soft"
}

func (m *MockProvider) randomSMSError() string {
	errs := []string{
		"INVALID_NUMBER",
		"NETWORK_ERROR",
		"TIMEOUT",
		"BLOCKED",
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return errs[m.rng.Intn(len(errs))]
}

func smsSegments(message string) int {
	if len(message) == 0 {
		return 1
	}
	return (len(message) + 159) / 160
}

// Handler struct holds the mock provider and routes
type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) SendEmail(c *gin.Context) {
	var req SendEmailRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	messageID := "em-" + uuid.New().String()

	log.Info().
		Str("message_id", messageID).
		Str("to", req.To).
		Str("subject", req.Subject).
		Msg("Accepted email send")

	h.provider.scheduleEmailCallback(messageID, req.To)

	c.JSON(http.StatusAccepted, SendEmailResponse{
		MessageID:   messageID,
		Status:      "queued",
		ProcessedAt: time.Now(),
	})
}

func (h *Handler) SendSMS(c *gin.Context) {
	var req SendSMSRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	h.provider.mu.Lock()
	optedOut := h.provider.optOuts[req.To]
	h.provider.mu.Unlock()
	if optedOut {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "recipient has opted out at carrier level",
		})
		return
	}

	messageID := "sm-" + uuid.New().String()
	segments := smsSegments(req.Message)

	log.Info().
		Str("message_id", messageID).
		Str("to", req.To).
		Int("segments", segments).
		Msg("Accepted sms send")

	h.provider.scheduleSMSCallback(messageID, req.To)

	c.JSON(http.StatusAccepted, SendSMSResponse{
		MessageID:   messageID,
		Status:      "queued",
		Cost:        0.0125 * float64(segments),
		Segments:    segments,
		ProcessedAt: time.Now(),
	})
}

// GetOptOut serves the carrier opt-out registry lookup.
func (h *Handler) GetOptOut(c *gin.Context) {
	phone := c.Param("phone")
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}

	h.provider.mu.Lock()
	optedOut := h.provider.optOuts[phone]
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"opted_out": optedOut})
}

// PutOptOut registers a STOP reply, for driving opt-out scenarios in tests.
func (h *Handler) PutOptOut(c *gin.Context) {
	phone := c.Param("phone")
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}

	h.provider.mu.Lock()
	h.provider.optOuts[phone] = true
	h.provider.mu.Unlock()

	log.Info().Str("phone", phone).Msg("Registered carrier opt-out")
	c.JSON(http.StatusOK, gin.H{"opted_out": true})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"provider_id":   h.provider.providerID,
		"timestamp":     time.Now(),
		"delivery_rate": h.provider.deliveryRate,
	})
}

// UpdateConfig allows changing provider behavior at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
		BounceRate   *float64 `json:"bounce_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil && *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
		h.provider.deliveryRate = *config.DeliveryRate
		log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
	}
	if config.BounceRate != nil && *config.BounceRate >= 0 && *config.BounceRate <= 1.0 {
		h.provider.bounceRate = *config.BounceRate
		log.Info().Float64("rate", *config.BounceRate).Msg("Updated bounce rate")
	}

	c.JSON(http.StatusOK, gin.H{
		"delivery_rate": h.provider.deliveryRate,
		"bounce_rate":   h.provider.bounceRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

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

	v1 := router.Group("/api/v1")
	{
		v1.POST("/email/send", handler.SendEmail)
		v1.POST("/sms/send", handler.SendSMS)
		v1.GET("/sms/optout/:phone", handler.GetOptOut)
		v1.PUT("/sms/optout/:phone", handler.PutOptOut)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	callbackURL := getEnv("CALLBACK_URL", "http://localhost:8080")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 0.95)
	bounceRate := getEnvFloat("BOUNCE_RATE", 0.02)
	minDelay := getEnvDuration("MIN_DELAY", 1*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 5*time.Second)

	log.Info().
		Str("port", port).
		Str("callback_url", callbackURL).
		Float64("delivery_rate", deliveryRate).
		Float64("bounce_rate", bounceRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting mock delivery provider")

	provider := NewMockProvider(deliveryRate, bounceRate, minDelay, maxDelay, callbackURL)
	handler := NewHandler(provider)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

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
