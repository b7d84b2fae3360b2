package main

import (
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gateway "github.com/nimasrn/daily-mass/internal/gateways"
	"github.com/rs/zerolog/log"
)

// SentMessage is what the mock provider remembers about an accepted send.
type SentMessage struct {
	ID         string    `json:"id"`
	PhoneID    string    `json:"phone_id"`
	To         string    `json:"to"`
	Type       string    `json:"type"`
	Body       string    `json:"body,omitempty"`
	Template   string    `json:"template,omitempty"`
	Language   string    `json:"language,omitempty"`
	Variables  []string  `json:"variables,omitempty"`
	AcceptedAt time.Time `json:"accepted_at"`
}

type HealthResponse struct {
	Status       string    `json:"status"`
	ProviderID   string    `json:"provider_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
	Sent         int       `json:"sent"`
}

// MockProvider simulates the messaging provider's send endpoint.
type MockProvider struct {
	mu           sync.Mutex
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	token        string
	providerID   string
	rng          *rand.Rand
	sent         []SentMessage
}

func NewMockProvider(deliveryRate float64, minDelay, maxDelay time.Duration, token string) *MockProvider {
	return &MockProvider{
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		token:        token,
		providerID:   "MOCK_PROVIDER_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
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

func (m *MockProvider) shouldSucceed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.deliveryRate
}

func (m *MockProvider) record(msg SentMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
}

func (m *MockProvider) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockProvider) authorized(c *gin.Context) bool {
	if m.token == "" {
		return true
	}
	return c.GetHeader("Authorization") == "Bearer "+m.token
}

// SendMessage handles POST /v1/:phone/messages.
func (m *MockProvider) SendMessage(c *gin.Context) {
	if !m.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "invalid access token", "code": 190}})
		return
	}

	var req gateway.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "code": 100}})
		return
	}
	msg, err := toSentMessage(c.Param("phone"), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "code": 100}})
		return
	}

	time.Sleep(m.randomDelay())

	if !m.shouldSucceed() {
		log.Warn().Str("to", msg.To).Str("type", msg.Type).Msg("simulated provider failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"message": "temporarily unavailable", "code": 2}})
		return
	}

	m.record(msg)
	log.Info().
		Str("message_id", msg.ID).
		Str("to", msg.To).
		Str("type", msg.Type).
		Str("template", msg.Template).
		Int("body_len", len(msg.Body)).
		Msg("message accepted")

	c.JSON(http.StatusOK, gin.H{
		"messaging_product": "whatsapp",
		"contacts":          []gin.H{{"input": msg.To, "wa_id": strings.TrimPrefix(msg.To, "+")}},
		"messages":          []gin.H{{"id": msg.ID}},
	})
}

type badRequest string

func (e badRequest) Error() string { return string(e) }

func toSentMessage(phoneID string, req *gateway.SendRequest) (SentMessage, error) {
	msg := SentMessage{
		ID:         "wamid." + uuid.New().String(),
		PhoneID:    phoneID,
		To:         req.To,
		Type:       req.Type,
		AcceptedAt: time.Now().UTC(),
	}
	if req.To == "" {
		return msg, badRequest("to is required")
	}
	switch req.Type {
	case "text":
		if req.Text == nil || req.Text.Body == "" {
			return msg, badRequest("text.body is required")
		}
		msg.Body = req.Text.Body
	case "template":
		if req.Template == nil || req.Template.Name == "" {
			return msg, badRequest("template.name is required")
		}
		msg.Template = req.Template.Name
		msg.Language = req.Template.Language.Code
		for _, comp := range req.Template.Components {
			for _, p := range comp.Parameters {
				msg.Variables = append(msg.Variables, p.Text)
			}
		}
	default:
		return msg, badRequest("unsupported message type " + req.Type)
	}
	return msg, nil
}

// ListSent handles GET /debug/messages for local inspection.
func (m *MockProvider) ListSent(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": m.Sent()})
}

func (m *MockProvider) HealthCheck(c *gin.Context) {
	m.mu.Lock()
	rate, sent := m.deliveryRate, len(m.sent)
	m.mu.Unlock()

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		ProviderID:   m.providerID,
		Timestamp:    time.Now(),
		DeliveryRate: rate,
		Sent:         sent,
	})
}

// UpdateConfig allows changing the delivery rate at runtime.
func (m *MockProvider) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	m.mu.Lock()
	if config.DeliveryRate != nil && *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
		m.deliveryRate = *config.DeliveryRate
		log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
	}
	rate := m.deliveryRate
	m.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": "Configuration updated", "delivery_rate": rate})
}
