package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrNoAvailableProviders = errors.New("no available providers")
	ErrEmptyResponse        = errors.New("provider returned no message id")
)

type Config struct {
	Providers               []ProviderConfig
	Token                   string
	PhoneID                 string
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	HealthCheckInterval     time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

type ProviderConfig struct {
	Name   string
	URL    string
	Weight int // base priority weight (1-100)
}

// Wire format of the messaging provider (Cloud API style).
type SendRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *TextPayload     `json:"text,omitempty"`
	Template         *TemplatePayload `json:"template,omitempty"`
}

type TextPayload struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type TemplatePayload struct {
	Name       string              `json:"name"`
	Language   TemplateLanguage    `json:"language"`
	Components []TemplateComponent `json:"components,omitempty"`
}

type TemplateLanguage struct {
	Code string `json:"code"`
}

type TemplateComponent struct {
	Type       string              `json:"type"`
	Parameters []TemplateParameter `json:"parameters"`
}

type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type SendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Client sends messages through the best scoring provider endpoint.
type Client struct {
	config    *Config
	providers []*Provider
	mu        sync.RWMutex
	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}
	if config.PhoneID == "" {
		return nil, errors.New("phone id is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = 30 * time.Second
	}

	client := &Client{
		config:    config,
		providers: make([]*Provider, 0, len(config.Providers)),
		stopCh:    make(chan struct{}),
	}

	for _, pc := range config.Providers {
		provider := NewProvider(pc.Name, pc.URL, pc.Weight, newHTTPClient(config.Timeout, config.MaxConns))
		client.providers = append(client.providers, provider)
		logger.Info("[notifier] provider initialized", "name", pc.Name, "url", pc.URL, "weight", pc.Weight)
	}

	if config.HealthCheckInterval > 0 {
		client.wg.Add(2)
		go client.healthChecker()
		go client.metricsCollector()
	}

	return client, nil
}

// SelectBestProvider returns the available provider with the highest score.
func (c *Client) SelectBestProvider() (*Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var bestProvider *Provider
	var bestScore float64

	for _, provider := range c.providers {
		if !provider.IsAvailable() {
			continue
		}
		score := provider.CalculateScore()
		if score > bestScore {
			bestScore = score
			bestProvider = provider
		}
	}

	if bestProvider == nil {
		return nil, ErrNoAvailableProviders
	}
	return bestProvider, nil
}

// SendMessage sends a free-form text and returns the provider message id.
func (c *Client) SendMessage(ctx context.Context, to, text string) (string, error) {
	return c.send(ctx, &SendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &TextPayload{Body: text, PreviewURL: true},
	})
}

// SendTemplate sends a pre-approved template. Variables fill the body
// placeholders in order.
func (c *Client) SendTemplate(ctx context.Context, to, templateName, languageCode string, variables []string) (string, error) {
	tpl := &TemplatePayload{
		Name:     templateName,
		Language: TemplateLanguage{Code: languageCode},
	}
	if len(variables) > 0 {
		params := make([]TemplateParameter, len(variables))
		for i, v := range variables {
			params[i] = TemplateParameter{Type: "text", Text: v}
		}
		tpl.Components = []TemplateComponent{{Type: "body", Parameters: params}}
	}
	return c.send(ctx, &SendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template:         tpl,
	})
}

func (c *Client) send(ctx context.Context, req *SendRequest) (string, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	path := "/v1/" + c.config.PhoneID + "/messages"

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		provider, err := c.SelectBestProvider()
		if err != nil {
			if lastErr == nil {
				lastErr = err
			}
			continue
		}

		startTime := time.Now()
		response, err := doRequest(ctx, provider.client, fasthttp.MethodPost, provider.url+path, c.config.Token, reqBody, c.config.Timeout)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				switch {
				case se.Throttled():
					provider.metrics.RecordThrottled(se.RetryAfter)
					logger.Warn("[notifier] provider throttled", "provider", provider.name, "retry_after", se.RetryAfter, "attempt", attempt+1)
					lastErr = err
					continue
				case !se.Retryable():
					// the request itself is wrong; another endpoint will refuse it too
					provider.metrics.RecordRejected()
					return "", err
				}
			}
			provider.metrics.RecordFailure()
			c.checkCircuitBreaker(provider)
			logger.Warn("[notifier] request failed", "error", err, "provider", provider.name, "attempt", attempt+1)
			lastErr = err
			continue
		}

		provider.metrics.RecordSuccess(latency)

		var resp SendResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
			return "", ErrEmptyResponse
		}

		logger.Debug("[notifier] message accepted", "type", req.Type, "provider", provider.name, "id", resp.Messages[0].ID, "latency_ms", latency)
		return resp.Messages[0].ID, nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) checkCircuitBreaker(provider *Provider) {
	consecutiveFails := provider.metrics.ConsecutiveFails.Load()
	if consecutiveFails >= int32(c.config.CircuitBreakerThreshold) {
		provider.SetState(StateCircuitOpen)
		provider.circuitOpenUntil.Store(time.Now().Add(c.config.CircuitBreakerTimeout).Unix())
		logger.Warn("[notifier] circuit breaker opened", "provider", provider.name, "consecutive_fails", consecutiveFails, "timeout", c.config.CircuitBreakerTimeout)
	}
}

func (c *Client) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performHealthChecks()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) performHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	c.mu.RLock()
	providers := make([]*Provider, len(c.providers))
	copy(providers, c.providers)
	c.mu.RUnlock()

	for _, provider := range providers {
		_, err := doRequest(ctx, provider.client, fasthttp.MethodGet, provider.url+"/health", "", nil, c.config.Timeout)

		oldState := provider.GetState()
		newState := oldState
		switch {
		case err != nil && oldState != StateCircuitOpen:
			newState = StateUnhealthy
		case err == nil && oldState == StateUnhealthy:
			newState = StateHealthy
		}

		if newState != oldState {
			provider.SetState(newState)
			logger.Info("[notifier] provider state changed", "provider", provider.name, "old_state", stateString(oldState), "new_state", stateString(newState))
		}
	}
}

func (c *Client) metricsCollector() {
	defer c.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evaluateProviders()
		case <-c.stopCh:
			return
		}
	}
}

// evaluateProviders degrades slow or failing providers and restores
// recovered ones.
func (c *Client) evaluateProviders() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, provider := range c.providers {
		state := provider.GetState()
		if state == StateCircuitOpen || state == StateUnhealthy {
			continue
		}

		successRate := provider.metrics.SuccessRate()
		avgLatency := provider.metrics.AvgLatencyMs()

		if successRate < 0.8 || avgLatency > 5000 {
			if state != StateDegraded {
				provider.SetState(StateDegraded)
				logger.Warn("[notifier] provider degraded", "provider", provider.name, "success_rate", successRate, "avg_latency_ms", avgLatency)
			}
		} else if successRate > 0.95 && avgLatency < 2000 && state != StateHealthy {
			provider.SetState(StateHealthy)
			logger.Info("[notifier] provider recovered", "provider", provider.name)
		}
	}
}

func (c *Client) GetProviderStats() []ProviderStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]ProviderStats, 0, len(c.providers))
	for _, provider := range c.providers {
		stats = append(stats, ProviderStats{
			Name:             provider.name,
			URL:              provider.url,
			State:            stateString(provider.GetState()),
			Score:            provider.CalculateScore(),
			TotalRequests:    provider.metrics.TotalRequests.Load(),
			Throttled:        provider.metrics.ThrottledReqs.Load(),
			Rejected:         provider.metrics.RejectedReqs.Load(),
			SuccessRate:      provider.metrics.SuccessRate(),
			AvgLatencyMs:     provider.metrics.AvgLatencyMs(),
			P95LatencyMs:     provider.metrics.P95LatencyMs(),
			ConsecutiveFails: provider.metrics.ConsecutiveFails.Load(),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Score > stats[j].Score
	})
	return stats
}

// Close stops the background evaluators.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		c.wg.Wait()
	})
	return nil
}
