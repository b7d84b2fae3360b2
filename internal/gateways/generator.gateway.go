package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/valyala/fasthttp"
)

const systemPrompt = "You are a Catholic spiritual writer. Write a short reflection (under 180 words) " +
	"on the day's Mass readings for someone reading it on their phone. Write in %s. " +
	"Do not repeat the readings verbatim. Plain text, no markdown headings."

// GeneratorClient produces reflections through an OpenAI compatible chat
// completions endpoint.
type GeneratorClient struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	client  *fasthttp.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func NewGeneratorClient(baseURL, apiKey, modelName string, timeout time.Duration) *GeneratorClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeneratorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		timeout: timeout,
		client:  newHTTPClient(timeout, 8),
	}
}

// Generate returns the reflection text. An empty string with a nil error
// means the model produced nothing usable.
func (c *GeneratorClient) Generate(ctx context.Context, readings *model.Readings, language model.Language) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, language)},
			{Role: "user", Content: formatReadings(readings)},
		},
		Temperature: 0.7,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := doRequest(ctx, c.client, fasthttp.MethodPost, c.baseURL+"/v1/chat/completions", c.apiKey, payload, c.timeout)
	if err != nil {
		return "", fmt.Errorf("generate reflection: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func formatReadings(r *model.Readings) string {
	var b strings.Builder
	write := func(label string, p *model.Passage) {
		if p.Empty() {
			return
		}
		fmt.Fprintf(&b, "%s (%s):\n%s\n\n", label, p.Reference, p.Text)
	}
	write("First Reading", &r.FirstReading)
	write("Responsorial Psalm", &r.Psalm)
	write("Second Reading", r.SecondReading)
	write("Gospel", &r.Gospel)
	return strings.TrimSpace(b.String())
}
