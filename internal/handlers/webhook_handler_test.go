package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/daily-mass/internal/model"
	xhttp "github.com/nimasrn/daily-mass/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.InboundMessage
	err    error
}

func (p *recordingPublisher) PublishInbound(_ context.Context, msg model.InboundMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return "1-0", nil
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

const whatsAppBody = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1001",
    "changes": [{
      "field": "messages",
      "value": {
        "messages": [
          {"from": "15550001", "id": "wamid.text", "timestamp": "1718000000", "type": "text", "text": {"body": "STOP"}},
          {"from": "15550002", "id": "wamid.button", "timestamp": "1718000001", "type": "button", "button": {"payload": "summary", "text": "Summary"}},
          {"from": "15550003", "id": "wamid.reply", "timestamp": "1718000002", "type": "interactive",
           "interactive": {"type": "button_reply", "button_reply": {"id": "full_reading", "title": "Full reading"}}},
          {"from": "15550004", "id": "wamid.image", "timestamp": "1718000003", "type": "image"}
        ]
      }
    }]
  }]
}`

func TestWebhookHandler_ReceiveWhatsApp(t *testing.T) {
	t.Run("normalizes every message kind", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := NewWebhookHandler(pub, WebhookConfig{})

		ctx := setupTestContext("POST", "/webhooks/whatsapp", []byte(whatsAppBody))
		h.ReceiveWhatsApp(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var resp map[string]int
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, 4, resp["accepted"])

		require.Len(t, pub.events, 4)
		text := pub.events[0]
		assert.Equal(t, "wamid.text", text.MessageID)
		assert.Equal(t, model.ChannelWhatsApp, text.Channel)
		assert.Equal(t, "+15550001", text.Contact)
		assert.Equal(t, "STOP", text.Text)
		assert.Empty(t, text.ButtonID)
		assert.Equal(t, time.Unix(1718000000, 0).UTC(), text.ReceivedAt)

		assert.Equal(t, "summary", pub.events[1].ButtonID)
		assert.Equal(t, "Summary", pub.events[1].Text)
		assert.Equal(t, "full_reading", pub.events[2].ButtonID)

		image := pub.events[3]
		assert.Equal(t, "+15550004", image.Contact)
		assert.Empty(t, image.Text)
		assert.Empty(t, image.ButtonID)
	})

	t.Run("status callbacks carry no messages", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := NewWebhookHandler(pub, WebhookConfig{})
		body := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.x","status":"delivered"}]}}]}]}`

		ctx := setupTestContext("POST", "/webhooks/whatsapp", []byte(body))
		h.ReceiveWhatsApp(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Empty(t, pub.events)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		h := NewWebhookHandler(&recordingPublisher{}, WebhookConfig{})
		ctx := setupTestContext("POST", "/webhooks/whatsapp", []byte(`{"entry":`))
		h.ReceiveWhatsApp(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("publish failure asks the provider to retry", func(t *testing.T) {
		h := NewWebhookHandler(&recordingPublisher{err: errors.New("redis down")}, WebhookConfig{})
		ctx := setupTestContext("POST", "/webhooks/whatsapp", []byte(whatsAppBody))
		h.ReceiveWhatsApp(ctx)
		assert.Equal(t, 503, ctx.Response.StatusCode())
	})
}

func TestWebhookHandler_ReceiveSMS(t *testing.T) {
	received := time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC)

	t.Run("form callback is queued", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := NewWebhookHandler(pub, WebhookConfig{})
		h.clock = func() time.Time { return received }

		ctx := setupTestContext("POST", "/webhooks/sms", []byte("From=%2B15550009&Body=Lectura&MessageSid=SM123"))
		ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
		h.ReceiveSMS(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Equal(t, "<Response></Response>", string(ctx.Response.Body()))
		require.Len(t, pub.events, 1)
		assert.Equal(t, model.InboundMessage{
			MessageID:  "SM123",
			Channel:    model.ChannelSMS,
			Contact:    "+15550009",
			Text:       "Lectura",
			ReceivedAt: received,
		}, pub.events[0])
	})

	t.Run("missing sender", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := NewWebhookHandler(pub, WebhookConfig{})
		ctx := setupTestContext("POST", "/webhooks/sms", []byte("Body=hi&MessageSid=SM1"))
		ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
		h.ReceiveSMS(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Empty(t, pub.events)
	})
}

func TestWebhookHandler_Verify(t *testing.T) {
	h := NewWebhookHandler(&recordingPublisher{}, WebhookConfig{VerifyToken: "s3cret"})

	tests := []struct {
		name   string
		uri    string
		status int
		body   string
	}{
		{"matching token echoes challenge", "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=s3cret&hub.challenge=42", 200, "42"},
		{"wrong token", "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", 403, ""},
		{"wrong mode", "/webhooks/whatsapp?hub.mode=unsubscribe&hub.verify_token=s3cret&hub.challenge=42", 403, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := setupTestContext("GET", tt.uri, nil)
			h.Verify(ctx)
			assert.Equal(t, tt.status, ctx.Response.StatusCode())
			if tt.body != "" {
				assert.Equal(t, tt.body, string(ctx.Response.Body()))
			}
		})
	}

	t.Run("unconfigured token rejects everything", func(t *testing.T) {
		open := NewWebhookHandler(&recordingPublisher{}, WebhookConfig{})
		ctx := setupTestContext("GET", "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=&hub.challenge=42", nil)
		open.Verify(ctx)
		assert.Equal(t, 403, ctx.Response.StatusCode())
	})
}

func TestRegisterWebhookRoutes_SignedPosts(t *testing.T) {
	secret := "app-secret"
	pub := &recordingPublisher{}
	h := NewWebhookHandler(pub, WebhookConfig{VerifyToken: "tok", AppSecret: secret})

	r := router.New()
	RegisterWebhookRoutes(r.Group("/api/v1"), h)

	body := []byte(whatsAppBody)

	ctx := setupTestContext("POST", "/api/v1/webhooks/whatsapp", body)
	r.Handler(ctx)
	assert.Equal(t, 401, ctx.Response.StatusCode())
	assert.Empty(t, pub.events)

	ctx = setupTestContext("POST", "/api/v1/webhooks/whatsapp", body)
	ctx.Request.Header.Set(xhttp.SignatureHeader, xhttp.Sign([]byte(secret), body))
	r.Handler(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Len(t, pub.events, 4)

	ctx = setupTestContext("GET", "/api/v1/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=abc", nil)
	r.Handler(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Equal(t, "abc", string(ctx.Response.Body()))
}

func TestRegisterWebhookRoutes_SignedSMS(t *testing.T) {
	token := "sms-token"
	publicURL := "https://mass.example.org/api/v1/webhooks/sms"
	pub := &recordingPublisher{}
	h := NewWebhookHandler(pub, WebhookConfig{AppSecret: "app-secret", SMSAuthToken: token, SMSPublicURL: publicURL})

	r := router.New()
	RegisterWebhookRoutes(r.Group("/api/v1"), h)

	body := "From=%2B15550009&Body=Lectura&MessageSid=SM123"
	var form fasthttp.Args
	form.Parse(body)

	smsPost := func(header, value string) *xhttp.RequestCtx {
		ctx := setupTestContext("POST", "/api/v1/webhooks/sms", []byte(body))
		ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
		if header != "" {
			ctx.Request.Header.Set(header, value)
		}
		return ctx
	}

	// the WhatsApp app secret does not apply to the SMS channel
	ctx := smsPost(xhttp.SignatureHeader, xhttp.Sign([]byte("app-secret"), []byte(body)))
	r.Handler(ctx)
	assert.Equal(t, 401, ctx.Response.StatusCode())
	assert.Empty(t, pub.events)

	ctx = smsPost(xhttp.TwilioSignatureHeader, xhttp.SignTwilio([]byte(token), publicURL, &form))
	r.Handler(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	require.Len(t, pub.events, 1)
	assert.Equal(t, "SM123", pub.events[0].MessageID)

	t.Run("unset token leaves the channel open while WhatsApp stays signed", func(t *testing.T) {
		pub := &recordingPublisher{}
		r := router.New()
		RegisterWebhookRoutes(r.Group("/api/v1"), NewWebhookHandler(pub, WebhookConfig{AppSecret: "app-secret"}))

		ctx := smsPost("", "")
		r.Handler(ctx)
		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Len(t, pub.events, 1)
	})
}

func TestNormalizeContact(t *testing.T) {
	assert.Equal(t, "+15550001", normalizeContact("15550001"))
	assert.Equal(t, "+15550001", normalizeContact(" +15550001 "))
	assert.Equal(t, "+15550001", normalizeContact("whatsapp:+15550001"))
	assert.Equal(t, "", normalizeContact(""))
}
