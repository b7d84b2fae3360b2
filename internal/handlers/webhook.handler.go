package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/daily-mass/internal/model"
	xhttp "github.com/nimasrn/daily-mass/pkg/http"
	"github.com/nimasrn/daily-mass/pkg/logger"
)

type InboundPublisher interface {
	PublishInbound(ctx context.Context, msg model.InboundMessage) (string, error)
}

// WebhookConfig holds per-channel credentials. AppSecret signs the WhatsApp
// JSON channel; SMSAuthToken signs the SMS form channel against SMSPublicURL.
type WebhookConfig struct {
	VerifyToken  string
	AppSecret    string
	SMSAuthToken string
	SMSPublicURL string
}

// WebhookHandler turns provider callbacks into InboundMessages on the queue.
// Processing happens elsewhere; the provider only waits for the publish.
type WebhookHandler struct {
	publisher InboundPublisher
	cfg       WebhookConfig
	clock     func() time.Time
}

func NewWebhookHandler(publisher InboundPublisher, cfg WebhookConfig) *WebhookHandler {
	return &WebhookHandler{
		publisher: publisher,
		cfg:       cfg,
		clock:     time.Now,
	}
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.GET("/webhooks/whatsapp", h.Verify)
	e.POST("/webhooks/whatsapp", xhttp.SignatureMiddleware(h.cfg.AppSecret)(h.ReceiveWhatsApp))
	e.POST("/webhooks/sms", xhttp.TwilioSignatureMiddleware(h.cfg.SMSAuthToken, h.cfg.SMSPublicURL)(h.ReceiveSMS))
}

/* ------------------------------ payloads ------------------------------- */

type whatsAppPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []whatsAppMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type whatsAppMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
}

/* -------------------------------- routes -------------------------------- */

// Verify answers the provider's subscription handshake by echoing
// hub.challenge when the token matches.
func (h *WebhookHandler) Verify(ctx *xhttp.RequestCtx) {
	mode := query(ctx, "hub.mode")
	token := query(ctx, "hub.verify_token")
	challenge := query(ctx, "hub.challenge")

	if mode != "subscribe" || h.cfg.VerifyToken == "" || token != h.cfg.VerifyToken {
		logger.Warn("[webhook] verification rejected", "mode", mode, "ip", ctx.RemoteIP().String())
		ctx.Error(xhttp.StatusText(xhttp.StatusForbidden), xhttp.StatusForbidden)
		return
	}
	ctx.Response.Header.SetContentType("text/plain; charset=utf-8")
	ctx.Response.SetBodyString(challenge)
}

func (h *WebhookHandler) ReceiveWhatsApp(ctx *xhttp.RequestCtx) {
	var p whatsAppPayload
	if err := readJSON(ctx, &p); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	var events []model.InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if in, ok := h.fromWhatsApp(m); ok {
					events = append(events, in)
				}
			}
		}
	}
	if !h.publish(ctx, events) {
		writeError(ctx, xhttp.StatusServiceUnavailable, "inbound queue unavailable")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]int{"accepted": len(events)})
}

// ReceiveSMS accepts the form-encoded callback of SMS providers and replies
// with an empty TwiML document; replies are sent through the notifier.
func (h *WebhookHandler) ReceiveSMS(ctx *xhttp.RequestCtx) {
	args := ctx.PostArgs()
	from := string(args.Peek("From"))
	sid := string(args.Peek("MessageSid"))
	if from == "" || sid == "" {
		writeError(ctx, xhttp.StatusBadRequest, "From and MessageSid are required")
		return
	}

	in := model.InboundMessage{
		MessageID:  sid,
		Channel:    model.ChannelSMS,
		Contact:    normalizeContact(from),
		Text:       string(args.Peek("Body")),
		ReceivedAt: h.clock().UTC(),
	}
	if !h.publish(ctx, []model.InboundMessage{in}) {
		writeError(ctx, xhttp.StatusServiceUnavailable, "inbound queue unavailable")
		return
	}
	ctx.Response.Header.SetContentType("text/xml; charset=utf-8")
	ctx.Response.SetBodyString("<Response></Response>")
}

func (h *WebhookHandler) publish(ctx context.Context, events []model.InboundMessage) bool {
	for _, in := range events {
		id, err := h.publisher.PublishInbound(ctx, in)
		if err != nil {
			// the provider retries the whole callback; duplicates are
			// dropped by message id downstream
			logger.Error("[webhook] publish failed", "error", err, "contact", in.Contact, "message_id", in.MessageID)
			return false
		}
		logger.Debug("[webhook] inbound queued", "contact", in.Contact, "message_id", in.MessageID, "stream_id", id)
	}
	return true
}

func (h *WebhookHandler) fromWhatsApp(m whatsAppMessage) (model.InboundMessage, bool) {
	if m.From == "" || m.ID == "" {
		return model.InboundMessage{}, false
	}
	in := model.InboundMessage{
		MessageID:  m.ID,
		Channel:    model.ChannelWhatsApp,
		Contact:    normalizeContact(m.From),
		ReceivedAt: h.clock().UTC(),
	}
	if sec, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil && sec > 0 {
		in.ReceivedAt = time.Unix(sec, 0).UTC()
	}

	switch {
	case m.Text != nil:
		in.Text = m.Text.Body
	case m.Button != nil:
		in.ButtonID = m.Button.Payload
		in.Text = m.Button.Text
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		in.ButtonID = m.Interactive.ButtonReply.ID
		in.Text = m.Interactive.ButtonReply.Title
	default:
		// media, reactions and the like still count as customer activity
		logger.Debug("[webhook] non-text message", "type", m.Type, "message_id", m.ID)
	}
	return in, true
}

// normalizeContact returns the E.164 form stored on subscribers.
func normalizeContact(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "whatsapp:")
	if v == "" || strings.HasPrefix(v, "+") {
		return v
	}
	return "+" + v
}
