package xhttp

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/valyala/fasthttp"
)

const slowThreshold = 500 * time.Millisecond

const SignatureHeader = "X-Hub-Signature-256"

// probe endpoints, matched on the last path segment so versioned groups are covered
var skipPaths = []string{"/health", "/ready", "/metrics"}

type MiddlewareFunc func(next RequestHandler) RequestHandler
type RequestCtx = fasthttp.RequestCtx
type RequestHandler = fasthttp.RequestHandler

func TimeoutMiddleware(timeout time.Duration) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return fasthttp.TimeoutWithCodeHandler(next, timeout, StatusText(StatusRequestTimeout), StatusRequestTimeout)
	}
}

func RecoverMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		defer func() {
			if err := recover(); err != nil {
				ctx.Error(StatusText(StatusInternalServerError), StatusInternalServerError)
				logger.Error("[xhttp] panic recovered", "error", err, "path", string(ctx.Path()))
			}
		}()
		next(ctx)
	}
}

func RequestLoggerMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		path := string(ctx.Path())
		if shouldSkip(path) {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		latency := time.Since(start)
		status := ctx.Response.StatusCode()
		fields := []interface{}{
			"status", status,
			"method", string(ctx.Method()),
			"path", path,
			"latency", latency.String(),
			"bytes_in", len(ctx.PostBody()),
			"bytes_out", len(ctx.Response.Body()),
			"ip", ctx.RemoteIP().String(),
			"request_id", requestID(ctx),
		}

		switch {
		case status >= 500:
			logger.Error("http_request", fields...)
		case status >= 400 || latency > slowThreshold:
			logger.Warn("http_request", fields...)
		default:
			logger.Info("http_request", fields...)
		}
	}
}

// SignatureMiddleware rejects POST bodies whose X-Hub-Signature-256 header
// is not "sha256=" followed by the hex HMAC-SHA256 of the body under secret.
// An empty secret disables the check.
func SignatureMiddleware(secret string) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		if secret == "" {
			return next
		}
		key := []byte(secret)
		return func(ctx *RequestCtx) {
			if !ctx.IsPost() {
				next(ctx)
				return
			}
			if !ValidSignature(key, ctx.PostBody(), string(ctx.Request.Header.Peek(SignatureHeader))) {
				logger.Warn("[xhttp] webhook signature mismatch", "path", string(ctx.Path()), "ip", ctx.RemoteIP().String())
				ctx.Error(StatusText(StatusUnauthorized), StatusUnauthorized)
				return
			}
			next(ctx)
		}
	}
}

func ValidSignature(key, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the X-Hub-Signature-256 header value for body.
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// BearerAuthMiddleware guards operator endpoints with a shared token. An
// empty token rejects every request.
func BearerAuthMiddleware(token string) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		expected := []byte("Bearer " + token)
		return func(ctx *RequestCtx) {
			got := ctx.Request.Header.Peek("Authorization")
			if token == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
				ctx.Error(StatusText(StatusUnauthorized), StatusUnauthorized)
				return
			}
			next(ctx)
		}
	}
}

func shouldSkip(p string) bool {
	for _, sp := range skipPaths {
		if strings.HasSuffix(p, sp) {
			return true
		}
	}
	return false
}

func requestID(ctx *RequestCtx) string {
	if v := ctx.Request.Header.Peek("X-Request-Id"); len(v) > 0 {
		return string(v)
	}
	return ""
}
