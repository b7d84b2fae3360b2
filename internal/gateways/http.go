package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
)

// StatusError is a non-2xx reply from a remote endpoint.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration // from the Retry-After header, seconds form only
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

// Throttled reports a rate-limit reply.
func (e *StatusError) Throttled() bool {
	return e.Code == fasthttp.StatusTooManyRequests
}

// Retryable reports whether another attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == fasthttp.StatusTooManyRequests
}

func newHTTPClient(timeout time.Duration, maxConns int) *fasthttp.Client {
	if maxConns <= 0 {
		maxConns = 64
	}
	return &fasthttp.Client{
		MaxConnsPerHost:     maxConns,
		ReadTimeout:         timeout,
		WriteTimeout:        timeout,
		MaxIdleConnDuration: 60 * time.Second,
		ReadBufferSize:      8 * 1024,
		WriteBufferSize:     4 * 1024,
	}
}

// doRequest performs one HTTP exchange bounded by the ctx deadline, or by
// fallback when ctx has none. The returned body is a copy.
func doRequest(ctx context.Context, client *fasthttp.Client, method, url, token string, body []byte, fallback time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(fallback)
	}

	if err := client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode < 200 || statusCode >= 300 {
		se := &StatusError{Code: statusCode, Body: string(resp.Body())}
		if secs, err := strconv.Atoi(string(resp.Header.Peek("Retry-After"))); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
		return nil, se
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}
