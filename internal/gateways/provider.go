package gateway

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	latencyWindow = 128
	// used when a 429 carries no usable Retry-After
	defaultThrottle = time.Second
)

// EndpointMetrics tracks one messaging endpoint. Outcomes fall in four
// buckets: delivered, failed (transport or 5xx), throttled (429) and rejected
// (other 4xx). Only failures feed the circuit breaker; a throttled endpoint
// is up but over its send rate and is parked until Retry-After instead.
type EndpointMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	ThrottledReqs    atomic.Int64
	RejectedReqs     atomic.Int64
	ConsecutiveFails atomic.Int32

	totalLatencyMs atomic.Int64
	lastSuccessAt  atomic.Int64
	lastFailureAt  atomic.Int64
	throttledUntil atomic.Int64 // unix nanos

	mu        sync.Mutex
	latencies [latencyWindow]int64
	next      int
	filled    int
}

func NewEndpointMetrics() *EndpointMetrics {
	return &EndpointMetrics{}
}

func (m *EndpointMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.totalLatencyMs.Add(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.lastSuccessAt.Store(time.Now().Unix())

	m.mu.Lock()
	m.latencies[m.next] = latencyMs
	m.next = (m.next + 1) % latencyWindow
	if m.filled < latencyWindow {
		m.filled++
	}
	m.mu.Unlock()
}

func (m *EndpointMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.lastFailureAt.Store(time.Now().Unix())
}

// RecordThrottled parks the endpoint for retryAfter without touching the
// failure streak.
func (m *EndpointMetrics) RecordThrottled(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = defaultThrottle
	}
	m.TotalRequests.Add(1)
	m.ThrottledReqs.Add(1)
	m.throttledUntil.Store(time.Now().Add(retryAfter).UnixNano())
}

// RecordRejected counts a request the endpoint answered but refused. The
// endpoint is reachable, so the failure streak resets.
func (m *EndpointMetrics) RecordRejected() {
	m.TotalRequests.Add(1)
	m.RejectedReqs.Add(1)
	m.ConsecutiveFails.Store(0)
}

func (m *EndpointMetrics) Throttled(now time.Time) bool {
	return now.UnixNano() < m.throttledUntil.Load()
}

func (m *EndpointMetrics) AvgLatencyMs() int64 {
	ok := m.SuccessfulReqs.Load()
	if ok == 0 {
		return 0
	}
	return m.totalLatencyMs.Load() / ok
}

// SuccessRate is delivered over delivered plus failed. Throttled and rejected
// requests say nothing about endpoint health and are left out.
func (m *EndpointMetrics) SuccessRate() float64 {
	ok := m.SuccessfulReqs.Load()
	decided := ok + m.FailedReqs.Load()
	if decided == 0 {
		return 1.0
	}
	return float64(ok) / float64(decided)
}

func (m *EndpointMetrics) ThrottleRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return float64(m.ThrottledReqs.Load()) / float64(total)
}

func (m *EndpointMetrics) P95LatencyMs() int64 {
	m.mu.Lock()
	sample := make([]int64, m.filled)
	copy(sample, m.latencies[:m.filled])
	m.mu.Unlock()

	if len(sample) == 0 {
		return 0
	}
	sort.Slice(sample, func(i, j int) bool { return sample[i] < sample[j] })
	idx := len(sample) * 95 / 100
	if idx >= len(sample) {
		idx = len(sample) - 1
	}
	return sample[idx]
}

type ProviderState int

const (
	StateHealthy ProviderState = iota
	StateDegraded
	StateUnhealthy
	StateCircuitOpen
)

// Provider is one messaging endpoint the notifier can route through.
type Provider struct {
	name             string
	url              string
	client           *fasthttp.Client
	metrics          *EndpointMetrics
	state            atomic.Int32
	weight           atomic.Int32
	circuitOpenUntil atomic.Int64
}

func NewProvider(name, url string, weight int, client *fasthttp.Client) *Provider {
	p := &Provider{
		name:    name,
		url:     url,
		client:  client,
		metrics: NewEndpointMetrics(),
	}
	p.state.Store(int32(StateHealthy))
	p.weight.Store(int32(weight))
	return p
}

func (p *Provider) GetState() ProviderState {
	return ProviderState(p.state.Load())
}

func (p *Provider) SetState(state ProviderState) {
	p.state.Store(int32(state))
}

// IsAvailable half-opens an expired circuit by moving it to degraded. A
// throttled endpoint is unavailable until its Retry-After passes.
func (p *Provider) IsAvailable() bool {
	now := time.Now()
	if p.metrics.Throttled(now) {
		return false
	}
	switch p.GetState() {
	case StateUnhealthy:
		return false
	case StateCircuitOpen:
		if now.Unix() <= p.circuitOpenUntil.Load() {
			return false
		}
		p.SetState(StateDegraded)
	}
	return true
}

// CalculateScore ranks endpoints; higher is better. Delivery rate and latency
// carry most of the weight, the configured weight breaks ties, and a history
// of 429s pushes sends toward endpoints with spare rate.
func (p *Provider) CalculateScore() float64 {
	if !p.IsAvailable() {
		return 0
	}
	m := p.metrics

	delivery := m.SuccessRate() * 100

	// 0ms = 100, 5s or slower = 0
	latency := 100.0
	if avg := m.AvgLatencyMs(); avg > 0 {
		latency = max(0, 100*(1-float64(avg)/5000))
	}

	streak := max(0.1, 1-0.1*float64(m.ConsecutiveFails.Load()))
	throttle := 1 - 0.5*m.ThrottleRate()

	state := 1.0
	if p.GetState() == StateDegraded {
		state = 0.5
	}

	return (delivery*0.4 + latency*0.4 + float64(p.weight.Load())*0.2) * streak * throttle * state
}

type ProviderStats struct {
	Name             string
	URL              string
	State            string
	Score            float64
	TotalRequests    int64
	Throttled        int64
	Rejected         int64
	SuccessRate      float64
	AvgLatencyMs     int64
	P95LatencyMs     int64
	ConsecutiveFails int32
}

func stateString(state ProviderState) string {
	switch state {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}
