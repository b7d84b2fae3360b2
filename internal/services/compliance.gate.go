package services

import "time"

type WindowState int

const (
	WindowOpen WindowState = iota
	WindowExpired
)

func (s WindowState) String() string {
	if s == WindowOpen {
		return "open"
	}
	return "expired"
}

// ComplianceGate enforces the provider's customer-initiated messaging
// window, measured from the subscriber's last inbound message.
type ComplianceGate struct {
	window time.Duration
}

func NewComplianceGate(window time.Duration) *ComplianceGate {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &ComplianceGate{window: window}
}

// Evaluate classifies the window. A subscriber who never wrote in is
// expired; exactly window old is still open.
func (g *ComplianceGate) Evaluate(lastInboundAt *time.Time, now time.Time) WindowState {
	if lastInboundAt == nil {
		return WindowExpired
	}
	if now.Sub(*lastInboundAt) > g.window {
		return WindowExpired
	}
	return WindowOpen
}

// Cutoff is the oldest last-inbound instant still inside the window at now.
func (g *ComplianceGate) Cutoff(now time.Time) time.Time {
	return now.Add(-g.window)
}
