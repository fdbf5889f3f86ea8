// Package notification provides best-effort alert delivery to external
// channels (Telegram, webhooks) for bracket order events. Delivery failures
// must never affect order placement correctness.
package notification

import (
	"context"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// MultiNotifier fans an alert out to several backends. Every backend is
// attempted; the first error is returned.
type MultiNotifier struct {
	backends []Notifier
}

// NewMultiNotifier creates a fan-out notifier.
func NewMultiNotifier(backends ...Notifier) *MultiNotifier {
	return &MultiNotifier{backends: backends}
}

func (m *MultiNotifier) Send(ctx context.Context, alert Alert) error {
	var firstErr error
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
