// Package analytics receives send-analytics notifications and records them.
package analytics

import (
	"log/slog"
	"sync"

	"github.com/starford/projectsync/internal/events"
	"github.com/starford/projectsync/internal/metrics"
)

// Subscriber is the notification source a Reporter listens on.
type Subscriber interface {
	Subscribe(typ string, h events.Handler) func()
}

// Reporter logs analytics notifications and counts exceptions.
type Reporter struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	unsub func()
}

// NewReporter creates a Reporter. m may be nil.
func NewReporter(logger *slog.Logger, m *metrics.Metrics) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger, metrics: m}
}

// Attach subscribes the reporter to bus. Attaching twice is a no-op.
func (r *Reporter) Attach(bus Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsub != nil {
		return
	}
	r.unsub = bus.Subscribe(events.SendAnalytics, r.handle)
}

// Detach removes the subscription.
func (r *Reporter) Detach() {
	r.mu.Lock()
	unsub := r.unsub
	r.unsub = nil
	r.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (r *Reporter) handle(e events.Event) {
	var a events.Analytics
	switch d := e.Detail.(type) {
	case events.Analytics:
		a = d
	case *events.Analytics:
		if d == nil {
			return
		}
		a = *d
	default:
		r.logger.Debug("analytics: unknown detail", slog.Any("detail", e.Detail))
		return
	}

	attrs := []any{
		slog.String("type", a.Type),
		slog.String("description", a.Description),
		slog.Bool("fatal", a.Fatal),
	}
	if a.Type != "exception" {
		r.logger.Info("analytics: event", attrs...)
		return
	}
	r.metrics.ObserveException(a.Fatal)
	if a.Fatal {
		r.logger.Error("analytics: exception", attrs...)
		return
	}
	r.logger.Warn("analytics: exception", attrs...)
}
