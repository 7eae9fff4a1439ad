package projectlist

import (
	"context"
	"log/slog"
	"slices"

	"github.com/starford/projectsync/internal/metrics"
	"github.com/starford/projectsync/internal/models"
)

// Option is a functional option for configuring a Consumer.
type Option func(*Consumer)

// WithNoAutoProjects disables the initial load on Attach. Refresh has to be
// called manually.
func WithNoAutoProjects(v bool) Option {
	return func(c *Consumer) {
		c.noAuto = v
	}
}

// WithProjects sets a copy of list as the initial list. Attach does not load
// when a list is present.
func WithProjects(list []models.Project) Option {
	return func(c *Consumer) {
		c.projects = slices.Clone(list)
		c.hasProjects = len(list) > 0
	}
}

// WithScheduler replaces the scheduler used for deferred reloads.
func WithScheduler(s Scheduler) Option {
	return func(c *Consumer) {
		c.sched = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = l
	}
}

// WithMetrics records reloads, cache size and notifications.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// WithResizeNotifier sets a callback scheduled after every successful reload.
func WithResizeNotifier(fn func()) Option {
	return func(c *Consumer) {
		c.onResize = fn
	}
}

// WithContext sets the context passed to reloads started by Refresh.
func WithContext(ctx context.Context) Option {
	return func(c *Consumer) {
		c.ctx = ctx
	}
}
