// Package poller runs a task immediately and then on a fixed cadence until its
// context is cancelled or a stop condition holds.
package poller

import (
	"context"
	"log/slog"
	"time"

	"hackmate/internal/platform/metrics"
	"hackmate/pkg/platform/circuit"
)

const (
	DefaultInterval         = 20 * time.Second
	DefaultDegradedInterval = 60 * time.Second
	DefaultFailureThreshold = 3
)

// Task is one iteration of the loop. A returned error is logged and counted;
// it never stops the loop.
type Task func(ctx context.Context) error

// Ticker is the subset of time.Ticker the loop needs.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time    { return r.t.C }
func (r realTicker) Reset(d time.Duration) { r.t.Reset(d) }
func (r realTicker) Stop()                 { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Loop drives a Task. A Loop is single-use per Run call but Run may be called
// again after it returns.
type Loop struct {
	name             string
	task             Task
	interval         time.Duration
	degradedInterval time.Duration
	failureThreshold int
	stopWhen         func() bool
	newTicker        TickerFactory
	logger           *slog.Logger
	metrics          *metrics.Metrics
	breaker          *circuit.Breaker
}

type Option func(*Loop)

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithDegradedInterval sets the cadence used after repeated failures.
func WithDegradedInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.degradedInterval = d
		}
	}
}

func WithFailureThreshold(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.failureThreshold = n
		}
	}
}

// WithStopWhen ends Run after an iteration for which fn reports true.
func WithStopWhen(fn func() bool) Option {
	return func(l *Loop) {
		l.stopWhen = fn
	}
}

func WithTickerFactory(f TickerFactory) Option {
	return func(l *Loop) {
		if f != nil {
			l.newTicker = f
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

func New(name string, task Task, opts ...Option) *Loop {
	l := &Loop{
		name:             name,
		task:             task,
		interval:         DefaultInterval,
		degradedInterval: DefaultDegradedInterval,
		failureThreshold: DefaultFailureThreshold,
		newTicker:        NewRealTicker,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.degradedInterval < l.interval {
		l.degradedInterval = l.interval
	}
	l.breaker = circuit.New(name, circuit.WithFailureThreshold(l.failureThreshold))
	return l
}

func (l *Loop) Name() string {
	return l.name
}

// Degraded reports whether the loop currently runs at the degraded cadence.
func (l *Loop) Degraded() bool {
	return l.breaker.IsOpen()
}

// Interval returns the cadence in effect.
func (l *Loop) Interval() time.Duration {
	if l.Degraded() {
		return l.degradedInterval
	}
	return l.interval
}

// Run executes the task once, then on every tick. It returns nil when the stop
// condition is met and ctx.Err() when cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = l.RunOnce(ctx)
	if l.shouldStop() {
		return nil
	}

	current := l.Interval()
	ticker := l.newTicker(current)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			_ = l.RunOnce(ctx)
			if l.shouldStop() {
				return nil
			}
			if next := l.Interval(); next != current {
				current = next
				ticker.Reset(current)
			}
		}
	}
}

// RunOnce executes one iteration and updates the cadence state.
func (l *Loop) RunOnce(ctx context.Context) error {
	err := l.task(ctx)
	if err != nil && ctx.Err() != nil {
		// Cancelled mid-flight; not a backend failure.
		return err
	}

	_, change := l.breaker.Record(err)
	if err != nil {
		l.logger.WarnContext(ctx, "poll_failed",
			"loop", l.name,
			"error", err,
			"consecutive_failures", l.breaker.Failures(),
		)
	}
	switch {
	case change.Opened:
		l.metrics.SetPollerDegraded(l.name, true)
		l.logger.WarnContext(ctx, "poller_degraded",
			"loop", l.name,
			"interval", l.degradedInterval.String(),
		)
	case change.Closed:
		l.metrics.SetPollerDegraded(l.name, false)
		l.logger.InfoContext(ctx, "poller_recovered",
			"loop", l.name,
			"interval", l.interval.String(),
		)
	}
	return err
}

func (l *Loop) shouldStop() bool {
	return l.stopWhen != nil && l.stopWhen()
}
