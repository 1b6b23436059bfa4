// Package ratelimit enforces per-marketplace, per-user and per-endpoint request
// budgets with a sliding-window algorithm over a shared counter store. The
// limiter fails open: when the store is missing or unreachable every check is
// allowed, because availability of the product outranks strict enforcement
// while the limiter backend is down.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/relistr/relistr/internal/logging"
	"github.com/relistr/relistr/internal/metrics"
	"github.com/relistr/relistr/internal/models"
)

// LimitType partitions limiter keys by what they are protecting.
type LimitType string

const (
	TypeAPI         LimitType = "api"
	TypeAuth        LimitType = "auth"
	TypeMarketplace LimitType = "marketplace"
	TypeUser        LimitType = "user"
	TypeGlobal      LimitType = "global"
)

// Options configures the budget for one limiter key.
type Options struct {
	Requests int
	Window   time.Duration
}

// DefaultOptions is the budget applied when a check supplies none.
var DefaultOptions = Options{Requests: 100, Window: time.Minute}

// Result is the outcome of one limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// failOpenResult is returned whenever the counter store cannot answer.
func failOpenResult() *Result {
	return &Result{Allowed: true, Limit: math.MaxInt32, Remaining: math.MaxInt32}
}

// FailOpenNotifier is told when the limiter stops enforcing because its
// counter store cannot answer. Implementations must not block.
type FailOpenNotifier interface {
	LimiterFailOpen(limitType string)
}

// Limiter evaluates sliding-window budgets. Construct one per process and pass
// it by reference; per-key window options are created lazily and cached so
// repeated checks reuse the same configuration.
type Limiter struct {
	store    CounterStore
	metrics  *metrics.Metrics
	logger   *logging.Logger
	notifier FailOpenNotifier

	mu      sync.RWMutex
	options map[string]Options // key -> cached budget
	now     func() time.Time   // test seam
}

// New creates a Limiter over the given counter store. A nil store is legal and
// puts the limiter permanently in fail-open mode.
func New(store CounterStore, m *metrics.Metrics, logger *logging.Logger) *Limiter {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Limiter{
		store:   store,
		metrics: m,
		logger:  logger,
		options: make(map[string]Options),
		now:     time.Now,
	}
}

// SetFailOpenNotifier registers a notifier for store outages. Call before the
// limiter starts serving checks.
func (l *Limiter) SetFailOpenNotifier(n FailOpenNotifier) {
	l.notifier = n
}

// failOpen logs a store outage, alerts the notifier and records the allowed
// decision.
func (l *Limiter) failOpen(ctx context.Context, k string, limitType LimitType, err error) *Result {
	l.logger.WarnWithContext(ctx, "rate limit store unavailable, failing open",
		"key", k, "error", err.Error())
	if l.notifier != nil {
		l.notifier.LimiterFailOpen(string(limitType))
	}
	l.record(limitType, true)
	return failOpenResult()
}

// key builds the counter key for a (type, identifier) pair.
func key(limitType LimitType, identifier string) string {
	return string(limitType) + ":" + identifier
}

// optionsFor returns the cached budget for a key, adopting opts on first use.
func (l *Limiter) optionsFor(k string, opts *Options) Options {
	l.mu.RLock()
	cached, ok := l.options[k]
	l.mu.RUnlock()
	if ok {
		return cached
	}

	o := DefaultOptions
	if opts != nil && opts.Requests > 0 && opts.Window > 0 {
		o = *opts
	}

	l.mu.Lock()
	if existing, ok := l.options[k]; ok {
		o = existing
	} else {
		l.options[k] = o
	}
	l.mu.Unlock()
	return o
}

// CheckLimit evaluates and consumes one unit of budget for (limitType,
// identifier). The sliding window weights the previous fixed window by its
// remaining overlap, so budget replenishes continuously instead of snapping
// back at window boundaries.
func (l *Limiter) CheckLimit(ctx context.Context, identifier string, limitType LimitType, opts *Options) *Result {
	if l.store == nil {
		return failOpenResult()
	}

	k := key(limitType, identifier)
	o := l.optionsFor(k, opts)
	now := l.now()
	windowStart := now.Truncate(o.Window)
	prevStart := windowStart.Add(-o.Window)

	current, err := l.store.Increment(ctx, k, windowStart)
	if err != nil {
		return l.failOpen(ctx, k, limitType, err)
	}

	previous, err := l.store.Count(ctx, k, prevStart)
	if err != nil {
		return l.failOpen(ctx, k, limitType, err)
	}

	elapsed := float64(now.Sub(windowStart)) / float64(o.Window)
	weighted := float64(previous)*(1-elapsed) + float64(current)

	res := &Result{
		Limit: o.Requests,
		Reset: windowStart.Add(o.Window),
	}
	res.Allowed = weighted <= float64(o.Requests)
	remaining := float64(o.Requests) - weighted
	if remaining < 0 {
		remaining = 0
	}
	res.Remaining = int(remaining)

	l.record(limitType, res.Allowed)
	return res
}

// Status reports the budget for (limitType, identifier) without consuming any.
// Returns nil when the store cannot answer.
func (l *Limiter) Status(ctx context.Context, identifier string, limitType LimitType) *Result {
	if l.store == nil {
		return nil
	}

	k := key(limitType, identifier)
	o := l.optionsFor(k, nil)
	now := l.now()
	windowStart := now.Truncate(o.Window)
	prevStart := windowStart.Add(-o.Window)

	current, err := l.store.Count(ctx, k, windowStart)
	if err != nil {
		return nil
	}
	previous, err := l.store.Count(ctx, k, prevStart)
	if err != nil {
		return nil
	}

	elapsed := float64(now.Sub(windowStart)) / float64(o.Window)
	weighted := float64(previous)*(1-elapsed) + float64(current)

	remaining := float64(o.Requests) - weighted
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   weighted < float64(o.Requests),
		Limit:     o.Requests,
		Remaining: int(remaining),
		Reset:     windowStart.Add(o.Window),
	}
}

// ResetLimit clears the counters for (limitType, identifier).
func (l *Limiter) ResetLimit(ctx context.Context, identifier string, limitType LimitType) error {
	if l.store == nil {
		return nil
	}
	return l.store.Reset(ctx, key(limitType, identifier))
}

// CheckMarketplaceLimit is sugar over CheckLimit using the marketplace's
// preconfigured budget. The identifier is scoped to the marketplace so one
// user's Poshmark traffic never consumes their eBay budget.
func (l *Limiter) CheckMarketplaceLimit(ctx context.Context, marketplace models.Marketplace, identifier string) *Result {
	budget := marketplace.Info().RateLimit
	opts := &Options{Requests: budget.Requests, Window: budget.Window}
	return l.CheckLimit(ctx, string(marketplace)+":"+identifier, TypeMarketplace, opts)
}

// CheckUserLimit evaluates the per-user budget.
func (l *Limiter) CheckUserLimit(ctx context.Context, userID string, opts *Options) *Result {
	return l.CheckLimit(ctx, userID, TypeUser, opts)
}

// CheckAPILimit evaluates the per-endpoint budget.
func (l *Limiter) CheckAPILimit(ctx context.Context, endpoint string, opts *Options) *Result {
	return l.CheckLimit(ctx, endpoint, TypeAPI, opts)
}

func (l *Limiter) record(limitType LimitType, allowed bool) {
	if l.metrics != nil {
		l.metrics.RecordRateLimitDecision(string(limitType), allowed)
	}
}
