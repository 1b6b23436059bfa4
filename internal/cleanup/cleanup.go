// Package cleanup removes aged-out data on a schedule: expired login
// sessions and stale rate limit counter windows. It keeps the SQLite file
// from growing without bound on long-running deployments.
package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relistr/relistr/internal/logging"
)

// SessionPruner deletes sessions past their expiry.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// CounterPruner drops rate limit windows older than a cutoff.
type CounterPruner interface {
	Prune(ctx context.Context, cutoff time.Time) error
}

// Config contains the cleanup manager configuration.
type Config struct {
	// Interval between cleanup runs. Zero disables the loop.
	Interval time.Duration
	// CounterRetention is how long finished rate limit windows are kept.
	CounterRetention time.Duration
}

// Stats contains cleanup statistics.
type Stats struct {
	TotalRuns       int
	SessionsDeleted int64
	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// Manager runs the cleanup loop. Either pruner may be nil, in which case
// that concern is skipped.
type Manager struct {
	sessions SessionPruner
	counters CounterPruner
	config   Config
	logger   *logging.Logger

	ticker  *time.Ticker
	done    chan struct{}
	running bool
	mu      sync.Mutex
	stats   Stats
}

// NewManager creates a cleanup manager.
func NewManager(config Config, sessions SessionPruner, counters CounterPruner, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewLogger()
	}
	if config.CounterRetention <= 0 {
		config.CounterRetention = 2 * time.Hour
	}
	return &Manager{
		sessions: sessions,
		counters: counters,
		config:   config,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start starts the cleanup loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("cleanup manager is already running")
	}
	if m.config.Interval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}

	m.running = true
	m.ticker = time.NewTicker(m.config.Interval)
	go m.runLoop(ctx)
	return nil
}

// Stop stops the cleanup loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	m.ticker.Stop()
	close(m.done)
}

// GetStats returns a copy of the cleanup statistics.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-m.ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup pass.
func (m *Manager) RunOnce(ctx context.Context) {
	start := time.Now()
	var deleted int64

	if m.sessions != nil {
		n, err := m.sessions.DeleteExpiredSessions(ctx, start)
		if err != nil {
			m.logger.Warn("session cleanup failed", "error", err.Error())
		} else {
			deleted = n
		}
	}

	if m.counters != nil {
		cutoff := start.Add(-m.config.CounterRetention)
		if err := m.counters.Prune(ctx, cutoff); err != nil {
			m.logger.Warn("rate limit counter cleanup failed", "error", err.Error())
		}
	}

	m.mu.Lock()
	m.stats.TotalRuns++
	m.stats.SessionsDeleted += deleted
	m.stats.LastRunAt = start
	m.stats.LastRunDuration = time.Since(start)
	m.mu.Unlock()

	if deleted > 0 {
		m.logger.Info("cleanup pass completed",
			"sessions_deleted", deleted,
			"duration_ms", time.Since(start).Milliseconds())
	}
}
