package cleanup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relistr/relistr/internal/models"
	"github.com/relistr/relistr/internal/store"
)

type recordingCounterPruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *recordingCounterPruner) Prune(_ context.Context, cutoff time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return p.err
}

func (p *recordingCounterPruner) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

func TestRunOncePrunesExpiredSessions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutUser(ctx, &models.User{ID: "user-1", ExternalID: "ext-1"}))

	now := time.Now().UTC()
	require.NoError(t, st.PutSession(ctx, &models.Session{
		Token: "tok-old", UserID: "user-1", ExpiresAt: now.Add(-time.Minute),
	}))
	require.NoError(t, st.PutSession(ctx, &models.Session{
		Token: "tok-live", UserID: "user-1", ExpiresAt: now.Add(time.Hour),
	}))

	counters := &recordingCounterPruner{}
	m := NewManager(Config{Interval: time.Hour, CounterRetention: 30 * time.Minute}, st, counters, nil)
	m.RunOnce(ctx)

	stats := m.GetStats()
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, int64(1), stats.SessionsDeleted)
	assert.Equal(t, 1, counters.calls())

	_, err := st.GetSession(ctx, "tok-old")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetSession(ctx, "tok-live")
	assert.NoError(t, err)
}

func TestRunOnceSurvivesPrunerErrors(t *testing.T) {
	counters := &recordingCounterPruner{err: fmt.Errorf("database is locked")}
	m := NewManager(Config{Interval: time.Hour}, store.NewMemoryStore(), counters, nil)

	m.RunOnce(context.Background())

	stats := m.GetStats()
	assert.Equal(t, 1, stats.TotalRuns)
}

func TestManagerStartStop(t *testing.T) {
	counters := &recordingCounterPruner{}
	m := NewManager(Config{Interval: 10 * time.Millisecond}, nil, counters, nil)

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()), "second start must fail")

	assert.Eventually(t, func() bool {
		return counters.calls() > 0
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop() // idempotent
}

func TestStartRejectsZeroInterval(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil)
	assert.Error(t, m.Start(context.Background()))
}
