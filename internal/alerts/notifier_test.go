package alerts

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relistr/relistr/internal/models"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingSender) Send(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return r.err
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestNotifierDisabledWithoutConfig(t *testing.T) {
	n := NewNotifier(Config{}, nil)

	assert.False(t, n.enabled)
	// must not panic with no sender
	n.LoginFailure(models.MarketplacePoshmark, "bad password")
	n.StoreFailure("upsert", fmt.Errorf("disk full"))
}

func TestNotifierSends(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender, nil)

	n.LoginFailure(models.MarketplacePoshmark, "bad password")

	assert.Equal(t, 1, sender.count())
	assert.Contains(t, sender.sent[0], "Poshmark")
	assert.Contains(t, sender.sent[0], "bad password")
}

func TestNotifierDeduplicatesRepeats(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender, nil)
	n.dedupWindow = time.Hour

	n.LoginFailure(models.MarketplacePoshmark, "bad password")
	n.LoginFailure(models.MarketplacePoshmark, "bad password")
	n.LoginFailure(models.MarketplacePoshmark, "still bad")

	// same key, only the first goes out
	assert.Equal(t, 1, sender.count())

	// a different marketplace is a different key
	n.LoginFailure(models.MarketplaceDepop, "bad password")
	assert.Equal(t, 2, sender.count())
}

func TestNotifierThrottles(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender, nil)
	n.dedupWindow = time.Nanosecond
	n.throttler = NewThrottler(60, 3)

	for i := 0; i < 10; i++ {
		n.StoreFailure(fmt.Sprintf("op-%d", i), fmt.Errorf("boom"))
	}

	// bucket of 3, refill too slow to matter inside one test run
	assert.LessOrEqual(t, sender.count(), 4)
	assert.GreaterOrEqual(t, sender.count(), 3)
}

func TestNotifierSurvivesSenderErrors(t *testing.T) {
	sender := &recordingSender{err: fmt.Errorf("network down")}
	n := NewNotifierWithSender(sender, nil)

	n.LimiterFailOpen("marketplace")
	assert.Equal(t, 1, sender.count())
}

func TestThrottlerRefill(t *testing.T) {
	th := NewThrottler(600, 1) // 10 tokens/sec, bucket of 1

	assert.True(t, th.Allow())
	assert.False(t, th.Allow())

	time.Sleep(150 * time.Millisecond)
	assert.True(t, th.Allow())
}

func TestThrottlerReset(t *testing.T) {
	th := NewThrottler(1, 1)

	assert.True(t, th.Allow())
	assert.False(t, th.Allow())

	th.Reset()
	assert.True(t, th.Allow())
}
