package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sticker-album-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProcessor struct {
	mu       sync.Mutex
	attempts map[string]int
	failures int
}

func (p *countingProcessor) ProcessValidation(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attempts == nil {
		p.attempts = make(map[string]int)
	}
	p.attempts[id]++
	if p.attempts[id] <= p.failures {
		return errors.New("transient failure")
	}
	return nil
}

func (p *countingProcessor) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[id]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func testConfig() config.WorkerConfig {
	// zero retry delay keeps retries immediate in tests
	return config.WorkerConfig{Workers: 2, QueueSize: 8, MaxRetries: 3, RetryDelaySecs: 0}
}

func TestPoolProcessesJob(t *testing.T) {
	proc := &countingProcessor{}
	pool := New(testConfig(), proc)
	pool.Start()
	defer pool.Stop()

	require.NoError(t, pool.Enqueue("rec-1"))
	waitFor(t, func() bool { return proc.count("rec-1") == 1 })
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	proc := &countingProcessor{failures: 2}
	pool := New(testConfig(), proc)
	pool.Start()
	defer pool.Stop()

	require.NoError(t, pool.Enqueue("rec-1"))
	waitFor(t, func() bool { return proc.count("rec-1") == 3 })
}

func TestPoolGivesUpAfterMaxRetries(t *testing.T) {
	proc := &countingProcessor{failures: 100}
	pool := New(testConfig(), proc)
	pool.Start()
	defer pool.Stop()

	require.NoError(t, pool.Enqueue("rec-1"))
	waitFor(t, func() bool { return proc.count("rec-1") == 3 })

	// Give the pool a moment to prove it stops at the cap.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 3, proc.count("rec-1"))
}

type stickyFailProcessor struct {
	mu       sync.Mutex
	attempts map[string]int
	fail     map[string]bool
}

func (p *stickyFailProcessor) ProcessValidation(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attempts == nil {
		p.attempts = make(map[string]int)
	}
	p.attempts[id]++
	if p.fail[id] {
		return errors.New("transient failure")
	}
	return nil
}

func (p *stickyFailProcessor) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[id]
}

func TestRetryBackoffDoesNotHoldWorker(t *testing.T) {
	proc := &stickyFailProcessor{fail: map[string]bool{"rec-stuck": true}}
	pool := New(config.WorkerConfig{Workers: 1, QueueSize: 8, MaxRetries: 3, RetryDelaySecs: 60}, proc)
	pool.Start()
	defer pool.Stop()

	require.NoError(t, pool.Enqueue("rec-stuck"))
	waitFor(t, func() bool { return proc.count("rec-stuck") == 1 })

	// The failed job is waiting out its delay. The single worker must
	// still pick up new work in the meantime.
	require.NoError(t, pool.Enqueue("rec-next"))
	waitFor(t, func() bool { return proc.count("rec-next") == 1 })
}

func TestEnqueueFailsWhenQueueFull(t *testing.T) {
	pool := New(config.WorkerConfig{Workers: 1, QueueSize: 1, MaxRetries: 1, RetryDelaySecs: 0}, &countingProcessor{})
	// Not started, so nothing drains the queue.

	require.NoError(t, pool.Enqueue("rec-1"))
	assert.Error(t, pool.Enqueue("rec-2"))
}
