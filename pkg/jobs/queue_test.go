package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 4)

	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "TEST"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never processed")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"job-1"}, seen)
}

func TestEnqueueFailsWhenNotStarted(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "job-1"}))
	assert.Error(t, q.TryEnqueue(Job{ID: "job-1"}))
}

func TestTryEnqueueDropsWhenBufferFull(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("slow", func(_ context.Context, _ Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	// First job occupies the worker, second fills the buffer.
	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	deadline := time.After(2 * time.Second)
	for {
		if err := q.TryEnqueue(Job{ID: "job-2"}); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("buffer never accepted the second job")
		case <-time.After(time.Millisecond):
		}
	}

	err := q.TryEnqueue(Job{ID: "job-3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
}
