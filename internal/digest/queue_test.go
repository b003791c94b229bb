// internal/digest/queue_test.go
package digest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_EnqueueCounts(t *testing.T) {
	q := NewMemoryQueue()

	assert.Equal(t, 1, q.Enqueue("a@example.com", Item{Body: "one"}))
	assert.Equal(t, 2, q.Enqueue("a@example.com", Item{Body: "two"}))
	assert.Equal(t, 1, q.Enqueue("b@example.com", Item{Body: "other"}))
}

func TestMemoryQueue_DrainClearsQueue(t *testing.T) {
	q := NewMemoryQueue()
	queuedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	q.Enqueue("a@example.com", Item{Body: "one", QueuedAt: queuedAt})
	q.Enqueue("a@example.com", Item{Body: "two", QueuedAt: queuedAt})

	drained := q.Drain()
	require.Len(t, drained, 1)
	require.Len(t, drained["a@example.com"], 2)
	assert.Equal(t, "one", drained["a@example.com"][0].Body)
	assert.Equal(t, "two", drained["a@example.com"][1].Body)

	assert.Empty(t, q.Drain(), "second drain sees an empty queue")
}

func TestMemoryQueue_EnqueueAfterDrainStartsFresh(t *testing.T) {
	q := NewMemoryQueue()

	q.Enqueue("a@example.com", Item{Body: "old"})
	snapshot := q.Drain()

	// New items land in a fresh map, not the snapshot.
	assert.Equal(t, 1, q.Enqueue("a@example.com", Item{Body: "new"}))
	assert.Len(t, snapshot["a@example.com"], 1)
	assert.Equal(t, "old", snapshot["a@example.com"][0].Body)
}

func TestMemoryQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewMemoryQueue()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Enqueue("a@example.com", Item{Body: "x"})
			}
		}()
	}
	wg.Wait()

	drained := q.Drain()
	assert.Len(t, drained["a@example.com"], 500)
}
