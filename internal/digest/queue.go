// Package digest accumulates pending notifications per recipient so they can
// be flushed as one combined message.
package digest

import (
	"sync"
	"time"
)

// Item is one queued notification awaiting the next digest flush. Either
// TemplateID+Context or the literal Subject/Body pair is populated, mirroring
// the two content modes of a direct send.
type Item struct {
	TemplateID string                 `json:"templateId,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Subject    string                 `json:"subject,omitempty"`
	Body       string                 `json:"body,omitempty"`
	QueuedAt   time.Time              `json:"queuedAt"`
}

// Queue maps recipient addresses to their pending items. Append-only until a
// flush drains the whole map atomically.
type Queue interface {
	Enqueue(address string, item Item) int
	Drain() map[string][]Item
}

// MemoryQueue is the in-process default Queue implementation.
type MemoryQueue struct {
	mu    sync.Mutex
	items map[string][]Item
}

// NewMemoryQueue creates an empty digest queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{items: make(map[string][]Item)}
}

// Enqueue appends an item for the recipient and returns the pending count.
func (q *MemoryQueue) Enqueue(address string, item Item) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items[address] = append(q.items[address], item)
	return len(q.items[address])
}

// Drain snapshots and clears the entire queue. Deliveries built from the
// snapshot run outside the lock, so enqueues arriving mid-flush land in a
// fresh map and wait for the next cycle.
func (q *MemoryQueue) Drain() map[string][]Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.items
	q.items = make(map[string][]Item)
	return drained
}
