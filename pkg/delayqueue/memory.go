package delayqueue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for tests and single-process setups.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Schedule(_ context.Context, entry Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, entry)

	return nil
}

func (q *MemoryQueue) PopDue(_ context.Context, now time.Time) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]Entry, 0)
	remaining := q.entries[:0]

	for _, entry := range q.entries {
		if entry.WakeAt.After(now) {
			remaining = append(remaining, entry)
		} else {
			due = append(due, entry)
		}
	}

	q.entries = remaining

	sort.Slice(due, func(i, j int) bool {
		return due[i].WakeAt.Before(due[j].WakeAt)
	})

	return due, nil
}

func (q *MemoryQueue) Close() error {
	return nil
}
