// Package delayqueue parks delay-suspended traversal branches until their
// wake time and hands them back to the engine. Backends: Redis (sorted set
// scored by wake time) for deployments, an in-memory queue for tests and
// single-process development.
package delayqueue

import (
	"context"
	"time"
)

// Entry is one parked branch: the execution it belongs to and the delay
// node whose successors resume when the wake time passes.
type Entry struct {
	ExecutionID string    `json:"execution_id"`
	NodeID      string    `json:"node_id"`
	WakeAt      time.Time `json:"wake_at"`
}

// Queue schedules and drains parked branches.
type Queue interface {
	// Schedule parks an entry until its wake time.
	Schedule(ctx context.Context, entry Entry) error

	// PopDue atomically removes and returns all entries whose wake time is
	// not after now.
	PopDue(ctx context.Context, now time.Time) ([]Entry, error)

	Close() error
}
