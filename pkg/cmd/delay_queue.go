package cmd

import (
	"github.com/relaycrm/relay/pkg/delayqueue"
)

// NewDelayQueue returns the redis-backed queue when a redis URL is
// configured, otherwise the in-process queue. The in-process queue loses
// parked branches on restart; the stale sweep reconciles their records.
func NewDelayQueue(redisURL string) (delayqueue.Queue, error) {
	if redisURL == "" {
		return delayqueue.NewMemoryQueue(), nil
	}

	return delayqueue.NewRedisQueue(redisURL)
}
