package delayqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKey = "relay:delay-queue"

// RedisQueue stores parked branches in a Redis sorted set scored by wake
// time, so entries survive a worker restart and multiple workers can share
// one queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return &RedisQueue{
		client: redis.NewClient(opts),
		key:    defaultKey,
	}, nil
}

func (q *RedisQueue) Schedule(ctx context.Context, entry Entry) error {
	member, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode delay entry: %w", err)
	}

	err = q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(entry.WakeAt.UnixMilli()),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule delay entry: %w", err)
	}

	return nil
}

// PopDue removes due members inside a MULTI/EXEC block so two pollers never
// hand back the same entry.
func (q *RedisQueue) PopDue(ctx context.Context, now time.Time) ([]Entry, error) {
	max := strconv.FormatInt(now.UnixMilli(), 10)

	var rangeCmd *redis.StringSliceCmd

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{Min: "-inf", Max: max})
		pipe.ZRemRangeByScore(ctx, q.key, "-inf", max)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pop due delay entries: %w", err)
	}

	members := rangeCmd.Val()
	entries := make([]Entry, 0, len(members))

	for _, member := range members {
		var entry Entry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode delay entry: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
