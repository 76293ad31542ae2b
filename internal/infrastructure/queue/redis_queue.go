package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultQueueKey = "shopify:jobs"

// listStore defines the redis list operations used by RedisQueue
type listStore interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// RedisQueue is a FIFO job queue on a redis list
type RedisQueue struct {
	store  listStore
	key    string
	logger zerolog.Logger
}

// NewRedisQueue creates a new redis backed job queue
func NewRedisQueue(store listStore, key string, logger zerolog.Logger) *RedisQueue {
	if key == "" {
		key = defaultQueueKey
	}
	return &RedisQueue{store: store, key: key, logger: logger}
}

// Enqueue pushes a job onto the head of the list
func (q *RedisQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.store.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.logger.Debug().
		Str("jobId", job.ID).
		Strs("tags", job.Tags()).
		Msg("Job enqueued")
	return nil
}

// Dequeue pops the oldest job, waiting up to timeout
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.Job, error) {
	values, err := q.store.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	// BRPOP replies with the list name followed by the value
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(values))
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(values[1]), &job); err != nil {
		q.logger.Error().Err(err).Str("payload", values[1]).Msg("Dropping undecodable job")
		return nil, nil
	}
	return &job, nil
}

// Len reports how many jobs are waiting
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.store.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}
