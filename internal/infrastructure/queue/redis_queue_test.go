package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockList struct {
	values  []string
	pushErr error
	popErr  error
	timeout time.Duration
}

func (m *mockList) LPush(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	if m.pushErr != nil {
		return redis.NewIntResult(0, m.pushErr)
	}
	for _, v := range values {
		m.values = append([]string{string(v.([]byte))}, m.values...)
	}
	return redis.NewIntResult(int64(len(m.values)), nil)
}

func (m *mockList) BRPop(_ context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	m.timeout = timeout
	if m.popErr != nil {
		return redis.NewStringSliceResult(nil, m.popErr)
	}
	if len(m.values) == 0 {
		return redis.NewStringSliceResult(nil, redis.Nil)
	}
	last := m.values[len(m.values)-1]
	m.values = m.values[:len(m.values)-1]
	return redis.NewStringSliceResult([]string{keys[0], last}, nil)
}

func (m *mockList) LLen(context.Context, string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(m.values)), nil)
}

func TestRedisQueueIsFIFO(t *testing.T) {
	store := &mockList{}
	q := NewRedisQueue(store, "", zerolog.Nop())
	ctx := context.Background()

	first := domain.NewJob(domain.JobWebhooksInstaller, "a.myshopify.com", "", nil)
	second := domain.NewJob(domain.JobWebhook, "a.myshopify.com", "app/uninstalled", []byte(`{"id":1}`))
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, time.Second, store.timeout)

	got, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "app/uninstalled", got.Name)
	assert.JSONEq(t, `{"id":1}`, string(got.Payload))
}

func TestRedisQueueDequeueTimeout(t *testing.T) {
	q := NewRedisQueue(&mockList{}, "jobs", zerolog.Nop())

	job, err := q.Dequeue(context.Background(), time.Millisecond)

	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestRedisQueueErrors(t *testing.T) {
	boom := errors.New("connection reset")
	q := NewRedisQueue(&mockList{pushErr: boom, popErr: boom}, "jobs", zerolog.Nop())

	assert.ErrorIs(t, q.Enqueue(context.Background(), domain.NewJob(domain.JobWebhook, "a", "", nil)), boom)
	_, err := q.Dequeue(context.Background(), time.Second)
	assert.ErrorIs(t, err, boom)
}

func TestRedisQueueDropsUndecodableJob(t *testing.T) {
	q := NewRedisQueue(&mockList{values: []string{"not json"}}, "jobs", zerolog.Nop())

	job, err := q.Dequeue(context.Background(), time.Second)

	assert.NoError(t, err)
	assert.Nil(t, job)
}
