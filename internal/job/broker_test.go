package job

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reportcard/config"
	"reportcard/pkg/redis"
)

func newRedisBroker(t *testing.T) (*RedisBroker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBroker(client, time.Hour), mr
}

func TestRedisBroker_PushPop(t *testing.T) {
	b, _ := newRedisBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, &Job{ID: "j1", Type: TypeSummarizeAll}))
	require.NoError(t, b.Push(ctx, &Job{ID: "j2", Type: TypeSummarize, Payload: []byte(`{"term":1}`)}))

	got, err := b.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "j1", got.ID)
	assert.Equal(t, TypeSummarizeAll, got.Type)

	got, err = b.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "j2", got.ID)
	assert.JSONEq(t, `{"term":1}`, string(got.Payload))
}

func TestRedisBroker_RecordExpires(t *testing.T) {
	b, mr := newRedisBroker(t)
	ctx := context.Background()

	rec := &Record{ID: "r1", Type: TypeSummarizeAll, Status: StatusPending, EnqueuedAt: time.Now()}
	require.NoError(t, b.SaveRecord(ctx, rec))

	got, err := b.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	mr.FastForward(2 * time.Hour)
	_, err = b.GetRecord(ctx, "r1")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryBroker_PopTimeout(t *testing.T) {
	b := NewMemoryBroker(1, time.Hour)

	got, err := b.Pop(context.Background(), 10*time.Millisecond)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryBroker_PopCanceled(t *testing.T) {
	b := NewMemoryBroker(1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Pop(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryBroker_RecordTTL(t *testing.T) {
	b := NewMemoryBroker(1, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, b.SaveRecord(ctx, &Record{ID: "r1", Status: StatusSucceeded}))
	_, err := b.GetRecord(ctx, "r1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = b.GetRecord(ctx, "r1")
	assert.ErrorIs(t, err, ErrJobNotFound)

	// 下一次写入时清理过期记录
	require.NoError(t, b.SaveRecord(ctx, &Record{ID: "r2"}))
	assert.Len(t, b.records, 1)
}

func TestMemoryBroker_RecordIsCopied(t *testing.T) {
	b := NewMemoryBroker(1, time.Minute)
	ctx := context.Background()

	rec := &Record{ID: "r1", Status: StatusPending}
	require.NoError(t, b.SaveRecord(ctx, rec))
	rec.Status = StatusFailed

	got, err := b.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestMemoryBroker_PushFull(t *testing.T) {
	b := NewMemoryBroker(1, time.Hour)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, &Job{ID: "j1", Type: TypeSummarizeAll}))
	assert.ErrorIs(t, b.Push(ctx, &Job{ID: "j2", Type: TypeSummarizeAll}), ErrQueueFull)

	got, err := b.Pop(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "j1", got.ID)
	require.NoError(t, b.Push(ctx, &Job{ID: "j3", Type: TypeSummarizeAll}))
}
