package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// waitDone 轮询直到任务结束或超时
func waitDone(t *testing.T, d *Dispatcher, id string) *Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := d.Get(context.Background(), id)
		if err == nil && rec.Done() {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("任务 %s 未在期限内完成", id)
	return nil
}

func TestDispatcher_EnqueueUnknownType(t *testing.T) {
	d := NewDispatcher(NewMemoryBroker(1, time.Minute), zap.NewNop())

	_, err := d.Enqueue(context.Background(), Type("bogus"), nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDispatcher_EnqueueWritesPendingRecord(t *testing.T) {
	d := NewDispatcher(NewMemoryBroker(1, time.Minute), zap.NewNop())

	rec, err := d.Enqueue(context.Background(), TypeSummarizeAll, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusPending, rec.Status)

	got, err := d.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestPool_ProcessesJobs(t *testing.T) {
	broker := NewMemoryBroker(8, time.Minute)
	d := NewDispatcher(broker, zap.NewNop())

	exec := ExecutorFunc(func(ctx context.Context, j *Job) (interface{}, error) {
		switch j.Type {
		case TypeSummarize:
			var p struct {
				Term int `json:"term"`
			}
			if err := j.DecodePayload(&p); err != nil {
				return nil, err
			}
			return map[string]int{"term": p.Term}, nil
		case TypeYearAverages:
			return nil, errors.New("计算失败")
		default:
			panic("boom")
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(broker, exec, 2, 20*time.Millisecond, zap.NewNop())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	okRec, err := d.Enqueue(ctx, TypeSummarize, map[string]int{"term": 2})
	require.NoError(t, err)
	failRec, err := d.Enqueue(ctx, TypeYearAverages, nil)
	require.NoError(t, err)
	panicRec, err := d.Enqueue(ctx, TypeSummarizeAll, nil)
	require.NoError(t, err)

	got := waitDone(t, d, okRec.ID)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.JSONEq(t, `{"term":2}`, string(got.Result))
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.FinishedAt)

	got = waitDone(t, d, failRec.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "计算失败", got.Error)

	got = waitDone(t, d, panicRec.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "panic")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("取消后 worker 未退出")
	}
}

func TestScheduler_EnqueueEvery(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	d := NewDispatcher(NewMemoryBroker(1, time.Minute), zap.NewNop())

	require.NoError(t, s.EnqueueEvery("0 2 * * *", d, TypeSummarizeAll, nil))
	assert.Equal(t, 1, s.Entries())

	assert.Error(t, s.EnqueueEvery("not a cron", d, TypeSummarizeAll, nil))

	s.Start()
	s.Stop(context.Background())
}

func TestDispatcher_Disabled(t *testing.T) {
	d := NewDispatcher(NewMemoryBroker(1, time.Minute), zap.NewNop())
	d.Disable()

	assert.False(t, d.Enabled())
	_, err := d.Enqueue(context.Background(), TypeSummarizeAll, nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestDispatcher_QueueFullFailsFast(t *testing.T) {
	d := NewDispatcher(NewMemoryBroker(1, time.Minute), zap.NewNop())
	ctx := context.Background()

	_, err := d.Enqueue(ctx, TypeSummarizeAll, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = d.Enqueue(ctx, TypeSummarizeAll, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), time.Second, "队列已满时不应阻塞")
}
