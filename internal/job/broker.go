package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"reportcard/pkg/redis"
)

// Broker 任务队列与执行记录存储
type Broker interface {
	// Push 将任务放入队列
	Push(ctx context.Context, j *Job) error
	// Pop 阻塞至多 timeout 取出一个任务；超时无任务返回 (nil, nil)
	Pop(ctx context.Context, timeout time.Duration) (*Job, error)
	SaveRecord(ctx context.Context, rec *Record) error
	// GetRecord 记录不存在或已过期时返回 ErrJobNotFound
	GetRecord(ctx context.Context, id string) (*Record, error)
}

// ────── Redis 实现 ──────

const (
	redisQueueKey    = "jobs:queue"
	redisRecordKeyFn = "jobs:record:%s"
)

// redisStore RedisBroker 依赖的最小 Redis 能力，由 *redis.Client 实现
type redisStore interface {
	PushJob(ctx context.Context, queue string, payload []byte) error
	PopJob(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	SetRecord(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	GetRecord(ctx context.Context, key string) ([]byte, error)
}

// RedisBroker 基于 Redis 列表的任务队列，多实例部署时共享
type RedisBroker struct {
	store     redisStore
	recordTTL time.Duration
}

// NewRedisBroker 创建 RedisBroker
func NewRedisBroker(client *redis.Client, recordTTL time.Duration) *RedisBroker {
	return &RedisBroker{store: client, recordTTL: recordTTL}
}

func (b *RedisBroker) Push(ctx context.Context, j *Job) error {
	payload, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}
	return b.store.PushJob(ctx, redisQueueKey, payload)
}

func (b *RedisBroker) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	payload, err := b.store.PopJob(ctx, redisQueueKey, timeout)
	if err != nil || payload == nil {
		return nil, err
	}
	var j Job
	if err := json.Unmarshal(payload, &j); err != nil {
		return nil, fmt.Errorf("解析任务失败: %w", err)
	}
	return &j, nil
}

func (b *RedisBroker) SaveRecord(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化任务记录失败: %w", err)
	}
	return b.store.SetRecord(ctx, fmt.Sprintf(redisRecordKeyFn, rec.ID), payload, b.recordTTL)
}

func (b *RedisBroker) GetRecord(ctx context.Context, id string) (*Record, error) {
	payload, err := b.store.GetRecord(ctx, fmt.Sprintf(redisRecordKeyFn, id))
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("解析任务记录失败: %w", err)
	}
	return &rec, nil
}

// ────── 进程内实现 ──────

// MemoryBroker 进程内任务队列，Redis 不可用时使用；重启后队列与记录丢失
type MemoryBroker struct {
	queue     chan *Job
	recordTTL time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	rec       Record
	expiresAt time.Time
}

// NewMemoryBroker 创建容量为 capacity 的进程内队列
func NewMemoryBroker(capacity int, recordTTL time.Duration) *MemoryBroker {
	if capacity <= 0 {
		capacity = 128
	}
	return &MemoryBroker{
		queue:     make(chan *Job, capacity),
		recordTTL: recordTTL,
		now:       time.Now,
		records:   make(map[string]memoryRecord),
	}
}

// Push 队列已满时立即返回 ErrQueueFull，不阻塞调用方
func (b *MemoryBroker) Push(ctx context.Context, j *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case b.queue <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (b *MemoryBroker) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case j := <-b.queue:
		return j, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *MemoryBroker) SaveRecord(_ context.Context, rec *Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.evictLocked(now)
	b.records[rec.ID] = memoryRecord{rec: *rec, expiresAt: now.Add(b.recordTTL)}
	return nil
}

func (b *MemoryBroker) GetRecord(_ context.Context, id string) (*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	m, ok := b.records[id]
	if !ok || (b.recordTTL > 0 && !b.now().Before(m.expiresAt)) {
		return nil, ErrJobNotFound
	}
	rec := m.rec
	return &rec, nil
}

// evictLocked 清理过期记录，调用方需持有写锁
func (b *MemoryBroker) evictLocked(now time.Time) {
	if b.recordTTL <= 0 {
		return
	}
	for id, m := range b.records {
		if !now.Before(m.expiresAt) {
			delete(b.records, id)
		}
	}
}
