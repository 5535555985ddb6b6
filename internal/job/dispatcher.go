package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher 任务入队与状态查询入口
type Dispatcher struct {
	broker   Broker
	disabled bool
	logger   *zap.Logger
}

// NewDispatcher 创建 Dispatcher
func NewDispatcher(broker Broker, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{broker: broker, logger: logger}
}

// Disable 拒绝后续入队，用于本进程不运行 worker 且队列无人消费的情况
func (d *Dispatcher) Disable() {
	d.disabled = true
}

// Enabled 是否接受入队
func (d *Dispatcher) Enabled() bool {
	return !d.disabled
}

// Enqueue 生成任务 ID、写入 pending 记录后入队
func (d *Dispatcher) Enqueue(ctx context.Context, typ Type, payload interface{}) (*Record, error) {
	if d.disabled {
		return nil, ErrDisabled
	}
	if !typ.Valid() {
		return nil, ErrUnknownType
	}

	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("序列化任务参数失败: %w", err)
		}
		raw = b
	}

	now := time.Now()
	j := &Job{
		ID:         uuid.New().String(),
		Type:       typ,
		Payload:    raw,
		EnqueuedAt: now,
	}
	rec := &Record{
		ID:         j.ID,
		Type:       typ,
		Status:     StatusPending,
		EnqueuedAt: now,
	}

	// 先写记录再入队，避免 worker 取到任务时记录尚不存在
	if err := d.broker.SaveRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("保存任务记录失败: %w", err)
	}
	if err := d.broker.Push(ctx, j); err != nil {
		// 入队失败的任务不会被执行，记录直接标记为失败
		rec.markFinished(time.Now(), nil, err)
		if sErr := d.broker.SaveRecord(context.WithoutCancel(ctx), rec); sErr != nil {
			d.logger.Warn("更新任务记录失败", zap.String("job_id", j.ID), zap.Error(sErr))
		}
		return nil, fmt.Errorf("任务入队失败: %w", err)
	}

	d.logger.Info("任务已入队", zap.String("job_id", j.ID), zap.String("type", string(typ)))
	return rec, nil
}

// Get 查询任务记录
func (d *Dispatcher) Get(ctx context.Context, id string) (*Record, error) {
	return d.broker.GetRecord(ctx, id)
}
