package job

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Executor 按任务类型执行具体业务，返回值写入任务记录的 result
type Executor interface {
	Execute(ctx context.Context, j *Job) (interface{}, error)
}

// ExecutorFunc 函数适配器
type ExecutorFunc func(ctx context.Context, j *Job) (interface{}, error)

// Execute 实现 Executor
func (f ExecutorFunc) Execute(ctx context.Context, j *Job) (interface{}, error) {
	return f(ctx, j)
}

// Pool 固定数量的 worker 从 Broker 拉取任务执行
type Pool struct {
	broker      Broker
	executor    Executor
	workers     int
	pollTimeout time.Duration
	logger      *zap.Logger
}

// NewPool 创建 worker 池
func NewPool(broker Broker, executor Executor, workers int, pollTimeout time.Duration, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Pool{
		broker:      broker,
		executor:    executor,
		workers:     workers,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Run 启动 worker 并阻塞至 ctx 取消且所有 worker 退出
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	p.logger.Info("任务 worker 已启动", zap.Int("workers", p.workers))
	wg.Wait()
	p.logger.Info("任务 worker 已全部退出")
}

func (p *Pool) loop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		j, err := p.broker.Pop(ctx, p.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			p.logger.Warn("拉取任务失败", zap.Int("worker", id), zap.Error(err))
			// 队列故障时退避，避免空转
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		if j == nil {
			continue
		}

		p.process(ctx, id, j)
	}
}

// process 执行单个任务并更新记录；任务 panic 或失败只影响自身记录
func (p *Pool) process(ctx context.Context, workerID int, j *Job) {
	log := p.logger.With(zap.Int("worker", workerID), zap.String("job_id", j.ID), zap.String("type", string(j.Type)))

	rec, err := p.broker.GetRecord(ctx, j.ID)
	if err != nil {
		// 记录过期或丢失时按消息重建
		rec = &Record{ID: j.ID, Type: j.Type, EnqueuedAt: j.EnqueuedAt}
	}
	rec.markRunning(time.Now())
	if err := p.broker.SaveRecord(ctx, rec); err != nil {
		log.Warn("更新任务状态失败", zap.Error(err))
	}

	start := time.Now()
	result, execErr := p.safeExecute(ctx, j)

	rec.markFinished(time.Now(), result, execErr)
	// 使用独立 context 写回结果，确保停机时已完成的任务状态不丢失
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.broker.SaveRecord(saveCtx, rec); err != nil {
		log.Error("保存任务结果失败", zap.Error(err))
	}

	if execErr != nil {
		log.Error("任务执行失败", zap.Duration("elapsed", time.Since(start)), zap.Error(execErr))
		return
	}
	log.Info("任务执行完成", zap.Duration("elapsed", time.Since(start)))
}

func (p *Pool) safeExecute(ctx context.Context, j *Job) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("任务 panic",
				zap.String("job_id", j.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("任务 panic: %v", r)
		}
	}()
	return p.executor.Execute(ctx, j)
}
