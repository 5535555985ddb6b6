package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler 按 cron 表达式周期性投递任务
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler 创建调度器；同一条目上一次仍在执行时跳过本次触发
func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := &cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: logger,
	}
}

// EnqueueEvery 按 cron 表达式 expr 向 dispatcher 投递一个 typ 任务
func (s *Scheduler) EnqueueEvery(expr string, d *Dispatcher, typ Type, payload interface{}) error {
	_, err := s.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := d.Enqueue(ctx, typ, payload); err != nil {
			s.logger.Error("定时任务入队失败", zap.String("type", string(typ)), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("注册定时任务失败 (%q): %w", expr, err)
	}
	s.logger.Info("定时任务已注册", zap.String("cron", expr), zap.String("type", string(typ)))
	return nil
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在执行的条目结束
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("等待定时任务结束超时")
	}
}

// Entries 已注册条目数
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// cronLogger 将 cron.Logger 适配到 zap
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("kv", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("kv", keysAndValues))
}
