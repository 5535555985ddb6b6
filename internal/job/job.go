// Package job 提供后台任务的入队、执行与状态记录
//
// 任务经 Broker 入队（Redis 列表或进程内队列），由 Pool 中的 worker 取出执行，
// 每个任务的执行状态写入一条带过期时间的 Record，供 /api/v1/jobs/:id 查询。
package job

import (
	"encoding/json"
	"errors"
	"time"
)

// Type 任务类型
type Type string

const (
	TypeSummarize    Type = "summarize"     // 单个 (学生, 学期, 年份) 汇总
	TypeSummarizeAll Type = "summarize_all" // 全量汇总
	TypeYearAverages Type = "year_averages" // 学生年度科目均分
)

// Valid 是否为已知任务类型
func (t Type) Valid() bool {
	switch t {
	case TypeSummarize, TypeSummarizeAll, TypeYearAverages:
		return true
	}
	return false
}

// Status 任务状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var (
	ErrJobNotFound  = errors.New("任务不存在或已过期")
	ErrUnknownType  = errors.New("未知的任务类型")
	ErrQueueFull    = errors.New("任务队列已满")
	ErrDisabled     = errors.New("后台任务未启用")
	ErrInvalidInput = errors.New("任务参数无效")
)

// Job 队列中的任务消息
type Job struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// DecodePayload 将任务参数解码到 v
func (j *Job) DecodePayload(v interface{}) error {
	if len(j.Payload) == 0 {
		return ErrInvalidInput
	}
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	return nil
}

// Record 任务执行记录
type Record struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	Status     Status          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Done 任务是否已结束
func (r *Record) Done() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

// markRunning 标记为执行中
func (r *Record) markRunning(now time.Time) {
	r.Status = StatusRunning
	r.StartedAt = &now
}

// markFinished 根据执行结果标记成功或失败
func (r *Record) markFinished(now time.Time, result interface{}, err error) {
	r.FinishedAt = &now
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = StatusSucceeded
	if result == nil {
		return
	}
	b, mErr := json.Marshal(result)
	if mErr != nil {
		r.Status = StatusFailed
		r.Error = "序列化任务结果失败: " + mErr.Error()
		return
	}
	r.Result = b
}
