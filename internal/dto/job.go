package dto

import "encoding/json"

// ── 后台任务 DTO ──

// JobResponse 任务状态
type JobResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	EnqueuedAt string          `json:"enqueued_at"`
	StartedAt  string          `json:"started_at,omitempty"`
	FinishedAt string          `json:"finished_at,omitempty"`
}

// ExportSummariesRequest 导出汇总查询参数
type ExportSummariesRequest struct {
	Year *int `form:"year" binding:"omitempty,min=1900,max=2100"`
	Term *int `form:"term" binding:"omitempty,term"`
}
