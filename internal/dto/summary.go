package dto

import "github.com/shopspring/decimal"

// ── 学期汇总模块 DTO ──

// TermKeyRequest (学生, 学期, 年份) 业务键
type TermKeyRequest struct {
	StudentID string `json:"student_id" binding:"required,uuid"`
	Term      int    `json:"term"       binding:"required,term"`
	Year      int    `json:"year"       binding:"required,min=1900,max=2100"`
}

// SummaryListRequest 汇总列表查询参数
type SummaryListRequest struct {
	PaginationRequest
	StudentID string `form:"student_id" binding:"omitempty,uuid"`
	Term      *int   `form:"term"       binding:"omitempty,term"`
	Year      *int   `form:"year"       binding:"omitempty,min=1900,max=2100"`
	Grade     string `form:"grade"      binding:"omitempty,oneof=A+ A B C D F"`
}

// AveragesRequest 年度均分查询参数
type AveragesRequest struct {
	StudentID string `form:"student_id" json:"student_id" binding:"required,uuid"`
	Year      int    `form:"year"       json:"year"       binding:"required,min=1900,max=2100"`
	Term      *int   `form:"term"       json:"term"       binding:"omitempty,term"`
}

// SummaryResponse 学期汇总
type SummaryResponse struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"student_id"`
	Term           int             `json:"term"`
	Year           int             `json:"year"`
	TotalScore     decimal.Decimal `json:"total_score"`
	AverageScore   decimal.Decimal `json:"average_score"`
	Grade          string          `json:"grade"`
	CalculatedDate string          `json:"calculated_date"`
}

// RecalculateResponse 单键重算结果
type RecalculateResponse struct {
	Summary SummaryResponse `json:"summary"`
	Created bool            `json:"created"`
}

// SubjectAverageResponse 单科均分
type SubjectAverageResponse struct {
	SubjectID    string          `json:"subject_id"`
	SubjectName  string          `json:"subject_name,omitempty"`
	Count        int             `json:"count"`
	AverageScore decimal.Decimal `json:"average_score"`
}

// AveragesResponse 科目均分与总体均分；无成绩时 overall_average 为 null
type AveragesResponse struct {
	PerSubject     []SubjectAverageResponse `json:"per_subject"`
	OverallAverage *decimal.Decimal         `json:"overall_average"`
}

// BatchResult 全量汇总结果
type BatchResult struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Canceled  int      `json:"canceled"`
	Errors    []string `json:"errors,omitempty"`
}
