package dto

import "github.com/shopspring/decimal"

// ── 成绩单模块 DTO ──

// MarkInput 单科成绩输入
type MarkInput struct {
	SubjectID string           `json:"subject_id" binding:"required,uuid"`
	Score     *decimal.Decimal `json:"score"      binding:"required,min=0,max=100"`
}

// CreateReportCardRequest 创建成绩单（可同时录入成绩）
type CreateReportCardRequest struct {
	StudentID string      `json:"student_id" binding:"required,uuid"`
	Term      int         `json:"term"       binding:"required,term"`
	Year      int         `json:"year"       binding:"required,min=1900,max=2100"`
	Marks     []MarkInput `json:"marks"      binding:"omitempty,max=50,dive"`
}

// UpdateMarksRequest 按科目新增或覆盖成绩
type UpdateMarksRequest struct {
	Marks []MarkInput `json:"marks" binding:"required,min=1,max=50,dive"`
}

// ReportCardListRequest 成绩单列表查询参数
type ReportCardListRequest struct {
	PaginationRequest
	StudentID string `form:"student_id" binding:"omitempty,uuid"`
	Term      *int   `form:"term"       binding:"omitempty,term"`
	Year      *int   `form:"year"       binding:"omitempty,min=1900,max=2100"`
}

// MarkResponse 单科成绩
type MarkResponse struct {
	ID          string          `json:"id"`
	SubjectID   string          `json:"subject_id"`
	SubjectName string          `json:"subject_name,omitempty"`
	SubjectCode string          `json:"subject_code,omitempty"`
	Score       decimal.Decimal `json:"score"`
}

// ReportCardResponse 成绩单
type ReportCardResponse struct {
	ID          string         `json:"id"`
	StudentID   string         `json:"student_id"`
	StudentName string         `json:"student_name,omitempty"`
	Term        int            `json:"term"`
	Year        int            `json:"year"`
	Marks       []MarkResponse `json:"marks,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// StudentYearReportResponse 学生某年全部成绩单及均分
type StudentYearReportResponse struct {
	StudentID   string               `json:"student_id"`
	Year        int                  `json:"year"`
	ReportCards []ReportCardResponse `json:"report_cards"`
	Summary     AveragesResponse     `json:"summary"`
}
