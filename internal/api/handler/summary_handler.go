package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"reportcard/internal/dto"
	"reportcard/internal/model"
	"reportcard/internal/service"
	pkgerrors "reportcard/pkg/errors"
	"reportcard/pkg/response"
)

// SummaryHandler 学期汇总模块 HTTP 处理器
type SummaryHandler struct {
	summarySvc service.SummaryService
	jobSvc     service.JobService
}

// NewSummaryHandler 创建 SummaryHandler
func NewSummaryHandler(summarySvc service.SummaryService, jobSvc service.JobService) *SummaryHandler {
	return &SummaryHandler{summarySvc: summarySvc, jobSvc: jobSvc}
}

// ListSummaries 获取学期汇总列表
// GET /api/v1/summaries?student_id=&term=&year=&grade=
func (h *SummaryHandler) ListSummaries(c *gin.Context) {
	var req dto.SummaryListRequest
	if !bindQuery(c, &req) {
		return
	}

	summaries, total, err := h.summarySvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleSummaryError(c, err)
		return
	}

	response.OKPage(c, summaries, total, req.GetPage(), req.GetPageSize())
}

// GetSummary 获取单个学期汇总
// GET /api/v1/summaries/student/:student_id/term/:term/year/:year
func (h *SummaryHandler) GetSummary(c *gin.Context) {
	studentID, ok := pathUUID(c, "student_id")
	if !ok {
		return
	}
	term, ok := pathInt(c, "term")
	if !ok {
		return
	}
	year, ok := pathInt(c, "year")
	if !ok {
		return
	}

	key := model.TermKey{StudentID: studentID, Term: term, Year: year}
	summary, err := h.summarySvc.Get(c.Request.Context(), key)
	if err != nil {
		h.handleSummaryError(c, err)
		return
	}

	response.OK(c, summary)
}

// Recalculate 同步重算单个学期汇总
// POST /api/v1/summaries/recalculate
func (h *SummaryHandler) Recalculate(c *gin.Context) {
	var req dto.TermKeyRequest
	if !bindJSON(c, &req) {
		return
	}

	key := model.TermKey{StudentID: req.StudentID, Term: req.Term, Year: req.Year}
	result, err := h.summarySvc.Summarize(c.Request.Context(), key)
	if err != nil {
		h.handleSummaryError(c, err)
		return
	}

	if result.Created {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// EnqueueRecalculate 单个学期汇总入队，立即返回任务记录
// POST /api/v1/summaries/recalculate/jobs
func (h *SummaryHandler) EnqueueRecalculate(c *gin.Context) {
	var req dto.TermKeyRequest
	if !bindJSON(c, &req) {
		return
	}

	key := model.TermKey{StudentID: req.StudentID, Term: req.Term, Year: req.Year}
	rec, err := h.jobSvc.EnqueueSummarize(c.Request.Context(), key)
	if err != nil {
		h.handleSummaryError(c, err)
		return
	}

	response.Accepted(c, rec)
}

// RecalculateAll 全量汇总入队，立即返回任务记录
// POST /api/v1/summaries/recalculate-all
func (h *SummaryHandler) RecalculateAll(c *gin.Context) {
	rec, err := h.jobSvc.EnqueueSummarizeAll(c.Request.Context())
	if err != nil {
		h.handleSummaryError(c, err)
		return
	}

	response.Accepted(c, rec)
}

// GetAverages 同步计算学生年度分科与总体均分
// GET /api/v1/summaries/averages?student_id=&year=&term=
func (h *SummaryHandler) GetAverages(c *gin.Context) {
	var req dto.AveragesRequest
	if !bindQuery(c, &req) {
		return
	}

	result, err := h.summarySvc.SubjectAndOverallAverages(c.Request.Context(), req.StudentID, req.Year, req.Term)
	if err != nil {
		h.handleSummaryError(c, err)
		return
	}

	response.OK(c, result)
}

// EnqueueAverages 年度均分计算入队
// POST /api/v1/summaries/averages/jobs
func (h *SummaryHandler) EnqueueAverages(c *gin.Context) {
	var req dto.AveragesRequest
	if !bindJSON(c, &req) {
		return
	}

	rec, err := h.jobSvc.EnqueueYearAverages(c.Request.Context(), &req)
	if err != nil {
		h.handleSummaryError(c, err)
		return
	}

	response.Accepted(c, rec)
}

// handleSummaryError 统一处理学期汇总模块业务错误
func (h *SummaryHandler) handleSummaryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSummaryNotFound):
		response.NotFound(c, 15001, "学期汇总不存在")
	case errors.Is(err, service.ErrInvalidTerm):
		response.BadRequest(c, 15002, "学期必须为 1、2 或 3")
	case errors.Is(err, pkgerrors.ErrTransientStorage):
		response.ServiceUnavailable(c, 15003, "汇总写入冲突，请稍后重试")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 12001, "学生不存在")
	case errors.Is(err, service.ErrReportCardNotFound):
		response.NotFound(c, 14001, "成绩单不存在")
	case errors.Is(err, service.ErrJobsUnavailable):
		response.ServiceUnavailable(c, 16002, "后台任务暂不可用，请稍后重试")
	default:
		response.InternalError(c)
	}
}
