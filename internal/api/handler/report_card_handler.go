package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"reportcard/internal/dto"
	"reportcard/internal/service"
	"reportcard/pkg/response"
)

// ReportCardHandler 成绩单模块 HTTP 处理器
type ReportCardHandler struct {
	reportCardSvc service.ReportCardService
}

// NewReportCardHandler 创建 ReportCardHandler
func NewReportCardHandler(reportCardSvc service.ReportCardService) *ReportCardHandler {
	return &ReportCardHandler{reportCardSvc: reportCardSvc}
}

// ListReportCards 获取成绩单列表
// GET /api/v1/report-cards?student_id=&term=&year=
func (h *ReportCardHandler) ListReportCards(c *gin.Context) {
	var req dto.ReportCardListRequest
	if !bindQuery(c, &req) {
		return
	}

	cards, total, err := h.reportCardSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleReportCardError(c, err)
		return
	}

	response.OKPage(c, cards, total, req.GetPage(), req.GetPageSize())
}

// GetReportCard 获取成绩单详情（含成绩）
// GET /api/v1/report-cards/:id
func (h *ReportCardHandler) GetReportCard(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	card, err := h.reportCardSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleReportCardError(c, err)
		return
	}

	response.OK(c, card)
}

// CreateReportCard 创建成绩单
// POST /api/v1/report-cards
func (h *ReportCardHandler) CreateReportCard(c *gin.Context) {
	var req dto.CreateReportCardRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	card, err := h.reportCardSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleReportCardError(c, err)
		return
	}

	response.Created(c, card)
}

// UpdateMarks 按科目新增或覆盖成绩
// PATCH /api/v1/report-cards/:id/marks
func (h *ReportCardHandler) UpdateMarks(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateMarksRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	card, err := h.reportCardSvc.UpdateMarks(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleReportCardError(c, err)
		return
	}

	response.OK(c, card)
}

// DeleteMark 删除单科成绩
// DELETE /api/v1/report-cards/:id/marks/:subject_id
func (h *ReportCardHandler) DeleteMark(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	subjectID, ok := pathUUID(c, "subject_id")
	if !ok {
		return
	}
	if err := h.reportCardSvc.DeleteMark(c.Request.Context(), id, subjectID); err != nil {
		h.handleReportCardError(c, err)
		return
	}

	response.OK(c, nil)
}

// DeleteReportCard 删除成绩单及其汇总
// DELETE /api/v1/report-cards/:id
func (h *ReportCardHandler) DeleteReportCard(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.reportCardSvc.Delete(c.Request.Context(), id); err != nil {
		h.handleReportCardError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetStudentYear 学生年度成绩单及均分
// GET /api/v1/report-cards/student/:student_id/year/:year
func (h *ReportCardHandler) GetStudentYear(c *gin.Context) {
	studentID, ok := pathUUID(c, "student_id")
	if !ok {
		return
	}
	year, ok := pathInt(c, "year")
	if !ok {
		return
	}

	result, err := h.reportCardSvc.StudentYear(c.Request.Context(), studentID, year)
	if err != nil {
		h.handleReportCardError(c, err)
		return
	}

	response.OK(c, result)
}

// handleReportCardError 统一处理成绩单模块业务错误
func (h *ReportCardHandler) handleReportCardError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrReportCardNotFound):
		response.NotFound(c, 14001, "成绩单不存在")
	case errors.Is(err, service.ErrReportCardExists):
		response.Conflict(c, 14002, "该学生本学期成绩单已存在")
	case errors.Is(err, service.ErrMarkNotFound):
		response.NotFound(c, 14003, "成绩不存在")
	case errors.Is(err, service.ErrInvalidScore):
		response.BadRequest(c, 14004, "分数必须在 0 到 100 之间且至多两位小数")
	case errors.Is(err, service.ErrDuplicateSubject):
		response.BadRequest(c, 14005, "同一成绩单中科目不能重复")
	case errors.Is(err, service.ErrInvalidTerm):
		response.BadRequest(c, 15002, "学期必须为 1、2 或 3")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 12001, "学生不存在")
	case errors.Is(err, service.ErrSubjectNotFound):
		response.NotFound(c, 13001, "科目不存在")
	default:
		response.InternalError(c)
	}
}
