package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"reportcard/internal/dto"
	"reportcard/internal/service"
	"reportcard/pkg/response"
)

// SubjectHandler 科目模块 HTTP 处理器
type SubjectHandler struct {
	subjectSvc service.SubjectService
}

// NewSubjectHandler 创建 SubjectHandler
func NewSubjectHandler(subjectSvc service.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjectSvc: subjectSvc}
}

// ListSubjects 获取科目列表
// GET /api/v1/subjects
func (h *SubjectHandler) ListSubjects(c *gin.Context) {
	var req dto.SubjectListRequest
	if !bindQuery(c, &req) {
		return
	}

	subjects, total, err := h.subjectSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.OKPage(c, subjects, total, req.GetPage(), req.GetPageSize())
}

// GetSubject 获取科目详情
// GET /api/v1/subjects/:id
func (h *SubjectHandler) GetSubject(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	subject, err := h.subjectSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.OK(c, subject)
}

// CreateSubject 创建科目
// POST /api/v1/subjects
func (h *SubjectHandler) CreateSubject(c *gin.Context) {
	var req dto.CreateSubjectRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	subject, err := h.subjectSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.Created(c, subject)
}

// UpdateSubject 更新科目
// PUT /api/v1/subjects/:id
func (h *SubjectHandler) UpdateSubject(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateSubjectRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	subject, err := h.subjectSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.OK(c, subject)
}

// DeleteSubject 删除科目，受影响的学期汇总会重新计算
// DELETE /api/v1/subjects/:id
func (h *SubjectHandler) DeleteSubject(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.subjectSvc.Delete(c.Request.Context(), id); err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleSubjectError 统一处理科目模块业务错误
func (h *SubjectHandler) handleSubjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSubjectNotFound):
		response.NotFound(c, 13001, "科目不存在")
	case errors.Is(err, service.ErrSubjectCodeExists):
		response.Conflict(c, 13002, "科目代码已存在")
	default:
		response.InternalError(c)
	}
}
