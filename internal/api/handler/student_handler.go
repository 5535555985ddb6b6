package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"reportcard/internal/dto"
	"reportcard/internal/service"
	"reportcard/pkg/response"
)

// StudentHandler 学生模块 HTTP 处理器
type StudentHandler struct {
	studentSvc service.StudentService
}

// NewStudentHandler 创建 StudentHandler
func NewStudentHandler(studentSvc service.StudentService) *StudentHandler {
	return &StudentHandler{studentSvc: studentSvc}
}

// ListStudents 获取学生列表
// GET /api/v1/students
func (h *StudentHandler) ListStudents(c *gin.Context) {
	var req dto.StudentListRequest
	if !bindQuery(c, &req) {
		return
	}

	students, total, err := h.studentSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.OKPage(c, students, total, req.GetPage(), req.GetPageSize())
}

// GetStudent 获取学生详情
// GET /api/v1/students/:id
func (h *StudentHandler) GetStudent(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	student, err := h.studentSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.OK(c, student)
}

// CreateStudent 创建学生
// POST /api/v1/students
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	var req dto.CreateStudentRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	student, err := h.studentSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.Created(c, student)
}

// UpdateStudent 更新学生
// PUT /api/v1/students/:id
func (h *StudentHandler) UpdateStudent(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStudentRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	student, err := h.studentSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.OK(c, student)
}

// DeleteStudent 删除学生（级联删除成绩单、成绩与汇总）
// DELETE /api/v1/students/:id
func (h *StudentHandler) DeleteStudent(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.studentSvc.Delete(c.Request.Context(), id); err != nil {
		h.handleStudentError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleStudentError 统一处理学生模块业务错误
func (h *StudentHandler) handleStudentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 12001, "学生不存在")
	case errors.Is(err, service.ErrStudentEmailExists):
		response.Conflict(c, 12002, "邮箱已被其他学生使用")
	case errors.Is(err, service.ErrStudentDOBInvalid):
		response.BadRequest(c, 12003, "出生日期无效")
	default:
		response.InternalError(c)
	}
}
