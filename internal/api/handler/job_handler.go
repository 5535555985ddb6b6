package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"reportcard/internal/service"
	"reportcard/pkg/response"
)

// JobHandler 后台任务 HTTP 处理器
type JobHandler struct {
	jobSvc service.JobService
}

// NewJobHandler 创建 JobHandler
func NewJobHandler(jobSvc service.JobService) *JobHandler {
	return &JobHandler{jobSvc: jobSvc}
}

// GetJob 查询任务状态与结果
// GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	rec, err := h.jobSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFound(c, 16001, "任务不存在或已过期")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, rec)
}
