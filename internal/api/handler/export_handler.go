package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"reportcard/internal/dto"
	"reportcard/internal/service"
	"reportcard/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSummaries 导出学期汇总
// GET /api/v1/export/summaries?year=&term=
func (h *ExportHandler) ExportSummaries(c *gin.Context) {
	var req dto.ExportSummariesRequest
	if !bindQuery(c, &req) {
		return
	}

	buf, filename, err := h.exportSvc.ExportSummaries(c.Request.Context(), req.Year, req.Term)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoSummaries):
		response.NotFound(c, 17001, "没有可导出的学期汇总")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.Error(c, http.StatusInternalServerError, 17002, "生成 Excel 文件失败")
	default:
		response.InternalError(c)
	}
}
