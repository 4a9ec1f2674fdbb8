package handler

import (
	"bytes"
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/response"
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

// ExportLeaderboard 导出排行榜
// GET /api/v1/export/leaderboard?department_id=xxx
func (h *ExportHandler) ExportLeaderboard(c *gin.Context) {
	h.export(c, h.exportSvc.ExportLeaderboard)
}

// ExportRelationships 导出导师-学员关系
// GET /api/v1/export/relationships?department_id=xxx
func (h *ExportHandler) ExportRelationships(c *gin.Context) {
	h.export(c, h.exportSvc.ExportRelationships)
}

func (h *ExportHandler) export(c *gin.Context, fn func(ctx context.Context, scope service.Scope) (*bytes.Buffer, string, error)) {
	var req dto.ScopeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	scope, ok := resolveScope(c, req.DepartmentID)
	if !ok {
		return
	}

	buf, filename, err := fn(c.Request.Context(), scope)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, filename, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	response.InternalError(c)
}
