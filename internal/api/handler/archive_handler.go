package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/response"
)

// ArchiveHandler 学期归档 HTTP 处理器
type ArchiveHandler struct {
	archiveSvc service.ArchiveService
	resolver   DepartmentResolver
}

// NewArchiveHandler 创建 ArchiveHandler
func NewArchiveHandler(archiveSvc service.ArchiveService, resolver DepartmentResolver) *ArchiveHandler {
	return &ArchiveHandler{archiveSvc: archiveSvc, resolver: resolver}
}

// Archive 归档范围内本学期数据并重置
// POST /api/v1/archive
func (h *ArchiveHandler) Archive(c *gin.Context) {
	req, ok := bindScopeBody(c)
	if !ok {
		return
	}

	scope, ok := resolveScope(c, req.DepartmentID)
	if !ok {
		return
	}
	callerID, _ := MustGetRegistrationNo(c)

	result, err := h.archiveSvc.Archive(c.Request.Context(), scope, callerID)
	if err != nil {
		h.handleArchiveError(c, err)
		return
	}

	response.OK(c, result)
}

// History 参与者历史归档
// GET /api/v1/participants/:reg_no/history
func (h *ArchiveHandler) History(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.resolver, regNo) {
		return
	}

	list, err := h.archiveSvc.History(c.Request.Context(), regNo)
	if err != nil {
		h.handleArchiveError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// handleArchiveError 归档模块只有共享错误
func (h *ArchiveHandler) handleArchiveError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	response.InternalError(c)
}
