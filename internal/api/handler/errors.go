package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/response"
)

// scopeBusyRetry 匹配与归档通常在数秒内完成
const scopeBusyRetry = 5 * time.Second

// handleCommonError 处理跨模块共享的业务错误，已写入响应时返回 true
func handleCommonError(c *gin.Context, err error) bool {
	var pending *service.PendingApprovalError
	switch {
	case errors.As(err, &pending):
		response.ErrorWithDetails(c, http.StatusConflict, 12001, pending.Error(), strings.Join(pending.RegistrationNos, ","))
	case errors.Is(err, service.ErrScopeBusy):
		response.Busy(c, 19001, "该范围正在处理其他批量操作，请稍后重试", scopeBusyRetry)
	case errors.Is(err, service.ErrParticipantNotFound):
		response.NotFound(c, 11001, "参与者不存在")
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.NotFound(c, 13001, "院系不存在")
	default:
		return false
	}
	return true
}
