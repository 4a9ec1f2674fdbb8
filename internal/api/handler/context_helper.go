package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/jwt"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/response"
)

// 上下文键（由 JWTAuth 中间件写入）
const (
	CtxRegistrationNo = "registration_no"
	CtxRole           = "role"
	CtxDepartmentID   = "department_id"
)

// MustGetRegistrationNo 从 Gin 上下文中安全提取调用者学号。
// 如果 JWT 中间件未正确注入，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetRegistrationNo(c *gin.Context) (string, bool) {
	return mustGetString(c, CtxRegistrationNo)
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, CtxRole)
}

// GetDepartmentID 提取调用者所属院系（可能为空）
func GetDepartmentID(c *gin.Context) string {
	v, _ := c.Get(CtxDepartmentID)
	s, _ := v.(string)
	return s
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// ── 范围与越权校验 ──

// DepartmentResolver 查询参与者所属院系
type DepartmentResolver interface {
	DepartmentOf(ctx context.Context, regNo string) (string, error)
}

// resolveScope 确定批量操作的范围：
// 管理员可指定任意院系或全局；院系管理员只能操作本院系（未指定时默认本院系）
func resolveScope(c *gin.Context, requested string) (service.Scope, bool) {
	role, ok := MustGetRole(c)
	if !ok {
		return service.Scope{}, false
	}
	switch role {
	case jwt.RoleAdmin:
		return service.Scope{DepartmentID: requested}, true
	case jwt.RoleDepartmentAdmin:
		own := GetDepartmentID(c)
		if own == "" || (requested != "" && requested != own) {
			response.Forbidden(c, 10003, "只能操作本院系")
			return service.Scope{}, false
		}
		return service.Scope{DepartmentID: own}, true
	default:
		response.Forbidden(c, 10003, "无权限访问")
		return service.Scope{}, false
	}
}

// authorizeParticipant 校验调用者能否访问 regNo 的数据：
// 本人、管理员、参与者所属院系的院系管理员
func authorizeParticipant(c *gin.Context, resolver DepartmentResolver, regNo string) bool {
	self, ok := MustGetRegistrationNo(c)
	if !ok {
		return false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return false
	}
	if role == jwt.RoleAdmin || self == regNo {
		return true
	}
	if role != jwt.RoleDepartmentAdmin {
		response.Forbidden(c, 10003, "无权访问该参与者")
		return false
	}

	dept, err := resolver.DepartmentOf(c.Request.Context(), regNo)
	if err != nil {
		if errors.Is(err, service.ErrParticipantNotFound) {
			response.NotFound(c, 11001, "参与者不存在")
			return false
		}
		response.InternalError(c)
		return false
	}
	if dept == "" || dept != GetDepartmentID(c) {
		response.Forbidden(c, 10003, "只能操作本院系")
		return false
	}
	return true
}

// bindScopeBody 解析批量操作请求体；空请求体视为全局范围
func bindScopeBody(c *gin.Context) (dto.ScopeRequest, bool) {
	var req dto.ScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return req, false
	}
	return req, true
}

// isManager 管理员或院系管理员
func isManager(c *gin.Context) bool {
	role, _ := c.Get(CtxRole)
	return role == jwt.RoleAdmin || role == jwt.RoleDepartmentAdmin
}
