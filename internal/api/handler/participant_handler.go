package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/jwt"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/response"
)

// ParticipantHandler 参与者模块 HTTP 处理器
type ParticipantHandler struct {
	participantSvc service.ParticipantService
}

// NewParticipantHandler 创建 ParticipantHandler
func NewParticipantHandler(participantSvc service.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participantSvc: participantSvc}
}

// Register 报名
// POST /api/v1/participants
// 学生只能以自己的学号报名；管理员可代为报名
func (h *ParticipantHandler) Register(c *gin.Context) {
	var req dto.RegisterParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	callerID, ok := MustGetRegistrationNo(c)
	if !ok {
		return
	}
	if !isManager(c) && callerID != req.RegistrationNo {
		response.Forbidden(c, 10003, "只能以本人学号报名")
		return
	}

	resp, err := h.participantSvc.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.Created(c, resp)
}

// GetMe 当前登录者的报名资料
// GET /api/v1/participants/me
func (h *ParticipantHandler) GetMe(c *gin.Context) {
	regNo, ok := MustGetRegistrationNo(c)
	if !ok {
		return
	}

	resp, err := h.participantSvc.Get(c.Request.Context(), regNo)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OK(c, resp)
}

// GetParticipant 参与者详情
// GET /api/v1/participants/:reg_no
func (h *ParticipantHandler) GetParticipant(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.participantSvc, regNo) {
		return
	}

	resp, err := h.participantSvc.Get(c.Request.Context(), regNo)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OK(c, resp)
}

// ListParticipants 参与者列表（院系管理员只能看到本院系）
// GET /api/v1/participants
func (h *ParticipantHandler) ListParticipants(c *gin.Context) {
	var req dto.ParticipantListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	scope, ok := resolveScope(c, req.DepartmentID)
	if !ok {
		return
	}
	req.DepartmentID = scope.DepartmentID

	list, total, err := h.participantSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// UpdateProfile 更新资料（本人或管理员）
// PUT /api/v1/participants/:reg_no
func (h *ParticipantHandler) UpdateProfile(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.participantSvc, regNo) {
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	callerID, _ := MustGetRegistrationNo(c)
	resp, err := h.participantSvc.UpdateProfile(c.Request.Context(), regNo, &req, callerID)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OK(c, resp)
}

// Approve 审批通过
// PUT /api/v1/participants/:reg_no/approve
func (h *ParticipantHandler) Approve(c *gin.Context) {
	h.transition(c, h.participantSvc.Approve)
}

// Reject 驳回
// PUT /api/v1/participants/:reg_no/reject
func (h *ParticipantHandler) Reject(c *gin.Context) {
	h.transition(c, h.participantSvc.Reject)
}

// Deactivate 停用（同时解除其全部关系）
// PUT /api/v1/participants/:reg_no/deactivate
func (h *ParticipantHandler) Deactivate(c *gin.Context) {
	h.transition(c, h.participantSvc.Deactivate)
}

// Reactivate 重新启用
// PUT /api/v1/participants/:reg_no/reactivate
func (h *ParticipantHandler) Reactivate(c *gin.Context) {
	h.transition(c, h.participantSvc.Reactivate)
}

// transition 审批 / 启停用的公共流程：越权校验 → 调用 → 响应
func (h *ParticipantHandler) transition(
	c *gin.Context,
	fn func(ctx context.Context, regNo, callerID string) (*dto.ParticipantResponse, error),
) {
	regNo := c.Param("reg_no")
	if !isManager(c) {
		response.Forbidden(c, 10003, "无权限访问")
		return
	}
	if !authorizeParticipant(c, h.participantSvc, regNo) {
		return
	}

	callerID, _ := MustGetRegistrationNo(c)
	resp, err := fn(c.Request.Context(), regNo, callerID)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OK(c, resp)
}

// DeleteParticipant 删除参与者（历史归档保留）
// DELETE /api/v1/participants/:reg_no
func (h *ParticipantHandler) DeleteParticipant(c *gin.Context) {
	role, ok := MustGetRole(c)
	if !ok {
		return
	}
	if role != jwt.RoleAdmin {
		response.Forbidden(c, 10003, "无权限访问")
		return
	}

	if err := h.participantSvc.Delete(c.Request.Context(), c.Param("reg_no")); err != nil {
		h.handleParticipantError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleParticipantError 统一处理参与者模块业务错误
func (h *ParticipantHandler) handleParticipantError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrParticipantExists):
		response.Conflict(c, 11002, "该学号已报名")
	case errors.Is(err, service.ErrInvalidApproval):
		response.BadRequest(c, 11003, "当前审批状态不允许该操作")
	case errors.Is(err, service.ErrParticipantInactive):
		response.BadRequest(c, 11004, "参与者已停用")
	case errors.Is(err, service.ErrVersionConflict):
		response.Conflict(c, 11005, "资料已被他人修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
