package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/response"
)

// MatchingHandler 匹配与导师-学员关系 HTTP 处理器
type MatchingHandler struct {
	matchingSvc     service.MatchingService
	relationshipSvc service.RelationshipService
	resolver        DepartmentResolver
}

// NewMatchingHandler 创建 MatchingHandler
func NewMatchingHandler(
	matchingSvc service.MatchingService,
	relationshipSvc service.RelationshipService,
	resolver DepartmentResolver,
) *MatchingHandler {
	return &MatchingHandler{matchingSvc: matchingSvc, relationshipSvc: relationshipSvc, resolver: resolver}
}

// RunMatching 对指定范围执行一次匹配
// POST /api/v1/matching/run
func (h *MatchingHandler) RunMatching(c *gin.Context) {
	req, ok := bindScopeBody(c)
	if !ok {
		return
	}

	scope, ok := resolveScope(c, req.DepartmentID)
	if !ok {
		return
	}
	callerID, _ := MustGetRegistrationNo(c)

	result, err := h.matchingSvc.Run(c.Request.Context(), scope, callerID)
	if err != nil {
		h.handleMatchingError(c, err)
		return
	}

	response.OK(c, result)
}

// CreateRelationship 手动建立关系
// POST /api/v1/relationships
func (h *MatchingHandler) CreateRelationship(c *gin.Context) {
	var req dto.CreateRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !authorizeParticipant(c, h.resolver, req.MenteeID) {
		return
	}

	callerID, _ := MustGetRegistrationNo(c)
	rel, err := h.relationshipSvc.CreateManual(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleMatchingError(c, err)
		return
	}

	response.Created(c, rel)
}

// ListRelationships 范围内的全部关系
// GET /api/v1/relationships
func (h *MatchingHandler) ListRelationships(c *gin.Context) {
	var req dto.ScopeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	scope, ok := resolveScope(c, req.DepartmentID)
	if !ok {
		return
	}

	list, err := h.relationshipSvc.List(c.Request.Context(), scope)
	if err != nil {
		h.handleMatchingError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetRelationship 关系详情
// GET /api/v1/relationships/:id
func (h *MatchingHandler) GetRelationship(c *gin.Context) {
	rel, ok := h.loadRelationship(c)
	if !ok {
		return
	}
	response.OK(c, rel)
}

// DeleteRelationship 解除关系
// DELETE /api/v1/relationships/:id
func (h *MatchingHandler) DeleteRelationship(c *gin.Context) {
	rel, ok := h.loadRelationship(c)
	if !ok {
		return
	}

	callerID, _ := MustGetRegistrationNo(c)
	if err := h.relationshipSvc.Delete(c.Request.Context(), rel.RelationshipID, callerID); err != nil {
		h.handleMatchingError(c, err)
		return
	}

	response.OK(c, nil)
}

// loadRelationship 读取关系并按学员所在院系做越权校验
func (h *MatchingHandler) loadRelationship(c *gin.Context) (*dto.RelationshipResponse, bool) {
	rel, err := h.relationshipSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleMatchingError(c, err)
		return nil, false
	}
	if rel.Mentee != nil && !authorizeParticipant(c, h.resolver, rel.Mentee.RegistrationNo) {
		return nil, false
	}
	return rel, true
}

// ListMentees 导师名下学员
// GET /api/v1/participants/:reg_no/mentees
func (h *MatchingHandler) ListMentees(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.resolver, regNo) {
		return
	}

	list, err := h.relationshipSvc.ListByMentor(c.Request.Context(), regNo)
	if err != nil {
		h.handleMatchingError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetMentor 学员的导师
// GET /api/v1/participants/:reg_no/mentor
func (h *MatchingHandler) GetMentor(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.resolver, regNo) {
		return
	}

	mentor, err := h.relationshipSvc.GetMentor(c.Request.Context(), regNo)
	if err != nil {
		h.handleMatchingError(c, err)
		return
	}

	response.OK(c, mentor)
}

// handleMatchingError 统一处理匹配 / 关系模块业务错误
func (h *MatchingHandler) handleMatchingError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrNoEligibleParticipants):
		response.BadRequest(c, 12002, "范围内没有可参与匹配的导师或学员")
	case errors.Is(err, service.ErrRelationshipNotFound):
		response.NotFound(c, 12003, "导师-学员关系不存在")
	case errors.Is(err, service.ErrRelationshipExists):
		response.Conflict(c, 12004, "该导师与学员已建立关系")
	case errors.Is(err, service.ErrMenteeAlreadyMatched):
		response.Conflict(c, 12005, "该学员已有导师")
	case errors.Is(err, service.ErrMentorAtCapacity):
		response.Conflict(c, 12006, "导师名下学员已满")
	case errors.Is(err, service.ErrSelfRelationship):
		response.BadRequest(c, 12007, "导师与学员不能是同一人")
	case errors.Is(err, service.ErrParticipantIneligible):
		response.BadRequest(c, 12008, "参与者未通过审核或已停用")
	case errors.Is(err, service.ErrRoleMismatch):
		response.BadRequest(c, 12009, "参与者的导师/学员意向与所选角色不符")
	case errors.Is(err, service.ErrNoMentor):
		response.NotFound(c, 12010, "该学员暂未分配导师")
	default:
		response.InternalError(c)
	}
}
