package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/jwt"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/response"
)

// ActivityHandler 会话 / 测验 / 评价 HTTP 处理器
// 写操作均以当前登录者身份进行
type ActivityHandler struct {
	activitySvc service.ActivityService
	resolver    DepartmentResolver
}

// NewActivityHandler 创建 ActivityHandler
func NewActivityHandler(activitySvc service.ActivityService, resolver DepartmentResolver) *ActivityHandler {
	return &ActivityHandler{activitySvc: activitySvc, resolver: resolver}
}

// ── 会话 ──

// CreateSession 导师为自己的学员创建会话
// POST /api/v1/sessions
func (h *ActivityHandler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	mentorID, ok := MustGetRegistrationNo(c)
	if !ok {
		return
	}

	session, err := h.activitySvc.CreateSession(c.Request.Context(), mentorID, &req)
	if err != nil {
		h.handleActivityError(c, err)
		return
	}

	response.Created(c, session)
}

// DeleteSession 删除会话（主持导师或管理员）
// DELETE /api/v1/sessions/:id
func (h *ActivityHandler) DeleteSession(c *gin.Context) {
	callerID, ok := MustGetRegistrationNo(c)
	if !ok {
		return
	}
	role, _ := MustGetRole(c)

	if err := h.activitySvc.DeleteSession(c.Request.Context(), c.Param("id"), callerID, role == jwt.RoleAdmin); err != nil {
		h.handleActivityError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListSessions 参与者主持或参加的会话
// GET /api/v1/participants/:reg_no/sessions
func (h *ActivityHandler) ListSessions(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.resolver, regNo) {
		return
	}

	list, err := h.activitySvc.ListSessions(c.Request.Context(), regNo)
	if err != nil {
		h.handleActivityError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ── 测验 ──

// AssignQuiz 导师给学员布置测验
// POST /api/v1/quizzes
func (h *ActivityHandler) AssignQuiz(c *gin.Context) {
	var req dto.AssignQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	mentorID, ok := MustGetRegistrationNo(c)
	if !ok {
		return
	}

	quiz, err := h.activitySvc.AssignQuiz(c.Request.Context(), mentorID, &req)
	if err != nil {
		h.handleActivityError(c, err)
		return
	}

	response.Created(c, quiz)
}

// CompleteQuiz 学员提交测验得分
// PUT /api/v1/quizzes/:id/complete
func (h *ActivityHandler) CompleteQuiz(c *gin.Context) {
	var req dto.CompleteQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	regNo, ok := MustGetRegistrationNo(c)
	if !ok {
		return
	}

	quiz, err := h.activitySvc.CompleteQuiz(c.Request.Context(), c.Param("id"), regNo, &req)
	if err != nil {
		h.handleActivityError(c, err)
		return
	}

	response.OK(c, quiz)
}

// ListQuizzes 参与者的测验
// GET /api/v1/participants/:reg_no/quizzes
func (h *ActivityHandler) ListQuizzes(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.resolver, regNo) {
		return
	}

	list, err := h.activitySvc.ListQuizzes(c.Request.Context(), regNo)
	if err != nil {
		h.handleActivityError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ── 评价 ──

// SubmitFeedback 评价自己的导师或学员
// POST /api/v1/feedback
func (h *ActivityHandler) SubmitFeedback(c *gin.Context) {
	var req dto.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	fromID, ok := MustGetRegistrationNo(c)
	if !ok {
		return
	}

	fb, err := h.activitySvc.SubmitFeedback(c.Request.Context(), fromID, &req)
	if err != nil {
		h.handleActivityError(c, err)
		return
	}

	response.Created(c, fb)
}

// ListFeedback 参与者收到的评价
// GET /api/v1/participants/:reg_no/feedback
func (h *ActivityHandler) ListFeedback(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.resolver, regNo) {
		return
	}

	list, err := h.activitySvc.ListFeedback(c.Request.Context(), regNo)
	if err != nil {
		h.handleActivityError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// handleActivityError 统一处理活动模块业务错误
func (h *ActivityHandler) handleActivityError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 17001, "会话不存在")
	case errors.Is(err, service.ErrQuizNotFound):
		response.NotFound(c, 17002, "测验不存在")
	case errors.Is(err, service.ErrNotYourMentee):
		response.Forbidden(c, 17003, "对方不是你的学员")
	case errors.Is(err, service.ErrNotRelated):
		response.Forbidden(c, 17004, "只能评价自己的导师或学员")
	case errors.Is(err, service.ErrSelfFeedback):
		response.BadRequest(c, 17005, "不能评价自己")
	case errors.Is(err, service.ErrQuizNotPending):
		response.Conflict(c, 17006, "测验已完成或已过期")
	case errors.Is(err, service.ErrQuizScoreTooHigh):
		response.BadRequest(c, 17007, "得分不能超过题目总数")
	case errors.Is(err, service.ErrActivityForbidden):
		response.Forbidden(c, 17008, "无权操作该记录")
	default:
		response.InternalError(c)
	}
}
