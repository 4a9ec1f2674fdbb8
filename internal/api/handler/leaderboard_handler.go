package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/response"
)

// syncTriggerAPI 手动触发排行榜同步的来源标记
const syncTriggerAPI = "api"

// LeaderboardHandler 排行榜与徽章 HTTP 处理器
type LeaderboardHandler struct {
	leaderboardSvc service.LeaderboardService
	badgeSvc       service.BadgeService
	resolver       DepartmentResolver
}

// NewLeaderboardHandler 创建 LeaderboardHandler
func NewLeaderboardHandler(
	leaderboardSvc service.LeaderboardService,
	badgeSvc service.BadgeService,
	resolver DepartmentResolver,
) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardSvc: leaderboardSvc, badgeSvc: badgeSvc, resolver: resolver}
}

// ── 排行榜 ──

// GetLeaderboard 读取排行榜（所有登录用户可见）
// GET /api/v1/leaderboard?department_id=&limit=
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	var req dto.LeaderboardQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	entries, err := h.leaderboardSvc.Leaderboard(c.Request.Context(), service.Scope{DepartmentID: req.DepartmentID}, req.Limit)
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.OK(c, gin.H{"list": entries})
}

// SyncLeaderboard 重新计算范围内积分并补发徽章
// POST /api/v1/leaderboard/sync
func (h *LeaderboardHandler) SyncLeaderboard(c *gin.Context) {
	req, ok := bindScopeBody(c)
	if !ok {
		return
	}

	scope, ok := resolveScope(c, req.DepartmentID)
	if !ok {
		return
	}

	entries, err := h.leaderboardSvc.Sync(c.Request.Context(), scope, syncTriggerAPI)
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.OK(c, gin.H{"list": entries})
}

// GetBreakdown 单个参与者的实时积分分项
// GET /api/v1/participants/:reg_no/score
func (h *LeaderboardHandler) GetBreakdown(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.resolver, regNo) {
		return
	}

	entry, err := h.leaderboardSvc.Breakdown(c.Request.Context(), regNo)
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.OK(c, entry)
}

// ── 徽章目录 ──

// ListBadges 徽章目录
// GET /api/v1/badges
func (h *LeaderboardHandler) ListBadges(c *gin.Context) {
	list, err := h.badgeSvc.ListBadges(c.Request.Context())
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateBadge 新建徽章
// POST /api/v1/badges
func (h *LeaderboardHandler) CreateBadge(c *gin.Context) {
	var req dto.CreateBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	callerID, _ := MustGetRegistrationNo(c)
	badge, err := h.badgeSvc.CreateBadge(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.Created(c, badge)
}

// AwardBadge 手动授予徽章
// POST /api/v1/badges/awards
func (h *LeaderboardHandler) AwardBadge(c *gin.Context) {
	var req dto.AwardBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !authorizeParticipant(c, h.resolver, req.ParticipantID) {
		return
	}

	award, err := h.badgeSvc.Award(c.Request.Context(), &req)
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.Created(c, award)
}

// DeleteAward 撤销授予记录（已领取时同步扣减徽章数）
// DELETE /api/v1/badges/awards/:award_id
func (h *LeaderboardHandler) DeleteAward(c *gin.Context) {
	if err := h.badgeSvc.DeleteAward(c.Request.Context(), c.Param("award_id")); err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.OK(c, nil)
}

// ── 参与者徽章 ──

// UpdatePoints 直接设定积分并按阈值补发徽章
// PUT /api/v1/participants/:reg_no/points
func (h *LeaderboardHandler) UpdatePoints(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.resolver, regNo) {
		return
	}

	var req dto.UpdatePointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.badgeSvc.UpdateLeaderboardPoints(c.Request.Context(), regNo, req.Points)
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.OK(c, result)
}

// ListAwards 参与者的徽章授予记录
// GET /api/v1/participants/:reg_no/badges
func (h *LeaderboardHandler) ListAwards(c *gin.Context) {
	regNo := c.Param("reg_no")
	if !authorizeParticipant(c, h.resolver, regNo) {
		return
	}

	list, err := h.badgeSvc.ListAwards(c.Request.Context(), regNo)
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ClaimBadge 领取徽章（仅本人）
// POST /api/v1/me/badges/:award_id/claim
func (h *LeaderboardHandler) ClaimBadge(c *gin.Context) {
	regNo, ok := MustGetRegistrationNo(c)
	if !ok {
		return
	}

	result, err := h.badgeSvc.Claim(c.Request.Context(), regNo, c.Param("award_id"))
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.OK(c, result)
}

// UnclaimBadge 取消领取（仅本人）
// POST /api/v1/me/badges/:award_id/unclaim
func (h *LeaderboardHandler) UnclaimBadge(c *gin.Context) {
	regNo, ok := MustGetRegistrationNo(c)
	if !ok {
		return
	}

	result, err := h.badgeSvc.Unclaim(c.Request.Context(), regNo, c.Param("award_id"))
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.OK(c, result)
}

// ShareBadge 标记已分享到 LinkedIn
// POST /api/v1/me/badges/:award_id/share
func (h *LeaderboardHandler) ShareBadge(c *gin.Context) {
	regNo, ok := MustGetRegistrationNo(c)
	if !ok {
		return
	}

	award, err := h.badgeSvc.MarkShared(c.Request.Context(), regNo, c.Param("award_id"))
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	response.OK(c, award)
}

// handleLeaderboardError 统一处理排行榜 / 徽章模块业务错误
func (h *LeaderboardHandler) handleLeaderboardError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrBadgeNotFound):
		response.NotFound(c, 14001, "徽章不存在")
	case errors.Is(err, service.ErrBadgeExists):
		response.Conflict(c, 14002, "同名徽章已存在")
	case errors.Is(err, service.ErrBadgeAlreadyAwarded):
		response.Conflict(c, 14003, "该参与者已获得此徽章")
	case errors.Is(err, service.ErrBadgeNotAwarded):
		response.NotFound(c, 14004, "徽章授予记录不存在")
	case errors.Is(err, service.ErrBadgeAlreadyClaimed):
		response.Conflict(c, 14005, "徽章已领取")
	case errors.Is(err, service.ErrBadgeNotClaimed):
		response.BadRequest(c, 14006, "徽章尚未领取")
	default:
		response.InternalError(c)
	}
}
