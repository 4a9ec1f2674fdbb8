package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/config"
	"github.com/Makarand-Tighare/project-api-sub000/internal/api/handler"
	"github.com/Makarand-Tighare/project-api-sub000/internal/api/middleware"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/jwt"
)

const (
	maxBodyBytes = 1 << 20 // 1MB

	// 批量操作（匹配 / 同步 / 归档）每人每分钟上限
	bulkRateLimit  = 10
	bulkRateWindow = time.Minute
)

// HealthChecker 健康检查依赖（数据库、Redis）
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options 路由可选依赖
type Options struct {
	Limiter middleware.RateLimiter // 可为 nil
	Health  map[string]HealthChecker
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, opts Options, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger, "/health", cfg.Metrics.Path))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS))
	r.Use(middleware.BodyLimit(maxBodyBytes))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics())
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// ── 健康检查 ──
	r.GET("/health", healthHandler(opts.Health))

	admins := middleware.RoleAuth(jwt.RoleAdmin)
	managers := middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleDepartmentAdmin)
	bulkLimit := middleware.RateLimit(opts.Limiter, bulkRateLimit, bulkRateWindow)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtMgr))
	{
		// 院系
		departments := authorized.Group("/departments")
		{
			departments.GET("", h.Department.ListDepartments)
			departments.GET("/:id", h.Department.GetDepartment)
			departments.POST("", admins, h.Department.CreateDepartment)
		}

		// 参与者（越权校验在 handler 内按院系完成）
		participants := authorized.Group("/participants")
		{
			participants.POST("", h.Participant.Register)
			participants.GET("", managers, h.Participant.ListParticipants)
			participants.GET("/me", h.Participant.GetMe)
			participants.GET("/:reg_no", h.Participant.GetParticipant)
			participants.PUT("/:reg_no", h.Participant.UpdateProfile)
			participants.DELETE("/:reg_no", admins, h.Participant.DeleteParticipant)
			participants.PUT("/:reg_no/approve", managers, h.Participant.Approve)
			participants.PUT("/:reg_no/reject", managers, h.Participant.Reject)
			participants.PUT("/:reg_no/deactivate", managers, h.Participant.Deactivate)
			participants.PUT("/:reg_no/reactivate", managers, h.Participant.Reactivate)

			participants.GET("/:reg_no/mentor", h.Matching.GetMentor)
			participants.GET("/:reg_no/mentees", h.Matching.ListMentees)
			participants.GET("/:reg_no/score", h.Leaderboard.GetBreakdown)
			participants.GET("/:reg_no/badges", h.Leaderboard.ListAwards)
			participants.PUT("/:reg_no/points", managers, h.Leaderboard.UpdatePoints)
			participants.GET("/:reg_no/history", h.Archive.History)
			participants.GET("/:reg_no/sessions", h.Activity.ListSessions)
			participants.GET("/:reg_no/quizzes", h.Activity.ListQuizzes)
			participants.GET("/:reg_no/feedback", h.Activity.ListFeedback)
		}

		// 匹配与关系
		authorized.POST("/matching/run", managers, bulkLimit, h.Matching.RunMatching)
		relationships := authorized.Group("/relationships", managers)
		{
			relationships.GET("", h.Matching.ListRelationships)
			relationships.POST("", h.Matching.CreateRelationship)
			relationships.GET("/:id", h.Matching.GetRelationship)
			relationships.DELETE("/:id", h.Matching.DeleteRelationship)
		}

		// 排行榜与徽章
		authorized.GET("/leaderboard", h.Leaderboard.GetLeaderboard)
		authorized.POST("/leaderboard/sync", managers, bulkLimit, h.Leaderboard.SyncLeaderboard)
		badges := authorized.Group("/badges")
		{
			badges.GET("", h.Leaderboard.ListBadges)
			badges.POST("", admins, h.Leaderboard.CreateBadge)
			badges.POST("/awards", managers, h.Leaderboard.AwardBadge)
			badges.DELETE("/awards/:award_id", admins, h.Leaderboard.DeleteAward)
		}

		// 本人操作
		me := authorized.Group("/me")
		{
			me.POST("/badges/:award_id/claim", h.Leaderboard.ClaimBadge)
			me.POST("/badges/:award_id/unclaim", h.Leaderboard.UnclaimBadge)
			me.POST("/badges/:award_id/share", h.Leaderboard.ShareBadge)
		}

		// 学期归档
		authorized.POST("/archive", managers, bulkLimit, h.Archive.Archive)

		// 会话 / 测验 / 评价
		authorized.POST("/sessions", h.Activity.CreateSession)
		authorized.DELETE("/sessions/:id", h.Activity.DeleteSession)
		authorized.POST("/quizzes", h.Activity.AssignQuiz)
		authorized.PUT("/quizzes/:id/complete", h.Activity.CompleteQuiz)
		authorized.POST("/feedback", h.Activity.SubmitFeedback)

		// 通知
		authorized.GET("/notifications", h.Notification.ListNotifications)
		authorized.PUT("/notifications/:id/read", h.Notification.MarkRead)

		// 导出
		export := authorized.Group("/export", managers)
		{
			export.GET("/leaderboard", h.Export.ExportLeaderboard)
			export.GET("/relationships", h.Export.ExportRelationships)
		}
	}

	return r
}

// healthHandler 逐项 Ping 依赖，任一失败返回 503
func healthHandler(checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(gin.H, len(checks))
		for name, chk := range checks {
			if err := chk.Ping(ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "components": components})
	}
}
