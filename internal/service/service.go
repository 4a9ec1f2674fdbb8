package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/config"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Participant  ParticipantService
	Relationship RelationshipService
	Matching     MatchingService
	Leaderboard  LeaderboardService
	Badge        BadgeService
	Archive      ArchiveService
	Activity     ActivityService
	Notification NotificationService
	Department   DepartmentService
	Export       ExportService
}

// Deps 基础设施依赖（由 main 按配置选择具体实现）
type Deps struct {
	Locker   ScopeLocker
	Cache    LeaderboardCache // 可为 nil
	Notifier Notifier         // 可为 nil
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	if deps.Locker == nil {
		deps.Locker = NewLocalScopeLocker()
	}
	m := cfg.Matching

	leaderboard := NewLeaderboardService(repo, deps.Locker, deps.Cache, deps.Notifier, logger.Named("leaderboard"))
	relationship := NewRelationshipService(repo, m, deps.Locker, deps.Notifier, logger.Named("relationship"))

	return &Service{
		Participant:  NewParticipantService(repo, deps.Notifier, logger.Named("participant")),
		Relationship: relationship,
		Matching:     NewMatchingService(repo, m, deps.Locker, deps.Notifier, logger.Named("matching")),
		Leaderboard:  leaderboard,
		Badge:        NewBadgeService(repo, m, deps.Cache, deps.Notifier, logger.Named("badge")),
		Archive:      NewArchiveService(repo, deps.Locker, deps.Cache, deps.Notifier, logger.Named("archive")),
		Activity:     NewActivityService(repo, logger.Named("activity")),
		Notification: NewNotificationService(repo, logger.Named("notification")),
		Department:   NewDepartmentService(repo, logger.Named("department")),
		Export:       NewExportService(leaderboard, relationship, logger.Named("export")),
	}
}

// checkScope 院系范围必须指向已存在的院系
func checkScope(ctx context.Context, repo *repository.Repository, scope Scope) error {
	if scope.IsGlobal() {
		return nil
	}
	if _, err := repo.Department.GetByID(ctx, scope.DepartmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDepartmentNotFound
		}
		return err
	}
	return nil
}

// mapParticipantErr 将仓储层的未找到错误转换为业务错误，其余错误记录日志后原样返回
func mapParticipantErr(err error, logger *zap.Logger) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrParticipantNotFound
	}
	logger.Error("查询参与者失败", zap.Error(err))
	return err
}
