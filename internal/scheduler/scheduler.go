package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/config"
	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
)

// TriggerScheduler 定时同步的来源标记
const TriggerScheduler = "scheduler"

// syncTimeout 单次全局同步的最长耗时
const syncTimeout = 5 * time.Minute

// LeaderboardSyncer 排行榜同步（service.LeaderboardService 实现）
type LeaderboardSyncer interface {
	Sync(ctx context.Context, scope service.Scope, trigger string) ([]dto.LeaderboardEntry, error)
}

// Scheduler 后台定时任务
type Scheduler struct {
	sched  gocron.Scheduler
	syncer LeaderboardSyncer
	cfg    config.SchedulerConfig
	logger *zap.Logger
}

// New 创建调度器（尚未启动）
func New(cfg config.SchedulerConfig, syncer LeaderboardSyncer, logger *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("创建调度器失败: %w", err)
	}
	return &Scheduler{sched: sched, syncer: syncer, cfg: cfg, logger: logger}, nil
}

// Start 注册任务并启动；未启用的任务不注册
func (s *Scheduler) Start() error {
	if s.cfg.LeaderboardSyncEnabled {
		_, err := s.sched.NewJob(
			gocron.DurationJob(s.cfg.LeaderboardSyncInterval),
			gocron.NewTask(s.syncLeaderboard),
			gocron.WithName("leaderboard-sync"),
			// 上一次尚未结束时跳过本轮
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("注册排行榜同步任务失败: %w", err)
		}
		s.logger.Info("排行榜定时同步已启用", zap.Duration("interval", s.cfg.LeaderboardSyncInterval))
	}

	s.sched.Start()
	return nil
}

// Jobs 已注册任务数
func (s *Scheduler) Jobs() int {
	return len(s.sched.Jobs())
}

// Shutdown 停止调度并等待运行中的任务结束
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// syncLeaderboard 全局同步；范围被匹配 / 归档占用时本轮跳过
func (s *Scheduler) syncLeaderboard() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	entries, err := s.syncer.Sync(ctx, service.Scope{}, TriggerScheduler)
	switch {
	case errors.Is(err, service.ErrScopeBusy):
		s.logger.Info("全局范围正忙，跳过本轮排行榜同步")
	case err != nil:
		s.logger.Error("定时排行榜同步失败", zap.Error(err))
	default:
		s.logger.Info("定时排行榜同步完成", zap.Int("participants", len(entries)))
	}
}
