package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/config"
	"github.com/Makarand-Tighare/project-api-sub000/internal/api/handler"
	"github.com/Makarand-Tighare/project-api-sub000/internal/api/router"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
	"github.com/Makarand-Tighare/project-api-sub000/internal/scheduler"
	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/database"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/jwt"
	applogger "github.com/Makarand-Tighare/project-api-sub000/pkg/logger"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/mail"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/metrics"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/redis"
)

// sqlPinger 将 *sql.DB 适配为健康检查依赖
type sqlPinger struct{ db *sql.DB }

func (p sqlPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级为进程内锁、排行榜不走缓存）
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，降级为进程内范围锁", zap.Error(err))
			rdb = nil
		}
	}

	// 5. 初始化 JWT 管理器与指标
	jwtMgr := jwt.NewManager(&cfg.Auth)
	if cfg.Metrics.Enabled {
		metrics.Register()
	}
	if err := handler.RegisterValidators(); err != nil {
		logger.Fatal("注册校验规则失败", zap.Error(err))
	}

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)

	deps := service.Deps{Notifier: service.NewInAppNotifier(repo)}
	if cfg.Mail.Enabled {
		sender, err := mail.NewSender(&cfg.Mail)
		if err != nil {
			logger.Fatal("初始化邮件发送失败", zap.Error(err))
		}
		deps.Notifier = service.NewMultiNotifier(deps.Notifier, service.NewMailNotifier(sender))
	}
	if rdb != nil {
		deps.Locker = service.NewRedisScopeLocker(rdb, cfg.Matching.ScopeLockTTL, logger.Named("scope_lock"))
		deps.Cache = service.NewRedisLeaderboardCache(rdb, cfg.Redis.LeaderboardCacheTTL)
	}

	svc := service.NewService(cfg, repo, deps, logger)
	h := handler.NewHandler(svc)

	// 7. 初始化路由
	opts := router.Options{
		Health: map[string]router.HealthChecker{"db": sqlPinger{db: sqlDB}},
	}
	if rdb != nil {
		opts.Limiter = rdb
		opts.Health["redis"] = rdb
	}
	engine := router.Setup(cfg, h, jwtMgr, opts, logger)

	// 8. 启动定时任务
	sched, err := scheduler.New(cfg.Scheduler, svc.Leaderboard, logger.Named("scheduler"))
	if err != nil {
		logger.Fatal("初始化定时任务失败", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		logger.Fatal("启动定时任务失败", zap.Error(err))
	}

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待进行中的同步任务结束
	if err := sched.Shutdown(); err != nil {
		logger.Error("定时任务关闭异常", zap.Error(err))
	}

	sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
