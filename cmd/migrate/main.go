// migrate 数据库迁移命令行工具
//
//	migrate up            应用全部迁移
//	migrate down [-steps] 回滚迁移（默认 1 步）
//	migrate version       查看当前版本
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/config"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/database"
	applogger "github.com/Makarand-Tighare/project-api-sub000/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	steps := flag.Int("steps", 1, "down 回滚步数")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "用法: migrate [-config path] [-steps n] up|down|version")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = database.RunMigrations(sqlDB, logger)
	case "down":
		err = database.RollbackMigrations(sqlDB, *steps, logger)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = database.MigrationVersion(sqlDB)
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
		}
	default:
		logger.Fatal("未知命令", zap.String("command", cmd))
	}

	if err != nil {
		logger.Fatal("迁移命令执行失败", zap.Error(err))
	}
}
