// @title IntelliTest 后端 API
// @version 1.0
// @description IntelliTest 在线测验平台：题库、组卷、交卷判分与实时监控。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"intellitest_backend/internal/app"
	"intellitest_backend/internal/config"
	"intellitest_backend/pkg/configwatcher"
	"intellitest_backend/pkg/logger"
	"log"

	"go.uber.org/zap"
)

const configDir = "configs"

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移（及 -seed），完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	seed := flag.String("seed", "", "启动前导入演示数据的 YAML 文件")
	flag.Parse()

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly
	cfg.SeedFile = *seed

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer logger.Log.Sync()

	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	if err := configwatcher.WatchConfig(configDir, application.ReloadConfig, stop); err != nil {
		logger.Log.Warn("Config watcher disabled", zap.Error(err))
	}

	application.Run()
}
