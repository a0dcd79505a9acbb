// 手动清理试卷成绩分析缓存
//
// 交卷时会自动失效对应试卷的缓存，此脚本用于直接改库或批量导入提交后强制重新计算。
//
// 用法: go run scripts/flush_analytics_cache.go

package main

import (
	"context"
	"intellitest_backend/internal/config"
	"intellitest_backend/internal/service"
	"intellitest_backend/pkg/database"
	"intellitest_backend/pkg/logger"
	"log"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Redis 连接失败: %v", err)
	}
	if rdb == nil {
		log.Println("未启用 Redis，无需清理")
		return
	}
	defer rdb.Close()

	ctx := context.Background()
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := rdb.Scan(ctx, cursor, service.AnalyticsCacheKeyPrefix+"*", 200).Result()
		if err != nil {
			log.Fatalf("扫描缓存失败: %v", err)
		}
		if len(keys) > 0 {
			n, err := rdb.Del(ctx, keys...).Result()
			if err != nil {
				log.Fatalf("删除缓存失败: %v", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	logger.Log.Info("Analytics cache flushed", zap.Int("keys", deleted))
	log.Printf("完成！共清理 %d 个缓存键", deleted)
}
