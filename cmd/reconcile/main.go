package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/didmybit/didmybit_server/config"
	"github.com/didmybit/didmybit_server/internal/database"
	"github.com/didmybit/didmybit_server/internal/pkg/cache"
	"github.com/didmybit/didmybit_server/internal/pkg/cron"
	"github.com/didmybit/didmybit_server/internal/pkg/logging"
)

var (
	dryRun    = flag.Bool("dry-run", true, "Dry run mode, only report inconsistent comments")
	batchSize = flag.Int("batch", 0, "Comments per batch (default: reconcile.batch_size)")
)

func main() {
	flag.Parse()

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, "console")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := database.OpenCommentStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open comment store", zap.Error(err))
	}
	defer closeStore()

	size := cfg.Reconcile.BatchSize
	if *batchSize > 0 {
		size = *batchSize
	}

	logger.Info("reconcile starting",
		zap.String("driver", cfg.Storage.Driver),
		zap.Bool("dry_run", *dryRun),
		zap.Int("batch", size),
	)

	reconciler := cron.NewService(store, size, 0, logger)

	// 写回时顺带清掉服务端的评论树缓存
	if cfg.Redis.Enabled && !*dryRun {
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, cached threads expire by ttl", zap.Error(err))
		} else {
			defer rdb.Close()
			reconciler.WithThreadCache(cache.NewThreadCache(rdb, time.Duration(cfg.Comment.CacheTTLSeconds)*time.Second))
		}
	}

	stats, err := reconciler.RunNow(ctx, *dryRun)
	if err != nil {
		logger.Error("reconcile failed", zap.Error(err))
		closeStore()
		os.Exit(1)
	}

	if *dryRun && stats.Repaired > 0 {
		logger.Info("dry run: nothing was written, run with -dry-run=false to repair",
			zap.Int("would_repair", stats.Repaired))
	}
}
