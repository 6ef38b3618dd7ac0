package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/didmybit/didmybit_server/config"
	"github.com/didmybit/didmybit_server/internal/api"
	"github.com/didmybit/didmybit_server/internal/api/handler"
	"github.com/didmybit/didmybit_server/internal/database"
	"github.com/didmybit/didmybit_server/internal/pkg/cache"
	"github.com/didmybit/didmybit_server/internal/pkg/cron"
	"github.com/didmybit/didmybit_server/internal/pkg/logging"
	"github.com/didmybit/didmybit_server/internal/pkg/pubsub"
	"github.com/didmybit/didmybit_server/internal/pkg/queue"
	"github.com/didmybit/didmybit_server/internal/pkg/ws"
	"github.com/didmybit/didmybit_server/internal/service"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化存储，整个进程共用一份连接
	store, closeStore, err := database.OpenCommentStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open comment store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeStore()
	logger.Info("comment store ready", zap.String("driver", cfg.Storage.Driver))

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub(logger.Named("ws"))
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.CORS.AllowedOrigins, logger.Named("ws"))

	// Redis 可选：评论树缓存 + 评论事件
	var (
		threadCache service.ThreadCache
		events      service.EventPublisher
		repairs     *queue.Queue
	)
	if cfg.Redis.Enabled {
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()

		threadCache = cache.NewThreadCache(rdb, time.Duration(cfg.Comment.CacheTTLSeconds)*time.Second)
		events = pubsub.NewPublisher(rdb)
		repairs = queue.NewQueue(rdb, queue.DefaultRepairQueue)

		subscriber := pubsub.NewSubscriber(rdb)
		go func() {
			if err := subscriber.Subscribe(ctx, websocketHandler.Forward); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("comment event subscriber stopped", zap.Error(err))
			}
		}()
		logger.Info("redis connected", zap.String("addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)))
	} else {
		logger.Info("redis disabled, running without thread cache and live events")
	}

	// 初始化 Service
	commentService := service.NewCommentService(store, threadCache, events, cfg.Comment, logger.Named("comment"))
	if repairs != nil {
		commentService.WithRepairQueue(repairs)
	}

	// 初始化 Handler
	commentHandler := handler.NewCommentHandler(commentService, logger.Named("comment"))
	healthHandler := handler.NewHealthHandler(commentService, logger)

	// 初始化 Router
	router := api.NewRouter(commentHandler, websocketHandler, healthHandler, logger.Named("http"), cfg)
	engine := router.Setup()

	// 对账定时任务
	reconciler := cron.NewService(
		store,
		cfg.Reconcile.BatchSize,
		time.Duration(cfg.Reconcile.IntervalMinutes)*time.Minute,
		logger.Named("reconcile"),
	)
	if repairs != nil {
		reconciler.WithRepairQueue(repairs)
	}
	if threadCache != nil {
		reconciler.WithThreadCache(threadCache)
	}
	reconciler.Start()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal")

	reconciler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
