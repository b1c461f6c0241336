// Package main API Gateway 服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gicagen-api/internal/config"
	"gicagen-api/internal/infrastructure/formats"
	"gicagen-api/internal/infrastructure/messaging"
	"gicagen-api/internal/infrastructure/persistence/jsonstore"
	"gicagen-api/internal/infrastructure/persistence/redis"
	"gicagen-api/internal/infrastructure/webhook"
	"gicagen-api/internal/interfaces/http/handler"
	"gicagen-api/internal/interfaces/http/router"
	"gicagen-api/pkg/logger"
	"gicagen-api/pkg/tracer"

	"github.com/joho/godotenv"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting api-gateway",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// Redis：格式缓存与限流
	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	cache := redis.NewCache(redisClient)
	limiter := redis.NewRateLimiter(redisClient)

	// 扁平 JSON 持久化
	projectRepo := jsonstore.NewProjectRepo(&cfg.Storage)
	promptRepo := jsonstore.NewPromptRepo(&cfg.Storage)

	// 上游与下游客户端
	formatsClient := formats.NewClient(&cfg.Formats, cache)
	webhookClient := webhook.NewClient(&cfg.Webhook)

	// 生成任务入队
	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))

	handlers := router.Handlers{
		Health:  handler.NewHealthHandler(redisClient, &cfg.Storage),
		Format:  handler.NewFormatHandler(formatsClient),
		Prompt:  handler.NewPromptHandler(promptRepo),
		Project: handler.NewProjectHandler(projectRepo, promptRepo, producer),
		Stream:  handler.NewStreamHandler(projectRepo),
		Webhook: handler.NewWebhookHandler(projectRepo, webhookClient),
	}

	r := router.New(cfg, handlers, limiter)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
