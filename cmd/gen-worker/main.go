// Package main 生成执行器入口（gen-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gicagen-api/internal/application/generation"
	"gicagen-api/internal/config"
	"gicagen-api/internal/infrastructure/formats"
	"gicagen-api/internal/infrastructure/llm"
	"gicagen-api/internal/infrastructure/messaging"
	"gicagen-api/internal/infrastructure/persistence/jsonstore"
	"gicagen-api/internal/infrastructure/persistence/redis"
	"gicagen-api/internal/infrastructure/webhook"
	einoobs "gicagen-api/internal/observability/eino"
	"gicagen-api/pkg/logger"
	"gicagen-api/pkg/tracer"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "gen-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	// 初始化 Eino 全局 callbacks（指标/追踪/日志）
	einoobs.Init()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	cache := redis.NewCache(redisClient)

	projectRepo := jsonstore.NewProjectRepo(&cfg.Storage)
	promptRepo := jsonstore.NewPromptRepo(&cfg.Storage)
	formatsClient := formats.NewClient(&cfg.Formats, cache)
	webhookClient := webhook.NewClient(&cfg.Webhook)
	modelFactory := llm.NewEinoFactory(cfg)

	orchestrator := generation.NewOrchestrator(
		projectRepo,
		promptRepo,
		formatsClient,
		modelFactory,
		webhookClient,
		cfg.Generation,
	)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamGeneration,
		Group:         messaging.ConsumerGroupGenWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	consumer.RegisterHandler(messaging.MessageTypeProjectGen, func(msgCtx context.Context, msg *messaging.Message) error {
		var payload messaging.GenerationJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return orchestrator.Run(msgCtx, payload.ProjectID, payload.RunID)
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	log := logger.FromContext(ctx)
	log.Info("gen-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("gen-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
