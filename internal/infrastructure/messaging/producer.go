// Package messaging 提供基于 Redis Stream 的任务队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishGenerationJob 发布整项目生成任务
func (p *Producer) PublishGenerationJob(ctx context.Context, job *GenerationJobMessage) (string, error) {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	msg, err := NewMessage(job.RunID, MessageTypeProjectGen, job.ProjectID, job)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("trigger", job.Trigger)

	return p.Publish(ctx, StreamGeneration, msg)
}

// GenerationJobMessage 整项目生成任务消息
// 消息只携带标识，worker 从存储加载项目的最新状态
type GenerationJobMessage struct {
	ProjectID  string    `json:"project_id"`
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"` // generate / retry
	EnqueuedAt time.Time `json:"enqueued_at"`
}
