package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LogSink writes alerts to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, a Alert) error {
	fields := []zap.Field{
		zap.String("kind", string(a.Kind)),
		zap.String("subject", a.Subject),
		zap.String("message", a.Message),
	}
	if a.OrderID != "" {
		fields = append(fields, zap.String("order_id", a.OrderID))
	}
	if len(a.LabelKeys) > 0 {
		fields = append(fields, zap.Strings("label_keys", a.LabelKeys))
	}
	if len(a.Details) > 0 {
		fields = append(fields, zap.Any("details", a.Details))
	}

	if a.Kind == KindMatched {
		s.logger.Info("Alert", fields...)
	} else {
		s.logger.Warn("Alert", fields...)
	}
	return nil
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes alerts as JSON on a Pub/Sub channel.
type RedisSink struct {
	rdb     redisPublisher
	channel string
}

// NewRedisSink creates a sink publishing on channel.
func NewRedisSink(rdb *redis.Client, channel string) *RedisSink {
	return &RedisSink{rdb: rdb, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	return s.rdb.Publish(ctx, s.channel, payload).Err()
}

type producer interface {
	Publish(ctx context.Context, key string, value any) error
}

// KafkaSink writes alerts to a topic keyed by order id.
type KafkaSink struct {
	producer producer
}

// NewKafkaSink wraps a broker producer.
func NewKafkaSink(p producer) *KafkaSink {
	return &KafkaSink{producer: p}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, a Alert) error {
	key := a.OrderID
	if key == "" {
		key = string(a.Kind)
	}
	return s.producer.Publish(ctx, key, a)
}
