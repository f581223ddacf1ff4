package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"label-matcher/core/broker"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventConsumer is implemented by *broker.Consumer.
type EventConsumer interface {
	Run(ctx context.Context, handler broker.MessageHandler) error
}

// eventBatch is the S3 event notification envelope.
type eventBatch struct {
	Records []notification.Event `json:"Records"`
}

// KafkaSource consumes S3 event batches published to a Kafka topic.
type KafkaSource struct {
	consumer EventConsumer
	ingestor *Ingestor
	trigger  func()
	logger   *zap.Logger
}

// NewKafkaSource creates a Kafka event source.
func NewKafkaSource(consumer EventConsumer, ingestor *Ingestor, trigger func(), logger *zap.Logger) *KafkaSource {
	return &KafkaSource{consumer: consumer, ingestor: ingestor, trigger: trigger, logger: logger}
}

// Run consumes until ctx is cancelled.
func (k *KafkaSource) Run(ctx context.Context) error {
	err := k.consumer.Run(ctx, k.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle processes one message. Malformed payloads are dropped; a failed
// observation returns the error so the message is not committed.
func (k *KafkaSource) Handle(ctx context.Context, msg kafka.Message) error {
	var batch eventBatch
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		k.logger.Warn("Dropping malformed storage event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}

	observed := false
	for _, rec := range batch.Records {
		ok, err := observeRecord(ctx, k.ingestor, rec, SourceKafka)
		if err != nil {
			return err
		}
		observed = observed || ok
	}
	if observed {
		k.trigger()
	}
	return nil
}
