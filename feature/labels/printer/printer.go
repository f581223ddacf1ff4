package printer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"label-matcher/feature/labels/models"

	"go.uber.org/zap"
)

// Job is one label handed to the print service. IdempotencyKey is stable
// across retries of the same match, so the receiving side can drop repeats.
type Job struct {
	IdempotencyKey string `json:"idempotency_key"`
	OrderID        string `json:"order_id"`
	LabelKey       string `json:"label_key"`
	Fingerprint    string `json:"fingerprint"`
	Data           []byte `json:"-"`
}

// Printer submits a label for printing. The returned ack marks accepted
// submission, not physical completion.
type Printer interface {
	Submit(ctx context.Context, job Job) (string, error)
}

// envelope is the wire form of a job on queues and topics.
type envelope struct {
	Job
	Content string `json:"content"`
}

func encode(job Job) ([]byte, error) {
	return json.Marshal(envelope{Job: job, Content: base64.StdEncoding.EncodeToString(job.Data)})
}

type queuePublisher interface {
	Publish(ctx context.Context, queue string, data []byte) (string, error)
}

// Queue submits jobs to an lmstfy queue; the job id is the ack.
type Queue struct {
	client queuePublisher
	queue  string
}

// NewQueue creates a printer publishing to queue.
func NewQueue(client queuePublisher, queue string) *Queue {
	return &Queue{client: client, queue: queue}
}

func (p *Queue) Submit(ctx context.Context, job Job) (string, error) {
	payload, err := encode(job)
	if err != nil {
		return "", models.Permanent(err)
	}
	id, err := p.client.Publish(ctx, p.queue, payload)
	if err != nil {
		return "", models.Transient(err)
	}
	return "lmstfy:" + id, nil
}

type topicPublisher interface {
	Publish(ctx context.Context, key string, value any) error
	Topic() string
}

// Topic submits jobs to a Kafka topic keyed by idempotency key.
type Topic struct {
	producer topicPublisher
}

// NewTopic creates a printer over a broker producer.
func NewTopic(p topicPublisher) *Topic {
	return &Topic{producer: p}
}

func (p *Topic) Submit(ctx context.Context, job Job) (string, error) {
	env := envelope{Job: job, Content: base64.StdEncoding.EncodeToString(job.Data)}
	if err := p.producer.Publish(ctx, job.IdempotencyKey, env); err != nil {
		return "", models.Transient(err)
	}
	return fmt.Sprintf("kafka:%s/%s", p.producer.Topic(), job.IdempotencyKey), nil
}

// Log only records the job. It is the default for development.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging printer.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (p *Log) Submit(ctx context.Context, job Job) (string, error) {
	p.logger.Info("Print job submitted",
		zap.String("order_id", job.OrderID),
		zap.String("label_key", job.LabelKey),
		zap.String("idempotency_key", job.IdempotencyKey),
		zap.Int("bytes", len(job.Data)))
	return "log:" + job.IdempotencyKey, nil
}
