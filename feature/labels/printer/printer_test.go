package printer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"label-matcher/feature/labels/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var job = Job{
	IdempotencyKey: "m-1:abc",
	OrderID:        "A-1001",
	LabelKey:       "incoming/label_A-1001.pdf",
	Fingerprint:    "abc",
	Data:           []byte("%PDF-1.4"),
}

type fakeQueue struct {
	queue string
	data  []byte
	err   error
}

func (f *fakeQueue) Publish(ctx context.Context, queue string, data []byte) (string, error) {
	f.queue, f.data = queue, data
	return "job-42", f.err
}

func TestQueue_Submit(t *testing.T) {
	q := &fakeQueue{}
	ack, err := NewQueue(q, "print").Submit(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "lmstfy:job-42", ack)
	assert.Equal(t, "print", q.queue)

	var env envelope
	require.NoError(t, json.Unmarshal(q.data, &env))
	assert.Equal(t, "m-1:abc", env.IdempotencyKey)
	assert.Equal(t, "A-1001", env.OrderID)
	decoded, err := base64.StdEncoding.DecodeString(env.Content)
	require.NoError(t, err)
	assert.Equal(t, job.Data, decoded)
}

func TestQueue_SubmitErrorIsTransient(t *testing.T) {
	q := &fakeQueue{err: errors.New("connection refused")}
	_, err := NewQueue(q, "print").Submit(context.Background(), job)
	assert.True(t, models.IsTransient(err))
}

type fakeProducer struct {
	key   string
	value any
	err   error
}

func (f *fakeProducer) Publish(ctx context.Context, key string, value any) error {
	f.key, f.value = key, value
	return f.err
}

func (f *fakeProducer) Topic() string { return "label-print-jobs" }

func TestTopic_Submit(t *testing.T) {
	p := &fakeProducer{}
	ack, err := NewTopic(p).Submit(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "kafka:label-print-jobs/m-1:abc", ack)
	assert.Equal(t, "m-1:abc", p.key)

	p.err = errors.New("leader not available")
	_, err = NewTopic(p).Submit(context.Background(), job)
	assert.ErrorIs(t, err, models.ErrTransientIO)
}

func TestLog_Submit(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ack, err := NewLog(zap.New(core)).Submit(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "log:m-1:abc", ack)
	assert.Equal(t, 1, logs.FilterMessage("Print job submitted").Len())
}
