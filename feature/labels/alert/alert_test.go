package alert

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"label-matcher/core/metrics"
)

type recordingSink struct {
	name   string
	err    error
	alerts []Alert
	ctxErr error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(ctx context.Context, a Alert) error {
	s.ctxErr = ctx.Err()
	s.alerts = append(s.alerts, a)
	return s.err
}

func TestNotifier_FansOutAndSwallowsErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	failing := &recordingSink{name: "failing", err: errors.New("unreachable")}
	ok := &recordingSink{name: "ok"}

	n := NewNotifier(zap.New(core), failing, ok)
	before := testutil.ToFloat64(metrics.AlertDeliveryFailures.WithLabelValues("failing"))

	n.Notify(context.Background(), Alert{Kind: KindConflict, OrderID: "A-1002", LabelKeys: []string{"a", "b"}})

	require.Len(t, ok.alerts, 1)
	require.Len(t, failing.alerts, 1)
	assert.Equal(t, "conflict", ok.alerts[0].Subject)
	assert.False(t, ok.alerts[0].At.IsZero())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AlertDeliveryFailures.WithLabelValues("failing")))
	assert.Equal(t, 1, logs.FilterMessage("Alert delivery failed").Len())
}

func TestNotifier_DeliversAfterCancel(t *testing.T) {
	sink := &recordingSink{name: "s"}
	n := NewNotifier(zap.NewNop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Notify(ctx, Alert{Kind: KindTerminalError})

	require.Len(t, sink.alerts, 1)
	assert.NoError(t, sink.ctxErr)
}

func TestNotifier_TruncatesSubject(t *testing.T) {
	sink := &recordingSink{name: "s"}
	n := NewNotifier(zap.NewNop(), sink)

	n.Notify(context.Background(), Alert{Kind: KindOrphan, Subject: strings.Repeat("é", 80)})

	subject := sink.alerts[0].Subject
	assert.LessOrEqual(t, len(subject), MaxSubjectLen)
	assert.Equal(t, 50, len([]rune(subject)))
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSink(zap.New(core))

	require.NoError(t, s.Send(context.Background(), Alert{Kind: KindMatched, Message: "3 matches"}))
	require.NoError(t, s.Send(context.Background(), Alert{Kind: KindOrphan, OrderID: "Z-9999", LabelKeys: []string{"k"}}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "Z-9999", entries[1].ContextMap()["order_id"])
}

type fakePublisher struct {
	channel string
	payload []byte
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.payload = message.([]byte)
	return redis.NewIntResult(1, nil)
}

func TestRedisSink(t *testing.T) {
	pub := &fakePublisher{}
	s := &RedisSink{rdb: pub, channel: "label-alerts"}

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Send(context.Background(), Alert{Kind: KindOrphan, OrderID: "Z-9999", At: at}))

	assert.Equal(t, "label-alerts", pub.channel)
	var got Alert
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, KindOrphan, got.Kind)
	assert.Equal(t, "Z-9999", got.OrderID)
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

func TestKafkaSink_Key(t *testing.T) {
	p := &fakeProducer{}
	s := NewKafkaSink(p)

	require.NoError(t, s.Send(context.Background(), Alert{Kind: KindConflict, OrderID: "A-1"}))
	assert.Equal(t, "A-1", p.key)

	require.NoError(t, s.Send(context.Background(), Alert{Kind: KindFeedFailure}))
	assert.Equal(t, "feed-failure", p.key)
}
