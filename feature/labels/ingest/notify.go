package ingest

import (
	"context"
	"net/url"
	"strings"
	"time"

	"label-matcher/core/storage"
	"label-matcher/core/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7/pkg/notification"
	"go.uber.org/zap"
)

// ObjectCreatedEvents selects the bucket notifications a push source needs.
var ObjectCreatedEvents = []string{"s3:ObjectCreated:*"}

// observeRecord feeds one S3 event record to the ingestor. It reports
// whether the record was a creation event for a tracked key.
func observeRecord(ctx context.Context, i *Ingestor, rec notification.Event, source string) (bool, error) {
	if !isObjectCreated(rec.EventName) {
		return false, nil
	}
	// Keys in S3 events are URL encoded.
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		i.logger.Warn("Skipping event with malformed key", zap.String("key", rec.S3.Object.Key), zap.Error(err))
		return false, nil
	}
	if !i.Accepts(key) {
		return false, nil
	}

	err = i.Observe(ctx, Observation{
		Key:          key,
		Size:         rec.S3.Object.Size,
		ETag:         strings.Trim(rec.S3.Object.ETag, `"`),
		LastModified: utils.ToTime(rec.EventTime),
		Source:       source,
	})
	return err == nil, err
}

func isObjectCreated(name string) bool {
	return strings.HasPrefix(name, "s3:ObjectCreated:") || strings.HasPrefix(name, "ObjectCreated:")
}

// NotificationSource listens to bucket notifications and triggers a cycle
// after each new label.
type NotificationSource struct {
	client   storage.Client
	bucket   string
	ingestor *Ingestor
	trigger  func()
	logger   *zap.Logger

	// MaxReconnectDelay bounds the wait between listener restarts.
	MaxReconnectDelay time.Duration
}

// NewNotificationSource creates a notification source.
func NewNotificationSource(client storage.Client, bucket string, ingestor *Ingestor, trigger func(), logger *zap.Logger) *NotificationSource {
	return &NotificationSource{
		client:            client,
		bucket:            bucket,
		ingestor:          ingestor,
		trigger:           trigger,
		logger:            logger,
		MaxReconnectDelay: 30 * time.Second,
	}
}

// Run listens until ctx is cancelled, reconnecting when the stream breaks.
func (n *NotificationSource) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = n.MaxReconnectDelay
	b.MaxElapsedTime = 0

	n.logger.Info("Listening for bucket notifications",
		zap.String("bucket", n.bucket),
		zap.String("prefix", n.ingestor.prefix))

	for {
		if n.listen(ctx) {
			b.Reset()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := b.NextBackOff()
		n.logger.Warn("Bucket notification stream ended, reconnecting", zap.Duration("backoff", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// listen consumes one notification stream. It reports whether any event
// was received.
func (n *NotificationSource) listen(ctx context.Context) bool {
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	received := false
	for info := range n.client.ListenBucketNotification(listenCtx, n.bucket, n.ingestor.prefix, "", ObjectCreatedEvents) {
		if info.Err != nil {
			n.logger.Warn("Bucket notification error", zap.Error(info.Err))
			return received
		}
		received = true

		observed := false
		for _, rec := range info.Records {
			ok, err := observeRecord(ctx, n.ingestor, rec, SourceNotify)
			if err != nil {
				// The next poll picks the object up.
				n.logger.Warn("Failed to observe notified label", zap.String("key", rec.S3.Object.Key), zap.Error(err))
			}
			observed = observed || ok
		}
		if observed {
			n.trigger()
		}
	}
	return received
}
