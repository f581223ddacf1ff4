// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client so the label pipeline can fetch, copy and
// delete label objects and subscribe to bucket notifications against AWS S3
// or a self-hosted MinIO. The Client interface is mocked in
// core/storage/mocks for unit tests.
//
// # Operations
//
//   - GetObject / StatObject: read a label and probe archive destinations.
//   - CopyObject + RemoveObject: the two halves of an archive move.
//   - ListObjects: the polling ingestion source.
//   - ListenBucketNotification: the push ingestion source (MinIO only).
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	obj, err := client.GetObject(ctx, cfg.Storage.Bucket, "incoming/label_A-1001.pdf", minio.GetObjectOptions{})
package storage
