package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"label-matcher/core/storage"
	"label-matcher/feature/labels/models"

	"github.com/minio/minio-go/v7"
)

// Bucket performs the label object operations on one bucket. Errors are
// classified: missing or empty objects are permanent, everything else is
// transient.
type Bucket struct {
	client storage.Client
	name   string
}

// NewBucket wraps client for bucket name.
func NewBucket(client storage.Client, name string) *Bucket {
	return &Bucket{client: client, name: name}
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Fetch reads the whole object.
func (b *Bucket) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classify(key, err)
	}
	if len(data) == 0 {
		return nil, models.Permanent(fmt.Errorf("object %s is empty", key))
	}
	return data, nil
}

// Exists reports whether key is present.
func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.name, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if storage.IsNotFound(err) {
		return false, nil
	}
	return false, models.Transient(err)
}

// Move copies src to dst and deletes src. Repeating a finished move is a
// no-op: a missing source with an existing destination counts as done.
func (b *Bucket) Move(ctx context.Context, src, dst string) error {
	if src == dst {
		return nil
	}

	_, err := b.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: b.name, Object: dst},
		minio.CopySrcOptions{Bucket: b.name, Object: src},
	)
	if err != nil {
		if !storage.IsNotFound(err) {
			return models.Transient(fmt.Errorf("copy %s to %s: %w", src, dst, err))
		}
		done, statErr := b.Exists(ctx, dst)
		if statErr != nil {
			return statErr
		}
		if !done {
			return models.Permanent(fmt.Errorf("object %s is missing", src))
		}
		return nil
	}

	return b.Remove(ctx, src)
}

// Remove deletes key. A missing object counts as removed.
func (b *Bucket) Remove(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.name, key, minio.RemoveObjectOptions{}); err != nil && !storage.IsNotFound(err) {
		return models.Transient(fmt.Errorf("remove %s: %w", key, err))
	}
	return nil
}

// Rebase moves key from one prefix to another, keeping the rest of the path.
// Keys outside from are placed directly under to.
func Rebase(key, from, to string) string {
	return to + strings.TrimPrefix(key, from)
}

func classify(key string, err error) error {
	if storage.IsNotFound(err) {
		return models.Permanent(fmt.Errorf("object %s not found: %w", key, err))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return models.Transient(fmt.Errorf("read %s: %w", key, err))
}
