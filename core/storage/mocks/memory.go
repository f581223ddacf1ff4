package mocks

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/notification"
)

// ErrInjected is returned by injected failures.
var ErrInjected = errors.New("injected storage failure")

// Memory is a stateful in-memory storage.Client for tests.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]map[string]memObject

	// FailGet, FailCopy and FailRemove hold the number of upcoming calls per
	// key that fail with ErrInjected.
	FailGet    map[string]int
	FailCopy   map[string]int
	FailRemove map[string]int
	// FailList makes ListObjects emit an error entry.
	FailList bool

	Gets    int
	Copies  int
	Removes int

	// Events is returned by ListenBucketNotification.
	Events chan notification.Info
}

type memObject struct {
	data     []byte
	modified time.Time
}

// NewMemory creates an empty store with one bucket.
func NewMemory(bucket string) *Memory {
	return &Memory{
		buckets:    map[string]map[string]memObject{bucket: {}},
		FailGet:    map[string]int{},
		FailCopy:   map[string]int{},
		FailRemove: map[string]int{},
		Events:     make(chan notification.Info, 16),
	}
}

func notFound(key string) error {
	return minio.ErrorResponse{Code: "NoSuchKey", Key: key, StatusCode: http.StatusNotFound, Message: "The specified key does not exist."}
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func take(m map[string]int, key string) bool {
	if m[key] > 0 {
		m[key]--
		return true
	}
	return false
}

// Put stores an object directly.
func (m *Memory) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = map[string]memObject{}
	}
	m.buckets[bucket][key] = memObject{data: append([]byte(nil), data...), modified: time.Now()}
}

// Has reports whether key exists.
func (m *Memory) Has(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[bucket][key]
	return ok
}

// Keys returns every key in bucket, sorted.
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Memory) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[bucketName]
	return ok, nil
}

func (m *Memory) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucketName] == nil {
		m.buckets[bucketName] = map[string]memObject{}
	}
	return nil
}

func (m *Memory) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	m.Put(bucketName, objectName, data)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: int64(len(data)), ETag: etag(data)}, nil
}

func (m *Memory) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if take(m.FailGet, objectName) {
		return nil, ErrInjected
	}
	obj, ok := m.buckets[bucketName][objectName]
	if !ok {
		return nil, notFound(objectName)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *Memory) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucketName][objectName]
	if !ok {
		return minio.ObjectInfo{}, notFound(objectName)
	}
	return minio.ObjectInfo{Key: objectName, Size: int64(len(obj.data)), ETag: etag(obj.data), LastModified: obj.modified}, nil
}

func (m *Memory) CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if take(m.FailCopy, src.Object) {
		return minio.UploadInfo{}, ErrInjected
	}
	obj, ok := m.buckets[src.Bucket][src.Object]
	if !ok {
		return minio.UploadInfo{}, notFound(src.Object)
	}
	m.Copies++
	m.buckets[dst.Bucket][dst.Object] = obj
	return minio.UploadInfo{Bucket: dst.Bucket, Key: dst.Object, Size: int64(len(obj.data)), ETag: etag(obj.data)}, nil
}

func (m *Memory) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var infos []minio.ObjectInfo
	if m.FailList {
		infos = append(infos, minio.ObjectInfo{Err: ErrInjected})
	} else {
		for key, obj := range m.buckets[bucketName] {
			if !strings.HasPrefix(key, opts.Prefix) {
				continue
			}
			if !opts.Recursive && strings.Contains(strings.TrimPrefix(key, opts.Prefix), "/") {
				continue
			}
			infos = append(infos, minio.ObjectInfo{Key: key, Size: int64(len(obj.data)), ETag: etag(obj.data), LastModified: obj.modified})
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	}

	ch := make(chan minio.ObjectInfo, len(infos))
	for _, info := range infos {
		ch <- info
	}
	close(ch)
	return ch
}

func (m *Memory) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if take(m.FailRemove, objectName) {
		return ErrInjected
	}
	m.Removes++
	delete(m.buckets[bucketName], objectName)
	return nil
}

func (m *Memory) ListenBucketNotification(ctx context.Context, bucketName, prefix, suffix string, events []string) <-chan notification.Info {
	out := make(chan notification.Info)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case info, ok := <-m.Events:
				if !ok {
					return
				}
				select {
				case out <- info:
				case <-ctx.Done():
					// Leave the event for the next listener.
					select {
					case m.Events <- info:
					default:
					}
					return
				}
			}
		}
	}()
	return out
}
