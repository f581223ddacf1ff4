package storage_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"label-matcher/core/storage"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestNewClient(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := storage.Config{
			Endpoint:  "localhost:9000",
			AccessKey: "testkey",
			SecretKey: "testsecret",
			UseSSL:    false,
			Bucket:    "test-bucket",
			Region:    "us-east-1",
		}

		client, err := storage.NewClient(cfg)
		assert.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("EndpointWithHTTP", func(t *testing.T) {
		cfg := storage.Config{
			Endpoint:  "http://localhost:9000",
			AccessKey: "testkey",
			SecretKey: "testsecret",
		}

		client, err := storage.NewClient(cfg)
		assert.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("EndpointWithHTTPS", func(t *testing.T) {
		cfg := storage.Config{
			Endpoint:  "https://s3.amazonaws.com",
			AccessKey: "testkey",
			SecretKey: "testsecret",
			UseSSL:    true,
			Region:    "us-east-1",
		}

		client, err := storage.NewClient(cfg)
		assert.NoError(t, err)
		assert.NotNil(t, client)
	})
}

func TestIsNotFound(t *testing.T) {
	noKey := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}

	assert.True(t, storage.IsNotFound(noKey))
	assert.True(t, storage.IsNotFound(fmt.Errorf("fetch: %w", noKey)))
	assert.False(t, storage.IsNotFound(denied))
	assert.False(t, storage.IsNotFound(errors.New("connection reset")))
	assert.False(t, storage.IsNotFound(nil))
}
