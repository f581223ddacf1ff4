package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

var minioRemoveOpts = minio.RemoveObjectOptions{}

func fingerprintOf(t *testing.T, f *fixture, key string) string {
	t.Helper()
	data, err := f.p.bucket.Fetch(t.Context(), key)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
