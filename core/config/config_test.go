package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "label_", cfg.Labels.Extract.Prefix)
	assert.Equal(t, []string{".pdf"}, cfg.Labels.Extract.Extensions)
	assert.Equal(t, "incoming/", cfg.Labels.IncomingPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Labels.OrphanTimeout)
	assert.Equal(t, "OrderID", cfg.Feed.OrderColumn)
	assert.Equal(t, uint16(3), cfg.Queue.Tries)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LABELS_ORPHAN_TIMEOUT", "90m")
	t.Setenv("LABELS_WORKERS", "8")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LABELS_EXTRACT_EXTENSIONS", ".pdf,.png")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 90*time.Minute, cfg.Labels.OrphanTimeout)
	assert.Equal(t, 8, cfg.Labels.Workers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{".pdf", ".png"}, cfg.Labels.Extract.Extensions)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STORAGE_BUCKET=vwslabels\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("STORAGE_BUCKET") })

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "vwslabels", cfg.Storage.Bucket)
}
