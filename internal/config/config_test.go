package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mediaoffload/internal/media"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, "media", c.S3Bucket)
	assert.Equal(t, 5*time.Minute, c.LockTTL)
	assert.Equal(t, 2*time.Second, c.RescheduleDelay)
	assert.Equal(t, 120*time.Second, c.FetchTimeout)
	assert.Equal(t, ":8080", c.HookAddr)
	assert.Equal(t, 150, c.ThumbnailBox.Width)
	assert.Len(t, c.ImageSizes, 4)
	assert.Empty(t, c.ModernFormat)
}

func TestLoadConfig_NoArgsKeepsDefaults(t *testing.T) {
	c, err := LoadConfig(nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	if diff := cmp.Diff(want, *c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_JSONWithComments(t *testing.T) {
	path := writeTemp(t, "offload.jsonc", `{
		// storage
		"s3_bucket": "assets",
		"s3_root": "site-1",
		"lock_ttl": "90s",
		"fetch_timeout": 30000000000,
		"modern_format": "image/webp",
		"keep_local": true,
		"image_sizes": [{"name": "small", "width": 100, "height": 100, "crop": true}],
		"cors_origins": ["https://example.com"],
	}`)

	c, err := LoadConfig([]string{"-c", path})
	require.NoError(t, err)

	assert.Equal(t, "assets", c.S3Bucket)
	assert.Equal(t, "site-1", c.S3Root)
	assert.Equal(t, 90*time.Second, c.LockTTL)
	assert.Equal(t, 30*time.Second, c.FetchTimeout)
	assert.Equal(t, "image/webp", c.ModernFormat)
	assert.True(t, c.KeepLocal)
	assert.Equal(t, []media.SizeSpec{{Name: "small", Width: 100, Height: 100, Crop: true}}, c.ImageSizes)
	assert.Equal(t, []string{"https://example.com"}, c.CORSOrigins)
	// untouched
	assert.Equal(t, "us-east-1", c.S3Region)
	assert.Equal(t, 2*time.Second, c.RescheduleDelay)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeTemp(t, "offload.yaml", `
database_driver: pgx
database_dsn: postgres://u:p@db:5432/offload
worker_interval: 1m
big_image_threshold: 0
document_sizes:
  - name: thumbnail
    width: 150
    height: 150
`)

	c, err := LoadConfig([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, "pgx", c.DatabaseDriver)
	assert.Equal(t, "postgres://u:p@db:5432/offload", c.DatabaseDSN)
	assert.Equal(t, time.Minute, c.WorkerInterval)
	assert.Equal(t, 0, c.BigImageThreshold)
	assert.Equal(t, []media.SizeSpec{{Name: "thumbnail", Width: 150, Height: 150}}, c.DocumentSizes)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeTemp(t, "offload.json", `{"s3_bucket": "from-file", "log_level": "warn"}`)

	c, err := LoadConfig([]string{
		"migrate", "--limit", "10",
		"-c", path,
		"-b", "from-flag",
		"--lock-ttl=2m",
		"-U", "/srv/uploads",
	})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", c.S3Bucket)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, 2*time.Minute, c.LockTTL)
	assert.Equal(t, "/srv/uploads", c.UploadsDir)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig([]string{"-c", filepath.Join(t.TempDir(), "nope.json")})
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeTemp(t, "bad.json", `{ this is not valid json`)
		_, err := LoadConfig([]string{"-c", path})
		require.Error(t, err)
	})

	t.Run("invalid duration", func(t *testing.T) {
		path := writeTemp(t, "bad.yaml", "lock_ttl: soon\n")
		_, err := LoadConfig([]string{"-c", path})
		require.Error(t, err)
	})

	t.Run("invalid flag value", func(t *testing.T) {
		_, err := LoadConfig([]string{"--lock-ttl", "forever"})
		require.Error(t, err)
	})
}

func TestFlagNames(t *testing.T) {
	var c Config
	c.LoadDefaults()
	require.NoError(t, parseFlags(&c, []string{"-s", "topsecret", "--health-addr", ":6000"}))
	assert.Equal(t, "topsecret", c.HookSecret)
	assert.Equal(t, ":6000", c.HealthAddr)
}
