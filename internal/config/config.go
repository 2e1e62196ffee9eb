// Package config handles configuration for the offload daemon and CLI,
// including defaults, a JSON/YAML file overlay, and command-line flags.
package config

import (
	"time"

	"github.com/dmitrijs2005/mediaoffload/internal/media"
)

// Config holds runtime settings shared by offloadd and offloadctl.
//
// Fields:
//   - DatabaseDriver / DatabaseDSN: "pgx" or "sqlite" plus its DSN.
//   - S3*: object storage settings; S3Root prefixes every key.
//   - PublicBaseURL: base of public artifact URLs; empty means endpoint/bucket.
//   - UploadsDir: local root every relative artifact path resolves against.
//   - TempDir: parent of per-item scratch directories.
//   - ImageSizes / DocumentSizes / ThumbnailBox: size registry.
//   - ModernFormat: "image/webp", "image/avif" or "" to disable alternatives.
//   - HookSecret: HMAC secret for hook bearer tokens (HS256).
type Config struct {
	DatabaseDriver string
	DatabaseDSN    string

	S3Endpoint    string
	S3Region      string
	S3Bucket      string
	S3Root        string
	S3AccessKey   string
	S3SecretKey   string
	PublicBaseURL string

	UploadsDir string
	TempDir    string
	KeepLocal  bool

	ImageSizes        []media.SizeSpec
	DocumentSizes     []media.SizeSpec
	ThumbnailBox      media.SizeSpec
	ModernFormat      string
	BigImageThreshold int

	LockTTL         time.Duration
	RescheduleDelay time.Duration
	WorkerInterval  time.Duration
	FetchTimeout    time.Duration

	HookAddr    string
	HookSecret  string
	TokenTTL    time.Duration
	CORSOrigins []string
	HealthAddr  string

	LogLevel string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secrets are placeholders and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:offload.db?_pragma=busy_timeout(5000)"

	c.S3Endpoint = "http://127.0.0.1:9000"
	c.S3Region = "us-east-1"
	c.S3Bucket = "media"
	c.S3Root = ""
	c.S3AccessKey = "admin"
	c.S3SecretKey = "secretpassword"
	c.PublicBaseURL = ""

	c.UploadsDir = "uploads"
	c.TempDir = ""
	c.KeepLocal = false

	c.ImageSizes = media.DefaultImageSizes()
	c.DocumentSizes = media.DefaultDocumentSizes()
	c.ThumbnailBox = media.SizeSpec{Name: "thumbnail", Width: 150, Height: 150, Crop: true}
	c.ModernFormat = ""
	c.BigImageThreshold = 2560

	c.LockTTL = 5 * time.Minute
	c.RescheduleDelay = 2 * time.Second
	c.WorkerInterval = 30 * time.Second
	c.FetchTimeout = 120 * time.Second

	c.HookAddr = ":8080"
	c.HookSecret = "secretKey"
	c.TokenTTL = 24 * time.Hour
	c.CORSOrigins = nil
	c.HealthAddr = ":50051"

	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file and finally from command-line flags found
// in args.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
