package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/mediaoffload/internal/flagx"
	"github.com/dmitrijs2005/mediaoffload/internal/media"
	"github.com/dmitrijs2005/mediaoffload/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. Durations use
// timex.Duration so both "5m" and integer nanoseconds are accepted.
// Zero values leave the current setting untouched.
type FileConfig struct {
	DatabaseDriver string `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN    string `json:"database_dsn" yaml:"database_dsn"`

	S3Endpoint    string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3Region      string `json:"s3_region" yaml:"s3_region"`
	S3Bucket      string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Root        string `json:"s3_root" yaml:"s3_root"`
	S3AccessKey   string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey   string `json:"s3_secret_key" yaml:"s3_secret_key"`
	PublicBaseURL string `json:"public_base_url" yaml:"public_base_url"`

	UploadsDir string `json:"uploads_dir" yaml:"uploads_dir"`
	TempDir    string `json:"temp_dir" yaml:"temp_dir"`
	KeepLocal  *bool  `json:"keep_local" yaml:"keep_local"`

	ImageSizes        []media.SizeSpec `json:"image_sizes" yaml:"image_sizes"`
	DocumentSizes     []media.SizeSpec `json:"document_sizes" yaml:"document_sizes"`
	ThumbnailBox      *media.SizeSpec  `json:"thumbnail_box" yaml:"thumbnail_box"`
	ModernFormat      *string          `json:"modern_format" yaml:"modern_format"`
	BigImageThreshold *int             `json:"big_image_threshold" yaml:"big_image_threshold"`

	LockTTL         timex.Duration `json:"lock_ttl" yaml:"lock_ttl"`
	RescheduleDelay timex.Duration `json:"reschedule_delay" yaml:"reschedule_delay"`
	WorkerInterval  timex.Duration `json:"worker_interval" yaml:"worker_interval"`
	FetchTimeout    timex.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`

	HookAddr    string         `json:"hook_addr" yaml:"hook_addr"`
	HookSecret  string         `json:"hook_secret" yaml:"hook_secret"`
	TokenTTL    timex.Duration `json:"token_ttl" yaml:"token_ttl"`
	CORSOrigins []string       `json:"cors_origins" yaml:"cors_origins"`
	HealthAddr  string         `json:"health_addr" yaml:"health_addr"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

// parseFile overlays the file named by -c/-config onto config. Files ending
// in .yaml or .yml are read as YAML; anything else as JSON, where comments
// and trailing commas are allowed.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	fc, err := decodeFile(path, data)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	fc.apply(config)
	return nil
}

func decodeFile(path string, data []byte) (*FileConfig, error) {
	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, fc); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), fc); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.DatabaseDriver, fc.DatabaseDriver)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)

	setString(&c.S3Endpoint, fc.S3Endpoint)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Root, fc.S3Root)
	setString(&c.S3AccessKey, fc.S3AccessKey)
	setString(&c.S3SecretKey, fc.S3SecretKey)
	setString(&c.PublicBaseURL, fc.PublicBaseURL)

	setString(&c.UploadsDir, fc.UploadsDir)
	setString(&c.TempDir, fc.TempDir)
	if fc.KeepLocal != nil {
		c.KeepLocal = *fc.KeepLocal
	}

	if len(fc.ImageSizes) > 0 {
		c.ImageSizes = fc.ImageSizes
	}
	if len(fc.DocumentSizes) > 0 {
		c.DocumentSizes = fc.DocumentSizes
	}
	if fc.ThumbnailBox != nil {
		c.ThumbnailBox = *fc.ThumbnailBox
	}
	// modern_format: "" explicitly disables alternatives
	if fc.ModernFormat != nil {
		c.ModernFormat = *fc.ModernFormat
	}
	if fc.BigImageThreshold != nil {
		c.BigImageThreshold = *fc.BigImageThreshold
	}

	setDuration(&c.LockTTL, fc.LockTTL)
	setDuration(&c.RescheduleDelay, fc.RescheduleDelay)
	setDuration(&c.WorkerInterval, fc.WorkerInterval)
	setDuration(&c.FetchTimeout, fc.FetchTimeout)

	setString(&c.HookAddr, fc.HookAddr)
	setString(&c.HookSecret, fc.HookSecret)
	setDuration(&c.TokenTTL, fc.TokenTTL)
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
	setString(&c.HealthAddr, fc.HealthAddr)

	setString(&c.LogLevel, fc.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
