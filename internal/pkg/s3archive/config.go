package s3archive

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/InvoiceFox/internal/pkg/env"
)

// Config holds S3 run archive configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Prefix          string
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessKeyID:     env.GetEnv("S3_ARCHIVE_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_ARCHIVE_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_ARCHIVE_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_ARCHIVE_BUCKET", ""),
		EndpointURL:     env.GetEnv("S3_ARCHIVE_ENDPOINT_URL", ""),
		Prefix:          strings.Trim(env.GetEnv("S3_ARCHIVE_PREFIX", "recurring-runs"), "/"),
		Enabled:         env.GetBoolEnv("S3_ARCHIVE_ENABLED", false),
	}

	if cfg.Enabled {
		if cfg.AccessKeyID == "" {
			return nil, errors.New("S3_ARCHIVE_ACCESS_KEY_ID is required when the run archive is enabled")
		}
		if cfg.SecretAccessKey == "" {
			return nil, errors.New("S3_ARCHIVE_SECRET_ACCESS_KEY is required when the run archive is enabled")
		}
		if cfg.BucketName == "" {
			return nil, errors.New("S3_ARCHIVE_BUCKET is required when the run archive is enabled")
		}
	}

	return cfg, nil
}

// IsEnabled returns true if archiving is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey returns <prefix>/YYYY/MM/DD/<runID>.json for a run
func (c *Config) ObjectKey(runID string, date time.Time) string {
	date = date.UTC()
	key := fmt.Sprintf("%04d/%02d/%02d/%s.json", date.Year(), int(date.Month()), date.Day(), runID)
	if c.Prefix == "" {
		return key
	}
	return c.Prefix + "/" + key
}
