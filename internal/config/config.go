// Package config loads server settings from the environment, optionally seeded
// from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	BlobLocal = "local"
	BlobS3    = "s3"
)

// Config is flat: every key is also the name of its environment variable
// (port -> PORT, jwt_secret_key -> JWT_SECRET_KEY).
type Config struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	JWTSecretKey string `mapstructure:"jwt_secret_key"`

	StoreDriver string `mapstructure:"store_driver"`
	DBPath      string `mapstructure:"db_path"`
	DatabaseURL string `mapstructure:"database_url"`
	DBMaxConns  int    `mapstructure:"db_max_conns"`

	BlobDriver  string `mapstructure:"blob_driver"`
	BlobDir     string `mapstructure:"blob_dir"`
	BlobBaseURL string `mapstructure:"blob_base_url"`

	S3Endpoint        string `mapstructure:"s3_endpoint"`
	S3Bucket          string `mapstructure:"s3_bucket"`
	S3Region          string `mapstructure:"s3_region"`
	S3AccessKeyID     string `mapstructure:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key"`
	S3PublicURL       string `mapstructure:"s3_public_url"`

	CORSOrigins    string `mapstructure:"cors_origins"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

var defaults = map[string]any{
	"port":                 8080,
	"log_level":            "info",
	"log_format":           "text",
	"jwt_secret_key":       "",
	"store_driver":         StoreSQLite,
	"db_path":              "data/lumi.db",
	"database_url":         "",
	"db_max_conns":         10,
	"blob_driver":          BlobLocal,
	"blob_dir":             "data/media",
	"blob_base_url":        "/media",
	"s3_endpoint":          "",
	"s3_bucket":            "files",
	"s3_region":            "",
	"s3_access_key_id":     "",
	"s3_secret_access_key": "",
	"s3_public_url":        "",
	"cors_origins":         "*",
	"max_upload_bytes":     10 << 20,
}

// Load reads envFiles (missing files are skipped) into the process
// environment, then resolves every key against env and defaults. Variables
// already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", f, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.BlobDriver = strings.ToLower(strings.TrimSpace(cfg.BlobDriver))
	return &cfg, nil
}

// Validate reports every problem at once so a bad deploy fails with the full list.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if len(c.JWTSecretKey) < 16 {
		errs = append(errs, errors.New("JWT_SECRET_KEY must be at least 16 characters"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	switch c.StoreDriver {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite store"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be sqlite or postgres, got %q", c.StoreDriver))
	}

	switch c.BlobDriver {
	case BlobLocal:
		if c.BlobDir == "" {
			errs = append(errs, errors.New("BLOB_DIR is required for the local blob store"))
		}
	case BlobS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 blob store"))
		}
	default:
		errs = append(errs, fmt.Errorf("BLOB_DRIVER must be local or s3, got %q", c.BlobDriver))
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses LOG_LEVEL (debug, info, warn, error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
