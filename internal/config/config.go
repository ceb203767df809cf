/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables,
// optionally overlaid with a YAML file (SHUTTLE_CONFIG_FILE).
type Config struct {
	Environment     string
	HTTPBind        string
	HTTPPort        int
	BaseURL         string // Public base URL (e.g., http://shuttles.example.com)
	DBBackend       DatabaseBackend
	DBDSN           string
	JWTSigningKey   string
	JWTTTL          time.Duration
	MetricsBind     string
	MaxUploadSizeMB int // Optional multipart upload limit override for timetable uploads (MB)
	UploadRoot      string

	// S3 archive for uploaded timetable files
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Redis cache for the public timetable view
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Cross-instance event bridge: "none", "nats" or "redis".
	EventBridge string
	NATSURL     string

	// First super admin, created only when the admin table is empty.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	LegacyEnvWarnings []string
}

// fileConfig mirrors the subset of Config that may be set from the YAML
// overlay file. Environment variables win over file values.
type fileConfig struct {
	Environment   string `yaml:"environment"`
	HTTPBind      string `yaml:"http_bind"`
	HTTPPort      int    `yaml:"http_port"`
	BaseURL       string `yaml:"base_url"`
	DBBackend     string `yaml:"db_backend"`
	DBDSN         string `yaml:"db_dsn"`
	JWTSigningKey string `yaml:"jwt_signing_key"`
	MetricsBind   string `yaml:"metrics_bind"`
	UploadRoot    string `yaml:"upload_root"`
	RedisAddr     string `yaml:"redis_addr"`
	NATSURL       string `yaml:"nats_url"`
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:     getEnvAny([]string{"SHUTTLE_ENV", "NODE_ENV"}, "development"),
		HTTPBind:        getEnv("SHUTTLE_HTTP_BIND", "0.0.0.0"),
		HTTPPort:        getEnvIntAny([]string{"SHUTTLE_HTTP_PORT", "PORT"}, 8080),
		BaseURL:         getEnv("SHUTTLE_BASE_URL", ""),
		DBBackend:       DatabaseBackend(getEnv("SHUTTLE_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:           getEnvAny([]string{"SHUTTLE_DB_DSN", "DATABASE_URL"}, ""),
		JWTSigningKey:   getEnvAny([]string{"SHUTTLE_JWT_SIGNING_KEY", "JWT_SECRET"}, ""),
		JWTTTL:          time.Duration(getEnvInt("SHUTTLE_JWT_TTL_HOURS", 24)) * time.Hour,
		MetricsBind:     getEnv("SHUTTLE_METRICS_BIND", "127.0.0.1:9000"),
		MaxUploadSizeMB: getEnvInt("SHUTTLE_MAX_UPLOAD_SIZE_MB", 0),
		UploadRoot:      getEnv("SHUTTLE_UPLOAD_ROOT", "./uploads"),

		S3AccessKeyID:     getEnvAny([]string{"SHUTTLE_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"SHUTTLE_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"SHUTTLE_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"SHUTTLE_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"SHUTTLE_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBool("SHUTTLE_S3_USE_PATH_STYLE", false),

		TracingEnabled:    getEnvBool("SHUTTLE_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SHUTTLE_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SHUTTLE_TRACING_SAMPLE_RATE", 1.0),

		RedisAddr:     getEnv("SHUTTLE_REDIS_ADDR", ""),
		RedisPassword: getEnv("SHUTTLE_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("SHUTTLE_REDIS_DB", 0),

		EventBridge: strings.ToLower(getEnv("SHUTTLE_EVENT_BRIDGE", "none")),
		NATSURL:     getEnv("SHUTTLE_NATS_URL", "nats://localhost:4222"),

		BootstrapAdminEmail:    getEnvAny([]string{"SHUTTLE_BOOTSTRAP_ADMIN_EMAIL", "ADMIN_EMAIL"}, ""),
		BootstrapAdminPassword: getEnvAny([]string{"SHUTTLE_BOOTSTRAP_ADMIN_PASSWORD", "ADMIN_PASSWORD"}, ""),
	}

	if path := os.Getenv("SHUTTLE_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SHUTTLE_DB_DSN or DATABASE_URL must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("SHUTTLE_JWT_SIGNING_KEY or JWT_SECRET must be provided")
	}

	switch cfg.EventBridge {
	case "none", "nats":
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("SHUTTLE_REDIS_ADDR must be set when the redis event bridge is enabled")
		}
	default:
		return nil, fmt.Errorf("unsupported event bridge %q", cfg.EventBridge)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if len(cfg.JWTSigningKey) < 32 {
			return nil, fmt.Errorf("SHUTTLE_JWT_SIGNING_KEY must be at least 32 bytes in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// applyFile overlays file values for keys the environment left at their
// zero/default state. Environment variables always win.
func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if os.Getenv("SHUTTLE_ENV") == "" && os.Getenv("NODE_ENV") == "" && fc.Environment != "" {
		c.Environment = fc.Environment
	}
	if os.Getenv("SHUTTLE_HTTP_BIND") == "" && fc.HTTPBind != "" {
		c.HTTPBind = fc.HTTPBind
	}
	if os.Getenv("SHUTTLE_HTTP_PORT") == "" && os.Getenv("PORT") == "" && fc.HTTPPort != 0 {
		c.HTTPPort = fc.HTTPPort
	}
	if os.Getenv("SHUTTLE_BASE_URL") == "" && fc.BaseURL != "" {
		c.BaseURL = fc.BaseURL
	}
	if os.Getenv("SHUTTLE_DB_BACKEND") == "" && fc.DBBackend != "" {
		c.DBBackend = DatabaseBackend(fc.DBBackend)
	}
	if c.DBDSN == "" && fc.DBDSN != "" {
		c.DBDSN = fc.DBDSN
	}
	if c.JWTSigningKey == "" && fc.JWTSigningKey != "" {
		c.JWTSigningKey = fc.JWTSigningKey
	}
	if os.Getenv("SHUTTLE_METRICS_BIND") == "" && fc.MetricsBind != "" {
		c.MetricsBind = fc.MetricsBind
	}
	if os.Getenv("SHUTTLE_UPLOAD_ROOT") == "" && fc.UploadRoot != "" {
		c.UploadRoot = fc.UploadRoot
	}
	if c.RedisAddr == "" && fc.RedisAddr != "" {
		c.RedisAddr = fc.RedisAddr
	}
	if os.Getenv("SHUTTLE_NATS_URL") == "" && fc.NATSURL != "" {
		c.NATSURL = fc.NATSURL
	}
	return nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"DATABASE_URL": "use SHUTTLE_DB_DSN",
		"JWT_SECRET":   "use SHUTTLE_JWT_SIGNING_KEY",
		"PORT":         "use SHUTTLE_HTTP_PORT",
		"NODE_ENV":     "use SHUTTLE_ENV",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// MaxUploadSizeBytes returns the configured upload limit in bytes.
// A value of 0 means "not configured" and callers should use endpoint defaults.
func (c *Config) MaxUploadSizeBytes() int64 {
	if c == nil || c.MaxUploadSizeMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	return getEnvBoolAny([]string{key}, def)
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}
