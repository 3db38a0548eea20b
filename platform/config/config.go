// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides Redis connection settings for rate limiting
// and the task queue.
type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// WebhookConfig provides settings for inbound webhook authentication.
type WebhookConfig interface {
	GetServiceKey() string
}

// RateLimitConfig provides settings for the submission rate limiter.
type RateLimitConfig interface {
	GetRateLimitMax() int
	GetRateLimitWindow() time.Duration
}

// OrchestratorConfig provides settings for the AI enrichment pipeline.
type OrchestratorConfig interface {
	GetGoogleAIAPIKey() string
	GetTransformTimeout() time.Duration
	GetVisualizerModel() string
	GetEstimatorModel() string
	IsAIEnabled() bool
}

// RetryConfig provides settings for the failed-lead retry sweep.
type RetryConfig interface {
	GetRetryBatchSize() int
	GetMaxRetryAttempts() int
	GetRetrySweepInterval() time.Duration
}

// RetentionConfig provides settings for the data retention sweep.
type RetentionConfig interface {
	GetRejectedRetention() time.Duration
	GetCompletedRetention() time.Duration
	GetRetentionSweepInterval() time.Duration
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
	GetPresignTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketRawUploads() string
	GetMinioBucketProcessedImages() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                        string
	HTTPAddr                   string
	DatabaseURL                string
	RedisAddr                  string
	RedisPassword              string
	RedisDB                    int
	JWTAccessSecret            string
	ServiceKey                 string
	CORSAllowAll               bool
	CORSOrigins                []string
	CORSAllowCreds             bool
	AppBaseURL                 string
	PresignTTL                 time.Duration
	EmailEnabled               bool
	SMTPHost                   string
	SMTPPort                   int
	SMTPUsername               string
	SMTPPassword               string
	EmailFromName              string
	EmailFromAddress           string
	GoogleAIAPIKey             string
	TransformTimeout           time.Duration
	VisualizerModel            string
	EstimatorModel             string
	RateLimitMax               int
	RateLimitWindow            time.Duration
	RetryBatchSize             int
	MaxRetryAttempts           int
	RetrySweepInterval         time.Duration
	RejectedRetention          time.Duration
	CompletedRetention         time.Duration
	RetentionSweepInterval     time.Duration
	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinIOMaxFileSize           int64
	MinioBucketRawUploads      string
	MinioBucketProcessedImages string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisAddr() string     { return c.RedisAddr }
func (c *Config) GetRedisPassword() string { return c.RedisPassword }
func (c *Config) GetRedisDB() int          { return c.RedisDB }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// WebhookConfig implementation
func (c *Config) GetServiceKey() string { return c.ServiceKey }

// RateLimitConfig implementation
func (c *Config) GetRateLimitMax() int               { return c.RateLimitMax }
func (c *Config) GetRateLimitWindow() time.Duration  { return c.RateLimitWindow }

// OrchestratorConfig implementation
func (c *Config) GetGoogleAIAPIKey() string           { return c.GoogleAIAPIKey }
func (c *Config) GetTransformTimeout() time.Duration  { return c.TransformTimeout }
func (c *Config) GetVisualizerModel() string          { return c.VisualizerModel }
func (c *Config) GetEstimatorModel() string           { return c.EstimatorModel }
func (c *Config) IsAIEnabled() bool                   { return c.GoogleAIAPIKey != "" }

// RetryConfig implementation
func (c *Config) GetRetryBatchSize() int                 { return c.RetryBatchSize }
func (c *Config) GetMaxRetryAttempts() int               { return c.MaxRetryAttempts }
func (c *Config) GetRetrySweepInterval() time.Duration   { return c.RetrySweepInterval }

// RetentionConfig implementation
func (c *Config) GetRejectedRetention() time.Duration      { return c.RejectedRetention }
func (c *Config) GetCompletedRetention() time.Duration     { return c.CompletedRetention }
func (c *Config) GetRetentionSweepInterval() time.Duration { return c.RetentionSweepInterval }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string        { return c.AppBaseURL }
func (c *Config) GetPresignTTL() time.Duration { return c.PresignTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketRawUploads() string {
	return c.MinioBucketRawUploads
}
func (c *Config) GetMinioBucketProcessedImages() string {
	return c.MinioBucketProcessedImages
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                        getEnv("APP_ENV", "development"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		RedisAddr:                  getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:              getEnv("REDIS_PASSWORD", ""),
		RedisDB:                    mustInt(getEnv("REDIS_DB", "0")),
		JWTAccessSecret:            getEnv("JWT_ACCESS_SECRET", ""),
		ServiceKey:                 getEnv("SERVICE_KEY", ""),
		CORSAllowAll:               corsAllowAll,
		CORSOrigins:                corsOrigins,
		CORSAllowCreds:             strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:                 getEnv("APP_BASE_URL", "http://localhost:4200"),
		PresignTTL:                 mustDuration(getEnv("PRESIGN_TTL", "168h")),
		EmailEnabled:               emailEnabled && smtpHost != "",
		SMTPHost:                   smtpHost,
		SMTPPort:                   mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:               getEnv("SMTP_USERNAME", ""),
		SMTPPassword:               getEnv("SMTP_PASSWORD", ""),
		EmailFromName:              getEnv("EMAIL_FROM_NAME", "YardGuard"),
		EmailFromAddress:           getEnv("EMAIL_FROM_ADDRESS", ""),
		GoogleAIAPIKey:             getEnv("GOOGLE_AI_API_KEY", ""),
		TransformTimeout:           mustDuration(getEnv("TRANSFORM_TIMEOUT", "55s")),
		VisualizerModel:            getEnv("VISUALIZER_MODEL", "gemini-3-pro-image-preview"),
		EstimatorModel:             getEnv("ESTIMATOR_MODEL", "gemini-2.0-flash"),
		RateLimitMax:               mustInt(getEnv("RATE_LIMIT_MAX", "10")),
		RateLimitWindow:            mustDuration(getEnv("RATE_LIMIT_WINDOW", "1h")),
		RetryBatchSize:             mustInt(getEnv("RETRY_BATCH_SIZE", "10")),
		MaxRetryAttempts:           mustInt(getEnv("MAX_RETRY_ATTEMPTS", "3")),
		RetrySweepInterval:         mustDuration(getEnv("RETRY_SWEEP_INTERVAL", "15m")),
		RejectedRetention:          mustDuration(getEnv("REJECTED_RETENTION", "720h")),
		CompletedRetention:         mustDuration(getEnv("COMPLETED_RETENTION", "2160h")),
		RetentionSweepInterval:     mustDuration(getEnv("RETENTION_SWEEP_INTERVAL", "24h")),
		MinIOEndpoint:              getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:             getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:             getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:           mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "104857600")),
		MinioBucketRawUploads:      getEnv("MINIO_BUCKET_RAW_UPLOADS", "raw-uploads"),
		MinioBucketProcessedImages: getEnv("MINIO_BUCKET_PROCESSED_IMAGES", "processed-images"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("SERVICE_KEY is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
