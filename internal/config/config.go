package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	ListenAddr                 string
	DatabaseURL                string
	RedisAddr                  string
	CORSAllowedOrigins         []string
	AdminAPIKey                string
	IngestAPIKey               string
	ExportTokenSecret          string
	ExportTokenTTLSeconds      int
	ReportingTimeZone          string
	MaxUploadBytes             int64
	MaxArchiveBytes            int64
	ImportLockTTLSeconds       int
	RateLimitRequestsPerSec    float64
	RateLimitBurst             int
	AutoCleanupIntervalMinutes int
	RunRetentionDays           int
	WebhookURL                 string
	WebhookAuthHeader          string
	S3Region                   string
	S3Endpoint                 string
	S3AccessKey                string
	S3SecretKey                string
	S3Bucket                   string
}

func Load() Config {
	port := envOrDefault("API_PORT", "8080")

	return Config{
		ListenAddr:                 ":" + port,
		DatabaseURL:                databaseURL(),
		RedisAddr:                  redisAddr(),
		CORSAllowedOrigins:         parseCSV(envOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		AdminAPIKey:                os.Getenv("ADMIN_API_KEY"),
		IngestAPIKey:               os.Getenv("INGEST_API_KEY"),
		ExportTokenSecret:          exportTokenSecret(),
		ExportTokenTTLSeconds:      envOrDefaultInt("EXPORT_TOKEN_TTL_SECONDS", 900),
		ReportingTimeZone:          envOrDefault("REPORTING_TIMEZONE", "UTC"),
		MaxUploadBytes:             envOrDefaultInt64("MAX_UPLOAD_BYTES", 2<<30),
		MaxArchiveBytes:            envOrDefaultInt64("MAX_ARCHIVE_BYTES", 32<<20),
		ImportLockTTLSeconds:       envOrDefaultInt("IMPORT_LOCK_TTL_SECONDS", 600),
		RateLimitRequestsPerSec:    envOrDefaultFloat("RATE_LIMIT_REQUESTS_PER_SEC", 25),
		RateLimitBurst:             envOrDefaultInt("RATE_LIMIT_BURST", 50),
		AutoCleanupIntervalMinutes: envOrDefaultInt("AUTO_CLEANUP_INTERVAL_MINUTES", 0),
		RunRetentionDays:           envOrDefaultInt("RUN_RETENTION_DAYS", 90),
		WebhookURL:                 os.Getenv("IMPORT_WEBHOOK_URL"),
		WebhookAuthHeader:          os.Getenv("IMPORT_WEBHOOK_AUTH_HEADER"),
		S3Region:                   envOrDefault("S3_REGION", "us-east-1"),
		S3Endpoint:                 os.Getenv("S3_ENDPOINT"),
		S3AccessKey:                envOrDefault("S3_ACCESS_KEY", ""),
		S3SecretKey:                envOrDefault("S3_SECRET_KEY", ""),
		S3Bucket:                   envOrDefault("S3_BUCKET", ""),
	}
}

func exportTokenSecret() string {
	if value := strings.TrimSpace(os.Getenv("EXPORT_TOKEN_SECRET")); value != "" {
		return value
	}
	if value := strings.TrimSpace(os.Getenv("INGEST_API_KEY")); value != "" {
		return value
	}
	return ""
}

func databaseURL() string {
	if value := os.Getenv("DATABASE_URL"); value != "" {
		return value
	}

	host := envOrDefault("POSTGRES_HOST", "localhost")
	port := envOrDefault("POSTGRES_PORT", "5432")
	user := envOrDefault("POSTGRES_USER", "carelink")
	password := envOrDefault("POSTGRES_PASSWORD", "carelink")
	database := envOrDefault("POSTGRES_DB", "carelink")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}

func redisAddr() string {
	host := envOrDefault("REDIS_HOST", "localhost")
	port := envOrDefault("REDIS_PORT", "6379")
	return fmt.Sprintf("%s:%s", host, port)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseCSV(value string) []string {
	values := strings.Split(value, ",")
	result := make([]string, 0, len(values))
	for _, item := range values {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}

	if len(result) == 0 {
		return []string{"*"}
	}
	return result
}

func envOrDefaultInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	var parsed int
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	var parsed int64
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	var parsed float64
	if _, err := fmt.Sscanf(value, "%f", &parsed); err != nil {
		return fallback
	}
	return parsed
}
