package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers           []string
	KafkaGroupID           string
	ProductEventsTopic     string
	WebhookDispatchGroupID string

	// Import pipeline
	ImportBatchSize  int
	ImportWorkers    int
	ImportQueueSize  int
	ImportErrorCap   int
	ImportSchemaFile string
	ImportSpoolDir   string

	// Progress
	ProgressBroker string
	SSEKeepalive   time.Duration

	// Webhooks
	WebhookTimeout      time.Duration
	WebhookDispatchMode string
	WebhookQueueSize    int
	WebhookMaxBodyBytes int

	// OIDC (optional; mutating admin routes are open when unset)
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 64*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "importer"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "importer123"),
		PostgresDB:       getEnv("POSTGRES_DB", "importer"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:           getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:           getEnv("KAFKA_GROUP_ID", "product-importer"),
		ProductEventsTopic:     getEnv("PRODUCT_EVENTS_TOPIC", "product-events"),
		WebhookDispatchGroupID: getEnv("WEBHOOK_DISPATCH_GROUP_ID", "webhook-dispatcher"),

		ImportBatchSize:  getIntEnv("IMPORT_BATCH_SIZE", 1000),
		ImportWorkers:    getIntEnv("IMPORT_WORKERS", 4),
		ImportQueueSize:  getIntEnv("IMPORT_QUEUE_SIZE", 64),
		ImportErrorCap:   getIntEnv("IMPORT_ERROR_CAP", 100),
		ImportSchemaFile: getEnv("IMPORT_SCHEMA_FILE", ""),
		ImportSpoolDir:   getEnv("IMPORT_SPOOL_DIR", os.TempDir()),

		ProgressBroker: getEnv("PROGRESS_BROKER", "memory"),
		SSEKeepalive:   getDuration("SSE_KEEPALIVE", 15*time.Second),

		WebhookTimeout:      getDuration("WEBHOOK_TIMEOUT", 30*time.Second),
		WebhookDispatchMode: getEnv("WEBHOOK_DISPATCH_MODE", "direct"),
		WebhookQueueSize:    getIntEnv("WEBHOOK_QUEUE_SIZE", 256),
		WebhookMaxBodyBytes: getIntEnv("WEBHOOK_MAX_BODY_BYTES", 500),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
