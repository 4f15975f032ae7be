package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port                    string
	BotPort                 string
	CORSAllowOrigin         []string
	LogLevel                string
	ObjectStoreType         string
	LocalStoreDir           string
	AWSRegion               string
	S3Bucket                string
	S3Prefix                string
	SSEKMSKeyID             string
	MinioEndpoint           string
	MinioAccessKey          string
	MinioSecretKey          string
	MinioBucket             string
	MinioUseSSL             bool
	DatabaseURL             string
	Env                     string
	StateStoreType          string
	StateTTL                time.Duration
	RedisAddr               string
	RedisPassword           string
	QueueType               string
	SQSQueueURL             string
	QueueStream             string
	RabbitMQURL             string
	ExcerptLength           int
	MaxStepAttempts         int
	EventRegistrationPolicy string
	WebhookSecret           string
	AutoMigrate             bool
}

// Load reads configuration from .env files, an optional YAML file and environment
// variables, in that order of increasing precedence.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Printf("config file ignored: %v", err)
	}

	env := normalizeEnv(getEnv("ENV", file.Env, "dev"))
	dbURL := getEnv("DATABASE_URL", file.DatabaseURL, "")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                    getEnv("PORT", file.Port, "8000"),
		BotPort:                 getEnv("BOT_PORT", file.BotPort, "8081"),
		CORSAllowOrigin:         splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", strings.Join(file.CORSAllowOrigins, ","), "http://localhost:5173")),
		LogLevel:                getEnv("LOG_LEVEL", file.LogLevel, "info"),
		ObjectStoreType:         normalizeStoreType(getEnv("OBJECT_STORE", file.ObjectStore, "local")),
		LocalStoreDir:           getEnv("ASSETS_DIR", file.AssetsDir, "assets"),
		AWSRegion:               getEnv("AWS_REGION", file.AWSRegion, ""),
		S3Bucket:                getEnv("S3_BUCKET", file.S3Bucket, ""),
		S3Prefix:                getEnv("S3_PREFIX", file.S3Prefix, ""),
		SSEKMSKeyID:             getEnv("SSE_KMS_KEY_ID", "", ""),
		MinioEndpoint:           getEnv("MINIO_ENDPOINT", file.MinioEndpoint, ""),
		MinioAccessKey:          getEnv("MINIO_ACCESS_KEY", "", ""),
		MinioSecretKey:          getEnv("MINIO_SECRET_KEY", "", ""),
		MinioBucket:             getEnv("MINIO_BUCKET", file.MinioBucket, "critiques"),
		MinioUseSSL:             getBool("MINIO_USE_SSL", file.MinioUseSSL),
		DatabaseURL:             dbURL,
		Env:                     env,
		StateStoreType:          normalizeStateStore(getEnv("STATE_STORE", file.StateStore, "memory")),
		StateTTL:                getDuration("STATE_TTL", file.StateTTL, 30*time.Minute),
		RedisAddr:               getEnv("REDIS_ADDR", file.RedisAddr, ""),
		RedisPassword:           getEnv("REDIS_PASSWORD", "", ""),
		QueueType:               normalizeQueueType(getEnv("QUEUE", file.Queue, "none")),
		SQSQueueURL:             getEnv("SQS_QUEUE_URL", file.SQSQueueURL, ""),
		QueueStream:             getEnv("QUEUE_STREAM", file.QueueStream, "critiques:events"),
		RabbitMQURL:             getEnv("RABBITMQ_URL", "", ""),
		ExcerptLength:           getInt("EXCERPT_LENGTH", file.ExcerptLength, 1000),
		MaxStepAttempts:         getInt("MAX_STEP_ATTEMPTS", file.MaxStepAttempts, 5),
		EventRegistrationPolicy: normalizeRegistrationPolicy(getEnv("EVENT_REGISTRATION_POLICY", file.EventRegistrationPolicy, "accumulate")),
		WebhookSecret:           getEnv("WEBHOOK_SECRET", "", ""),
		AutoMigrate:             getBool("AUTO_MIGRATE", file.AutoMigrate == nil || *file.AutoMigrate),
	}
}

// getEnv prefers the environment, then the file value, then def.
func getEnv(key, fileVal, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if strings.TrimSpace(fileVal) != "" {
		return fileVal
	}
	return def
}

func getInt(key string, fileVal, def int) int {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
		log.Printf("config %s invalid int: %q", key, raw)
	}
	if fileVal > 0 {
		return fileVal
	}
	return def
}

func getBool(key string, fileVal bool) bool {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return fileVal
}

func getDuration(key, fileVal string, def time.Duration) time.Duration {
	for _, raw := range []string{os.Getenv(key), fileVal} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
		log.Printf("config %s invalid duration: %q", key, raw)
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

func normalizeStateStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return "redis"
	default:
		return "memory"
	}
}

func normalizeQueueType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	case "redis":
		return "redis"
	case "rabbitmq", "amqp":
		return "rabbitmq"
	default:
		return "none"
	}
}

func normalizeRegistrationPolicy(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dedupe", "upsert":
		return "dedupe"
	default:
		return "accumulate"
	}
}
