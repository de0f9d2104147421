package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Secrets
	EncryptionSecret string
	JWTSecret        string
	AdminTokenExpiry time.Duration

	// Google OAuth / Gmail
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleRedirectURI   string
	GoogleProjectID     string
	GooglePubSubTopic   string
	GooglePubSubSub     string
	GoogleCredentials   string
	PubSubToken         string
	WatchLabelName      string
	DefaultConnectQuery string
	FallbackWindow      string
	AppBaseURL          string

	// AI
	AIProvider    string
	GeminiApiKey  string
	GeminiModel   string
	OllamaBaseURL string
	OllamaModel   string

	// Notifications / events
	FirebaseCredentials string
	NatsURL             string
	NatsStream          string

	// Pipeline tuning
	BackoffRetries      int
	BackoffBaseDelay    time.Duration
	ExtractionBatchSize int
	ExtractionLockTTL   time.Duration

	// Background scheduler
	SchedulerInterval time.Duration
	WatchRenewBefore  time.Duration
	ExtractInterval   time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "locum"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		EncryptionSecret: getEnv("ENCRYPTION_SECRET", ""),
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		AdminTokenExpiry: getDuration("ADMIN_TOKEN_EXPIRY", 30*24*time.Hour),

		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:   getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/auth/google/callback"),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GooglePubSubSub:     getEnv("GOOGLE_PUBSUB_SUBSCRIPTION", ""),
		GoogleCredentials:   getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		PubSubToken:         getEnv("PUBSUB_VERIFICATION_TOKEN", ""),
		WatchLabelName:      getEnv("WATCH_LABEL_NAME", "Locum"),
		DefaultConnectQuery: getEnv("DEFAULT_GMAIL_QUERY", `newer_than:30d (locum OR shift OR cover OR booking OR rate OR "£")`),
		FallbackWindow:      getEnv("FALLBACK_WINDOW", "newer_than:14d"),
		AppBaseURL:          getEnv("APP_BASE_URL", "http://localhost:3000"),

		AIProvider:    getEnv("AI_PROVIDER", "auto"),
		GeminiApiKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		NatsURL:             getEnv("NATS_URL", ""),
		NatsStream:          getEnv("NATS_STREAM", "SHIFT_EVENTS"),

		BackoffRetries:      getInt("BACKOFF_RETRIES", 3),
		BackoffBaseDelay:    getDuration("BACKOFF_BASE_DELAY", 500*time.Millisecond),
		ExtractionBatchSize: getInt("EXTRACTION_BATCH_SIZE", 20),
		ExtractionLockTTL:   getDuration("EXTRACTION_LOCK_TTL", 15*time.Minute),

		SchedulerInterval: getDuration("SCHEDULER_INTERVAL", 0),
		WatchRenewBefore:  getDuration("WATCH_RENEW_BEFORE", 24*time.Hour),
		ExtractInterval:   getDuration("EXTRACT_INTERVAL", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
