package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	VerifyToken   string
	WebhookSecret string

	DBDriver   string // sqlite or postgres
	DBPath     string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	SheetsToken string

	WorkerCount   int
	QueueDepth    int
	DedupWindow   time.Duration
	ReplyTTL      time.Duration
	ReplyGrace    time.Duration
	SweepInterval time.Duration
	HTTPTimeout   time.Duration
	RetryAttempts int
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		VerifyToken:   getEnv("VERIFY_TOKEN", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./storepulse.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "storepulse"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		SheetsToken: getEnv("SHEETS_TOKEN", ""),

		WorkerCount:   getEnvInt("WORKER_COUNT", 8),
		QueueDepth:    getEnvInt("QUEUE_DEPTH", 64),
		DedupWindow:   getEnvDuration("DEDUP_WINDOW", 5*time.Minute),
		ReplyTTL:      getEnvDuration("REPLY_TTL", 10*time.Minute),
		ReplyGrace:    getEnvDuration("REPLY_GRACE", 30*time.Minute),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
		HTTPTimeout:   getEnvDuration("HTTP_TIMEOUT", 15*time.Second),
		RetryAttempts: getEnvInt("RETRY_ATTEMPTS", 3),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: invalid duration for %s, using default %s", key, fallback)
	}
	return fallback
}
