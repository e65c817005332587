package config

import (
	"os"
	"strconv"
	"time"

	"attendly/internal/database"
	"attendly/internal/external"
	"attendly/internal/messaging"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	VerifyTimeout  time.Duration

	// Janitor settings
	PendingTTL    time.Duration
	AuditInterval time.Duration

	Database database.Config
	NATS     messaging.Config
	Payment  external.PaymentConfig
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		VerifyTimeout:  time.Duration(getEnvInt("VERIFY_TIMEOUT_SEC", 5)) * time.Second,

		PendingTTL:    time.Duration(getEnvInt("PENDING_TTL_MIN", 60)) * time.Minute,
		AuditInterval: time.Duration(getEnvInt("AUDIT_INTERVAL_MIN", 15)) * time.Minute,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "attendly"),
			Password:           getEnv("DB_PASSWORD", "attendly123"),
			DBName:             getEnv("DB_NAME", "attendly"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "attendly"),
			ClientID:  getEnv("NATS_CLIENT_ID", "attendly-api"),
		},

		Payment: external.PaymentConfig{
			BaseURL:       getEnv("PAYMENT_GATEWAY_URL", "https://api.razorpay.com"),
			KeyID:         getEnv("PAYMENT_KEY_ID", ""),
			KeySecret:     getEnv("PAYMENT_KEY_SECRET", ""),
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			Timeout:       time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
