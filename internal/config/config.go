package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Stripe     StripeConfig
	Generation GenerationConfig
}

type ServerConfig struct {
	Port          string
	PublicBaseURL string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topic   string
	Enabled bool
}

// StripeConfig carries the payment-provider secrets. Both keys may be empty:
// checkout then degrades to a "payment system not configured" error and
// webhook processing refuses to accept events.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type GenerationConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func Load() *Config {
	kafkaEnabled := getEnvBool("KAFKA_ENABLED", true)

	return &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", ":8080"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  15 * time.Second,
			IdleTimeout:   60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "store_user"),
			Password:     getEnv("DB_PASSWORD", "store_pass"),
			Database:     getEnv("DB_NAME", "template_store"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			GroupID: getEnv("KAFKA_GROUP_ID", "template-store-group"),
			Topic:   getEnv("KAFKA_TOPIC_PURCHASE_EVENTS", "purchase-events"),
			Enabled: kafkaEnabled,
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Generation: GenerationConfig{
			APIKey:  getEnv("RESEARCH_API_KEY", ""),
			BaseURL: getEnv("RESEARCH_API_URL", "https://api.perplexity.ai"),
			Model:   getEnv("RESEARCH_API_MODEL", "sonar"),
			Timeout: time.Duration(getEnvInt("RESEARCH_API_TIMEOUT_SECONDS", 60)) * time.Second,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
