// Package config loads service settings from the environment, reading a .env
// file first when one exists.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"holidaysri-admin/internal/application/services"
	"holidaysri-admin/internal/infrastructure/cache"
	"holidaysri-admin/internal/infrastructure/cloudinary"
	"holidaysri-admin/internal/infrastructure/kafka"
	"holidaysri-admin/internal/infrastructure/mongo"
	"holidaysri-admin/internal/infrastructure/notification"

	"github.com/joho/godotenv"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// Config is the full service configuration
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	Storage     string

	JWTSecret      string
	JWTDuration    time.Duration
	LoginRateLimit int
	// TrustedProxies may set X-Forwarded-For for the login limiter
	TrustedProxies []string

	// SeedAdmin creates an admin on boot when the email is set
	SeedAdminEmail    string
	SeedAdminPassword string
	SeedAdminName     string

	Mongo      mongo.MongoConfig
	Redis      cache.RedisConfig
	Kafka      kafka.Config
	Brevo      notification.BrevoConfig
	Cloudinary cloudinary.Config
	Digest     services.DigestConfig
}

// Load reads .env (if present) and the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Storage:     strings.ToLower(getEnv("STORAGE", StorageMongo)),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTDuration:    getDuration("JWT_DURATION", 12*time.Hour),
		LoginRateLimit: getInt("LOGIN_RATE_LIMIT", 10),
		TrustedProxies: getList("TRUSTED_PROXIES"),

		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
		SeedAdminName:     getEnv("SEED_ADMIN_NAME", "Holidaysri Admin"),

		Mongo: mongo.MongoConfig{
			URI:      getEnv("MONGO_URI", ""),
			Database: getEnv("MONGO_DATABASE", "holidaysri"),
			Timeout:  getDuration("MONGO_TIMEOUT", 30*time.Second),
		},
		Redis: cache.RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Kafka: kafka.Config{
			Brokers:  getList("KAFKA_BROKERS"),
			Topic:    getEnv("KAFKA_TOPIC", "holidaysri.payout-requests"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "holidaysri-admin"),
		},
		Brevo: notification.BrevoConfig{
			APIKey:      getEnv("BREVO_API_KEY", ""),
			SenderEmail: getEnv("BREVO_SENDER_EMAIL", ""),
			SenderName:  getEnv("BREVO_SENDER_NAME", "Holidaysri"),
			BaseURL:     getEnv("BREVO_BASE_URL", "https://api.brevo.com"),
			Timeout:     getDuration("BREVO_TIMEOUT", 10*time.Second),
		},
		Cloudinary: cloudinary.Config{
			CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:       getEnv("CLOUDINARY_API_KEY", ""),
			APISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
			UploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", cloudinary.DefaultFolder),
		},
		Digest: services.DigestConfig{
			Schedule:   getEnv("DIGEST_SCHEDULE", "0 8 * * *"),
			StaleAfter: getDuration("DIGEST_STALE_AFTER", 72*time.Hour),
			Recipients: getList("DIGEST_RECIPIENTS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Storage {
	case StorageMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE=%s", StorageMongo)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	if c.Cloudinary.Enabled() {
		if err := c.Cloudinary.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
