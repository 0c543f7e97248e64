package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Session backends
const (
	SessionBackendMemory   = "memory"
	SessionBackendRedis    = "redis"
	SessionBackendDatabase = "database"
)

// Config holds every tunable of the backend process.
type Config struct {
	Port        string
	Environment string

	UseMemoryStore bool
	Database       DatabaseConfig

	SessionBackend       string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration

	RedisAddr          string
	RedisPassword      string
	RedisSessionPrefix string

	TelegramBotToken      string
	TelegramWebhookSecret string

	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioWhatsAppFrom       string
	DisableWebhookValidation bool

	ImportAPIKey string

	KafkaBrokers []string
	KafkaTopic   string

	Timezone           string
	Location           *time.Location
	NotifyConcurrency  int
	ListingCleanupHour int
}

// DatabaseConfig describes the PostgreSQL connection
type DatabaseConfig struct {
	User                   string
	Password               string
	Name                   string
	Host                   string
	Port                   int
	InstanceConnectionName string
}

func defaultConfig() Config {
	return Config{
		Port:        "8080",
		Environment: "development",
		Database: DatabaseConfig{
			User: "postgres",
			Name: "poputky",
			Host: "localhost",
			Port: 5432,
		},
		SessionBackend:       SessionBackendMemory,
		SessionTTL:           15 * time.Minute,
		SessionSweepInterval: 5 * time.Minute,
		RedisSessionPrefix:   "poputky:session:",
		KafkaTopic:           "ride-listings",
		Timezone:             "Europe/Kyiv",
		NotifyConcurrency:    4,
		ListingCleanupHour:   3,
	}
}

// LoadDotEnv loads .env files for local development. Missing files are not an error.
func LoadDotEnv() {
	if os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("environments/.env.development"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := defaultConfig()
	var errs []error

	setStringFromEnv(&cfg.Port, "PORT")
	setStringFromEnv(&cfg.Environment, "ENVIRONMENT")
	cfg.UseMemoryStore = boolFromEnv("USE_MEMORY_STORE")

	setStringFromEnv(&cfg.Database.User, "DB_USER")
	cfg.Database.Password = os.Getenv("DB_PASS")
	setStringFromEnv(&cfg.Database.Name, "DB_NAME")
	setStringFromEnv(&cfg.Database.Host, "DB_HOST")
	setIntFromEnv(&cfg.Database.Port, "DB_PORT", &errs)
	cfg.Database.InstanceConnectionName = strings.TrimSpace(os.Getenv("INSTANCE_CONNECTION_NAME"))

	if v := strings.TrimSpace(os.Getenv("SESSION_BACKEND")); v != "" {
		cfg.SessionBackend = strings.ToLower(v)
	}
	setDurationFromEnv(&cfg.SessionTTL, "SESSION_TTL", &errs)
	setDurationFromEnv(&cfg.SessionSweepInterval, "SESSION_SWEEP_INTERVAL", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisSessionPrefix, "REDIS_SESSION_PREFIX")

	cfg.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.TelegramWebhookSecret = strings.TrimSpace(os.Getenv("TELEGRAM_WEBHOOK_SECRET"))

	cfg.TwilioAccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	cfg.TwilioAuthToken = strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN"))
	cfg.TwilioWhatsAppFrom = strings.TrimSpace(os.Getenv("TWILIO_WHATSAPP_FROM")) // Format: "whatsapp:+14155238886"
	cfg.DisableWebhookValidation = boolFromEnv("DISABLE_WEBHOOK_VALIDATION")
	cfg.ImportAPIKey = strings.TrimSpace(os.Getenv("IMPORT_API_KEY"))

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	setStringFromEnv(&cfg.Timezone, "TIMEZONE")
	setIntFromEnv(&cfg.NotifyConcurrency, "NOTIFY_CONCURRENCY", &errs)
	setIntFromEnv(&cfg.ListingCleanupHour, "LISTING_CLEANUP_HOUR", &errs)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE: %w", err))
		loc = time.UTC
	}
	cfg.Location = loc

	switch cfg.SessionBackend {
	case SessionBackendMemory, SessionBackendDatabase:
	case SessionBackendRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("SESSION_BACKEND=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend))
	}
	if cfg.SessionBackend == SessionBackendDatabase && cfg.UseMemoryStore {
		errs = append(errs, fmt.Errorf("SESSION_BACKEND=database cannot be used with USE_MEMORY_STORE"))
	}
	if cfg.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be > 0"))
	}
	if cfg.NotifyConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_CONCURRENCY must be > 0"))
	}
	if cfg.ListingCleanupHour < 0 || cfg.ListingCleanupHour > 23 {
		errs = append(errs, fmt.Errorf("LISTING_CLEANUP_HOUR must be between 0 and 23"))
	}

	return cfg, errors.Join(errs...)
}

// IsDevelopment reports whether the process runs in a development environment
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// TwilioConfigured reports whether WhatsApp credentials are present
func (c Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func boolFromEnv(key string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "true")
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
