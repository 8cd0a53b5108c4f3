// Package config provides application configuration management.
// It loads settings from environment variables (optionally seeded from a .env
// file) and validates them before the server starts.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Alert sink kinds accepted by EnvAlertSink.
const (
	AlertSinkKafka = "kafka"
	AlertSinkRedis = "redis"
	AlertSinkLog   = "log"
)

// Config holds all application configuration
type Config struct {
	// LINE Bot Configuration
	LineChannelToken  string
	LineChannelSecret string

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	WebhookTimeout  time.Duration

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Observability
	BetterStackToken string
	Sentry           SentryConfig

	Provider ProviderConfig
	Alert    AlertConfig

	// Bot holds the operator-supplied commands, countries and message templates.
	Bot Bot
}

// ProviderConfig configures the air-quality data provider client.
type ProviderConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// AlertConfig configures where alert events are published.
type AlertConfig struct {
	Sink           string // kafka, redis or log
	Topic          string // Kafka topic or Redis channel
	PublishTimeout time.Duration

	KafkaBrokers []string

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int
}

// SentryConfig configures Sentry error tracking (Better Stack compatible).
type SentryConfig struct {
	Token       string
	Host        string
	Environment string
	SampleRate  float64
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		WebhookTimeout:  getDurationEnv(EnvWebhookTimeout, WebhookProcessing),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		BetterStackToken: getEnv(EnvBetterStackToken, ""),
		Sentry: SentryConfig{
			Token:       getEnv(EnvSentryToken, ""),
			Host:        getEnv(EnvSentryHost, ""),
			Environment: getEnv(EnvSentryEnvironment, "production"),
			SampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),
		},

		Provider: ProviderConfig{
			BaseURL:    strings.TrimRight(getEnv(EnvProviderBaseURL, "https://api.openaq.org/v1"), "/"),
			Timeout:    getDurationEnv(EnvProviderTimeout, ProviderRequest),
			MaxRetries: getIntEnv(EnvProviderMaxRetries, 2),
		},

		Alert: AlertConfig{
			Sink:           strings.ToLower(getEnv(EnvAlertSink, AlertSinkKafka)),
			Topic:          getEnv(EnvAlertTopic, "airquality-alerts"),
			PublishTimeout: getDurationEnv(EnvAlertPublishTimeout, AlertPublish),
			KafkaBrokers:   SplitList(getEnv(EnvKafkaBrokers, "localhost:9092")),
			RedisAddr:      getEnv(EnvRedisAddr, "localhost:6379"),
			RedisUsername:  getEnv(EnvRedisUsername, ""),
			RedisPassword:  getEnv(EnvRedisPassword, ""),
			RedisDB:        getIntEnv(EnvRedisDB, 0),
		},

		Bot: LoadBot(),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.LineChannelToken == "" {
		errs = append(errs, errors.New(EnvLineChannelAccessToken+" is required"))
	}
	if c.LineChannelSecret == "" {
		errs = append(errs, errors.New(EnvLineChannelSecret+" is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New(EnvPort+" is required"))
	}
	if c.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvWebhookTimeout, c.WebhookTimeout))
	}
	if err := c.Provider.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("provider config: %w", err))
	}
	if err := c.Alert.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("alert config: %w", err))
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}
	if c.Sentry.Token != "" && c.Sentry.Host == "" {
		errs = append(errs, errors.New(EnvSentryHost+" is required when "+EnvSentryToken+" is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the provider settings.
func (p ProviderConfig) Validate() error {
	var errs []error
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", EnvProviderBaseURL, p.BaseURL))
	}
	if p.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvProviderTimeout, p.Timeout))
	}
	if p.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvProviderMaxRetries, p.MaxRetries))
	}
	return errors.Join(errs...)
}

// Validate checks the alert sink settings.
func (a AlertConfig) Validate() error {
	var errs []error
	switch a.Sink {
	case AlertSinkKafka:
		if len(a.KafkaBrokers) == 0 {
			errs = append(errs, errors.New(EnvKafkaBrokers+" is required for the kafka sink"))
		}
	case AlertSinkRedis:
		if a.RedisAddr == "" {
			errs = append(errs, errors.New(EnvRedisAddr+" is required for the redis sink"))
		}
	case AlertSinkLog:
	default:
		errs = append(errs, fmt.Errorf("%s must be one of kafka, redis, log; got %q", EnvAlertSink, a.Sink))
	}
	if a.Sink != AlertSinkLog && a.Topic == "" {
		errs = append(errs, errors.New(EnvAlertTopic+" is required"))
	}
	if a.PublishTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvAlertPublishTimeout, a.PublishTimeout))
	}
	return errors.Join(errs...)
}

// SplitList splits a comma-separated value, trimming blanks and dropping empty items.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
