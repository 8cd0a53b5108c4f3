// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Core (Required)
	EnvLineChannelAccessToken = "AQ_LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "AQ_LINE_CHANNEL_SECRET"

	// Server
	EnvPort            = "AQ_PORT"
	EnvLogLevel        = "AQ_LOG_LEVEL"
	EnvShutdownTimeout = "AQ_SHUTDOWN_TIMEOUT"

	// Webhook
	EnvWebhookTimeout = "AQ_WEBHOOK_TIMEOUT"

	// Provider (OpenAQ-compatible API)
	EnvProviderBaseURL    = "AQ_PROVIDER_BASE_URL"
	EnvProviderTimeout    = "AQ_PROVIDER_TIMEOUT"
	EnvProviderMaxRetries = "AQ_PROVIDER_MAX_RETRIES"

	// Bot commands, countries and messages
	EnvResetCommand    = "AQ_RESET_COMMAND"
	EnvStartCommand    = "AQ_START_COMMAND"
	EnvCountries       = "AQ_COUNTRIES"
	EnvMsgWelcome      = "AQ_MSG_WELCOME"
	EnvMsgStart        = "AQ_MSG_START"
	EnvMsgInvalid      = "AQ_MSG_INVALID"
	EnvMsgNotFound     = "AQ_MSG_NOT_FOUND"
	EnvMsgValuesFormat = "AQ_MSG_VALUES"

	// Alert sink
	EnvAlertSink           = "AQ_ALERT_SINK"
	EnvAlertTopic          = "AQ_ALERT_TOPIC"
	EnvAlertPublishTimeout = "AQ_ALERT_PUBLISH_TIMEOUT"
	EnvKafkaBrokers        = "AQ_KAFKA_BROKERS"
	EnvRedisAddr           = "AQ_REDIS_ADDR"
	EnvRedisUsername       = "AQ_REDIS_USERNAME"
	EnvRedisPassword       = "AQ_REDIS_PASSWORD"
	EnvRedisDB             = "AQ_REDIS_DB"

	// Sentry Feature
	EnvSentryToken       = "AQ_SENTRY_TOKEN"
	EnvSentryHost        = "AQ_SENTRY_HOST"
	EnvSentryEnvironment = "AQ_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "AQ_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken = "AQ_BETTERSTACK_TOKEN"

	// Metrics Auth Feature
	EnvMetricsUsername = "AQ_METRICS_USERNAME"
	EnvMetricsPassword = "AQ_METRICS_PASSWORD"
)
