// Package config provides centralized timeout constants for the application.
//
// LINE webhook has specific timing requirements:
//   - Reply token: valid for a short time, reply as soon as possible
//   - Webhook response: LINE expects a quick 200 OK, processing happens async
//   - Loading animation: shows for up to 60 seconds
package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing is the timeout for processing a single webhook event,
	// including provider lookups and alert publishing.
	WebhookProcessing = 30 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	WebhookHTTPWrite = 35 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// Provider timeouts
const (
	// ProviderRequest is the timeout for a single provider lookup, retries included.
	// A lookup that exceeds it is reported as a provider failure.
	ProviderRequest = 10 * time.Second

	// ProviderRetryInitial is the initial delay before retrying a failed request.
	ProviderRetryInitial = 500 * time.Millisecond
)

// Alert timeouts
const (
	// AlertPublish bounds a single alert publish call.
	AlertPublish = 5 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second

	// ReadinessProbe bounds the provider reachability check behind /ready.
	ReadinessProbe = 3 * time.Second

	// MetricsUpdateInterval is how often the cache size gauge is refreshed.
	MetricsUpdateInterval = time.Minute
)
