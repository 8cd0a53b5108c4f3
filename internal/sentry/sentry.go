// Package sentry wires the Sentry SDK for error tracking. A Sentry-compatible
// ingest host (Better Stack Errors or self-hosted Sentry) receives the events.
package sentry

import (
	"context"
	"fmt"
	"time"

	"github.com/garyellow/airquality-linebot-go/internal/buildinfo"
	"github.com/garyellow/airquality-linebot-go/internal/config"
	"github.com/garyellow/airquality-linebot-go/internal/ctxutil"
	"github.com/getsentry/sentry-go"
)

// Initialize sets up the Sentry SDK from cfg.
// An empty token disables Sentry and returns nil.
// The DSN is built as https://$TOKEN@$HOST/1.
func Initialize(cfg config.SentryConfig) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return fmt.Errorf("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host),
		Environment:      cfg.Environment,
		Release:          buildinfo.Release(),
		SampleRate:       sampleRate,
		AttachStacktrace: true,
	})
}

// Flush waits for buffered events to be sent.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureException reports err using the hub attached to ctx (set by the
// gin middleware), falling back to the global hub. Chat and request IDs
// from ctx and the given tags are attached to the event.
func CaptureException(ctx context.Context, err error, tags map[string]string) {
	if err == nil || !IsEnabled() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub = hub.Clone()

	hub.WithScope(func(scope *sentry.Scope) {
		if chatID := ctxutil.GetChatID(ctx); chatID != "" {
			scope.SetTag("chat_id", chatID)
		}
		if userID := ctxutil.GetUserID(ctx); userID != "" {
			scope.SetUser(sentry.User{ID: userID})
		}
		if requestID, ok := ctxutil.GetRequestID(ctx); ok {
			scope.SetTag("request_id", requestID)
		}
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}
