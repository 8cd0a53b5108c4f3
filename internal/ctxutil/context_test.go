package ctxutil

import (
	"context"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetUserID(ctx))
	assert.Empty(t, GetChatID(ctx))
	_, ok := GetRequestID(ctx)
	assert.False(t, ok)

	ctx = WithUserID(ctx, "U123")
	ctx = WithChatID(ctx, "C456")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, "U123", GetUserID(ctx))
	assert.Equal(t, "C456", GetChatID(ctx))
	id, ok := GetRequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestGetRequestID_Empty(t *testing.T) {
	_, ok := GetRequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}

func TestPreserveTracing(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	parent = WithUserID(parent, "U1")
	parent = WithChatID(parent, "C1")
	parent = WithRequestID(parent, "R1")
	cancel()

	detached := PreserveTracing(parent)

	assert.NoError(t, detached.Err(), "detached context must not inherit cancellation")
	_, hasDeadline := detached.Deadline()
	assert.False(t, hasDeadline)
	assert.Equal(t, "U1", GetUserID(detached))
	assert.Equal(t, "C1", GetChatID(detached))
	id, _ := GetRequestID(detached)
	assert.Equal(t, "R1", id)
}

func TestPreserveTracing_KeepsSentryHub(t *testing.T) {
	hub := sentry.NewHub(nil, sentry.NewScope())
	parent := sentry.SetHubOnContext(context.Background(), hub)

	detached := PreserveTracing(parent)
	assert.Same(t, hub, sentry.GetHubFromContext(detached))
	assert.Nil(t, sentry.GetHubFromContext(PreserveTracing(context.Background())))
}
