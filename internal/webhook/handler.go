// Package webhook receives LINE webhook events and answers them through the
// dispatcher, sending replies with the LINE Messaging API.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/garyellow/airquality-linebot-go/internal/config"
	"github.com/garyellow/airquality-linebot-go/internal/ctxutil"
	"github.com/garyellow/airquality-linebot-go/internal/dispatcher"
	"github.com/garyellow/airquality-linebot-go/internal/lineutil"
	"github.com/garyellow/airquality-linebot-go/internal/logger"
	"github.com/garyellow/airquality-linebot-go/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// maxEventsPerWebhook bounds the events processed from one request.
const maxEventsPerWebhook = 100

// loadingSeconds covers a lookup with retries, up to the event timeout.
const loadingSeconds int32 = 30

// Messenger is the part of the LINE Messaging API client the handler uses.
type Messenger interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
	PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
	ShowLoadingAnimation(req *messaging_api.ShowLoadingAnimationRequest) (*map[string]interface{}, error)
}

// MessageDispatcher turns chat input into replies.
type MessageDispatcher interface {
	Handle(ctx context.Context, text string, out dispatcher.ChatSink) error
	Greet(ctx context.Context, out dispatcher.ChatSink) error
}

// Handler handles LINE webhook events
type Handler struct {
	channelSecret  string
	client         Messenger
	dispatcher     MessageDispatcher
	metrics        *metrics.Metrics
	logger         *logger.Logger
	webhookTimeout time.Duration
	wg             sync.WaitGroup // WaitGroup for async event processing
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	ChannelSecret  string
	ChannelToken   string
	WebhookTimeout time.Duration
	Dispatcher     MessageDispatcher
	Metrics        *metrics.Metrics
	Logger         *logger.Logger

	// Messenger overrides the LINE client built from ChannelToken.
	Messenger Messenger
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	client := cfg.Messenger
	if client == nil {
		api, err := messaging_api.NewMessagingApiAPI(cfg.ChannelToken)
		if err != nil {
			return nil, fmt.Errorf("create messaging API client: %w", err)
		}
		client = api
	}

	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = config.WebhookProcessing
	}

	return &Handler{
		channelSecret:  cfg.ChannelSecret,
		client:         client,
		dispatcher:     cfg.Dispatcher,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.WithModule("webhook"),
		webhookTimeout: timeout,
	}, nil
}

// Handle is the Gin handler for the webhook endpoint
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("Invalid webhook signature")
			c.Status(http.StatusBadRequest)
		} else {
			h.logger.WithError(err).Error("Failed to parse webhook request")
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	// LINE expects a fast 200; events are processed after the response.
	c.Status(http.StatusOK)

	if len(cb.Events) > maxEventsPerWebhook {
		h.logger.WithField("event_count", len(cb.Events)).
			WithField("limit", maxEventsPerWebhook).
			Warn("Too many events in webhook batch; truncating")
		cb.Events = cb.Events[:maxEventsPerWebhook]
	}

	events := make([]webhook.EventInterface, len(cb.Events))
	copy(events, cb.Events)

	// Keep the Sentry hub and request ID, drop the request's cancellation.
	baseCtx := ctxutil.PreserveTracing(c.Request.Context())

	for _, event := range events {
		h.wg.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					h.logger.WithField("panic", r).Error("Panic in async event processing")
				}
			}()

			h.processEvent(baseCtx, event)
		})
	}
}

// processEvent answers a single webhook event.
func (h *Handler) processEvent(parent context.Context, event webhook.EventInterface) {
	ctx, cancel := context.WithTimeout(parent, h.webhookTimeout)
	defer cancel()

	start := time.Now()
	eventID, source, replyToken := extractEventMeta(event)
	if eventID != "" {
		ctx = ctxutil.WithRequestID(ctx, eventID)
	}
	chatID := lineutil.GetChatID(source)
	ctx = ctxutil.WithChatID(ctx, chatID)
	ctx = ctxutil.WithUserID(ctx, lineutil.GetUserID(source))

	log := h.logger
	if eventID != "" {
		log = log.WithRequestID(eventID)
	}

	out := &dispatcher.Collector{}
	var eventType string
	var err error

	switch e := event.(type) {
	case webhook.MessageEvent:
		eventType = "message"
		text, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			log.WithField("message_type", e.Message.GetType()).Debug("Ignoring non-text message")
			return
		}
		if loadErr := h.showLoadingAnimation(chatID); loadErr != nil {
			log.WithError(loadErr).Debug("Failed to show loading animation")
		}
		err = h.dispatcher.Handle(ctx, text.Text, out)
	case webhook.FollowEvent:
		eventType = "follow"
		err = h.dispatcher.Greet(ctx, out)
	default:
		log.WithField("event_type", fmt.Sprintf("%T", e)).Debug("Unsupported event type")
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		log.WithError(err).WithField("event_type", eventType).Error("Failed to handle event")
	}

	if replies := out.Replies(); len(replies) > 0 {
		if sendErr := h.send(replyToken, chatID, lineutil.FromReplies(replies)); sendErr != nil {
			status = "reply_error"
			log.WithError(sendErr).WithField("event_type", eventType).Error("Failed to send reply")
		}
	}

	h.metrics.RecordWebhook(eventType, status, time.Since(start).Seconds())
	log.WithField("event_type", eventType).
		WithField("replies", len(out.Replies())).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Event processed")
}

// showLoadingAnimation shows the typing indicator while the provider is queried.
// LINE only supports it in one-on-one chats and ignores other chat IDs.
func (h *Handler) showLoadingAnimation(chatID string) error {
	if chatID == "" {
		return nil
	}

	// LINE API: loadingSeconds must be 5-60 seconds, multiple of 5.
	// The animation stops early once a reply is sent.
	req := &messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: loadingSeconds,
	}
	if _, err := h.client.ShowLoadingAnimation(req); err != nil {
		return fmt.Errorf("show loading animation: %w", err)
	}
	return nil
}

// send uses the reply token for the first batch and pushes the rest to the
// chat, since a reply token is valid for one request only.
func (h *Handler) send(replyToken, chatID string, messages []messaging_api.MessageInterface) error {
	batches := lineutil.Batch(messages, lineutil.MaxMessagesPerReply)

	if replyToken != "" {
		if _, err := h.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   batches[0],
		}); err != nil {
			return fmt.Errorf("reply message: %w", err)
		}
		batches = batches[1:]
	}

	if len(batches) > 0 && chatID == "" {
		return fmt.Errorf("no chat to push %d remaining batches to", len(batches))
	}

	var errs []error
	for _, batch := range batches {
		if _, err := h.client.PushMessage(&messaging_api.PushMessageRequest{
			To:       chatID,
			Messages: batch,
		}, uuid.NewString()); err != nil {
			errs = append(errs, fmt.Errorf("push message: %w", err))
		}
	}
	return errors.Join(errs...)
}

func extractEventMeta(event webhook.EventInterface) (eventID string, source webhook.SourceInterface, replyToken string) {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return e.WebhookEventId, e.Source, e.ReplyToken
	case webhook.FollowEvent:
		return e.WebhookEventId, e.Source, e.ReplyToken
	default:
		return "", nil, ""
	}
}

// Shutdown waits for all async event processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		h.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
