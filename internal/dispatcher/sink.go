package dispatcher

import (
	"context"
	"sync"

	"github.com/garyellow/airquality-linebot-go/internal/logger"
	"github.com/garyellow/airquality-linebot-go/internal/reply"
)

// ChatSink receives the replies produced for one inbound message.
// Emit may be called from several goroutines at once.
type ChatSink interface {
	Emit(ctx context.Context, r reply.Reply) error
}

// ChatSinkFunc adapts a function to ChatSink.
type ChatSinkFunc func(ctx context.Context, r reply.Reply) error

func (f ChatSinkFunc) Emit(ctx context.Context, r reply.Reply) error {
	return f(ctx, r)
}

// Collector is a ChatSink that buffers replies in emission order.
type Collector struct {
	mu      sync.Mutex
	replies []reply.Reply
}

func (c *Collector) Emit(_ context.Context, r reply.Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, r.Clone())
	return nil
}

// Replies returns a copy of the buffered replies.
func (c *Collector) Replies() []reply.Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]reply.Reply, len(c.replies))
	copy(out, c.replies)
	return out
}

// Tap observes inbound messages and outbound replies.
type Tap interface {
	Inbound(ctx context.Context, text string)
	Outbound(ctx context.Context, r reply.Reply)
}

// LogTap mirrors traffic to the application log.
type LogTap struct {
	logger *logger.Logger
}

// NewLogTap creates a tap writing at info level.
func NewLogTap(log *logger.Logger) *LogTap {
	return &LogTap{logger: log.WithModule("tap")}
}

func (t *LogTap) Inbound(ctx context.Context, text string) {
	t.logger.WithField("direction", "in").
		WithField("text", text).
		InfoContext(ctx, "Chat message")
}

func (t *LogTap) Outbound(ctx context.Context, r reply.Reply) {
	t.logger.WithField("direction", "out").
		WithField("text", r.Text).
		WithField("options", len(r.Options)).
		InfoContext(ctx, "Chat message")
}
