package alert

import (
	"context"

	"github.com/garyellow/airquality-linebot-go/internal/logger"
)

// LogSink writes events to the application log. Used when no broker is
// available, e.g. in local development.
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log.WithModule("alert")}
}

func (s *LogSink) Publish(ctx context.Context, ev Event) error {
	s.logger.WithFields(map[string]any{
		"country":   ev.Country,
		"city":      ev.City,
		"parameter": ev.Parameter,
		"value":     ev.Value + " " + ev.Unit,
	}).InfoContext(ctx, "Alert event")
	return nil
}

func (s *LogSink) Close() error { return nil }

func (s *LogSink) Name() string { return "log" }
