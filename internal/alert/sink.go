package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/garyellow/airquality-linebot-go/internal/config"
	"github.com/garyellow/airquality-linebot-go/internal/logger"
	"github.com/garyellow/airquality-linebot-go/internal/metrics"
)

// Sink delivers alert events. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
	Name() string
}

// NewSink builds the sink selected by cfg.Sink.
func NewSink(cfg config.AlertConfig, log *logger.Logger) (Sink, error) {
	switch cfg.Sink {
	case config.AlertSinkKafka:
		return NewKafkaSink(cfg.KafkaBrokers, cfg.Topic), nil
	case config.AlertSinkRedis:
		return NewRedisSink(cfg), nil
	case config.AlertSinkLog:
		return NewLogSink(log), nil
	default:
		return nil, fmt.Errorf("unknown alert sink %q", cfg.Sink)
	}
}

// instrumented bounds each publish by a timeout, and logs and counts the outcome.
type instrumented struct {
	next    Sink
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// Instrument wraps s with a publish timeout, metrics and failure logging.
func Instrument(s Sink, timeout time.Duration, m *metrics.Metrics, log *logger.Logger) Sink {
	return &instrumented{
		next:    s,
		timeout: timeout,
		metrics: m,
		logger:  log.WithModule("alert").WithField("sink", s.Name()),
	}
}

func (i *instrumented) Publish(ctx context.Context, ev Event) error {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	err := i.next.Publish(ctx, ev)
	status := "success"
	if err != nil {
		status = "error"
		i.logger.WithError(err).
			WithField("location", ev.Key()).
			WithField("parameter", ev.Parameter).
			Warn("Failed to publish alert")
	}
	i.metrics.RecordAlert(i.next.Name(), status, time.Since(start).Seconds())
	return err
}

func (i *instrumented) Close() error { return i.next.Close() }

func (i *instrumented) Name() string { return i.next.Name() }
