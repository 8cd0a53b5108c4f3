// Package dispatcher routes classified chat messages through the enrichment
// pipeline, the reply cache and the alert sink.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/garyellow/airquality-linebot-go/internal/alert"
	"github.com/garyellow/airquality-linebot-go/internal/cache"
	"github.com/garyellow/airquality-linebot-go/internal/config"
	aqerrors "github.com/garyellow/airquality-linebot-go/internal/errors"
	"github.com/garyellow/airquality-linebot-go/internal/intent"
	"github.com/garyellow/airquality-linebot-go/internal/location"
	"github.com/garyellow/airquality-linebot-go/internal/logger"
	"github.com/garyellow/airquality-linebot-go/internal/metrics"
	"github.com/garyellow/airquality-linebot-go/internal/reply"
	"github.com/garyellow/airquality-linebot-go/internal/sentry"
	"golang.org/x/sync/singleflight"
)

// Reply sources, used as metric labels.
const (
	sourceStatic = "static"
	sourceLive   = "live"
	sourceCache  = "cache"
)

// opCity labels city lookups that joined an in-flight one.
const opCity = "city"

// Resolver is the enrichment pipeline as seen by the dispatcher.
type Resolver interface {
	ResolveCountry(ctx context.Context, country string) ([]location.Key, error)
	ResolveCity(ctx context.Context, key location.Key) ([]location.Measurement, error)
}

// Dispatcher is the only writer of the reply cache.
type Dispatcher struct {
	classifier *intent.Classifier
	builder    *reply.Builder
	resolver   Resolver
	cache      cache.Store
	alerts     alert.Sink
	tap        Tap
	metrics    *metrics.Metrics
	logger     *logger.Logger

	cities   singleflight.Group // one lookup-and-populate per city token
	alerting sync.WaitGroup     // alert publishes outlive the message that started them
}

// cityOutcome is shared by every message that asked for the same city token
// while its lookup was in flight.
type cityOutcome struct {
	replies []reply.Reply
	source  string
	emitted bool // the fan-out already sent replies to the first caller's sink
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithTap replaces the default log tap.
func WithTap(t Tap) Option {
	return func(d *Dispatcher) { d.tap = t }
}

// New creates a dispatcher for the given bot configuration.
func New(bot config.Bot, resolver Resolver, store cache.Store, alerts alert.Sink, m *metrics.Metrics, log *logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		classifier: intent.NewClassifier(bot),
		builder:    reply.NewBuilder(bot),
		resolver:   resolver,
		cache:      store,
		alerts:     alerts,
		tap:        NewLogTap(log),
		metrics:    m,
		logger:     log.WithModule("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle classifies text and writes the resulting replies to out. It returns
// once every reply has been emitted; alert publishes keep running in the
// background until Shutdown. The returned error only reports chat sink failures.
func (d *Dispatcher) Handle(ctx context.Context, text string, out ChatSink) error {
	d.tap.Inbound(ctx, text)

	in := d.classifier.Classify(text)
	d.metrics.RecordIntent(in.Kind.String())

	switch in.Kind {
	case intent.Reset, intent.Start:
		return d.emit(ctx, out, d.builder.Start(), sourceStatic)
	case intent.KnownCountry:
		return d.handleCountry(ctx, in.Country, out)
	case intent.KnownCity:
		return d.handleCity(ctx, in, out)
	default:
		return d.emit(ctx, out, d.builder.Invalid(), sourceStatic)
	}
}

// Greet sends the start reply without an inbound message, e.g. when a user
// adds the bot as a friend.
func (d *Dispatcher) Greet(ctx context.Context, out ChatSink) error {
	d.metrics.RecordIntent("greet")
	return d.emit(ctx, out, d.builder.Start(), sourceStatic)
}

func (d *Dispatcher) handleCountry(ctx context.Context, country string, out ChatSink) error {
	keys, err := d.resolver.ResolveCountry(ctx, country)
	if err != nil {
		d.providerFailure(ctx, err, "country", country)
		return d.emit(ctx, out, d.builder.Invalid(), sourceStatic)
	}
	if len(keys) == 0 {
		d.metrics.RecordDispatchFailure("no_cities")
	}

	tokens := make([]string, len(keys))
	for i, k := range keys {
		tokens[i] = k.String()
	}
	return d.emit(ctx, out, d.builder.CityList(tokens), sourceLive)
}

func (d *Dispatcher) handleCity(ctx context.Context, in intent.Intent, out ChatSink) error {
	var (
		first   bool
		emitErr error
	)
	v, _, shared := d.cities.Do(in.Token, func() (any, error) {
		first = true
		o, err := d.resolveCity(ctx, in, out)
		emitErr = err
		return o, nil
	})
	if shared && !first {
		d.metrics.RecordSingleflightDedup(opCity)
	}

	o := v.(cityOutcome)
	if first && o.emitted {
		return emitErr
	}
	var errs []error
	for _, r := range o.replies {
		if err := d.emit(ctx, out, r, o.source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolveCity answers a city token from the cache or, on a miss, from the
// provider. A live answer is fully cached before it returns, so a later hit
// never sees a partial sequence.
func (d *Dispatcher) resolveCity(ctx context.Context, in intent.Intent, out ChatSink) (cityOutcome, error) {
	if cached, ok := d.cache.Get(in.Token); ok {
		d.metrics.RecordCacheHit()
		return cityOutcome{replies: cached, source: sourceCache}, nil
	}
	d.metrics.RecordCacheMiss()

	measurements, err := d.resolver.ResolveCity(ctx, in.Location)
	if err != nil {
		d.providerFailure(ctx, err, "city", in.Token)
		return cityOutcome{replies: []reply.Reply{d.builder.Invalid()}, source: sourceStatic}, nil
	}
	if len(measurements) == 0 {
		d.metrics.RecordDispatchFailure("no_measurements")
		return cityOutcome{replies: []reply.Reply{d.builder.NotFound()}, source: sourceStatic}, nil
	}

	replies, err := d.fanOut(ctx, measurements, out)
	return cityOutcome{replies: replies, source: sourceLive, emitted: true}, err
}

// fanOut runs the chat path and the alert path of every measurement
// concurrently. It waits for the chat paths only and returns their replies
// in measurement order.
func (d *Dispatcher) fanOut(ctx context.Context, measurements []location.Measurement, out ChatSink) ([]reply.Reply, error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	built := make([]reply.Reply, len(measurements))
	alertCtx := context.WithoutCancel(ctx)

	for i, m := range measurements {
		wg.Go(func() {
			defer d.recoverFanout(ctx, "chat", m)

			r := d.builder.Measurement(m.Parameter, m.City, m.Value, m.Unit)
			d.logger.WithField("location", m.Key().String()).InfoContext(ctx, r.Text)

			d.cache.Append(m.Key().String(), r)
			built[i] = r
			if err := d.emit(ctx, out, r, sourceLive); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
		d.alerting.Go(func() {
			defer d.recoverFanout(alertCtx, "alert", m)

			// Publish failures are logged and counted by the sink.
			_ = d.alerts.Publish(alertCtx, alert.NewEvent(m))
		})
	}
	wg.Wait()

	replies := make([]reply.Reply, 0, len(built))
	for _, r := range built {
		if r.Text != "" {
			replies = append(replies, r)
		}
	}
	return replies, errors.Join(errs...)
}

// Shutdown waits for in-flight alert publishes to finish.
// It returns an error if the context is canceled before completion.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		d.alerting.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) emit(ctx context.Context, out ChatSink, r reply.Reply, source string) error {
	d.tap.Outbound(ctx, r)
	d.metrics.RecordReply(source)
	if err := out.Emit(ctx, r); err != nil {
		return fmt.Errorf("emit reply: %w", err)
	}
	return nil
}

func (d *Dispatcher) providerFailure(ctx context.Context, err error, stage, subject string) {
	d.metrics.RecordDispatchFailure("provider_" + aqerrors.Kind(err))
	d.logger.WithError(err).
		WithField("stage", stage).
		WithField("subject", subject).
		ErrorContext(ctx, "Provider lookup failed")
	sentry.CaptureException(ctx, err, map[string]string{"stage": stage})
}

func (d *Dispatcher) recoverFanout(ctx context.Context, path string, m location.Measurement) {
	r := recover()
	if r == nil {
		return
	}
	d.metrics.RecordFanoutPanic(path)
	d.logger.WithField("panic", r).
		WithField("path", path).
		WithField("location", m.Key().String()).
		WithField("parameter", m.Parameter).
		WithField("stack", string(debug.Stack())).
		ErrorContext(ctx, "Recovered panic in measurement fan-out")
	sentry.CaptureException(ctx, fmt.Errorf("panic in %s path: %v", path, r), map[string]string{"path": path})
}
