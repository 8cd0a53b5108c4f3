package dispatcher

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyellow/airquality-linebot-go/internal/alert"
	"github.com/garyellow/airquality-linebot-go/internal/cache"
	"github.com/garyellow/airquality-linebot-go/internal/config"
	aqerrors "github.com/garyellow/airquality-linebot-go/internal/errors"
	"github.com/garyellow/airquality-linebot-go/internal/location"
	"github.com/garyellow/airquality-linebot-go/internal/logger"
	"github.com/garyellow/airquality-linebot-go/internal/metrics"
	"github.com/garyellow/airquality-linebot-go/internal/reply"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBot = config.Bot{
	ResetCommand:          "/start",
	StartCommand:          "Start",
	Countries:             []string{"PL", "NL"},
	WelcomeMessage:        "welcome",
	StartMessage:          "choose a city",
	InvalidCommandMessage: "invalid",
	NotFoundMessage:       "not found",
	ValuesFormat:          "%s in %s: %s %s",
}

type fakeResolver struct {
	countries  map[string][]location.Key
	cities     map[location.Key][]location.Measurement
	err        error
	delay      time.Duration
	cityCalls  atomic.Int32
	countryArg atomic.Value
}

func (f *fakeResolver) ResolveCountry(_ context.Context, country string) ([]location.Key, error) {
	f.countryArg.Store(country)
	if f.err != nil {
		return nil, f.err
	}
	return f.countries[country], nil
}

func (f *fakeResolver) ResolveCity(_ context.Context, key location.Key) ([]location.Measurement, error) {
	f.cityCalls.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return nil, f.err
	}
	return f.cities[key], nil
}

type fakeAlerts struct {
	mu     sync.Mutex
	events []alert.Event
	err    error
	panic  bool
	block  chan struct{} // when set, Publish waits for it to close
}

func (f *fakeAlerts) Publish(_ context.Context, ev alert.Event) error {
	if f.panic {
		panic("sink exploded")
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeAlerts) Close() error { return nil }
func (f *fakeAlerts) Name() string { return "fake" }

func (f *fakeAlerts) Events() []alert.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]alert.Event(nil), f.events...)
}

type recordingTap struct {
	mu       sync.Mutex
	inbound  []string
	outbound []string
}

func (t *recordingTap) Inbound(_ context.Context, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbound = append(t.inbound, text)
}

func (t *recordingTap) Outbound(_ context.Context, r reply.Reply) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outbound = append(t.outbound, r.Text)
}

var krakow = location.NewKey("PL", "Krakow")

func krakowMeasurements() []location.Measurement {
	return []location.Measurement{
		{Parameter: "pm25", Unit: "µg/m³", Value: "12.5", Country: "PL", City: "Krakow"},
		{Parameter: "no2", Unit: "µg/m³", Value: "30", Country: "PL", City: "Krakow"},
		{Parameter: "o3", Unit: "ppm", Value: "0.031", Country: "PL", City: "Krakow"},
	}
}

type harness struct {
	d        *Dispatcher
	resolver *fakeResolver
	store    *cache.MemoryStore
	alerts   *fakeAlerts
	tap      *recordingTap
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		resolver: &fakeResolver{
			countries: map[string][]location.Key{
				"PL": {krakow, location.NewKey("PL", "Gdansk")},
				"NL": {},
			},
			cities: map[location.Key][]location.Measurement{
				krakow:                          krakowMeasurements(),
				location.NewKey("PL", "Gdansk"): nil,
			},
		},
		store:   cache.NewMemoryStore(),
		alerts:  &fakeAlerts{},
		tap:     &recordingTap{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	h.d = New(testBot, h.resolver, h.store, h.alerts, h.metrics,
		logger.NewWithWriter("error", io.Discard), WithTap(h.tap))
	return h
}

func (h *harness) handle(t *testing.T, text string) []reply.Reply {
	t.Helper()
	out := &Collector{}
	require.NoError(t, h.d.Handle(context.Background(), text, out))
	return out.Replies()
}

// drain waits for the background alert publishes.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.d.Shutdown(ctx))
}

func texts(replies []reply.Reply) []string {
	out := make([]string, len(replies))
	for i, r := range replies {
		out[i] = r.Text
	}
	return out
}

func TestHandle_StartAndReset(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, text := range []string{"/start", "Start"} {
		got := h.handle(t, text)
		require.Len(t, got, 1)
		assert.Equal(t, reply.Reply{Text: "welcome", Options: []string{"Start", "PL", "NL"}}, got[0])
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.IntentsTotal.WithLabelValues("reset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.IntentsTotal.WithLabelValues("start")))
}

func TestHandle_Invalid(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, text := range []string{"", "hello", "pl", "start"} {
		got := h.handle(t, text)
		require.Len(t, got, 1, text)
		assert.Equal(t, reply.Reply{Text: "invalid"}, got[0])
	}
	assert.Zero(t, h.resolver.cityCalls.Load())
}

func TestHandle_KnownCountry(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	got := h.handle(t, "PL")
	require.Len(t, got, 1)
	assert.Equal(t, "choose a city", got[0].Text)
	assert.Equal(t, []string{"Start", "Krakow@PL", "Gdansk@PL"}, got[0].Options)
	assert.Equal(t, "PL", h.resolver.countryArg.Load())
}

func TestHandle_KnownCountryWithoutCities(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	got := h.handle(t, "NL")
	require.Len(t, got, 1)
	assert.Equal(t, reply.Reply{Text: "not found"}, got[0])
}

func TestHandle_ProviderFailureRepliesInvalid(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.resolver.err = aqerrors.NewProviderError("latest", "http://provider", 0, context.DeadlineExceeded)

	for _, text := range []string{"PL", "Krakow@PL"} {
		got := h.handle(t, text)
		require.Len(t, got, 1)
		assert.Equal(t, reply.Reply{Text: "invalid"}, got[0])
	}
	assert.Zero(t, h.store.Len())
	assert.Empty(t, h.alerts.Events())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.DispatchFailures.WithLabelValues("provider_timeout")))
}

func TestHandle_KnownCityMiss(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	got := h.handle(t, "Krakow@PL")
	require.Len(t, got, 3)
	assert.ElementsMatch(t, []string{
		"pm25 in Krakow: 12,5 µg/m³",
		"no2 in Krakow: 30 µg/m³",
		"o3 in Krakow: 0,031 ppm",
	}, texts(got))
	for _, r := range got {
		assert.Equal(t, []string{"Start"}, r.Options)
		assert.True(t, r.SingleUse)
	}

	cached, ok := h.store.Get("Krakow@PL")
	require.True(t, ok)
	assert.Len(t, cached, 3)

	h.drain(t)
	events := h.alerts.Events()
	require.Len(t, events, 3)
	assert.ElementsMatch(t, []string{"pm25", "no2", "o3"}, []string{events[0].Parameter, events[1].Parameter, events[2].Parameter})
	for _, ev := range events {
		assert.Equal(t, "Krakow@PL", ev.Key())
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CacheMissesTotal))
}

func TestHandle_KnownCityHitReplaysInOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	first := h.handle(t, "Krakow@PL")
	cached, ok := h.store.Get("Krakow@PL")
	require.True(t, ok)

	second := h.handle(t, "Krakow@PL")
	assert.Equal(t, cached, second, "cache hit replays stored replies in insertion order")
	assert.ElementsMatch(t, texts(first), texts(second))

	assert.Equal(t, int32(1), h.resolver.cityCalls.Load())
	h.drain(t)
	assert.Len(t, h.alerts.Events(), 3, "cache hits do not publish alerts")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CacheHitsTotal))
}

func TestHandle_KnownCityWithoutMeasurements(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	got := h.handle(t, "Gdansk@PL")
	require.Len(t, got, 1)
	assert.Equal(t, reply.Reply{Text: "not found"}, got[0])

	_, ok := h.store.Get("Gdansk@PL")
	assert.False(t, ok)
	assert.Empty(t, h.alerts.Events())

	h.handle(t, "Gdansk@PL")
	assert.Equal(t, int32(2), h.resolver.cityCalls.Load(), "empty results are not cached")
}

func TestHandle_AlertFailureDoesNotAffectChat(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.alerts.err = errors.New("broker down")

	got := h.handle(t, "Krakow@PL")
	assert.Len(t, got, 3)
}

func TestHandle_StalledAlertSinkDoesNotDelayChat(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.alerts.block = make(chan struct{})

	done := make(chan []reply.Reply, 1)
	go func() {
		out := &Collector{}
		assert.NoError(t, h.d.Handle(context.Background(), "Krakow@PL", out))
		done <- out.Replies()
	}()

	select {
	case got := <-done:
		assert.Len(t, got, 3)
	case <-time.After(time.Second):
		t.Fatal("chat replies waited for the alert sink")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.d.Shutdown(ctx), context.DeadlineExceeded, "publishes are still in flight")

	close(h.alerts.block)
	h.drain(t)
	assert.Len(t, h.alerts.Events(), 3)
}

func TestHandle_ConcurrentMissesResolveOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.resolver.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for range 2 {
		wg.Go(func() {
			out := &Collector{}
			assert.NoError(t, h.d.Handle(context.Background(), "Krakow@PL", out))
			assert.Len(t, out.Replies(), 3)
		})
	}
	wg.Wait()

	replayed := h.handle(t, "Krakow@PL")
	assert.Len(t, replayed, 3, "the cached sequence holds one reply per measurement")
	assert.Equal(t, int32(1), h.resolver.cityCalls.Load())

	h.drain(t)
	assert.Len(t, h.alerts.Events(), 3)
}

func TestHandle_AlertPanicIsContained(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.alerts.panic = true

	got := h.handle(t, "Krakow@PL")
	assert.Len(t, got, 3)
	h.drain(t)
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.FanoutPanicsTotal.WithLabelValues("alert")))
}

func TestHandle_ChatSinkError(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	sinkErr := errors.New("chat closed")

	err := h.d.Handle(context.Background(), "Start", ChatSinkFunc(func(context.Context, reply.Reply) error {
		return sinkErr
	}))
	assert.ErrorIs(t, err, sinkErr)
}

func TestHandle_TapMirrorsTraffic(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.handle(t, "hello")
	h.handle(t, "Start")

	assert.Equal(t, []string{"hello", "Start"}, h.tap.inbound)
	assert.Equal(t, []string{"invalid", "welcome"}, h.tap.outbound)
}

func TestHandle_ConcurrentMessages(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			out := &Collector{}
			assert.NoError(t, h.d.Handle(context.Background(), "Krakow@PL", out))
			assert.Len(t, out.Replies(), 3)
		})
	}
	wg.Wait()

	cached, ok := h.store.Get("Krakow@PL")
	require.True(t, ok)
	assert.Len(t, cached, 3)
	assert.Equal(t, int32(1), h.resolver.cityCalls.Load())
}

func TestGreet(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	out := &Collector{}

	require.NoError(t, h.d.Greet(context.Background(), out))
	assert.Equal(t, []reply.Reply{{Text: "welcome", Options: []string{"Start", "PL", "NL"}}}, out.Replies())
	assert.Empty(t, h.tap.inbound)
}
