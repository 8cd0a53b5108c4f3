package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/garyellow/airquality-linebot-go/internal/config"
	"github.com/garyellow/airquality-linebot-go/internal/location"
	"github.com/garyellow/airquality-linebot-go/internal/logger"
	"github.com/garyellow/airquality-linebot-go/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = NewEvent(location.Measurement{
	Parameter: "pm25",
	Unit:      "µg/m³",
	Value:     "12.5",
	Country:   "PL",
	City:      "Krakow",
})

func TestEvent_MarshalJSON(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(sample)
	require.NoError(t, err)
	assert.JSONEq(t, `{"country":"PL","city":"Krakow","parameter":"pm25","value":"12.5 µg/m³"}`, string(data))
	assert.Equal(t, "Krakow@PL", sample.Key())
}

type fakeKafkaWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_Publish(t *testing.T) {
	t.Parallel()
	w := &fakeKafkaWriter{}
	s := &KafkaSink{writer: w}

	require.NoError(t, s.Publish(context.Background(), sample))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "Krakow@PL", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"country":"PL","city":"Krakow","parameter":"pm25","value":"12.5 µg/m³"}`, string(w.msgs[0].Value))

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
	assert.Equal(t, "kafka", s.Name())
}

func TestKafkaSink_PublishError(t *testing.T) {
	t.Parallel()
	s := &KafkaSink{writer: &fakeKafkaWriter{err: errors.New("broker down")}}

	err := s.Publish(context.Background(), sample)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

type fakePublisher struct {
	channel string
	message any
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.message = message
	return redis.NewIntResult(1, f.err)
}

func (f *fakePublisher) Close() error { return nil }

func TestRedisSink_Publish(t *testing.T) {
	t.Parallel()
	p := &fakePublisher{}
	s := &RedisSink{client: p, channel: "alerts"}

	require.NoError(t, s.Publish(context.Background(), sample))
	assert.Equal(t, "alerts", p.channel)
	payload, ok := p.message.([]byte)
	require.True(t, ok)
	assert.JSONEq(t, `{"country":"PL","city":"Krakow","parameter":"pm25","value":"12.5 µg/m³"}`, string(payload))
}

func TestRedisSink_PublishError(t *testing.T) {
	t.Parallel()
	s := &RedisSink{client: &fakePublisher{err: errors.New("connection refused")}, channel: "alerts"}
	assert.Error(t, s.Publish(context.Background(), sample))
}

func TestLogSink_Publish(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := NewLogSink(logger.NewWithWriter("info", &buf))

	require.NoError(t, s.Publish(context.Background(), sample))
	assert.Contains(t, buf.String(), `"value":"12.5 µg/m³"`)
	assert.Contains(t, buf.String(), `"city":"Krakow"`)
}

type slowSink struct{}

func (slowSink) Publish(ctx context.Context, _ Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func (slowSink) Close() error { return nil }

func (slowSink) Name() string { return "slow" }

func TestInstrument(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	log := logger.NewWithWriter("error", io.Discard)

	ok := Instrument(&KafkaSink{writer: &fakeKafkaWriter{}}, time.Second, m, log)
	require.NoError(t, ok.Publish(context.Background(), sample))
	assert.Equal(t, "kafka", ok.Name())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues("kafka", "success")))

	slow := Instrument(slowSink{}, 10*time.Millisecond, m, log)
	err := slow.Publish(context.Background(), sample)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues("slow", "error")))
}

func TestNewSink(t *testing.T) {
	t.Parallel()
	log := logger.NewWithWriter("error", io.Discard)
	base := config.AlertConfig{
		Topic:        "alerts",
		KafkaBrokers: []string{"localhost:9092"},
		RedisAddr:    "localhost:6379",
	}

	tests := []struct {
		sink    string
		want    string
		wantErr bool
	}{
		{config.AlertSinkKafka, "kafka", false},
		{config.AlertSinkRedis, "redis", false},
		{config.AlertSinkLog, "log", false},
		{"nats", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.sink, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Sink = tt.sink
			s, err := NewSink(cfg, log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
			assert.NoError(t, s.Close())
		})
	}
}
