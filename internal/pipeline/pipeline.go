// Package pipeline resolves countries into cities and cities into their
// latest measurements using an air-quality provider.
package pipeline

import (
	"context"
	"slices"
	"time"

	aqerrors "github.com/garyellow/airquality-linebot-go/internal/errors"
	"github.com/garyellow/airquality-linebot-go/internal/location"
	"github.com/garyellow/airquality-linebot-go/internal/logger"
	"github.com/garyellow/airquality-linebot-go/internal/metrics"
	"github.com/garyellow/airquality-linebot-go/internal/openaq"
	"github.com/garyellow/airquality-linebot-go/internal/sliceutil"
	"golang.org/x/sync/singleflight"
)

// Provider is the subset of the provider client used by the pipeline.
type Provider interface {
	Cities(ctx context.Context, country string) (*openaq.CitiesResponse, error)
	Latest(ctx context.Context, city, country string) (*openaq.LatestResponse, error)
}

// Pipeline is stateless apart from the in-flight country lookups it shares.
type Pipeline struct {
	provider Provider
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *logger.Logger
	group    singleflight.Group
}

// New creates a pipeline. timeout bounds every provider lookup, retries included.
func New(provider Provider, timeout time.Duration, m *metrics.Metrics, log *logger.Logger) *Pipeline {
	return &Pipeline{
		provider: provider,
		timeout:  timeout,
		metrics:  m,
		logger:   log.WithModule("pipeline"),
	}
}

// ResolveCountry returns the cities the provider lists for country. The
// country label of the first result is used for every returned key; repeated
// cities are listed once. No results yields an empty slice and a nil error.
func (p *Pipeline) ResolveCountry(ctx context.Context, country string) ([]location.Key, error) {
	v, err, shared := p.group.Do("cities:"+country, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()

		start := time.Now()
		resp, err := p.provider.Cities(ctx, country)
		p.metrics.RecordProviderRequest(openaq.OpCities, aqerrors.Kind(err), time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		return citiesToKeys(resp), nil
	})
	if shared {
		p.metrics.RecordSingleflightDedup(openaq.OpCities)
	}
	if err != nil {
		return nil, err
	}

	keys := slices.Clone(v.([]location.Key))
	p.logger.WithField("country", country).
		WithField("cities", len(keys)).
		Debug("Resolved country")
	return keys, nil
}

// ResolveCity returns the latest measurements for key. Country and city
// labels come from the first result; measurements from every result.
func (p *Pipeline) ResolveCity(ctx context.Context, key location.Key) ([]location.Measurement, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.provider.Latest(ctx, key.City, key.Country)
	p.metrics.RecordProviderRequest(openaq.OpLatest, aqerrors.Kind(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	measurements := latestToMeasurements(resp)
	p.logger.WithField("location", key.String()).
		WithField("measurements", len(measurements)).
		Debug("Resolved city")
	return measurements, nil
}

func citiesToKeys(resp *openaq.CitiesResponse) []location.Key {
	if resp == nil || len(resp.Results) == 0 {
		return []location.Key{}
	}
	country := resp.Results[0].Country
	keys := make([]location.Key, 0, len(resp.Results))
	for _, r := range resp.Results {
		keys = append(keys, location.NewKey(country, r.City))
	}
	return sliceutil.Deduplicate(keys, location.Key.String)
}

func latestToMeasurements(resp *openaq.LatestResponse) []location.Measurement {
	if resp == nil || len(resp.Results) == 0 {
		return []location.Measurement{}
	}
	country, city := resp.Results[0].Country, resp.Results[0].City

	var out []location.Measurement
	for _, r := range resp.Results {
		for _, m := range r.Measurements {
			out = append(out, location.Measurement{
				Parameter: m.Parameter,
				Unit:      m.Unit,
				Value:     m.Value.String(),
				Country:   country,
				City:      city,
			})
		}
	}
	if out == nil {
		return []location.Measurement{}
	}
	return out
}
