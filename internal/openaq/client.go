// Package openaq implements a client for an OpenAQ-shaped air-quality API.
package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/corpix/uarand"
	"github.com/garyellow/airquality-linebot-go/internal/buildinfo"
	"github.com/garyellow/airquality-linebot-go/internal/config"
	aqerrors "github.com/garyellow/airquality-linebot-go/internal/errors"
	"github.com/klauspost/compress/gzip"
)

// Provider operation names, also used as metric labels.
const (
	OpCities = "cities"
	OpLatest = "latest"
)

// maxBodySize caps how much of a provider response is read.
const maxBodySize = 4 << 20

// Client queries the provider's /cities and /latest endpoints.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	maxRetries   int
	initialDelay time.Duration
	userAgent    string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryDelay sets the delay before the first retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.initialDelay = d }
}

// WithUserAgent sets a fixed User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a provider client. timeout bounds each HTTP attempt;
// the caller's context bounds the whole lookup including retries.
func NewClient(cfg config.ProviderConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries:   cfg.MaxRetries,
		initialDelay: config.ProviderRetryInitial,
		userAgent:    defaultUserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultUserAgent() string {
	if v := buildinfo.Version; v != "" && v != "dev" {
		return "airquality-linebot-go/" + v
	}
	return uarand.GetRandom()
}

// BaseURL returns the provider base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Cities lists the cities the provider knows for a country.
func (c *Client) Cities(ctx context.Context, country string) (*CitiesResponse, error) {
	q := url.Values{}
	q.Set("country", country)

	var out CitiesResponse
	if err := c.getJSON(ctx, OpCities, "/cities", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Latest returns the latest measurements for a city.
func (c *Client) Latest(ctx context.Context, city, country string) (*LatestResponse, error) {
	q := url.Values{}
	q.Set("city", city)
	q.Set("country", country)

	var out LatestResponse
	if err := c.getJSON(ctx, OpLatest, "/latest", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping checks that the provider answers. Any status below 500 counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/cities", nil)
	if err != nil {
		return aqerrors.NewProviderError("ping", c.baseURL, 0, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return aqerrors.NewProviderError("ping", c.baseURL, 0, err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return aqerrors.NewProviderError("ping", c.baseURL, resp.StatusCode, fmt.Errorf("unhealthy status"))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	target := c.baseURL + path + "?" + query.Encode()

	var body []byte
	status := 0

	err := RetryWithBackoff(ctx, c.maxRetries, c.initialDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return &permanentError{err: fmt.Errorf("failed to create request: %w", err)}
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return &permanentError{err: err}
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		status = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return fmt.Errorf("rate limited: status %d", resp.StatusCode)
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				return &permanentError{err: fmt.Errorf("client error: status %d", resp.StatusCode)}
			default:
				return fmt.Errorf("server error: status %d", resp.StatusCode)
			}
		}

		data, err := readBody(resp)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		body = data
		return nil
	})
	if err != nil {
		return aqerrors.NewProviderError(op, target, status, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return aqerrors.NewProviderError(op, target, status, fmt.Errorf("%w: %w", aqerrors.ErrMalformedResponse, err))
	}
	return nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}
	return io.ReadAll(io.LimitReader(reader, maxBodySize))
}
