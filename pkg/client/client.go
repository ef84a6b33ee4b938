// Package client implements the remote fetch boundary: one blocking
// request/response round trip to the pubproxy listing API per call, with
// error classification, metrics, and structured logging. It performs no
// retries and holds no state between calls; buffering and request
// spacing belong to the fetcher package.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/LovecraftianHorror/lead-oxide/pkg/logging"
	"github.com/LovecraftianHorror/lead-oxide/pkg/options"
	"github.com/LovecraftianHorror/lead-oxide/pkg/proxy"
)

// DefaultBaseURL is the pubproxy listing endpoint. The service does not
// support HTTPS.
const DefaultBaseURL = "http://pubproxy.com/api/proxy"

// maxBodySnippet bounds how much of an error response body is carried in
// a FetchError.
const maxBodySnippet = 200

// Prometheus metrics for listing requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubproxy_requests_total",
		Help: "Total listing requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pubproxy_request_duration_seconds",
		Help:    "Listing request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubproxy_fetch_errors_total",
		Help: "Total fetch failures by kind",
	}, []string{"kind"})
)

// Config holds the boundary configuration. The zero value is usable;
// New fills in defaults.
type Config struct {
	// BaseURL of the listing endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// UserAgent sent with every request.
	UserAgent string

	// Timeout for one round trip. Defaults to 30s.
	Timeout time.Duration

	// HTTPClient overrides the underlying client (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns the configuration used when a Session builds its
// own client.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "lead-oxide/0.3.0",
		Timeout:   30 * time.Second,
	}
}

// Client performs listing requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     zerolog.Logger
}

// New creates a client, applying defaults for unset fields.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		logger:     logging.NewLogger("client"),
	}
}

// FetchBatch performs exactly one round trip and returns the records the
// service yielded, at most opts.Limit() of them. Any failure is a
// *FetchError; the caller decides what partial progress to keep.
func (c *Client) FetchBatch(ctx context.Context, opts options.Opts) ([]proxy.Proxy, error) {
	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.URL.RawQuery = opts.Values().Encode()
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", req.URL.Redacted()).
		Msg("Fetching proxy batch")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(KindNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Error().Err(err).Msg("Listing request failed")
		return nil, &FetchError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(KindNetwork)).Inc()
		requestsTotal.WithLabelValues("read_error").Inc()
		c.logger.Error().Err(err).Msg("Reading listing response failed")
		return nil, &FetchError{Kind: KindNetwork, StatusCode: resp.StatusCode, Err: err}
	}

	requestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		fetchErrorsTotal.WithLabelValues(string(KindStatus)).Inc()
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("Listing request returned non-success status")
		return nil, &FetchError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
		}
	}

	proxies, err := proxy.ParseResponse(body)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(KindPayload)).Inc()
		c.logger.Warn().
			Err(err).
			Str("body", snippet(body)).
			Msg("Listing response body was not a proxy list")
		return nil, &FetchError{
			Kind:       KindPayload,
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
			Err:        err,
		}
	}

	c.logger.Debug().
		Int("count", len(proxies)).
		Dur("duration", time.Since(start)).
		Msg("Fetched proxy batch")

	return proxies, nil
}

// snippet trims a response body down to a loggable size.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodySnippet {
		s = s[:maxBodySnippet] + "..."
	}
	return s
}
