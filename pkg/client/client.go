// Package client provides the Criminal IP HTTP client used for IP report
// lookups. It performs exactly one request per call: no retries, no caching.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ipintel-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the Criminal IP v1 API root.
	DefaultBaseURL = "https://api.criminalip.io/v1"

	// APIKeyHeader carries the credential on every request.
	APIKeyHeader = "x-api-key"

	// Endpoint paths relative to the base URL.
	EndpointIPReport     = "asset/ip/report"
	EndpointDomainData   = "domain/data"
	EndpointPortScan     = "port/scan"
	EndpointIPReputation = "ip/reputation"

	maxBodyBytes = 10 << 20
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipintel_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ipintel_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	requestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipintel_request_errors_total",
		Help: "Total API request errors by class",
	}, []string{"class"})
)

// Lookuper resolves one IP to its report. *Client implements it; tests and
// decorators such as the report cache provide their own.
type Lookuper interface {
	LookupIP(ctx context.Context, ip string) (Document, error)
}

// Config holds the client configuration.
type Config struct {
	// APIKey is sent as the x-api-key header (REQUIRED).
	APIKey string

	// BaseURL overrides DefaultBaseURL (tests, proxies).
	BaseURL string

	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration

	// HTTPClient replaces the default *http.Client when set.
	HTTPClient *http.Client
}

// DefaultConfig returns a default configuration for the given key.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
	}
}

// Client is the Criminal IP API client. It holds no mutable state after
// construction and may be shared across goroutines.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logging.NewLogger("api-client"),
	}, nil
}

// LookupIP fetches the full IP report.
func (c *Client) LookupIP(ctx context.Context, ip string) (Document, error) {
	return c.get(ctx, EndpointIPReport, ip, url.Values{"ip": {ip}, "full": {"true"}})
}

// SearchDomain fetches domain data.
func (c *Client) SearchDomain(ctx context.Context, domain string) (Document, error) {
	return c.get(ctx, EndpointDomainData, domain, url.Values{"domain": {domain}})
}

// PortScan fetches open-port information for an IP.
func (c *Client) PortScan(ctx context.Context, ip string) (Document, error) {
	return c.get(ctx, EndpointPortScan, ip, url.Values{"ip": {ip}})
}

// IPReputation fetches the reputation summary for an IP.
func (c *Client) IPReputation(ctx context.Context, ip string) (Document, error) {
	return c.get(ctx, EndpointIPReputation, ip, url.Values{"ip": {ip}})
}

// get performs one GET against endpoint and decodes the JSON object body.
func (c *Client) get(ctx context.Context, endpoint, target string, params url.Values) (Document, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	reqURL := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, c.fail(&RequestError{
			Target:   target,
			Endpoint: endpoint,
			Class:    ErrorClassClient,
			Message:  "create request",
			Err:      err,
		}, "invalid")
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("target", target).
		Msg("Executing API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := ErrorClassNetwork
		if errors.Is(err, context.Canceled) {
			class = ErrorClassCanceled
		}
		return nil, c.fail(&RequestError{
			Target:   target,
			Endpoint: endpoint,
			Class:    class,
			Message:  "request failed",
			Err:      err,
		}, string(class))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.fail(&RequestError{
			Target:     target,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}, "network_error")
	}

	status := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("target", target).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("API request error")
		return nil, c.fail(&RequestError{
			Target:     target,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    resp.Status,
		}, status)
	}

	doc, err := DecodeDocument(body)
	if err != nil {
		return nil, c.fail(&RequestError{
			Target:     target,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassDecode,
			Message:    "malformed body",
			Err:        err,
		}, "decode_error")
	}

	requestsTotal.WithLabelValues(endpoint, status).Inc()
	return doc, nil
}

// fail records metrics for a failed request and returns err unchanged.
func (c *Client) fail(err *RequestError, status string) error {
	requestsTotal.WithLabelValues(err.Endpoint, status).Inc()
	requestErrorsTotal.WithLabelValues(string(err.Class)).Inc()
	return err
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}
