// Package httpclient provides a JSON HTTP client instrumented with OTEL
// tracing and request metrics.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultTimeout         = 10 * time.Second
	defaultMaxConnsPerHost = 5
	defaultIdleConnTimeout = 2 * time.Minute
)

// Options configures the client.
type Options struct {
	BaseURL      string
	ProviderName string
	Timeout      time.Duration
	Headers      map[string]string
}

// Client executes JSON requests against one provider.
type Client struct {
	http           *http.Client
	baseURL        string
	headers        map[string]string
	requestCounter metric.Int64Counter
	providerName   string
}

// New creates an instrumented JSON client.
func New(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	transport := otelhttp.NewTransport(
		&http.Transport{
			DialContext:     (&net.Dialer{KeepAlive: 10 * time.Second}).DialContext,
			MaxConnsPerHost: defaultMaxConnsPerHost,
			IdleConnTimeout: defaultIdleConnTimeout,
		},
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	providerName := opts.ProviderName
	if providerName == "" {
		providerName = "default"
	}

	meter := otel.Meter("httpclient",
		metric.WithInstrumentationAttributes(attribute.String("provider", providerName)))
	counter, err := meter.Int64Counter(
		"http_client_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:           &http.Client{Timeout: timeout, Transport: transport},
		baseURL:        opts.BaseURL,
		headers:        opts.Headers,
		requestCounter: counter,
		providerName:   providerName,
	}, nil
}

// GetJSON executes a GET against path with query params and unmarshals the
// response into result (when result is non-nil).
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, result)
}

// PostJSON executes a POST with a JSON body and unmarshals the response.
func (c *Client) PostJSON(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, c.baseURL+path, body, result)
}

func (c *Client) do(ctx context.Context, method, u string, body, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.requestCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", c.providerName),
			attribute.String("method", method),
		))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d: %s", method, u, resp.StatusCode, truncate(payload, 256))
	}

	if result != nil {
		if err := json.Unmarshal(payload, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
