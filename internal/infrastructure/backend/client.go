// Package backend talks to the sales backend: catalog reads and sale
// submission over its JSON HTTP API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config configures the backend HTTP client
type Config struct {
	BaseURL    string
	// Timeout bounds each read attempt. Writes run under the caller's
	// deadline only, so a sale may take longer than a catalog read.
	Timeout    time.Duration
	CSRFToken  string // static token, takes precedence over the cookie
	CSRFCookie string // name of the cookie the backend stores its token in
	UserAgent  string
	Retry      RetryConfig
}

// RetryConfig configures retry behavior. Retries apply to GET requests
// only; a sale submission is never resent by the client.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 0,
		RetryDelay: 200 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2.0,
	}
}

// Client is a small JSON HTTP client bound to one backend base URL.
// It keeps a cookie jar so session and CSRF cookies set by the backend are
// replayed on later requests.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	headers     map[string]string
	retryConfig RetryConfig
	readTimeout time.Duration
	csrf        *CSRFSource
	mu          sync.RWMutex
}

// NewClient creates a new backend client
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q is not absolute", cfg.BaseURL)
	}
	// relative paths resolve under the base path
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "POS-Terminal/1.0"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Jar:       jar,
		},
		baseURL:     base,
		retryConfig: cfg.Retry,
		readTimeout: cfg.Timeout,
		headers: map[string]string{
			"Accept":           "application/json",
			"User-Agent":       cfg.UserAgent,
			"X-Requested-With": "XMLHttpRequest",
		},
	}
	c.csrf = NewCSRFSource(cfg.CSRFToken, cfg.CSRFCookie, jar, base)
	return c, nil
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetHeader sets a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// Request represents an HTTP request to be executed
type Request struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Headers     map[string]string
	Body        any
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// IsSuccess returns true for 2xx status codes
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do executes an HTTP request. GET requests are retried on transport
// errors, 5xx and 429 up to RetryConfig.MaxRetries times.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := c.buildURL(req.Path, req.QueryParams)
	if err != nil {
		return nil, fmt.Errorf("building URL: %w", err)
	}

	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	maxRetries := 0
	if req.Method == http.MethodGet {
		maxRetries = c.retryConfig.MaxRetries
	}

	var resp *Response
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		resp, err = c.once(ctx, req, u, body)
		if attempt >= maxRetries || !shouldRetry(resp, err) {
			break
		}
	}
	return resp, err
}

func (c *Client) once(ctx context.Context, req Request, u *url.URL, body []byte) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.readTimeout)
		defer cancel()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	c.setHeaders(httpReq, req.Headers)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		c.csrf.Apply(httpReq)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, u.Path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       data,
		Duration:   time.Since(start),
	}
	if err != nil {
		return resp, fmt.Errorf("reading response body: %w", err)
	}
	return resp, nil
}

func shouldRetry(resp *Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, queryParams map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, QueryParams: queryParams})
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, body any, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Headers: headers})
}

// PrimeCSRF fetches the base URL once so the backend can set its CSRF
// cookie in the jar. Not needed when a static token is configured.
func (c *Client) PrimeCSRF(ctx context.Context) error {
	if c.csrf.Token() != "" {
		return nil
	}
	if _, err := c.Get(ctx, "", nil); err != nil {
		return err
	}
	if c.csrf.Token() == "" {
		return fmt.Errorf("backend did not set the %s cookie", c.csrf.cookieName)
	}
	return nil
}

// buildURL resolves path against the base URL. Paths are relative to the
// base, a leading slash is tolerated.
func (c *Client) buildURL(path string, queryParams map[string]string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	u := c.baseURL.ResolveReference(ref)

	if len(queryParams) > 0 {
		q := u.Query()
		for k, v := range queryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (c *Client) setHeaders(req *http.Request, custom map[string]string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range custom {
		req.Header.Set(k, v)
	}
}

// calculateBackoff returns the exponential backoff delay for the given
// attempt with +/-25% jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryConfig.RetryDelay) * math.Pow(c.retryConfig.Multiplier, float64(attempt-1))
	if delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}
	jitter := delay * 0.25
	delay += (rand.Float64()*2 - 1) * jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
