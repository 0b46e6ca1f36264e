package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrBodyTooLarge      = errors.New("response body too large")
	ErrHostUnavailable   = errors.New("host unavailable: circuit breaker open")
	ErrStatus            = errors.New("unexpected HTTP status")
)

// errUpstream marks a 5xx so the breaker counts it without failing the call
var errUpstream = errors.New("upstream server error")

// Client wraps resty with rate limiting and per-host circuit breakers
type Client struct {
	Resty    *resty.Client
	Limiter  *rate.Limiter
	Breakers *resilience.Hosts
	Mu       sync.RWMutex

	maxBody int64
}

// NewClient creates production-ready HTTP client with circuit breakers
func NewClient(opts Options, logger *logging.Logger) *Client {
	// Create underlying retryable client for its pooled transport
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.Logger = nil // Disable logging

	// Create resty client with retry support
	restyClient := resty.New()
	restyClient.
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryMax).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", opts.UserAgent).
		SetResponseBodyLimit(int(opts.MaxBodyBytes))

	if logger != nil {
		restyClient.SetLogger(logger.Named("http").Sugar())
	}

	// Configure transport settings
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	// Sites behind plugins vary in reliability, so be lenient
	policy := resilience.Policy{
		FailureThreshold: 10,
		FailureRatio:     0.7,
		MinRequests:      20,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
		Trials:           2,
	}
	if logger != nil {
		log := logger.Named("breaker")
		policy.OnStateChange = func(host string, from, to resilience.State) {
			log.Warn("host circuit changed",
				zap.String("host", host),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		}
	}

	c := &Client{
		Resty:    restyClient,
		Breakers: resilience.NewHosts(policy),
		maxBody:  opts.MaxBodyBytes,
	}
	c.SetRateLimit(opts.RateLimit)
	return c
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetTimeout configures request timeout
func (c *Client) SetTimeout(duration time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Resty.SetTimeout(duration)
}

// request creates new request after rate limiting
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	c.Mu.RLock()
	limiter := c.Limiter
	c.Mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}

// Do performs req and buffers the response. Non-2xx statuses are returned
// as responses, not errors; only transport failures are errors.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := parseHTTPURL(req.URL)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	r.SetHeaders(req.Headers)
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := c.execute(u.Host, func() (*resty.Response, error) {
		return r.Execute(method, u.String())
	})
	if err != nil {
		if errors.Is(err, resty.ErrResponseBodyTooLarge) {
			return nil, fmt.Errorf("%w: %s", ErrBodyTooLarge, u)
		}
		return nil, err
	}

	return &Response{
		URL:        finalURL(resp, u),
		Status:     resp.StatusCode(),
		StatusText: http.StatusText(resp.StatusCode()),
		Headers:    flattenHeaders(resp.Header()),
		Body:       resp.Body(),
	}, nil
}

// Get fetches rawURL and fails on non-2xx statuses
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := c.Do(ctx, Request{URL: rawURL})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: GET %s: %d", ErrStatus, rawURL, resp.Status)
	}
	return resp, nil
}

// Download streams rawURL into a new file under dir, capped at maxBytes,
// and returns its path. The caller owns the file. Partial files are
// removed on every error path.
func (c *Client) Download(ctx context.Context, rawURL, dir string, maxBytes int64) (string, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return "", err
	}

	r, err := c.request(ctx)
	if err != nil {
		return "", err
	}
	r.SetDoNotParseResponse(true)

	resp, err := c.execute(u.Host, func() (*resty.Response, error) {
		return r.Get(u.String())
	})
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", fmt.Errorf("%w: download %s: HTTP %d", ErrStatus, rawURL, resp.StatusCode())
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "download-*"+filepath.Ext(u.Path))
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}

	src := io.Reader(body)
	if maxBytes > 0 {
		src = io.LimitReader(body, maxBytes+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		os.Remove(f.Name())
		return "", fmt.Errorf("download failed: %w", copyErr)
	case closeErr != nil:
		os.Remove(f.Name())
		return "", fmt.Errorf("download failed: %w", closeErr)
	case maxBytes > 0 && n > maxBytes:
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, rawURL, maxBytes)
	}
	return f.Name(), nil
}

// execute runs fn behind the breaker for host. 5xx responses count as
// breaker failures but are still handed back to the caller.
func (c *Client) execute(host string, fn func() (*resty.Response, error)) (*resty.Response, error) {
	resp, err := resilience.Do(c.Breakers.For(host), func() (*resty.Response, error) {
		resp, err := fn()
		if err == nil && resp.StatusCode() >= 500 {
			return resp, errUpstream
		}
		return resp, err
	})

	switch {
	case errors.Is(err, errUpstream):
		return resp, nil
	case errors.Is(err, resilience.ErrOpen), errors.Is(err, resilience.ErrTrialLimit):
		return nil, fmt.Errorf("%w: %s", ErrHostUnavailable, host)
	}
	return resp, err
}

// BreakerState returns the breaker state for host
func (c *Client) BreakerState(host string) resilience.State {
	return c.Breakers.For(host).State()
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return u, nil
}

// finalURL reports the URL after redirects
func finalURL(resp *resty.Response, fallback *url.URL) string {
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		return resp.RawResponse.Request.URL.String()
	}
	return fallback.String()
}
