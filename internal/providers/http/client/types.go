package client

import (
	"net/http"
	"strings"
	"time"
)

// Options configures a Client
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RateLimit    float64 // requests per second, <= 0 means unlimited
	UserAgent    string
	MaxBodyBytes int64
}

// DefaultOptions returns options suitable for plugin traffic
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		RetryMax:     2,
		RateLimit:    0,
		UserAgent:    "Shelf/1.0",
		MaxBodyBytes: 32 << 20,
	}
}

// Request is a host-side HTTP request. Bodies are raw bytes so guests can
// send either strings or ArrayBuffers.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// Response is a fully buffered HTTP response
type Response struct {
	URL        string            `json:"url"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"-"`
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// ContentType returns the response media type header
func (r *Response) ContentType() string {
	return r.Headers["content-type"]
}

// flattenHeaders lowercases names and keeps the first value, matching what
// guest scripts see through fetch.
func flattenHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}
	return headers
}
