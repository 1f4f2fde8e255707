package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tesso57/trendfeed/internal/domain/trend"
)

const feedAcceptHeader = "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

// DefaultMaxBodyBytes caps a feed body at 10 MiB.
const DefaultMaxBodyBytes int64 = 10 << 20

// ErrBodyTooLarge is returned when a feed body exceeds the configured cap.
var ErrBodyTooLarge = errors.New("feed body too large")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("HTTP error %s", e.Status)
	}
	return fmt.Sprintf("HTTP error %d", e.StatusCode)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	switch {
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

type acceptTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t acceptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", feedAcceptHeader)
	}
	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	return base.RoundTrip(clone)
}

// ClientOptions configures the pooled upstream client.
type ClientOptions struct {
	Timeout         time.Duration
	MaxConnsPerHost int
	MaxIdleConns    int
	MaxBodyBytes    int64
	UserAgent       string
}

// Client is the shared upstream HTTP client. It is created once at startup and
// reports itself unavailable after Close.
type Client struct {
	http         *http.Client
	transport    *http.Transport
	maxBodyBytes int64
	open         atomic.Bool
}

// NewClient builds an open client.
func NewClient(opts ClientOptions) *Client {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxConnsPerHost:       opts.MaxConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	c := &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: acceptTransport{base: transport, userAgent: opts.UserAgent},
		},
		transport:    transport,
		maxBodyBytes: opts.MaxBodyBytes,
	}
	c.open.Store(true)
	return c
}

// IsOpen reports whether the client accepts requests.
func (c *Client) IsOpen() bool {
	return c != nil && c.open.Load()
}

// Close marks the client unavailable and drops idle connections.
func (c *Client) Close() {
	if c == nil || !c.open.CompareAndSwap(true, false) {
		return
	}
	c.transport.CloseIdleConnections()
}

// Get downloads url and returns its body. Non-2xx responses yield *StatusError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if !c.IsOpen() {
		return nil, trend.ErrClientUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.maxBodyBytes)
	}
	return body, nil
}
