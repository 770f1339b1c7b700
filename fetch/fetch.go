// Package fetch downloads source images for rendering.
//
// Remote URLs go through an HTTP client that refuses private and loopback
// targets: on the request URL, on every redirect hop and on the address that
// is actually dialed. Locators returned by the storage package are read
// straight from the store.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"resty.dev/v3"

	"github.com/xalatechnologies/aplus/storage"
)

var (
	// ErrUnsafeURL is returned for URLs with a disallowed scheme or a host
	// that resolves to a private network.
	ErrUnsafeURL = errors.New("unsafe url")
	// ErrTooLarge is returned when a response exceeds the size limit.
	ErrTooLarge = errors.New("response too large")
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 20 << 20
	DefaultRetries  = 2

	maxRedirects = 5
)

// AssetReader reads objects named by storage locators.
type AssetReader interface {
	Get(ctx context.Context, bucket, path string) ([]byte, error)
}

// Client fetches image bytes.
type Client struct {
	http         *resty.Client
	assets       AssetReader
	cache        *Cache
	allowPrivate bool
	maxBytes     int64
	resolve      func(ctx context.Context, network, host string) ([]net.IP, error)
	blocked      func(net.IP) bool
	dialer       net.Dialer
	logger       *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAssets lets the client read storage locators.
func WithAssets(r AssetReader) Option {
	return func(c *Client) { c.assets = r }
}

// WithCache keeps fetched bytes for ttl, at most max entries.
func WithCache(ttl time.Duration, max int) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cache = NewCache(ttl, max)
		}
	}
}

// AllowPrivate disables the private network check. For tests and trusted
// deployments only.
func AllowPrivate() Option {
	return func(c *Client) { c.allowPrivate = true }
}

// WithMaxBytes bounds response bodies.
func WithMaxBytes(n int64) Option {
	return func(c *Client) { c.maxBytes = n }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithRetries sets how often a failed request is retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.http.SetRetryCount(n) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client.
func New(opts ...Option) *Client {
	hc := resty.New().
		SetTimeout(DefaultTimeout).
		SetRetryCount(DefaultRetries).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("User-Agent", "aplus-fetch/1").
		SetHeader("Accept", "image/*")
	c := &Client{
		http:     hc,
		maxBytes: DefaultMaxBytes,
		resolve:  net.DefaultResolver.LookupIP,
		blocked:  privateIP,
		dialer:   net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}

	hc.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		return c.check(req.Context(), req.URL.String())
	}))
	if !c.allowPrivate {
		// Proxies would dial on our behalf, so the guarded transport goes direct.
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.Proxy = nil
		t.DialContext = c.dialContext
		hc.SetTransport(t)
	}
	return c
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// Fetch returns the bytes behind rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if c.cache != nil {
		if b, ok := c.cache.Get(rawURL); ok {
			return b, nil
		}
	}

	var b []byte
	var err error
	if bucket, p, ok := storage.ParseLocator(rawURL); ok {
		if c.assets == nil {
			return nil, fmt.Errorf("fetch %s: no asset store", rawURL)
		}
		b, err = c.assets.Get(ctx, bucket, p)
	} else {
		b, err = c.get(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(rawURL, b)
	}
	return b, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.check(ctx, rawURL); err != nil {
		return nil, err
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, res.StatusCode())
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", rawURL, err)
	}
	if int64(len(b)) > c.maxBytes {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, ErrTooLarge)
	}
	c.logger.Debug("fetched", "url", rawURL, "bytes", len(b))
	return b, nil
}

// check rejects non-http schemes and, unless allowPrivate is set, hosts
// that resolve to private, loopback or link-local addresses.
func (c *Client) check(ctx context.Context, rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrUnsafeURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: no host", ErrUnsafeURL)
	}
	if c.allowPrivate {
		return nil
	}
	_, err = c.lookup(ctx, u.Hostname())
	return err
}

// lookup resolves host and fails when any of its addresses is blocked.
func (c *Client) lookup(ctx context.Context, host string) ([]net.IP, error) {
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		var err error
		ips, err = c.resolve(ctx, "ip", host)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve %s: %v", ErrUnsafeURL, host, err)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: %s has no addresses", ErrUnsafeURL, host)
	}
	for _, ip := range ips {
		if c.blocked(ip) {
			return nil, fmt.Errorf("%w: %s resolves to %s", ErrUnsafeURL, host, ip)
		}
	}
	return ips, nil
}

// dialContext resolves addr itself and connects to a checked address, so a
// DNS answer that changes after check cannot reach a private network.
func (c *Client) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips, err := c.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, ip := range ips {
		conn, err := c.dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func privateIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
