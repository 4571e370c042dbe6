// Package fetch provides the HTTP GET client and network availability probe
// consumed by catalog sync and the download queue.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "dialtone/0.1.0"

// Getter abstracts a single blocking HTTP GET.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Client is the default Getter over net/http.
type Client struct {
	HTTP *http.Client
}

// NewClient builds a Getter with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{HTTP: &http.Client{Timeout: timeout}}
}

func (c *Client) Get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	return resp, nil
}

// Prober reports whether the network is currently usable. The core consults
// it before lightweight staleness checks and queue drains.
type Prober interface {
	Online() bool
}

// DialProber probes by dialing a TCP endpoint with a short timeout.
type DialProber struct {
	Address string
	Timeout time.Duration
}

// NewDialProber derives a prober from a catalog URL, defaulting ports from
// the scheme. An empty URL yields a prober that always reports offline.
func NewDialProber(catalogURL string, timeout time.Duration) *DialProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	parsed, err := url.Parse(strings.TrimSpace(catalogURL))
	if err != nil || parsed.Host == "" {
		return &DialProber{Timeout: timeout}
	}
	host := parsed.Host
	if parsed.Port() == "" {
		if parsed.Scheme == "https" {
			host = net.JoinHostPort(parsed.Hostname(), "443")
		} else {
			host = net.JoinHostPort(parsed.Hostname(), "80")
		}
	}
	return &DialProber{Address: host, Timeout: timeout}
}

func (p *DialProber) Online() bool {
	if p == nil || p.Address == "" {
		return false
	}
	conn, err := net.DialTimeout("tcp", p.Address, p.Timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// StaticProber reports a fixed availability. Tests and catalog-less
// configurations use it.
type StaticProber bool

func (p StaticProber) Online() bool { return bool(p) }
