package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

const allowAllRobots = "User-agent: *\nAllow: /"

var robotsRetryBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsEntry is what a host answered for /robots.txt. Colly clones its
// collector per fetch and would otherwise download robots.txt every time.
type robotsEntry struct {
	status int
	header http.Header
	body   []byte
	// fallback marks a synthesized allow-all answer.
	fallback bool
	reason   string
}

// robotsCache is an http.RoundTripper that answers /robots.txt from a per-host
// cache and passes everything else to base. A host whose robots.txt keeps
// timing out or failing with 5xx is treated as allowing everything.
type robotsCache struct {
	base    http.RoundTripper
	backoff []time.Duration

	mu    sync.Mutex
	hosts map[string]*robotsEntry
}

func newRobotsCache(base http.RoundTripper, backoff []time.Duration) *robotsCache {
	return &robotsCache{base: base, backoff: backoff, hosts: make(map[string]*robotsEntry)}
}

func (c *robotsCache) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots cache: nil request")
	}
	if !strings.EqualFold(req.URL.Path, "/robots.txt") {
		resp, err := c.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("robots cache passthrough: %w", err)
		}
		return resp, nil
	}

	c.mu.Lock()
	entry, ok := c.hosts[req.URL.Host]
	c.mu.Unlock()
	if !ok {
		var err error
		entry, err = c.load(req)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.hosts[req.URL.Host] = entry
		c.mu.Unlock()
	}
	return entry.response(req), nil
}

// fallback reports whether host's robots.txt was replaced by allow-all.
func (c *robotsCache) fallback(host string) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.hosts[host]
	if !ok {
		return false, ""
	}
	return entry.fallback, entry.reason
}

func (c *robotsCache) load(req *http.Request) (*robotsEntry, error) {
	var reason string
	for attempt := 0; attempt <= len(c.backoff); attempt++ {
		if attempt > 0 {
			if err := sleepCtx(req.Context(), c.backoff[attempt-1]); err != nil {
				return nil, fmt.Errorf("robots cache backoff: %w", err)
			}
		}
		resp, err := c.base.RoundTrip(req.Clone(req.Context()))
		switch {
		case err != nil && !isTimeout(err):
			return nil, fmt.Errorf("robots cache fetch: %w", err)
		case err != nil:
			reason = "robots.txt timeout"
			continue
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("robots cache read: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			reason = fmt.Sprintf("robots.txt status %d", resp.StatusCode)
			continue
		}
		return &robotsEntry{status: resp.StatusCode, header: resp.Header.Clone(), body: body}, nil
	}

	metrics.ObserveRobotsFallback()
	return &robotsEntry{
		status:   http.StatusOK,
		header:   make(http.Header),
		body:     []byte(allowAllRobots),
		fallback: true,
		reason:   reason,
	}, nil
}

func (e *robotsEntry) response(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    e.status,
		Status:        fmt.Sprintf("%d %s", e.status, http.StatusText(e.status)),
		Header:        e.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.body)),
		ContentLength: int64(len(e.body)),
		Request:       req,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
