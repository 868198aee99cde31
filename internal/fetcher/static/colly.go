// Package static implements collector.Fetcher with a plain HTTP
// client via Colly, for mirrors that render server-side.
package static

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/oddsline/collector/internal/collector"
)

// Config controls the static fetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher executes single GETs through a Colly collector. Reset and
// Age satisfy the Fetcher lifecycle: a reset recycles the transport
// and its connection pool.
type Fetcher struct {
	cfg           Config
	clock         collector.Clock
	baseCollector *colly.Collector
	bornAt        time.Time
}

// New builds a Fetcher.
func New(cfg Config, clock collector.Clock) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	f := &Fetcher{cfg: cfg, clock: clock}
	f.rebuild()
	return f
}

// Fetch executes a single HTTP GET and returns the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.baseCollector == nil {
		f.rebuild()
	}
	c := f.baseCollector.Clone()
	c.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("static fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("static fetch %s: %w", url, err)
		}
		if fetchErr != nil {
			return "", fmt.Errorf("static fetch %s: %w", url, fetchErr)
		}
	}
	if len(body) == 0 {
		return "", fmt.Errorf("static fetch %s: empty body", url)
	}
	return string(body), nil
}

// Reset drops the collector; the next Fetch rebuilds it.
func (f *Fetcher) Reset() {
	f.baseCollector = nil
}

// Age reports how long the current transport has been alive.
func (f *Fetcher) Age() time.Duration {
	if f.baseCollector == nil {
		return 0
	}
	return f.clock.Now().Sub(f.bornAt)
}

// Close releases the collector.
func (f *Fetcher) Close() {
	f.baseCollector = nil
}

func (f *Fetcher) rebuild() {
	c := colly.NewCollector(colly.Async(false))
	if f.cfg.UserAgent != "" {
		c.UserAgent = f.cfg.UserAgent
	}
	c.IgnoreRobotsTxt = true
	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	})
	f.baseCollector = c
	f.bornAt = f.clock.Now()
}
