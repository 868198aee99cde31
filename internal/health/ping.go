// Package health sends outbound liveness pings to an external
// monitoring endpoint.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger GETs a monitoring URL so an external system can detect a
// silent death of the collector.
type Pinger struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// New builds a Pinger. An empty url disables pinging.
func New(url string, logger *zap.Logger) *Pinger {
	return &Pinger{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Enabled reports whether a ping target is configured.
func (p *Pinger) Enabled() bool {
	return p.url != ""
}

// Ping GETs the target. Failures are logged, never fatal: the ping is
// a side channel, not part of the collection path.
func (p *Pinger) Ping(ctx context.Context) {
	if !p.Enabled() {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.logger.Warn("build health ping", zap.Error(err))
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("health ping failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	if resp.StatusCode >= 400 {
		p.logger.Warn("health ping rejected", zap.String("status", fmt.Sprintf("%d", resp.StatusCode)))
		return
	}
	p.logger.Debug("health ping sent", zap.String("url", p.url))
}
