// Package headless implements collector.Fetcher with a headless
// browser via chromedp.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/collector"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// EventSelector must be present before the DOM is read.
	EventSelector string
	// OddsSelector is waited for best-effort; a page without odds
	// cells is still returned.
	OddsSelector string
}

// Fetcher drives a headless Chrome. The browser is created lazily on
// the first Fetch and recreated after Reset or a failed navigation, so
// a teardown never races an in-flight fetch.
type Fetcher struct {
	cfg         Config
	clock       collector.Clock
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc
	bornAt      time.Time
}

// New builds a Fetcher. The browser is not started yet.
func New(cfg Config, clock collector.Clock, logger *zap.Logger) *Fetcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 20 * time.Second
	}
	if cfg.EventSelector == "" {
		cfg.EventSelector = ".c-events__item"
	}
	if cfg.OddsSelector == "" {
		cfg.OddsSelector = ".c-bets__bet"
	}
	return &Fetcher{cfg: cfg, clock: clock, logger: logger}
}

// Fetch navigates to url and returns the rendered DOM. The wait for
// the event containers is bounded by the navigation timeout; crossing
// it fails the cycle.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.ensureAllocator()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	go func() {
		// Propagate caller cancellation into the browser task.
		select {
		case <-ctx.Done():
			taskCancel()
		case <-taskCtx.Done():
		}
	}()

	var html string
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady(f.cfg.EventSelector, chromedp.ByQuery),
		f.waitOddsBestEffort(),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight*0.5);`, nil),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil),
		chromedp.Sleep(time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		// A dead or wedged browser poisons later fetches; rebuild.
		f.teardown()
		return "", fmt.Errorf("headless fetch %s: %w", url, err)
	}
	return html, nil
}

// Reset tears the browser down; the next Fetch builds a fresh one.
func (f *Fetcher) Reset() {
	f.teardown()
}

// Age reports how long the current browser has been alive. Zero when
// no browser is running.
func (f *Fetcher) Age() time.Duration {
	if f.allocator == nil {
		return 0
	}
	return f.clock.Now().Sub(f.bornAt)
}

// Close releases the browser. The Fetcher must not be used afterwards.
func (f *Fetcher) Close() {
	f.teardown()
}

func (f *Fetcher) ensureAllocator() {
	if f.allocator != nil {
		return
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("window-size", "1280,720"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	f.allocator, f.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	f.bornAt = f.clock.Now()
	f.logger.Info("headless browser allocator created")
}

func (f *Fetcher) teardown() {
	if f.allocCancel != nil {
		f.allocCancel()
	}
	f.allocator = nil
	f.allocCancel = nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// waitOddsBestEffort waits briefly for odds cells; timing out is not
// an error because some snapshots legitimately render without them.
func (f *Fetcher) waitOddsBestEffort() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := chromedp.WaitReady(f.cfg.OddsSelector, chromedp.ByQuery).Do(waitCtx); err != nil {
			f.logger.Warn("odds cells did not appear in time", zap.Error(err))
		}
		return nil
	})
}
