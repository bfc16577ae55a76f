package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
)

// PageLoader performs one navigation and reports the document's HTTP status.
// A status of 0 means no response was observed.
type PageLoader interface {
	Load(ctx context.Context, url string) (int, error)
}

// Loader adapts a rod page.
func Loader(page *rod.Page) PageLoader { return rodLoader{page: page} }

type rodLoader struct {
	page *rod.Page
}

func (l rodLoader) Load(ctx context.Context, url string) (int, error) {
	p := l.page.Context(ctx)

	// Must be registered before Navigate or the event can be missed.
	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return 0, categorizeError(err, "navigation failed")
	}
	wait()
	if err := ctx.Err(); err != nil {
		return 0, categorizeError(err, "navigation did not reach DOMContentLoaded")
	}

	// Read the status from the navigation timing entry; event listeners on the
	// Network domain would conflict with request interception.
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0, categorizeError(err, "failed to read response status")
	}
	return res.Value.Int(), nil
}

// Navigator is the retry-with-backoff page load protocol.
type Navigator struct {
	// Timeout bounds each attempt.
	Timeout time.Duration
	// MaxRetries is the default attempt count used by Context.Navigate.
	MaxRetries int
	// DelayMin and DelayMax bound the pause after a successful load.
	DelayMin, DelayMax time.Duration
	// SelectorTimeout is the default wait used by Pages.Render.
	SelectorTimeout time.Duration

	// Sleep and Rand are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// NewNavigator builds a Navigator from config.
func NewNavigator(cfg config.NavigationConfig) *Navigator {
	return &Navigator{
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		DelayMin:   cfg.HumanDelayMin,
		DelayMax:   cfg.HumanDelayMax,

		SelectorTimeout: cfg.SelectorTimeout,

		Sleep: sleepCtx,
		Rand:  rand.Float64,
	}
}

// NavigateWithRetry tries up to maxRetries times. An attempt succeeds when the
// document loads with status < 400; the navigator then pauses for a random
// human-like delay and returns true. A failed attempt waits 2^attempt seconds
// (attempt counted from 0) before the next one; there is no wait after the
// last. Exhaustion returns false; it never returns an error.
func (n *Navigator) NavigateWithRetry(ctx context.Context, page PageLoader, url string, maxRetries int) bool {
	if maxRetries < 1 {
		maxRetries = 1
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		status, err := n.attempt(ctx, page, url)
		switch {
		case err != nil:
			metrics.RecordNavigation("error")
			slog.Warn("navigation attempt failed", "url", url, "attempt", attempt+1, "error", err)
		case status == 0 || status >= 400:
			metrics.RecordNavigation("bad_status")
			slog.Warn("navigation returned bad status", "url", url, "attempt", attempt+1, "status", status)
		default:
			metrics.RecordNavigation("ok")
			_ = n.Sleep(ctx, n.humanDelay())
			return true
		}

		if ctx.Err() != nil {
			return false
		}
		if attempt < maxRetries-1 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			if n.Sleep(ctx, backoff) != nil {
				return false
			}
		}
	}
	slog.Warn("navigation exhausted retries", "url", url, "attempts", maxRetries)
	return false
}

func (n *Navigator) attempt(ctx context.Context, page PageLoader, url string) (status int, err error) {
	attemptCtx := ctx
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = models.NewScrapeError(models.ErrCodeNavigation, "navigation panicked", fmt.Errorf("%v", r))
		}
	}()
	return page.Load(attemptCtx, url)
}

func (n *Navigator) humanDelay() time.Duration {
	span := n.DelayMax - n.DelayMin
	if span <= 0 {
		return n.DelayMin
	}
	return n.DelayMin + time.Duration(n.Rand()*float64(span))
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
