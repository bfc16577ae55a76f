package browser

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/harvest/models"
)

// WaitForSelectorSafe waits until selector matches or timeout elapses.
func WaitForSelectorSafe(ctx context.Context, page *rod.Page, selector string, timeout time.Duration) bool {
	if _, err := page.Context(ctx).Timeout(timeout).Element(selector); err != nil {
		slog.Debug("selector not found", "selector", selector, "error", err)
		return false
	}
	return true
}

// TextSafe returns the trimmed text of the first match, or "" on any failure.
func TextSafe(ctx context.Context, page *rod.Page, selector string) string {
	el := querySafe(ctx, page, selector)
	if el == nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		logFieldError(selector, err)
		return ""
	}
	return strings.TrimSpace(text)
}

// AttributeSafe returns the attribute of the first match, or "" on any failure.
func AttributeSafe(ctx context.Context, page *rod.Page, selector, attr string) string {
	el := querySafe(ctx, page, selector)
	if el == nil {
		return ""
	}
	v, err := el.Attribute(attr)
	if err != nil || v == nil {
		if err != nil {
			logFieldError(selector, err)
		}
		return ""
	}
	return *v
}

// ScrollPage scrolls one viewport at a time, pausing 0.5-1.5s between scrolls.
func ScrollPage(ctx context.Context, page *rod.Page, times int) {
	p := page.Context(ctx)
	for i := 0; i < times; i++ {
		if _, err := p.Eval(`() => window.scrollBy(0, window.innerHeight)`); err != nil {
			logFieldError("window", err)
			return
		}
		pause := 500*time.Millisecond + time.Duration(rand.Float64()*float64(time.Second))
		if sleepCtx(ctx, pause) != nil {
			return
		}
	}
}

// ScrollElement scrolls the first element matching selector to its bottom and
// reports whether it exists.
func ScrollElement(ctx context.Context, page *rod.Page, selector string) bool {
	res, err := page.Context(ctx).Eval(`(sel) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.scrollTop = el.scrollHeight;
		return true;
	}`, selector)
	if err != nil {
		logFieldError(selector, err)
		return false
	}
	return res.Value.Bool()
}

// ClickSafe clicks the first element matching selector and reports whether
// the click happened.
func ClickSafe(ctx context.Context, page *rod.Page, selector string) bool {
	el := querySafe(ctx, page, selector)
	if el == nil {
		return false
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		logFieldError(selector, err)
		return false
	}
	return true
}

// HTML returns the rendered document.
func HTML(ctx context.Context, page *rod.Page) (string, error) {
	html, err := page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "failed to read page HTML")
	}
	return html, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error { return sleepCtx(ctx, d) }

// querySafe returns the first match without waiting, or nil.
func querySafe(ctx context.Context, page *rod.Page, selector string) *rod.Element {
	has, el, err := page.Context(ctx).Has(selector)
	if err != nil {
		logFieldError(selector, err)
		return nil
	}
	if !has {
		return nil
	}
	return el
}

func logFieldError(selector string, err error) {
	fe := models.NewScrapeError(models.ErrCodeExtractionField, "field lookup failed: "+selector, err)
	slog.Debug("field extraction failed", "selector", selector, "error", fe)
}

// categorizeError wraps raw errors into typed ScrapeErrors.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeCancelled, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
