package browser

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/harvest/models"
)

// RenderOptions controls what happens on a page between load and capture.
type RenderOptions struct {
	// WaitSelector, when set, is waited for up to WaitTimeout.
	WaitSelector string
	WaitTimeout  time.Duration

	// Settle is a fixed pause after load for client-side rendering.
	Settle time.Duration

	// WindowScrolls scrolls the window this many viewports.
	WindowScrolls int

	// ScrollContainer is scrolled to its bottom until its height stops
	// growing or MaxScrolls is reached.
	ScrollContainer string
	MaxScrolls      int
	ScrollPause     time.Duration

	// Click, when set, is clicked after the first capture. The page is then
	// given ClickPause, ClickScroll is scrolled ClickScrolls times and the
	// document is captured again into Rendered.ClickHTML.
	Click        string
	ClickPause   time.Duration
	ClickScroll  string
	ClickScrolls int
}

// Rendered is a captured page.
type Rendered struct {
	URL   string // final URL after redirects
	Title string
	HTML  string
	// Found is false when WaitSelector never matched.
	Found bool
	// ClickHTML is the document after the Click step; empty when the
	// element was missing.
	ClickHTML string
}

// Pages renders URLs through one lazily created context of a session.
// Each Render uses its own tab. Safe for concurrent use.
type Pages struct {
	session *Session
	opts    ContextOptions

	mu  sync.Mutex
	bc  *Context
	err error
}

// Pages returns a renderer whose context is created with opts on first use.
func (s *Session) Pages(opts ContextOptions) *Pages {
	return &Pages{session: s, opts: opts}
}

func (p *Pages) context(ctx context.Context) (*Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bc == nil && p.err == nil {
		p.bc, p.err = p.session.CreateContext(ctx, p.opts)
	}
	return p.bc, p.err
}

// Render loads url with retries and returns the rendered document.
func (p *Pages) Render(ctx context.Context, url string, opts RenderOptions) (*Rendered, error) {
	bc, err := p.context(ctx)
	if err != nil {
		return nil, err
	}
	page, err := bc.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer bc.ClosePage(page)

	if !bc.Navigate(ctx, page, url) {
		if cerr := ctx.Err(); cerr != nil {
			return nil, categorizeError(cerr, "navigation aborted")
		}
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "failed to load "+url, nil)
	}

	out := &Rendered{URL: url, Found: true}
	if opts.WaitSelector != "" {
		timeout := opts.WaitTimeout
		if timeout <= 0 {
			timeout = p.session.nav.SelectorTimeout
		}
		out.Found = WaitForSelectorSafe(ctx, page, opts.WaitSelector, timeout)
	}
	if opts.Settle > 0 {
		if err := sleepCtx(ctx, opts.Settle); err != nil {
			return nil, categorizeError(err, "render aborted")
		}
	}
	if opts.WindowScrolls > 0 {
		ScrollPage(ctx, page, opts.WindowScrolls)
	}
	if opts.ScrollContainer != "" {
		scrollUntilStable(ctx, page, opts.ScrollContainer, opts.MaxScrolls, opts.ScrollPause)
	}

	html, err := HTML(ctx, page)
	if err != nil {
		return nil, err
	}
	out.HTML = html
	if info, err := page.Context(ctx).Info(); err == nil {
		out.URL = info.URL
		out.Title = info.Title
	}

	if opts.Click != "" && ClickSafe(ctx, page, opts.Click) {
		if err := sleepCtx(ctx, opts.ClickPause); err != nil {
			return nil, categorizeError(err, "render aborted")
		}
		for i := 0; i < opts.ClickScrolls; i++ {
			if !ScrollElement(ctx, page, opts.ClickScroll) || sleepCtx(ctx, time.Second) != nil {
				break
			}
		}
		if html, err := HTML(ctx, page); err == nil {
			out.ClickHTML = html
		}
	}
	return out, nil
}

// Close disposes the context if one was created.
func (p *Pages) Close() error {
	p.mu.Lock()
	bc := p.bc
	p.bc = nil
	p.mu.Unlock()
	if bc == nil {
		return nil
	}
	return bc.Close()
}

func scrollUntilStable(ctx context.Context, page *rod.Page, selector string, maxScrolls int, pause time.Duration) {
	if maxScrolls <= 0 {
		maxScrolls = 20
	}
	if pause <= 0 {
		pause = 2 * time.Second
	}
	p := page.Context(ctx)
	height := func() int {
		res, err := p.Eval(`(sel) => { const el = document.querySelector(sel); return el ? el.scrollHeight : 0; }`, selector)
		if err != nil {
			logFieldError(selector, err)
			return -1
		}
		return res.Value.Int()
	}

	for i := 0; i < maxScrolls; i++ {
		before := height()
		if before <= 0 || !ScrollElement(ctx, page, selector) {
			return
		}
		if sleepCtx(ctx, pause) != nil {
			return
		}
		if after := height(); after == before {
			slog.Debug("scroll container exhausted", "selector", selector, "scrolls", i+1)
			return
		}
	}
}
