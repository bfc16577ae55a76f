package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/proxy"
	"github.com/ysmood/gson"
)

// Context is an isolated browser context created by a Session. It holds a
// non-owning reference to the session's browser connection.
type Context struct {
	session     *Session
	browser     *rod.Browser
	id          proto.BrowserBrowserContextID
	fingerprint Fingerprint
	policy      BlockPolicy
	proxy       *proxy.Descriptor
	creds       *credentials

	mu     sync.Mutex
	pages  map[*rod.Page]func()
	closed bool
}

// Fingerprint returns the identity applied to this context's pages.
func (c *Context) Fingerprint() Fingerprint { return c.fingerprint }

// Policy returns the resource interception policy.
func (c *Context) Policy() BlockPolicy { return c.policy }

// Proxy returns the assigned proxy, or nil.
func (c *Context) Proxy() *proxy.Descriptor { return c.proxy }

// NewPage opens a tab in this context with the fingerprint, headers, stealth
// scripts, interception policy and proxy credentials applied before any navigation.
func (c *Context) NewPage(ctx context.Context) (*rod.Page, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "context already closed", nil)
	}
	c.mu.Unlock()

	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}
	// Strip the creation context so later cleanup still works after ctx ends.
	page = page.Context(context.Background())

	applyStealth(page)

	fp := c.fingerprint
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      fp.UserAgent,
		AcceptLanguage: fp.AcceptLanguage(),
		Platform:       fp.Platform,
	}); err != nil {
		slog.Debug("user agent override failed", "error", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             fp.Width,
		Height:            fp.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Debug("viewport override failed", "error", err)
	}
	if fp.Timezone != "" {
		_ = proto.EmulationSetTimezoneOverride{TimezoneID: fp.Timezone}.Call(page)
	}
	if fp.Locale != "" {
		_ = proto.EmulationSetLocaleOverride{Locale: fp.Locale}.Call(page)
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept-Language":           fp.AcceptLanguage(),
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Upgrade-Insecure-Requests": "1",
		}),
	}.Call(page)

	stop := interceptor{policy: c.policy, creds: c.creds}.install(page)

	c.mu.Lock()
	if c.pages == nil {
		c.pages = make(map[*rod.Page]func())
	}
	c.pages[page] = stop
	c.mu.Unlock()

	return page, nil
}

// ClosePage releases a page early. Pages not closed here are closed with the context.
func (c *Context) ClosePage(page *rod.Page) {
	c.mu.Lock()
	stop, ok := c.pages[page]
	delete(c.pages, page)
	c.mu.Unlock()
	if !ok {
		return
	}
	closePage(page, stop)
}

// Navigate loads url on page with retries and feeds the outcome back to the
// proxy pool when this context is proxied.
func (c *Context) Navigate(ctx context.Context, page *rod.Page, url string) bool {
	start := time.Now()
	ok := c.session.nav.NavigateWithRetry(ctx, Loader(page), url, c.session.nav.MaxRetries)
	if c.proxy != nil && c.session.proxies != nil {
		c.session.proxies.RecordResult(c.proxy.ID, ok, time.Since(start))
	}
	return ok
}

// Close closes all pages and disposes the browser context.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pages := c.pages
	c.pages = nil
	c.mu.Unlock()

	for page, stop := range pages {
		closePage(page, stop)
	}

	err := proto.TargetDisposeBrowserContext{BrowserContextID: c.id}.Call(c.browser)
	c.session.contexts.untrack(c)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func closePage(page *rod.Page, stopIntercept func()) {
	if stopIntercept != nil {
		stopIntercept()
	}
	if err := page.Close(); err != nil {
		slog.Debug("page close failed", "error", err)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
