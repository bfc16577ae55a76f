// Package extractortest provides fakes for testing extractors without Chromium.
package extractortest

import (
	"context"
	"strings"
	"sync"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
)

// Browser serves canned documents. Pages are matched by exact URL first,
// then by the longest registered prefix.
type Browser struct {
	mu     sync.Mutex
	pages  map[string]*browser.Rendered
	errs   map[string]error
	calls  []string
	opened []browser.ContextOptions
}

// NewBrowser returns an empty fake.
func NewBrowser() *Browser {
	return &Browser{pages: map[string]*browser.Rendered{}, errs: map[string]error{}}
}

// Page registers html for url (or a URL prefix).
func (b *Browser) Page(url, html string) *Browser {
	return b.Rendered(url, &browser.Rendered{URL: url, HTML: html, Found: true})
}

// Rendered registers a full render result.
func (b *Browser) Rendered(url string, r *browser.Rendered) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[url] = r
	return b
}

// Fail makes url (or a URL prefix) return err.
func (b *Browser) Fail(url string, err error) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[url] = err
	return b
}

// Render serves the registered result. ClickHTML is only returned when opts
// asks for a click.
func (b *Browser) Render(ctx context.Context, url string, opts browser.RenderOptions) (*browser.Rendered, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, url)

	if err, ok := lookup(b.errs, url); ok {
		return nil, err
	}
	if r, ok := lookup(b.pages, url); ok {
		cp := *r
		if cp.URL == "" || strings.HasPrefix(url, cp.URL) {
			cp.URL = url
		}
		if opts.Click == "" {
			cp.ClickHTML = ""
		}
		return &cp, nil
	}
	return nil, models.NewScrapeError(models.ErrCodeNavigation, "failed to load "+url, nil)
}

// Calls returns every URL rendered so far.
func (b *Browser) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Opened returns the context options each Open call received.
func (b *Browser) Opened() []browser.ContextOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]browser.ContextOptions(nil), b.opened...)
}

// Open is an extractor.BrowserFunc serving this fake.
func (b *Browser) Open(opts browser.ContextOptions) extractor.Browser {
	b.mu.Lock()
	b.opened = append(b.opened, opts)
	b.mu.Unlock()
	return b
}

func lookup[T any](m map[string]T, url string) (T, bool) {
	if v, ok := m[url]; ok {
		return v, true
	}
	var (
		best    T
		bestLen = -1
	)
	for prefix, v := range m {
		if strings.HasPrefix(url, prefix) && len(prefix) > bestLen {
			best, bestLen = v, len(prefix)
		}
	}
	return best, bestLen >= 0
}

// Contacts is a canned ContactFinder keyed by website.
type Contacts struct {
	mu    sync.Mutex
	Sites map[string]*models.Contacts
	Errs  map[string]error
	calls []string
}

func (c *Contacts) Enrich(ctx context.Context, website string) (*models.Contacts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, website)
	if err := c.Errs[website]; err != nil {
		return nil, err
	}
	if found := c.Sites[website]; found != nil {
		return found, nil
	}
	return &models.Contacts{}, nil
}

// Calls returns the websites looked up so far.
func (c *Contacts) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Emitter records streamed records.
type Emitter struct {
	mu      sync.Mutex
	Records []models.Record
	IDs     []string
}

func (e *Emitter) EmitRecord(correlationID string, record models.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.IDs = append(e.IDs, correlationID)
	e.Records = append(e.Records, record.Clone())
}
