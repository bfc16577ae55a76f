// Package enrich adds contact details found on business websites to
// extracted records.
package enrich

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

// WebsiteEnricher fetches a site's home page and, when linked, its contact
// page. Results are cached per host. It implements extractor.ContactFinder.
type WebsiteEnricher struct {
	fetcher *Fetcher
	cache   *cache.Cache[*models.Contacts]
	timeout time.Duration
}

// NewWebsiteEnricher builds an enricher from cfg. proxy may be empty.
func NewWebsiteEnricher(cfg config.EnrichConfig, proxy string) *WebsiteEnricher {
	return &WebsiteEnricher{
		fetcher: NewFetcher(proxy, cfg.RequestsPerSecond),
		cache:   cache.New[*models.Contacts](cfg.CacheEntries, cfg.CacheTTL),
		timeout: cfg.Timeout,
	}
}

// Enrich returns the contacts published on website. A failed home page is
// an error; a failed contact page only loses what it would have added.
func (w *WebsiteEnricher) Enrich(ctx context.Context, website string) (*models.Contacts, error) {
	home, err := normalizeURL(website)
	if err != nil {
		return nil, err
	}
	key := cache.Key(strings.TrimPrefix(strings.ToLower(home.Hostname()), "www."))
	if found, ok := w.cache.Get(key); ok {
		return found, nil
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	body, final, err := w.fetcher.Fetch(ctx, home.String())
	if err != nil {
		return nil, err
	}
	found := ParseContacts(string(body))

	if contact := ContactPage(string(body), final); contact != "" {
		if page, _, err := w.fetcher.Fetch(ctx, contact); err != nil {
			slog.Debug("contact page fetch failed", "url", contact, "error", err)
		} else {
			mergeContacts(found, ParseContacts(string(page)))
		}
	}

	w.cache.Set(key, found)
	return found, nil
}

// Close stops the cache sweeper and drops idle connections.
func (w *WebsiteEnricher) Close() error {
	w.cache.Stop()
	w.fetcher.Close()
	return nil
}

// normalizeURL adds a scheme when missing and rejects non-web URLs.
func normalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "empty website URL", nil)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid website URL: "+raw, err)
	}
	return u, nil
}
