// Package apollo finds public apollo.io people profiles through search engines.
package apollo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/scheduler"
)

const profileDelay = 2 * time.Second

// Extractor scrapes apollo.io profiles.
type Extractor struct {
	deps  extractor.Deps
	delay time.Duration
}

// New is the extractor.Factory for the "apollo" actor.
func New(deps extractor.Deps) extractor.Extractor {
	return &Extractor{deps: deps, delay: profileDelay}
}

func (e *Extractor) Metadata() models.ActorInfo {
	return models.ActorInfo{
		Name:        "Apollo.io Profile Scraper",
		Description: "Finds public Apollo.io people profiles via search and extracts contact details",
		Category:    "Lead Generation",
		Required:    []string{"searchTerms"},
		InputSchema: map[string]any{
			"searchTerms": map[string]any{"type": "array", "description": "Names, titles or companies to search for"},
			"maxResults":  map[string]any{"type": "integer", "default": 20},
		},
		OutputSchema: map[string]any{
			"name": "string", "title": "string", "company": "string", "location": "string",
			"linkedin_url": "string", "twitter_url": "string", "facebook_url": "string",
			"description": "string", "apollo_url": "string", "source": "string", "searchTerm": "string",
		},
	}
}

func (e *Extractor) Scrape(ctx context.Context, in extractor.Input, progress models.ProgressFunc) ([]models.Record, error) {
	terms := in.Strings("searchTerms")
	if len(terms) == 0 {
		return nil, models.ConfigurationError("searchTerms", "is required")
	}
	maxResults := in.Int("maxResults", 20)
	b := e.deps.OpenBrowser(browser.ContextOptions{UseProxy: true, BlockMedia: true, BlockFonts: true})

	job := scheduler.Job{
		Terms:      terms,
		MaxResults: maxResults,
		MaxPages:   1,
		BatchSize:  1,
		BatchDelay: e.delay,
		Discover: func(ctx context.Context, term string, _ int) ([]string, error) {
			return e.search(ctx, b, term, maxResults)
		},
		Extract: func(ctx context.Context, profileURL string) (models.Record, error) {
			return e.profile(ctx, b, profileURL)
		},
		OnError: func(string, error) models.Record { return nil },
	}
	return e.deps.Sched().Run(ctx, job, progress)
}

// searchURLs lists the queries tried in order until one yields profiles.
func searchURLs(term string, maxResults int) []string {
	xray := url.QueryEscape("site:apollo.io/people " + term)
	generic := url.QueryEscape("Apollo.io " + term)
	return []string{
		fmt.Sprintf("https://www.google.com/search?q=%s&num=%d", xray, maxResults*2),
		"https://duckduckgo.com/html/?q=" + xray,
		fmt.Sprintf("https://www.google.com/search?q=%s&num=%d", generic, maxResults*2),
	}
}

func (e *Extractor) search(ctx context.Context, b extractor.Browser, term string, maxResults int) ([]string, error) {
	var lastErr error
	for _, u := range searchURLs(term, maxResults) {
		r, err := b.Render(ctx, u, browser.RenderOptions{Settle: 2 * time.Second})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		links, err := ParseProfileLinks(r.HTML)
		if err != nil {
			lastErr = err
			continue
		}
		if len(links) > 0 {
			slog.Info("apollo profiles found", "term", term, "count", len(links), "source", u)
			return links, nil
		}
		slog.Warn("no apollo profiles on search page, trying next source", "term", term, "title", r.Title)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (e *Extractor) profile(ctx context.Context, b extractor.Browser, profileURL string) (models.Record, error) {
	r, err := b.Render(ctx, profileURL, browser.RenderOptions{WaitSelector: "h1", WaitTimeout: 10 * time.Second})
	if err != nil {
		return nil, err
	}
	if !r.Found {
		slog.Warn("timeout waiting for profile content", "url", profileURL)
		return nil, nil
	}
	doc, err := extractor.ParseHTML(r.HTML)
	if err != nil {
		return nil, err
	}
	rec := ParseProfile(doc, r.Title, profileURL)
	slog.Info("apollo profile extracted", "name", rec.String("name"))
	return rec, nil
}

// ParseProfileLinks returns apollo.io/people URLs from a search result page,
// unwrapping search-engine redirect links.
func ParseProfileLinks(html string) ([]string, error) {
	doc, err := extractor.ParseHTML(html)
	if err != nil {
		return nil, err
	}
	var out []string
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := unwrapRedirect(s.AttrOr("href", ""))
		if !strings.Contains(href, "apollo.io/people/") || seen[href] {
			return
		}
		host := ""
		if u, err := url.Parse(href); err == nil {
			host = u.Hostname()
		}
		if strings.Contains(host, "google.") || strings.Contains(host, "duckduckgo.") {
			return
		}
		seen[href] = true
		out = append(out, href)
	})
	return out, nil
}

// unwrapRedirect turns "/url?q=<target>" and "//duckduckgo.com/l/?uddg=<target>" into the target.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	for _, key := range []string{"q", "uddg"} {
		target := u.Query().Get(key)
		if strings.HasPrefix(target, "http") && strings.Contains(target, "apollo.io/people/") {
			return target
		}
	}
	return href
}
