// Package website renders arbitrary pages and returns their cleaned main
// content, optionally following same-site links.
package website

import (
	"context"
	"sync"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/cleaner"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/scheduler"
	"github.com/use-agent/harvest/simhash"
)

const settle = time.Second

// Extractor crawls from each start URL.
type Extractor struct {
	deps    extractor.Deps
	cleaner *cleaner.Cleaner
}

// New is the extractor.Factory for the "website" actor.
func New(deps extractor.Deps) extractor.Extractor {
	return &Extractor{deps: deps, cleaner: cleaner.New()}
}

func (e *Extractor) Metadata() models.ActorInfo {
	return models.ActorInfo{
		Name:        "Website Content Crawler",
		Description: "Renders pages and returns their readable content as markdown, text or HTML",
		Category:    "Web",
		Required:    []string{"startUrls"},
		InputSchema: map[string]any{
			"startUrls":       map[string]any{"type": "array", "description": "Pages to start from"},
			"maxPages":        map[string]any{"type": "integer", "default": 1, "description": "Pages per start URL, following same-site links"},
			"selector":        map[string]any{"type": "string", "description": "CSS selector narrowing the content"},
			"waitForSelector": map[string]any{"type": "string"},
			"outputFormat":    map[string]any{"type": "string", "enum": []string{cleaner.FormatMarkdown, cleaner.FormatText, cleaner.FormatHTML}, "default": cleaner.FormatMarkdown},
			"blockMedia":      map[string]any{"type": "boolean", "default": true},
			"skipDuplicates":  map[string]any{"type": "boolean", "default": true, "description": "Drop pages whose content nearly matches one already returned"},
		},
		OutputSchema: map[string]any{
			"url": "string", "loadedUrl": "string", "title": "string", "description": "string",
			"siteName": "string", "author": "string", "language": "string",
			"content": "string", "format": "string", "links": "object", "tokens": "number",
			"startUrl": "string",
		},
	}
}

func (e *Extractor) Scrape(ctx context.Context, in extractor.Input, progress models.ProgressFunc) ([]models.Record, error) {
	starts := in.Strings("startUrls")
	if len(starts) == 0 {
		return nil, models.ConfigurationError("startUrls", "is required")
	}
	opts := cleaner.Options{Format: in.String("outputFormat"), Selector: in.String("selector")}
	switch opts.Format {
	case "", cleaner.FormatMarkdown, cleaner.FormatText, cleaner.FormatHTML:
	default:
		return nil, models.ConfigurationError("outputFormat", "must be one of markdown, text, html")
	}
	maxPages := in.Int("maxPages", 1)
	render := browser.RenderOptions{Settle: settle, WaitSelector: in.String("waitForSelector")}

	b := e.deps.OpenBrowser(browser.ContextOptions{
		BlockMedia: in.Bool("blockMedia", true),
		BlockFonts: true,
	})
	pages := &renderCache{b: b, opts: render, docs: map[string]*browser.Rendered{}}

	job := scheduler.Job{
		Terms:      starts,
		MaxResults: maxPages,
		MaxPages:   1,
		TermKey:    "startUrl",
		Discover: func(ctx context.Context, start string, _ int) ([]string, error) {
			if maxPages == 1 {
				return []string{start}, nil
			}
			r, err := pages.render(ctx, start)
			if err != nil {
				return nil, err
			}
			targets := []string{start}
			for _, l := range cleaner.ExtractLinks(r.HTML, r.URL).Internal {
				targets = append(targets, l.Href)
			}
			return targets, nil
		},
		Extract: func(ctx context.Context, u string) (models.Record, error) {
			r, err := pages.render(ctx, u)
			if err != nil {
				return nil, err
			}
			return e.record(u, r, opts)
		},
		OnError: func(u string, err error) models.Record {
			return models.Record{"url": u, "error": models.MessageOf(err)}
		},
	}
	if in.Bool("skipDuplicates", true) {
		seen := simhash.NewSet(simhash.DefaultThreshold)
		job.Keep = func(rec models.Record) bool {
			return seen.Add(simhash.Fingerprint(rec.String("content")))
		}
	}
	return e.deps.Sched().Run(ctx, job, progress)
}

func (e *Extractor) record(u string, r *browser.Rendered, opts cleaner.Options) (models.Record, error) {
	p, err := e.cleaner.Clean(r.HTML, r.URL, opts)
	if err != nil {
		return nil, err
	}
	title := p.Title
	if title == "" {
		title = r.Title
	}
	return models.Record{
		"url":         u,
		"loadedUrl":   r.URL,
		"title":       title,
		"description": p.Description,
		"siteName":    p.SiteName,
		"author":      p.Author,
		"language":    p.Language,
		"content":     p.Content,
		"format":      p.Format,
		"links":       p.Links,
		"tokens":      p.Tokens,
	}, nil
}

// renderCache keeps start pages rendered during discovery so extraction
// does not load them twice.
type renderCache struct {
	b    extractor.Browser
	opts browser.RenderOptions

	mu   sync.Mutex
	docs map[string]*browser.Rendered
}

func (c *renderCache) render(ctx context.Context, u string) (*browser.Rendered, error) {
	c.mu.Lock()
	r, ok := c.docs[u]
	c.mu.Unlock()
	if ok {
		return r, nil
	}
	r, err := c.b.Render(ctx, u, c.opts)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.docs[u] = r
	c.mu.Unlock()
	return r, nil
}
