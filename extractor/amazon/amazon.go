// Package amazon extracts product listings from amazon.com search results.
package amazon

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/scheduler"
)

const (
	defaultBaseURL = "https://www.amazon.com"
	maxSearchPages = 20
	pageDelay      = time.Second
)

// Extractor scrapes search results and product detail pages.
type Extractor struct {
	deps    extractor.Deps
	baseURL string
}

// New is the extractor.Factory for the "amazon" actor.
func New(deps extractor.Deps) extractor.Extractor {
	return &Extractor{deps: deps, baseURL: defaultBaseURL}
}

func (e *Extractor) Metadata() models.ActorInfo {
	return models.ActorInfo{
		Name:        "Amazon Product Scraper",
		Description: "Searches Amazon by keyword and extracts product details, prices and ratings",
		Category:    "E-commerce",
		Required:    []string{"searchKeywords"},
		InputSchema: map[string]any{
			"searchKeywords": map[string]any{"type": "array", "description": "Keywords to search for"},
			"maxResults":     map[string]any{"type": "integer", "default": 50},
			"minRating":      map[string]any{"type": "number", "default": 0},
			"maxPrice":       map[string]any{"type": "number"},
			"extractReviews": map[string]any{"type": "boolean", "default": false},
		},
		OutputSchema: map[string]any{
			"asin": "string", "title": "string", "url": "string",
			"price": "number", "originalPrice": "number", "discount": "number", "currency": "string",
			"rating": "number", "reviewCount": "number", "availability": "string", "prime": "boolean",
			"images": "array", "videos": "array", "description": "string", "features": "array",
			"brand": "string", "dimensions": "object", "color": "string", "size": "string",
			"stock": "number", "shipping": "string", "seller": "string", "soldBy": "string",
			"category": "string", "bestSellerRank": "string", "reviews": "array",
			"searchKeyword": "string",
		},
	}
}

func (e *Extractor) Scrape(ctx context.Context, in extractor.Input, progress models.ProgressFunc) ([]models.Record, error) {
	keywords := in.Strings("searchKeywords")
	if len(keywords) == 0 {
		return nil, models.ConfigurationError("searchKeywords", "is required")
	}
	withReviews := in.Bool("extractReviews", false)
	b := e.deps.OpenBrowser(browser.ContextOptions{})

	job := scheduler.Job{
		Terms:      keywords,
		MaxResults: in.Int("maxResults", 50),
		MaxPages:   maxSearchPages,
		TermKey:    "searchKeyword",
		Discover: func(ctx context.Context, term string, page int) ([]string, error) {
			if page > 1 {
				if err := browser.Sleep(ctx, pageDelay); err != nil {
					return nil, err
				}
			}
			r, err := b.Render(ctx, e.searchURL(term, page), browser.RenderOptions{
				Settle:        2 * time.Second,
				WindowScrolls: 3,
			})
			if err != nil {
				return nil, err
			}
			return ParseSearch(r.HTML, page)
		},
		Extract: func(ctx context.Context, asin string) (models.Record, error) {
			return e.product(ctx, b, asin, withReviews)
		},
		Keep: Filter(in.Float("minRating", 0), in.Float("maxPrice", 0)),
		OnError: func(asin string, err error) models.Record {
			return models.Record{"asin": asin, "url": e.productURL(asin), "error": models.MessageOf(err)}
		},
	}
	return e.deps.Sched().Run(ctx, job, progress)
}

func (e *Extractor) searchURL(keyword string, page int) string {
	return fmt.Sprintf("%s/s?k=%s&page=%d", e.baseURL, url.QueryEscape(keyword), page)
}

func (e *Extractor) productURL(asin string) string {
	return e.baseURL + "/dp/" + asin
}

func (e *Extractor) product(ctx context.Context, b extractor.Browser, asin string, withReviews bool) (models.Record, error) {
	u := e.productURL(asin)
	r, err := b.Render(ctx, u, browser.RenderOptions{Settle: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	doc, err := extractor.ParseHTML(r.HTML)
	if err != nil {
		return nil, err
	}
	rec := ParseProduct(doc, asin, u)

	if withReviews {
		rr, err := b.Render(ctx, e.baseURL+"/product-reviews/"+asin, browser.RenderOptions{Settle: 2 * time.Second})
		if err != nil {
			rec["reviews"] = []string{}
		} else {
			rec["reviews"] = ParseReviews(rr.HTML)
		}
	}
	return rec, nil
}

// Filter keeps records with rating >= minRating and price <= maxPrice. Zero
// disables a bound. A missing rating counts as 0, a missing price as unbounded.
func Filter(minRating, maxPrice float64) scheduler.FilterFunc {
	if minRating <= 0 && maxPrice <= 0 {
		return nil
	}
	return func(r models.Record) bool {
		if minRating > 0 {
			rating, _ := r.Float("rating")
			if rating < minRating {
				return false
			}
		}
		if maxPrice > 0 {
			price, ok := r.Float("price")
			if !ok {
				price = math.Inf(1)
			}
			if price > maxPrice {
				return false
			}
		}
		return true
	}
}

func isASIN(s string) bool {
	return len(strings.TrimSpace(s)) == 10
}
