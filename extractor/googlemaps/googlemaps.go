// Package googlemaps extracts business listings from Google Maps searches.
package googlemaps

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/scheduler"
)

const (
	defaultBaseURL    = "https://www.google.com/maps"
	discoveryAttempts = 3
	retryDelay        = 2 * time.Second
	batchSize         = 3
	batchDelay        = 500 * time.Millisecond
	maxReviews        = 10
)

// Extractor searches Maps, then visits each place page.
type Extractor struct {
	deps    extractor.Deps
	baseURL string
}

// New is the extractor.Factory for the "google-maps" actor.
func New(deps extractor.Deps) extractor.Extractor {
	return &Extractor{deps: deps, baseURL: defaultBaseURL}
}

func (e *Extractor) Metadata() models.ActorInfo {
	return models.ActorInfo{
		Name:        "Google Maps Scraper",
		Description: "Extracts places from Google Maps with contact details found on their websites",
		Category:    "Maps & Location",
		Required:    []string{"searchTerms"},
		InputSchema: map[string]any{
			"searchTerms":    map[string]any{"type": "array", "description": "List of search terms"},
			"location":       map[string]any{"type": "string", "description": "Location to search in"},
			"maxResults":     map[string]any{"type": "integer", "default": 100},
			"extractImages":  map[string]any{"type": "boolean", "default": false},
			"extractReviews": map[string]any{"type": "boolean", "default": false},
			"useProxy":       map[string]any{"type": "boolean", "default": true},
		},
		OutputSchema: map[string]any{
			"title": "string", "category": "string", "rating": "number", "reviewsCount": "number",
			"address": "string", "city": "string", "state": "string", "countryCode": "string",
			"phone": "string", "phoneVerified": "boolean", "email": "string", "emailVerified": "boolean",
			"website": "string", "socialMedia": "object", "placeId": "string", "url": "string",
			"openingHours": "string", "priceLevel": "string", "totalScore": "number", "images": "array",
			"reviews": "array", "searchString": "string",
		},
	}
}

func (e *Extractor) Scrape(ctx context.Context, in extractor.Input, progress models.ProgressFunc) ([]models.Record, error) {
	terms := in.Strings("searchTerms")
	if len(terms) == 0 {
		return nil, models.ConfigurationError("searchTerms", "is required")
	}
	location := in.String("location")
	queries := make([]string, len(terms))
	for i, t := range terms {
		queries[i] = strings.TrimSpace(t + " " + location)
	}
	opts := placeOptions{
		images:  in.Bool("extractImages", false),
		reviews: in.Bool("extractReviews", false),
	}

	b := e.deps.OpenBrowser(browser.ContextOptions{
		UseProxy:   in.Bool("useProxy", true),
		BlockMedia: !opts.images,
		BlockFonts: true,
	})

	job := scheduler.Job{
		Terms:      queries,
		MaxResults: in.Int("maxResults", 100),
		MaxPages:   discoveryAttempts,
		TermKey:    "searchString",
		BatchSize:  batchSize,
		BatchDelay: batchDelay,
		Discover: func(ctx context.Context, query string, attempt int) ([]string, error) {
			if attempt > 1 {
				if err := browser.Sleep(ctx, retryDelay); err != nil {
					return nil, err
				}
			}
			return e.search(ctx, b, query)
		},
		Extract: func(ctx context.Context, placeURL string) (models.Record, error) {
			return e.place(ctx, b, placeURL, opts)
		},
		// Places that fail to load are dropped.
		OnError: func(string, error) models.Record { return nil },
	}
	return e.deps.Sched().Run(ctx, job, progress)
}

func (e *Extractor) search(ctx context.Context, b extractor.Browser, query string) ([]string, error) {
	r, err := b.Render(ctx, e.baseURL+"/search/"+strings.ReplaceAll(query, " ", "+"), browser.RenderOptions{
		Settle:          3 * time.Second,
		ScrollContainer: `div[role="feed"]`,
		MaxScrolls:      20,
		ScrollPause:     2 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if IsPlaceURL(r.URL) {
		slog.Info("search redirected to a single place", "query", query)
		return []string{r.URL}, nil
	}
	return ParsePlaceLinks(r.HTML)
}

type placeOptions struct {
	images  bool
	reviews bool
}

func (e *Extractor) place(ctx context.Context, b extractor.Browser, placeURL string, opts placeOptions) (models.Record, error) {
	ro := browser.RenderOptions{Settle: 2 * time.Second}
	if opts.reviews {
		ro.Click = `button[aria-label*="Reviews"]`
		ro.ClickPause = 2 * time.Second
		ro.ClickScroll = `div[role="main"]`
		ro.ClickScrolls = 3
	}
	r, err := b.Render(ctx, placeURL, ro)
	if err != nil {
		return nil, err
	}
	doc, err := extractor.ParseHTML(r.HTML)
	if err != nil {
		return nil, err
	}
	rec := ParsePlace(doc, placeURL)
	if opts.images {
		rec["images"] = ParseImages(doc)
	}
	if opts.reviews {
		rec["reviews"] = []map[string]any{}
		if r.ClickHTML != "" {
			if panel, err := extractor.ParseHTML(r.ClickHTML); err == nil {
				rec["reviews"] = ParseReviews(panel, maxReviews)
			}
		}
	}

	if website := rec.String("website"); website != "" {
		social := map[string]any{}
		for k, v := range extractor.FindSocial(r.HTML) {
			social[k] = v
		}
		e.addWebsiteContacts(ctx, rec, social, website)
		if len(social) > 0 {
			rec["socialMedia"] = social
		}
	}

	slog.Debug("place extracted", "title", rec.String("title"),
		"phone", rec["phone"] != nil, "email", rec["email"] != nil)
	return rec, nil
}

// addWebsiteContacts fills email and missing social platforms from the
// business website. Lookup failures leave the record as it is.
func (e *Extractor) addWebsiteContacts(ctx context.Context, rec models.Record, social map[string]any, website string) {
	if e.deps.Contacts == nil {
		return
	}
	found, err := e.deps.Contacts.Enrich(ctx, website)
	if err != nil {
		slog.Debug("website contact lookup failed", "website", website, "error", err)
		return
	}
	if found == nil {
		return
	}
	if len(found.Emails) > 0 {
		rec["email"] = found.Emails[0]
		rec["emailVerified"] = true
	}
	extractor.MergeSocial(social, found.Social)
}
