// Package business looks up one named business on Google Maps.
package business

import (
	"context"
	"strings"

	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/extractor/googlemaps"
	"github.com/use-agent/harvest/models"
)

const maxMatches = 5

// Extractor delegates to the Maps extractor with a single combined query.
type Extractor struct {
	maps extractor.Extractor
}

// New is the extractor.Factory for the "google-business" actor.
func New(deps extractor.Deps) extractor.Extractor {
	return &Extractor{maps: googlemaps.New(deps)}
}

func (e *Extractor) Metadata() models.ActorInfo {
	info := e.maps.Metadata()
	return models.ActorInfo{
		Name:        "Google Business Scraper",
		Description: "Finds a specific business on Google Maps and extracts its contact details",
		Category:    "Business",
		Required:    []string{"businessName"},
		InputSchema: map[string]any{
			"businessName":   map[string]any{"type": "string", "description": "Name of the business"},
			"location":       map[string]any{"type": "string", "description": "City, state or address"},
			"extractImages":  map[string]any{"type": "boolean", "default": true},
			"extractReviews": map[string]any{"type": "boolean", "default": true},
			"useProxy":       map[string]any{"type": "boolean", "default": true},
		},
		OutputSchema: info.OutputSchema,
	}
}

func (e *Extractor) Scrape(ctx context.Context, in extractor.Input, progress models.ProgressFunc) ([]models.Record, error) {
	name := in.String("businessName")
	if name == "" {
		return nil, models.ConfigurationError("businessName", "is required")
	}
	query := strings.TrimSpace(name + " " + in.String("location"))
	return e.maps.Scrape(ctx, extractor.Input{
		"searchTerms":    []string{query},
		"maxResults":     maxMatches,
		"extractImages":  in.Bool("extractImages", true),
		"extractReviews": in.Bool("extractReviews", true),
		"useProxy":       in.Bool("useProxy", true),
	}, progress)
}
