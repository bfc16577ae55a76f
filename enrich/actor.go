package enrich

import (
	"context"

	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
)

// Actor is the "website-enrichment" extractor; it needs no browser.
type Actor struct {
	deps      extractor.Deps
	batchSize int
}

// NewActor returns the factory for the enrichment actor.
func NewActor(batchSize int) extractor.Factory {
	return func(deps extractor.Deps) extractor.Extractor {
		return &Actor{deps: deps, batchSize: batchSize}
	}
}

func (a *Actor) Metadata() models.ActorInfo {
	return models.ActorInfo{
		Name:        "Website Contact Enrichment",
		Description: "Visits each record's website and adds emails, phones, addresses and social links",
		Category:    "Enrichment",
		Required:    []string{"places"},
		InputSchema: map[string]any{
			"places": map[string]any{"type": "array", "description": "Records with a website field"},
			"runId":  map[string]any{"type": "string", "description": "Run receiving enrich-update events"},
		},
		OutputSchema: map[string]any{
			"emails": "array", "phones": "array", "addresses": "array", "socialMedia": "object",
			"email": "string", "emailVerified": "boolean", "phone": "string",
			"enrichmentStatus": "string", "enrichmentError": "string",
		},
	}
}

func (a *Actor) Scrape(ctx context.Context, in extractor.Input, progress models.ProgressFunc) ([]models.Record, error) {
	places := in.Records("places")
	if len(places) == 0 {
		return nil, models.ConfigurationError("places", "is required")
	}
	runID := a.deps.CorrelationID
	if runID == "" {
		runID = in.String("runId")
	}
	p := &Pipeline{Finder: a.deps.Contacts, BatchSize: a.batchSize}
	if a.deps.Status != nil && runID != "" {
		p.Emitter = a.deps.Status
	}
	return p.Run(ctx, runID, places, progress), nil
}
