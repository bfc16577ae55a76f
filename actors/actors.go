// Package actors assembles the static actor registry served by the binary.
package actors

import (
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/enrich"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/extractor/amazon"
	"github.com/use-agent/harvest/extractor/apollo"
	"github.com/use-agent/harvest/extractor/business"
	"github.com/use-agent/harvest/extractor/googlemaps"
	"github.com/use-agent/harvest/extractor/website"
)

// Actor ids.
const (
	Amazon            = "amazon"
	GoogleMaps        = "google-maps"
	GoogleBusiness    = "google-business"
	Apollo            = "apollo"
	Website           = "website"
	WebsiteEnrichment = "website-enrichment"
)

// Registry returns every built-in actor.
func Registry(cfg *config.Config) *extractor.Registry {
	reg := extractor.NewRegistry()
	reg.Register(Amazon, amazon.New)
	reg.Register(GoogleMaps, googlemaps.New)
	reg.Register(GoogleBusiness, business.New)
	reg.Register(Apollo, apollo.New)
	reg.Register(Website, website.New)
	reg.Register(WebsiteEnrichment, enrich.NewActor(cfg.Enrich.BatchSize))
	return reg
}
