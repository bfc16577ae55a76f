package business

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/extractor/extractortest"
	"github.com/use-agent/harvest/models"
)

func TestScrapeBuildsCombinedQuery(t *testing.T) {
	place := "https://www.google.com/maps/place/Acme/data=!1sACME!"
	links := `<a href="` + place + `"></a>`
	fake := extractortest.NewBrowser().
		Page("https://www.google.com/maps/search/Acme+Plumbing+Austin,+TX", links).
		Page(place, `<h1>Acme Plumbing</h1>`)

	recs, err := New(extractor.Deps{Browser: fake.Open}).Scrape(context.Background(), extractor.Input{
		"businessName": "Acme Plumbing",
		"location":     "Austin, TX",
	}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "Acme Plumbing", recs[0]["title"])
	assert.Equal(t, "Acme Plumbing Austin, TX", recs[0]["searchString"])
	assert.Equal(t, "https://www.google.com/maps/search/Acme+Plumbing+Austin,+TX", fake.Calls()[0])
	assert.False(t, fake.Opened()[0].BlockMedia, "images are extracted by default")
	assert.Equal(t, []map[string]any{}, recs[0]["reviews"], "reviews are requested by default")
	assert.Contains(t, info(t).InputSchema, "extractReviews")
}

func info(t *testing.T) models.ActorInfo {
	t.Helper()
	return New(extractor.Deps{}).Metadata()
}

func TestMetadataRequiresBusinessName(t *testing.T) {
	info := New(extractor.Deps{}).Metadata()
	assert.Equal(t, []string{"businessName"}, info.Required)
	assert.NoError(t, extractor.Validate(info, extractor.Input{"businessName": "Acme"}))
	assert.True(t, models.IsCode(extractor.Validate(info, extractor.Input{}), models.ErrCodeConfiguration))
}
