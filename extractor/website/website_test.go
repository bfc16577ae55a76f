package website

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/extractor/extractortest"
	"github.com/use-agent/harvest/models"
)

const home = `<html><head><title>Acme</title></head><body>
<a href="/about">About</a><a href="/contact#map">Contact</a><a href="https://other.test/">Elsewhere</a>
<main id="main"><p>Welcome to Acme.</p></main></body></html>`

func page(text string) string {
	return `<html><body><main id="main"><p>` + text + `</p></main></body></html>`
}

func TestScrapeFollowsInternalLinks(t *testing.T) {
	b := extractortest.NewBrowser().
		Page("https://acme.test/", home).
		Page("https://acme.test/about", page("About us.")).
		Page("https://acme.test/contact", page("Call us."))
	ex := New(extractor.Deps{Browser: b.Open})

	recs, err := ex.Scrape(context.Background(), extractor.Input{
		"startUrls":    []any{"https://acme.test/"},
		"maxPages":     3.0,
		"selector":     "#main",
		"outputFormat": "text",
	}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "Welcome to Acme.", recs[0]["content"])
	assert.Equal(t, "About us.", recs[1]["content"])
	assert.Equal(t, "https://acme.test/contact", recs[2]["url"])
	assert.Equal(t, "Call us.", recs[2]["content"])
	for _, r := range recs {
		assert.Equal(t, "https://acme.test/", r["startUrl"])
		assert.Equal(t, "text", r["format"])
	}

	var homeLoads int
	for _, c := range b.Calls() {
		if c == "https://acme.test/" {
			homeLoads++
		}
	}
	assert.Equal(t, 1, homeLoads, "start page reused from discovery")
	require.Len(t, b.Opened(), 1)
	assert.True(t, b.Opened()[0].BlockMedia)
}

func TestScrapeKeepsFailedStartAsErrorRecord(t *testing.T) {
	b := extractortest.NewBrowser().Page("https://ok.test/", page("Fine."))
	ex := New(extractor.Deps{Browser: b.Open})

	recs, err := ex.Scrape(context.Background(), extractor.Input{
		"startUrls":    "https://ok.test/\nhttps://down.test/",
		"outputFormat": "markdown",
	}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Fine.", recs[0]["content"])
	assert.Equal(t, "https://down.test/", recs[1]["url"])
	assert.Contains(t, recs[1]["error"], "failed to load")
	assert.Equal(t, "https://down.test/", recs[1]["startUrl"])
}

func TestScrapeRejectsUnknownFormat(t *testing.T) {
	ex := New(extractor.Deps{})
	_, err := ex.Scrape(context.Background(), extractor.Input{"startUrls": []any{"https://a.test"}, "outputFormat": "pdf"}, nil)
	assert.True(t, models.IsCode(err, models.ErrCodeConfiguration))

	assert.Error(t, extractor.Validate(ex.Metadata(), extractor.Input{}))
}

func TestScrapeSkipsNearDuplicatePages(t *testing.T) {
	const body = "Acme plumbing serves the whole metro area with same day repairs, licensed technicians and upfront pricing on every job."
	hub := `<html><body><a href="/a">A</a><a href="/b">B</a><main id="main"><p>Pick a location.</p></main></body></html>`
	newBrowser := func() *extractortest.Browser {
		return extractortest.NewBrowser().
			Page("https://acme.test/", hub).
			Page("https://acme.test/a", page(body)).
			Page("https://acme.test/b", page(body))
	}
	in := extractor.Input{"startUrls": []any{"https://acme.test/"}, "maxPages": 3.0, "selector": "#main", "outputFormat": "text"}

	recs, err := New(extractor.Deps{Browser: newBrowser().Open}).Scrape(context.Background(), in, nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "https://acme.test/a", recs[1]["url"])

	in["skipDuplicates"] = false
	recs, err = New(extractor.Deps{Browser: newBrowser().Open}).Scrape(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}
