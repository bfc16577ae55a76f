package apollo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/extractor/extractortest"
	"github.com/use-agent/harvest/scheduler"
)

const profileHTML = `<html><head><title>Jane Doe - VP Sales at Initech | Apollo.io</title>
<script type="application/ld+json">{"@type":"Person","name":"Jane Q. Doe","jobTitle":"VP of Sales",
"worksFor":{"@type":"Organization","name":"Initech"},"address":{"addressLocality":"Austin"},
"sameAs":["https://www.linkedin.com/in/janedoe","https://twitter.com/janedoe"]}</script></head>
<body><h1>Jane Doe</h1><a href="https://facebook.com/jane.doe">fb</a></body></html>`

func TestParseProfilePrefersJSONLD(t *testing.T) {
	doc, err := extractor.ParseHTML(profileHTML)
	require.NoError(t, err)
	rec := ParseProfile(doc, "", "https://www.apollo.io/people/Jane/Doe/1")

	assert.Equal(t, "Jane Q. Doe", rec["name"])
	assert.Equal(t, "VP of Sales", rec["title"])
	assert.Equal(t, "Initech", rec["company"])
	assert.Equal(t, "Austin", rec["location"])
	assert.Equal(t, "https://www.linkedin.com/in/janedoe", rec["linkedin_url"])
	assert.Equal(t, "https://twitter.com/janedoe", rec["twitter_url"])
	assert.Equal(t, "https://facebook.com/jane.doe", rec["facebook_url"])
	assert.Equal(t, "apollo.io", rec["source"])
}

func TestParseProfileFromTitleOnly(t *testing.T) {
	doc, err := extractor.ParseHTML(`<h1>John Roe</h1>`)
	require.NoError(t, err)
	rec := ParseProfile(doc, "John Roe - Engineer at Globex | Apollo.io", "u")
	assert.Equal(t, "John Roe", rec["name"])
	assert.Equal(t, "Engineer", rec["title"])
	assert.Equal(t, "Globex", rec["company"])
}

func TestParseProfileLinksUnwrapsRedirects(t *testing.T) {
	html := `<a href="/url?q=https://www.apollo.io/people/A/B/1&sa=U">a</a>
<a href="https://www.apollo.io/people/C/D/2">c</a>
<a href="https://www.apollo.io/people/C/D/2">dup</a>
<a href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.apollo.io%2Fpeople%2FE%2FF%2F3">e</a>
<a href="https://www.google.com/search?q=apollo.io/people/">self</a>
<a href="https://example.com">other</a>`
	got, err := ParseProfileLinks(html)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.apollo.io/people/A/B/1",
		"https://www.apollo.io/people/C/D/2",
		"https://www.apollo.io/people/E/F/3",
	}, got)
}

func TestScrapeFallsBackAndDropsMissingProfiles(t *testing.T) {
	urls := searchURLs("initech sales", 20)
	fake := extractortest.NewBrowser().
		Page(urls[0], `<p>no results</p>`).
		Page(urls[1], `<a href="https://www.apollo.io/people/Jane/Doe/1"></a><a href="https://www.apollo.io/people/Ghost/X/2"></a>`).
		Page("https://www.apollo.io/people/Jane/Doe/1", profileHTML).
		Rendered("https://www.apollo.io/people/Ghost/X/2", &browser.Rendered{HTML: "<p>blocked</p>", Found: false})

	ex := New(extractor.Deps{Browser: fake.Open, Scheduler: &scheduler.Scheduler{BatchSize: 3}})
	ex.(*Extractor).delay = 0
	recs, err := ex.Scrape(context.Background(), extractor.Input{"searchTerms": []any{"initech sales"}}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Jane Q. Doe", recs[0]["name"])
	assert.Equal(t, "initech sales", recs[0]["searchTerm"])

	calls := fake.Calls()
	assert.Equal(t, urls[:2], calls[:2], "the second source is tried after the first is empty")
	assert.NotContains(t, calls, urls[2])
}
