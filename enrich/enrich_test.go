package enrich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/extractor/extractortest"
	"github.com/use-agent/harvest/models"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

const homeHTML = `<html><body>
<header><a href="/about">About</a> <a href="/contact-us">Contact us</a></header>
<p>Email <a href="mailto:Info@Acme.test?subject=hi">us</a> or call <a href="tel:+1-512-555-0100">512-555-0100</a>.</p>
<p>Tracking pixel noreply@acme.test and logo@2x.png</p>
<address>100 Main St, Austin, TX 78701</address>
<a href="https://www.facebook.com/acmeplumbing">fb</a>
</body></html>`

const contactHTML = `<html><body>
<p>Sales: sales@acme.test, info@acme.test</p>
<p>Fax (512) 555-0199</p>
<a href="https://instagram.com/acme">ig</a>
<a href="https://facebook.com/other">not ours</a>
</body></html>`

func TestParseContacts(t *testing.T) {
	c := ParseContacts(homeHTML)

	assert.Equal(t, []string{"info@acme.test"}, c.Emails)
	assert.Equal(t, []string{"+1-512-555-0100"}, c.Phones, "the visible number repeats the tel: link without country code")
	assert.Equal(t, []string{"100 Main St, Austin, TX 78701"}, c.Addresses)
	assert.Equal(t, "https://www.facebook.com/acmeplumbing", c.Social["facebook"])
}

func TestIsBusinessEmail(t *testing.T) {
	for email, want := range map[string]bool{
		"owner@acme.test":           true,
		"noreply@acme.test":         false,
		"someone@example.com":       false,
		"legal@acme.test":           false,
		"icon@2x.png":               false,
		"not-an-email":              false,
		"abc@o123.ingest.sentry.io": false,
	} {
		assert.Equal(t, want, IsBusinessEmail(email), email)
	}
}

func TestContactPage(t *testing.T) {
	base, _ := url.Parse("https://www.acme.test/")
	assert.Equal(t, "https://www.acme.test/contact-us", ContactPage(homeHTML, base))
	assert.Empty(t, ContactPage(`<a href="https://other.test/contact">x</a>`, base), "other sites are ignored")
}

func TestWebsiteEnricherFollowsContactPageAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(homeHTML))
		case "/contact-us":
			_, _ = w.Write([]byte(contactHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	w := NewWebsiteEnricher(config.EnrichConfig{Timeout: 5 * time.Second, CacheEntries: 10, CacheTTL: time.Hour}, "")
	defer w.Close()

	found, err := w.Enrich(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{"info@acme.test", "sales@acme.test"}, found.Emails)
	assert.Len(t, found.Phones, 2)
	assert.Equal(t, "https://www.facebook.com/acmeplumbing", found.Social["facebook"], "home page wins")
	assert.Equal(t, "https://instagram.com/acme", found.Social["instagram"])
	assert.Equal(t, int32(2), hits.Load())

	_, err = w.Enrich(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "second lookup for the host is served from cache")
}

func TestWebsiteEnricherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	w := NewWebsiteEnricher(config.EnrichConfig{Timeout: 5 * time.Second, CacheEntries: 10, CacheTTL: time.Hour}, "")
	defer w.Close()

	_, err := w.Enrich(context.Background(), srv.URL)
	assert.True(t, models.IsCode(err, models.ErrCodeNavigation))

	_, err = w.Enrich(context.Background(), "ftp://files.test")
	assert.True(t, models.IsCode(err, models.ErrCodeInvalidInput))
}

func TestPipelineStatusesAndStreaming(t *testing.T) {
	finder := &extractortest.Contacts{
		Sites: map[string]*models.Contacts{
			"https://a.test": {
				Emails: []string{"hi@a.test", "old@a.test"},
				Phones: []string{"555-0100"},
				Social: map[string]string{"facebook": "https://facebook.com/new", "twitter": "https://twitter.com/a"},
			},
		},
		Errs: map[string]error{"https://down.test": errors.New("connection refused")},
	}
	em := &extractortest.Emitter{}
	p := &Pipeline{Finder: finder, Emitter: em, BatchSize: 2}

	places := []models.Record{
		{"title": "A", "website": "https://a.test", "emails": []any{"old@a.test"},
			"socialMedia": map[string]any{"facebook": "https://facebook.com/a"}},
		{"title": "B"},
		{"title": "C", "website": "https://down.test"},
		{"title": "D", "website": "https://empty.test"},
	}
	var reports []models.Progress
	out := p.Run(context.Background(), "run-1", places, func(pr models.Progress) { reports = append(reports, pr) })

	require.Len(t, out, 4)
	assert.Equal(t, StatusCompleted, out[0]["enrichmentStatus"])
	assert.Equal(t, []string{"old@a.test", "hi@a.test"}, out[0]["emails"])
	assert.Equal(t, "hi@a.test", out[0]["email"])
	assert.Equal(t, "555-0100", out[0]["phone"])
	social := out[0]["socialMedia"].(map[string]any)
	assert.Equal(t, "https://facebook.com/a", social["facebook"], "existing links are kept")
	assert.Equal(t, "https://twitter.com/a", social["twitter"])

	assert.Equal(t, StatusNoData, out[1]["enrichmentStatus"])
	assert.Equal(t, StatusFailed, out[2]["enrichmentStatus"])
	assert.Equal(t, "connection refused", out[2]["enrichmentError"])
	assert.Equal(t, StatusNoData, out[3]["enrichmentStatus"])

	assert.NotContains(t, finder.Calls(), "", "records without website are never fetched")
	assert.Len(t, finder.Calls(), 3)
	assert.Len(t, em.Records, 4, "one update per record")
	for _, id := range em.IDs {
		assert.Equal(t, "run-1", id)
	}
	assert.Equal(t, []models.Progress{
		{Processed: 2, Total: 4, Message: "enriched 2/4"},
		{Processed: 4, Total: 4, Message: "enriched 4/4"},
	}, reports)

	_, touched := places[0]["enrichmentStatus"]
	assert.False(t, touched, "input records are not mutated")
	assert.NotContains(t, places[0]["socialMedia"], "twitter")
}

func TestActorUsesRunIDFromInput(t *testing.T) {
	em := &extractortest.Emitter{}
	ex := NewActor(5)(extractor.Deps{Contacts: &extractortest.Contacts{}, Status: em})

	recs, err := ex.Scrape(context.Background(), extractor.Input{
		"runId":  "run-9",
		"places": []any{map[string]any{"title": "X", "website": "https://x.test"}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, StatusNoData, recs[0]["enrichmentStatus"])
	assert.Equal(t, []string{"run-9"}, em.IDs)

	_, err = ex.Scrape(context.Background(), extractor.Input{}, nil)
	assert.True(t, models.IsCode(err, models.ErrCodeConfiguration))
}
