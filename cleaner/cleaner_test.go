package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/models"
)

const page = `<html><head><title>Acme Plumbing</title><style>.x{color:red}</style></head>
<body>
<nav><a href="/about">About</a> <a href="https://www.acme.test/contact#form">Contact</a></nav>
<article id="main"><h1>Our services</h1><p>We fix <b>leaks</b> fast.</p></article>
<footer><a href="https://facebook.com/acme">Facebook</a><script>var x = 1;</script></footer>
</body></html>`

func TestCleanSelectorMarkdown(t *testing.T) {
	p, err := New().Clean(page, "https://acme.test/", Options{Selector: "#main"})
	require.NoError(t, err)

	assert.Equal(t, FormatMarkdown, p.Format)
	assert.Contains(t, p.Content, "# Our services")
	assert.Contains(t, p.Content, "We fix **leaks** fast.")
	assert.NotContains(t, p.Content, "About")
	assert.Positive(t, p.Tokens)
}

func TestCleanSelectorText(t *testing.T) {
	p, err := New().Clean(page, "https://acme.test/", Options{Selector: "#main", Format: FormatText})
	require.NoError(t, err)
	assert.Equal(t, "Our services\nWe fix leaks fast.", p.Content)
}

func TestCleanSelectorHTML(t *testing.T) {
	p, err := New().Clean(page, "https://acme.test/", Options{Selector: "p", Format: FormatHTML})
	require.NoError(t, err)
	assert.Equal(t, "<p>We fix <b>leaks</b> fast.</p>", p.Content)
}

func TestCleanRejectsBadOptions(t *testing.T) {
	_, err := New().Clean(page, "https://acme.test/", Options{Selector: "div[", Format: FormatText})
	assert.True(t, models.IsCode(err, models.ErrCodeConfiguration))

	_, err = New().Clean(page, "https://acme.test/", Options{Format: "pdf"})
	assert.True(t, models.IsCode(err, models.ErrCodeConfiguration))
}

func TestApplyCSSSelectorNoMatch(t *testing.T) {
	out, matched, err := ApplyCSSSelector(page, ".missing")
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Equal(t, page, out)
}

func TestVisibleText(t *testing.T) {
	got := VisibleText(page)
	assert.NotContains(t, got, "color:red")
	assert.NotContains(t, got, "var x")
	assert.NotContains(t, got, "Acme Plumbing", "head content is hidden")
	assert.Contains(t, got, "We fix leaks fast.")
	assert.Equal(t, "first\nsecond", VisibleText("<p>  first </p><p>second</p>"))
}

func TestExtractLinks(t *testing.T) {
	links := ExtractLinks(page, "https://acme.test/")

	require.Len(t, links.Internal, 2)
	assert.Equal(t, Link{Href: "https://acme.test/about", Text: "About"}, links.Internal[0])
	assert.Equal(t, "https://www.acme.test/contact", links.Internal[1].Href, "fragment stripped, www ignored")

	require.Len(t, links.External, 1)
	assert.Equal(t, "https://facebook.com/acme", links.External[0].Href)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("ab"))
	assert.Equal(t, 3, estimateTokens(strings.Repeat("x", 9)))
}
