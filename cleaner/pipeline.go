// Package cleaner turns rendered HTML into readable page content for the
// website actor and plain text for contact extraction.
package cleaner

import (
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/use-agent/harvest/models"
)

// Output formats accepted by Clean.
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
	FormatHTML     = "html"
)

// Options selects the region and output format.
type Options struct {
	Format string // default FormatMarkdown

	// Selector narrows the document before conversion. When it matches,
	// readability is skipped and the matched region is used as-is.
	Selector string
}

// Page is the cleaned form of one document.
type Page struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	SiteName    string      `json:"siteName,omitempty"`
	Author      string      `json:"author,omitempty"`
	Language    string      `json:"language,omitempty"`
	Content     string      `json:"content"`
	Format      string      `json:"format"`
	Links       LinksResult `json:"links"`
	Tokens      int         `json:"tokens"`
}

// Cleaner holds the markdown converter, which is safe for concurrent use.
type Cleaner struct {
	md *converter.Converter
}

// New returns a Cleaner.
func New() *Cleaner {
	return &Cleaner{md: newMarkdownConverter()}
}

// Clean extracts the main content of rawHTML and converts it to opts.Format.
func (c *Cleaner) Clean(rawHTML, sourceURL string, opts Options) (*Page, error) {
	format := opts.Format
	if format == "" {
		format = FormatMarkdown
	}

	article, _ := ExtractContent(rawHTML, sourceURL)
	if opts.Selector != "" {
		region, matched, err := ApplyCSSSelector(rawHTML, opts.Selector)
		if err != nil {
			return nil, models.ConfigurationError("selector", "is not a valid CSS selector: "+err.Error())
		}
		if matched {
			article = readability.Article{
				Title:       article.Title,
				Byline:      article.Byline,
				Excerpt:     article.Excerpt,
				SiteName:    article.SiteName,
				Language:    article.Language,
				Content:     region,
				TextContent: VisibleText(region),
			}
		}
	}

	var content string
	switch format {
	case FormatHTML:
		content = article.Content
	case FormatText:
		content = VisibleText(article.Content)
	case FormatMarkdown:
		md, err := ToMarkdown(c.md, article.Content, sourceURL)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeExtractionField, "markdown conversion failed", err)
		}
		content = md
	default:
		return nil, models.ConfigurationError("outputFormat", "must be one of markdown, text, html")
	}

	return &Page{
		Title:       article.Title,
		Description: article.Excerpt,
		SiteName:    article.SiteName,
		Author:      article.Byline,
		Language:    article.Language,
		Content:     content,
		Format:      format,
		Links:       ExtractLinks(rawHTML, sourceURL),
		Tokens:      estimateTokens(content),
	}, nil
}

// estimateTokens approximates an LLM token count as runes / 3.
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return max(n/3, 1)
}
