package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the shortest TextContent accepted from readability.
const minContentLength = 50

// ExtractContent runs Mozilla Readability on rawHTML. When the URL is invalid,
// readability fails, or the result is too short, the raw document is returned
// instead with ok=false.
func ExtractContent(rawHTML, sourceURL string) (article readability.Article, ok bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source URL, using raw HTML", "url", sourceURL, "error", err)
		return rawArticle(rawHTML), false
	}

	article, err = readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed, using raw HTML", "url", sourceURL, "error", err)
		return rawArticle(rawHTML), false
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Debug("readability: content too short, using raw HTML", "url", sourceURL, "length", len(article.TextContent))
		raw := rawArticle(rawHTML)
		raw.Title = article.Title
		raw.SiteName = article.SiteName
		raw.Language = article.Language
		return raw, false
	}
	return article, true
}

func rawArticle(rawHTML string) readability.Article {
	return readability.Article{Content: rawHTML, TextContent: VisibleText(rawHTML)}
}
