package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvest/models"
)

// ParseHTML parses a rendered document.
func ParseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtractionField, "failed to parse HTML", err)
	}
	return doc, nil
}

// Text returns the collapsed text of the first match of selector.
func Text(doc *goquery.Document, selector string) string {
	return Collapse(doc.Find(selector).First().Text())
}

// Attr returns the attribute of the first match of selector.
func Attr(doc *goquery.Document, selector, attr string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}

var spaceRe = regexp.MustCompile(`\s+`)

// Collapse trims s and folds internal whitespace runs into one space.
func Collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	floatRe = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	intRe   = regexp.MustCompile(`[0-9][0-9,]*`)
)

// FirstFloat returns the first decimal number in s.
func FirstFloat(s string) (float64, bool) {
	m := floatRe.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	return f, err == nil
}

// FirstInt returns the first integer in s, ignoring thousands separators.
func FirstInt(s string) (int, bool) {
	m := intRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	return n, err == nil
}

// Platforms lists the social networks recognised by FindSocial, in match order.
var Platforms = []string{"facebook", "instagram", "twitter", "linkedin", "youtube", "tiktok"}

var socialPatterns = map[string]*regexp.Regexp{
	"facebook":  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:facebook|fb)\.com/[\w\-.]+`),
	"instagram": regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?instagram\.com/[\w\-.]+`),
	"twitter":   regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:twitter|x)\.com/[\w\-]+`),
	"linkedin":  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com/(?:company|in)/[\w\-]+`),
	"youtube":   regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?youtube\.com/(?:channel|c|user)/[\w\-]+`),
	"tiktok":    regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?tiktok\.com/@[\w\-.]+`),
}

// FindSocial returns the first profile link per platform found in content.
func FindSocial(content string) map[string]string {
	out := map[string]string{}
	for _, platform := range Platforms {
		m := socialPatterns[platform].FindString(content)
		if m == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(m), "http") {
			m = "https://" + m
		}
		out[platform] = m
	}
	return out
}

// MergeSocial copies platforms from src that dst lacks. Existing non-empty
// entries are never replaced; the first value found for a platform wins.
func MergeSocial(dst map[string]any, src map[string]string) int {
	added := 0
	for _, platform := range Platforms {
		v := src[platform]
		if v == "" {
			continue
		}
		if cur, ok := dst[platform].(string); ok && cur != "" {
			continue
		}
		dst[platform] = v
		added++
	}
	return added
}
