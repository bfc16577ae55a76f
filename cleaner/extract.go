package cleaner

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one anchor with an absolute http(s) URL.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// LinksResult splits a page's links by host.
type LinksResult struct {
	Internal []Link `json:"internal"`
	External []Link `json:"external"`
}

// ExtractLinks resolves every http(s) anchor against sourceURL, drops
// fragments and duplicates, and groups them by whether the host matches.
func ExtractLinks(rawHTML, sourceURL string) LinksResult {
	res := LinksResult{Internal: []Link{}, External: []Link{}}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return res
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return res
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		resolved, err := base.Parse(strings.TrimSpace(s.AttrOr("href", "")))
		if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return
		}
		resolved.Fragment = ""
		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}

		link := Link{Href: abs, Text: strings.Join(strings.Fields(s.Text()), " ")}
		if strings.EqualFold(strings.TrimPrefix(resolved.Host, "www."), strings.TrimPrefix(base.Host, "www.")) {
			res.Internal = append(res.Internal, link)
		} else {
			res.External = append(res.External, link)
		}
	})
	return res
}
