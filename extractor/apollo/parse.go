package apollo

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
)

type person struct {
	Type        any             `json:"@type"`
	Name        string          `json:"name"`
	JobTitle    string          `json:"jobTitle"`
	Description string          `json:"description"`
	WorksFor    json.RawMessage `json:"worksFor"`
	Address     json.RawMessage `json:"address"`
	SameAs      json.RawMessage `json:"sameAs"`
}

// ParseProfile reads a profile page. The heading and the page title
// ("Name - Title at Company | Apollo.io") give a baseline that JSON-LD Person
// data refines.
func ParseProfile(doc *goquery.Document, title, profileURL string) models.Record {
	rec := models.Record{"apollo_url": profileURL, "source": "apollo.io"}

	if h := extractor.Text(doc, "h1"); h != "" {
		rec["name"] = h
	}
	if title == "" {
		title = extractor.Text(doc, "title")
	}
	if parts := strings.Split(title, "-"); len(parts) >= 2 {
		if rec["name"] == nil {
			rec["name"] = strings.TrimSpace(parts[0])
		}
		rest := strings.TrimSpace(strings.ReplaceAll(strings.Join(parts[1:], "-"), "| Apollo.io", ""))
		if t, c, ok := strings.Cut(rest, " at "); ok {
			rec["title"] = strings.TrimSpace(t)
			rec["company"] = strings.TrimSpace(c)
		} else {
			rec["description"] = rest
		}
	}

	doc.Find(`a[href*="linkedin.com"], a[href*="twitter.com"], a[href*="facebook.com"]`).Each(func(_ int, s *goquery.Selection) {
		setSocial(rec, s.AttrOr("href", ""))
	})

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var p person
		if json.Unmarshal([]byte(s.Text()), &p) != nil || !isPerson(p.Type) {
			return true
		}
		applyPerson(rec, p)
		return false
	})
	return rec
}

func applyPerson(rec models.Record, p person) {
	if p.Name != "" {
		rec["name"] = p.Name
	}
	if p.JobTitle != "" {
		rec["title"] = p.JobTitle
	}
	if p.Description != "" {
		rec["description"] = p.Description
	}

	var org struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(p.WorksFor, &org) == nil && org.Name != "" {
		rec["company"] = org.Name
	}

	var addr struct {
		Locality string `json:"addressLocality"`
	}
	var addrText string
	switch {
	case json.Unmarshal(p.Address, &addr) == nil && addr.Locality != "":
		rec["location"] = addr.Locality
	case json.Unmarshal(p.Address, &addrText) == nil && addrText != "":
		rec["location"] = addrText
	}

	var links []string
	if json.Unmarshal(p.SameAs, &links) != nil {
		var one string
		if json.Unmarshal(p.SameAs, &one) == nil {
			links = []string{one}
		}
	}
	for _, l := range links {
		setSocial(rec, l)
	}
}

func setSocial(rec models.Record, href string) {
	switch {
	case strings.Contains(href, "linkedin"):
		rec["linkedin_url"] = href
	case strings.Contains(href, "twitter"):
		rec["twitter_url"] = href
	case strings.Contains(href, "facebook"):
		rec["facebook_url"] = href
	}
}

func isPerson(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Person"
	case []any:
		for _, item := range v {
			if item == "Person" {
				return true
			}
		}
	}
	return false
}
