package googlemaps

import (
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
)

var (
	placeIDRe   = regexp.MustCompile(`!1s([^!]+)`)
	reviewStars = regexp.MustCompile(`[0-9]`)
)

// countryCodes maps address suffixes to ISO codes, checked in order.
var countryCodes = []struct{ name, code string }{
	{"United States", "US"}, {"USA", "US"}, {"US", "US"},
	{"India", "IN"}, {"IN", "IN"},
	{"United Kingdom", "GB"}, {"UK", "GB"}, {"GB", "GB"},
	{"Canada", "CA"}, {"CA", "CA"},
	{"Australia", "AU"}, {"AU", "AU"},
	{"Germany", "DE"}, {"DE", "DE"},
	{"France", "FR"}, {"FR", "FR"},
	{"Spain", "ES"}, {"ES", "ES"},
	{"Italy", "IT"}, {"IT", "IT"},
	{"Mexico", "MX"}, {"MX", "MX"},
	{"Brazil", "BR"}, {"BR", "BR"},
	{"Japan", "JP"}, {"JP", "JP"},
	{"China", "CN"}, {"CN", "CN"},
}

// PlaceID returns the place identifier embedded in a Maps URL.
func PlaceID(url string) string {
	if m := placeIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// TotalScore weighs the rating by review volume: rating * log10(reviews + 1),
// rounded to two decimals.
func TotalScore(rating float64, reviews int) float64 {
	return math.Round(rating*math.Log10(float64(reviews)+1)*100) / 100
}

// ParsePlaceLinks returns the place URLs in a search result feed, in order.
func ParsePlaceLinks(html string) ([]string, error) {
	doc, err := extractor.ParseHTML(html)
	if err != nil {
		return nil, err
	}
	var out []string
	doc.Find(`a[href*="/maps/place/"]`).Each(func(_ int, s *goquery.Selection) {
		if href := s.AttrOr("href", ""); strings.Contains(href, "/maps/place/") {
			out = append(out, href)
		}
	})
	return out, nil
}

// IsPlaceURL reports whether a search redirected straight to a single place.
func IsPlaceURL(url string) bool {
	return strings.Contains(url, "/maps/place/") && !strings.Contains(url, "/search/")
}

// ParsePlace reads the fields of a place page.
func ParsePlace(doc *goquery.Document, url string) models.Record {
	rec := models.Record{"url": url}
	if id := PlaceID(url); id != "" {
		rec["placeId"] = id
	}

	if t := extractor.Text(doc, "h1.DUwDvf"); t != "" {
		rec["title"] = t
	} else if t := extractor.Text(doc, "h1"); t != "" {
		rec["title"] = t
	}
	if c := extractor.Text(doc, `button[jsaction*="category"]`); c != "" {
		rec["category"] = c
	}
	if r, ok := extractor.FirstFloat(extractor.Attr(doc, `div.F7nice span[aria-label*="stars"]`, "aria-label")); ok {
		rec["rating"] = r
	}
	if n, ok := extractor.FirstInt(extractor.Attr(doc, `div.F7nice span[aria-label*="reviews"]`, "aria-label")); ok {
		rec["reviewsCount"] = n
	}

	if addr := extractor.Text(doc, `button[data-item-id="address"]`); addr != "" {
		rec["address"] = addr
		for k, v := range ParseAddress(addr) {
			rec[k] = v
		}
	}

	if label := extractor.Attr(doc, `button[data-item-id*="phone"]`, "aria-label"); label != "" {
		phone := strings.TrimSpace(strings.NewReplacer("Phone: ", "", "Call phone number", "").Replace(label))
		if phone != "" {
			rec["phone"] = phone
			rec["phoneVerified"] = true
		}
	}
	if w := extractor.Attr(doc, `a[data-item-id="authority"]`, "href"); w != "" {
		rec["website"] = w
	}
	if h := extractor.Attr(doc, `button[data-item-id="oh"]`, "aria-label"); h != "" {
		rec["openingHours"] = h
	}
	if p := extractor.Text(doc, `span[aria-label*="Price"]`); p != "" {
		rec["priceLevel"] = p
	}

	rating, hasRating := rec.Float("rating")
	reviews, hasReviews := rec.Float("reviewsCount")
	if hasRating && hasReviews {
		rec["totalScore"] = TotalScore(rating, int(reviews))
	}
	return rec
}

// ParseAddress splits "street, city, ST 12345[, Country]" into city, state and
// countryCode. A trailing country is recognised by name or code; addresses
// with a state but no country are assumed to be in the US.
func ParseAddress(addr string) map[string]string {
	out := map[string]string{}
	var parts []string
	for _, p := range strings.Split(addr, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		for _, c := range countryCodes {
			if last == c.name {
				out["countryCode"] = c.code
				parts = parts[:len(parts)-1]
				break
			}
		}
	}

	if len(parts) >= 3 {
		out["city"] = parts[len(parts)-2]
		if f := strings.Fields(parts[len(parts)-1]); len(f) > 0 {
			out["state"] = f[0]
		}
	}
	if out["countryCode"] == "" && out["state"] != "" {
		out["countryCode"] = "US"
	}
	return out
}

// ParseImages returns up to ten photo URLs.
func ParseImages(doc *goquery.Document) []string {
	out := []string{}
	seen := map[string]bool{}
	doc.Find(`img[src*="googleusercontent"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.AttrOr("src", "")
		if src != "" && !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
		return len(out) < 10
	})
	return out
}

// ParseReviews reads up to limit reviews from an opened Reviews panel.
func ParseReviews(doc *goquery.Document, limit int) []map[string]any {
	out := []map[string]any{}
	doc.Find(`div[data-review-id]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		// Nested nodes repeat the attribute; keep the outermost.
		if s.ParentsFiltered(`div[data-review-id]`).Length() > 0 {
			return true
		}
		review := map[string]any{}
		if name := extractor.Collapse(s.Find(`div.d4r55`).First().Text()); name != "" {
			review["reviewerName"] = name
		}
		if label, ok := s.Find(`span[role="img"]`).First().Attr("aria-label"); ok {
			if m := reviewStars.FindString(label); m != "" {
				review["rating"] = int(m[0] - '0')
			}
		}
		if text := extractor.Collapse(s.Find(`span.wiI7pd`).First().Text()); text != "" {
			review["text"] = text
		}
		if date := extractor.Collapse(s.Find(`span.rsqaWe`).First().Text()); date != "" {
			review["date"] = date
		}
		if len(review) > 0 {
			out = append(out, review)
		}
		return true
	})
	return out
}
