package amazon

import (
	"encoding/json"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
)

var (
	dpRe      = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)
	ratingRe  = regexp.MustCompile(`(\d+\.?\d*)\s*out of`)
	stockRe   = regexp.MustCompile(`(?i)(\d+)\s*in stock`)
	afterColo = regexp.MustCompile(`:\s*(.+)`)
	videosRe  = regexp.MustCompile(`"videos"\s*:\s*(\[.*?\])`)
)

// ParseSearch returns the ASINs on one search result page in page order.
// The first page falls back to /dp/ links when fewer than five product
// containers were found.
func ParseSearch(html string, page int) ([]string, error) {
	doc, err := extractor.ParseHTML(html)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var asins []string
	add := func(a string) {
		if !seen[a] {
			seen[a] = true
			asins = append(asins, a)
		}
	}

	doc.Find("div[data-asin]").Each(func(_ int, s *goquery.Selection) {
		if a := strings.TrimSpace(s.AttrOr("data-asin", "")); isASIN(a) {
			add(a)
		}
	})

	if page == 1 && len(asins) < 5 {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			if m := dpRe.FindStringSubmatch(s.AttrOr("href", "")); m != nil {
				add(m[1])
			}
		})
	}
	return asins, nil
}

// ParseProduct reads a product detail page. Fields that are absent are left out
// except the fixed-shape ones (prime, images, videos, features, brand,
// dimensions, color, size).
func ParseProduct(doc *goquery.Document, asin, url string) models.Record {
	rec := models.Record{"asin": asin, "url": url}

	if t := extractor.Text(doc, "span#productTitle"); t != "" {
		rec["title"] = t
	}

	if whole := doc.Find("span.a-price-whole").First(); whole.Length() > 0 {
		s := strings.Trim(strings.ReplaceAll(strings.TrimSpace(whole.Text()), ",", ""), ".")
		if frac := strings.TrimSpace(doc.Find("span.a-price-fraction").First().Text()); frac != "" {
			s += "." + frac
		}
		if p, err := strconv.ParseFloat(s, 64); err == nil {
			rec["price"] = p
			rec["currency"] = "USD"
		}
	}

	if orig := doc.Find("span.a-price.a-text-price span.a-offscreen").First(); orig.Length() > 0 {
		s := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(orig.Text()))
		if op, err := strconv.ParseFloat(s, 64); err == nil && op > 0 {
			rec["originalPrice"] = op
			if p, ok := rec.Float("price"); ok {
				rec["discount"] = math.Round((op-p)/op*100*100) / 100
			}
		}
	}

	if m := ratingRe.FindStringSubmatch(doc.Find("span.a-icon-alt").First().Text()); m != nil {
		if r, err := strconv.ParseFloat(m[1], 64); err == nil {
			rec["rating"] = r
		}
	}
	if n, ok := extractor.FirstInt(extractor.Text(doc, "span#acrCustomerReviewText")); ok {
		rec["reviewCount"] = n
	}
	if a := extractor.Text(doc, "div#availability"); a != "" {
		rec["availability"] = a
	}
	rec["prime"] = doc.Find("i.a-icon-prime").Length() > 0

	rec["images"] = images(doc)
	rec["videos"] = videos(doc)
	rec["features"] = features(doc)

	if d := extractor.Text(doc, "div#productDescription"); d != "" {
		rec["description"] = extractor.Truncate(d, 500)
	}
	rec["brand"] = brand(extractor.Text(doc, "a#bylineInfo"))
	rec["dimensions"] = dimensions(doc)
	rec["color"] = nullable(extractor.Text(doc, "div#variation_color_name span.selection"))
	rec["size"] = nullable(extractor.Text(doc, "div#variation_size_name span.selection"))

	if m := stockRe.FindStringSubmatch(doc.Find("span.a-size-medium.a-color-success").First().Text()); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			rec["stock"] = n
		}
	}

	shipping := extractor.Text(doc, "div#deliveryBlockMessage")
	if shipping == "" {
		shipping = extractor.Text(doc, "div#mir-layout-DELIVERY_BLOCK")
	}
	if shipping != "" {
		rec["shipping"] = extractor.Truncate(shipping, 200)
	}
	if s := extractor.Text(doc, "a#sellerProfileTriggerId"); s != "" {
		rec["seller"] = s
	}
	if s := extractor.Text(doc, "div#merchant-info"); s != "" {
		rec["soldBy"] = s
	}
	if crumbs := doc.Find("div#wayfinding-breadcrumbs_feature_div a"); crumbs.Length() > 0 {
		rec["category"] = extractor.Collapse(crumbs.Last().Text())
	}
	doc.Find("table#productDetails_detailBullets_sections1 tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if strings.Contains(row.Find("th").Text(), "Best Sellers Rank") {
			rec["bestSellerRank"] = extractor.Truncate(extractor.Collapse(row.Find("td").Text()), 200)
			return false
		}
		return true
	})
	return rec
}

// ParseReviews returns up to ten review bodies.
func ParseReviews(html string) []string {
	doc, err := extractor.ParseHTML(html)
	if err != nil {
		return []string{}
	}
	out := []string{}
	doc.Find(`div[data-hook="review"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if body := extractor.Collapse(s.Find(`span[data-hook="review-body"]`).Text()); body != "" {
			out = append(out, body)
		}
		return len(out) < 10
	})
	return out
}

func images(doc *goquery.Document) []string {
	var out []string
	add := func(src string) {
		if !slices.Contains(out, src) {
			out = append(out, src)
		}
	}
	if src := extractor.Attr(doc, "img#landingImage", "src"); strings.Contains(src, "amazon.com") {
		add(strings.NewReplacer("._AC_SX355_", "._AC_SL1500_", "._AC_SY355_", "._AC_SL1500_").Replace(src))
	}
	doc.Find("div#altImages img").Each(func(_ int, s *goquery.Selection) {
		if src := s.AttrOr("src", ""); strings.Contains(src, "amazon.com") {
			add(strings.NewReplacer("_SS40_", "_SL1500_", "_US40_", "_SL1500_").Replace(src))
		}
	})
	if len(out) > 10 {
		out = out[:10]
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func videos(doc *goquery.Document) []string {
	out := []string{}
	doc.Find(`script[type="text/javascript"]`).Each(func(_ int, s *goquery.Selection) {
		m := videosRe.FindStringSubmatch(s.Text())
		if m == nil {
			return
		}
		var list []struct {
			URL string `json:"url"`
		}
		if json.Unmarshal([]byte(m[1]), &list) != nil {
			return
		}
		for _, v := range list {
			u := v.URL
			if strings.HasPrefix(u, "//") {
				u = "https:" + u
			}
			if strings.HasPrefix(u, "http") && !slices.Contains(out, u) {
				out = append(out, u)
			}
		}
	})
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func features(doc *goquery.Document) []string {
	out := []string{}
	doc.Find("div#feature-bullets span.a-list-item").Each(func(_ int, s *goquery.Selection) {
		if t := extractor.Collapse(s.Text()); len(t) > 10 {
			out = append(out, t)
		}
	})
	return out
}

func brand(byline string) any {
	switch {
	case byline == "":
		return nil
	case strings.Contains(byline, "Visit the"):
		return strings.TrimSpace(strings.NewReplacer("Visit the", "", "Store", "").Replace(byline))
	case strings.Contains(byline, "Brand:"):
		return strings.TrimSpace(strings.Replace(byline, "Brand:", "", 1))
	}
	return byline
}

func dimensions(doc *goquery.Document) map[string]any {
	out := map[string]any{}
	doc.Find("div#detailBullets_feature_div li").Each(func(_ int, s *goquery.Selection) {
		text := extractor.Collapse(s.Text())
		m := afterColo.FindStringSubmatch(text)
		if m == nil {
			return
		}
		switch {
		case strings.Contains(text, "Product Dimensions"), strings.Contains(text, "Package Dimensions"):
			out["size"] = strings.TrimSpace(m[1])
		case strings.Contains(text, "Item Weight"):
			out["weight"] = strings.TrimSpace(m[1])
		}
	})
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
