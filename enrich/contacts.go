package enrich

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvest/cleaner"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
)

var (
	reEmail = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	rePhone = regexp.MustCompile(`[\+\(]?[1-9][0-9 .\-\(\)]{8,}[0-9]`)

	// Substrings that mark placeholder or non-business addresses.
	excludedEmail = []string{
		"example.com", "test.com", "domain.com", "email.com", "sentry.io", "wixpress.com",
		"noreply", "no-reply", "donotreply", "privacy@", "legal@",
	}
	imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}
)

// ParseContacts collects emails, phones, postal addresses and social
// profile links from one HTML page.
func ParseContacts(rawHTML string) *models.Contacts {
	c := &models.Contacts{Social: map[string]string{}}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return c
	}

	doc.Find(`a[href^="mailto:"], a[href^="MAILTO:"]`).Each(func(_ int, s *goquery.Selection) {
		addr := strings.TrimSpace(s.AttrOr("href", "")[len("mailto:"):])
		addr, _, _ = strings.Cut(addr, "?")
		c.Emails = appendEmail(c.Emails, addr)
	})
	doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
		c.Phones = appendPhone(c.Phones, strings.TrimSpace(strings.TrimPrefix(s.AttrOr("href", ""), "tel:")))
	})
	doc.Find(`address, [itemprop="address"]`).Each(func(_ int, s *goquery.Selection) {
		if addr := extractor.Collapse(s.Text()); addr != "" && !slices.Contains(c.Addresses, addr) {
			c.Addresses = append(c.Addresses, addr)
		}
	})

	text := cleaner.VisibleText(rawHTML)
	for _, m := range reEmail.FindAllString(text, -1) {
		c.Emails = appendEmail(c.Emails, m)
	}
	for _, m := range rePhone.FindAllString(text, -1) {
		c.Phones = appendPhone(c.Phones, m)
	}
	for k, v := range extractor.FindSocial(rawHTML) {
		c.Social[k] = v
	}
	return c
}

// ContactPage returns the first same-site link that looks like a contact
// page, resolved against base.
func ContactPage(rawHTML string, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil || base == nil {
		return ""
	}
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		hint := strings.ToLower(href + " " + s.Text())
		if !strings.Contains(hint, "contact") && !strings.Contains(hint, "kontakt") {
			return true
		}
		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || !sameSite(u, base) {
			return true
		}
		u.Fragment = ""
		if u.String() == base.String() {
			return true
		}
		found = u.String()
		return false
	})
	return found
}

// IsBusinessEmail rejects placeholder, tracking and image-like addresses.
func IsBusinessEmail(email string) bool {
	lower := strings.ToLower(email)
	if !reEmail.MatchString(lower) {
		return false
	}
	for _, p := range excludedEmail {
		if strings.Contains(lower, p) {
			return false
		}
	}
	for _, s := range imageSuffixes {
		if strings.HasSuffix(lower, s) {
			return false
		}
	}
	return true
}

func appendEmail(list []string, email string) []string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !IsBusinessEmail(email) || slices.Contains(list, email) {
		return list
	}
	return append(list, email)
}

func appendPhone(list []string, phone string) []string {
	phone = extractor.Collapse(phone)
	n := len(digits(phone))
	if n < 7 || n > 15 {
		return list
	}
	for _, p := range list {
		if samePhone(digits(p), digits(phone)) {
			return list
		}
	}
	return append(list, phone)
}

// samePhone treats numbers as equal when one is the other with a country prefix.
func samePhone(a, b string) bool {
	return strings.HasSuffix(a, b) || strings.HasSuffix(b, a)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sameSite(a, b *url.URL) bool {
	return strings.EqualFold(strings.TrimPrefix(a.Hostname(), "www."), strings.TrimPrefix(b.Hostname(), "www."))
}

// mergeContacts appends src's lists to dst without duplicates and fills
// social platforms dst does not have yet.
func mergeContacts(dst, src *models.Contacts) {
	if src == nil {
		return
	}
	for _, e := range src.Emails {
		dst.Emails = appendEmail(dst.Emails, e)
	}
	for _, p := range src.Phones {
		dst.Phones = appendPhone(dst.Phones, p)
	}
	for _, a := range src.Addresses {
		if !slices.Contains(dst.Addresses, a) {
			dst.Addresses = append(dst.Addresses, a)
		}
	}
	if dst.Social == nil {
		dst.Social = map[string]string{}
	}
	for k, v := range src.Social {
		if dst.Social[k] == "" {
			dst.Social[k] = v
		}
	}
}
