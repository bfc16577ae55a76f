package browser

import (
	"math/rand/v2"
	"strings"

	"github.com/use-agent/harvest/config"
)

// userAgents is the fixed pool a context fingerprint draws from.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// UserAgents returns a copy of the pool.
func UserAgents() []string {
	out := make([]string, len(userAgents))
	copy(out, userAgents)
	return out
}

// Fingerprint is the browser identity applied to every page of a context.
type Fingerprint struct {
	UserAgent string
	Platform  string
	Width     int
	Height    int
	Locale    string
	Timezone  string
}

// AcceptLanguage derives the header value from the locale, e.g. "en-US,en;q=0.9".
func (f Fingerprint) AcceptLanguage() string {
	lang, _, _ := strings.Cut(f.Locale, "-")
	if lang == "" || lang == f.Locale {
		return f.Locale
	}
	return f.Locale + "," + lang + ";q=0.9"
}

// newFingerprint samples a user agent uniformly; everything else is fixed by config.
func newFingerprint(rnd *rand.Rand, cfg config.BrowserConfig) Fingerprint {
	ua := userAgents[rnd.IntN(len(userAgents))]
	return Fingerprint{
		UserAgent: ua,
		Platform:  platformOf(ua),
		Width:     cfg.ViewportWidth,
		Height:    cfg.ViewportHeight,
		Locale:    cfg.Locale,
		Timezone:  cfg.Timezone,
	}
}

func platformOf(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Win32"
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	default:
		return "Linux x86_64"
	}
}
