package browser

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// navigatorPatch hides the automation flag and fills the plugin and language
// lists that headless Chromium leaves empty.
const navigatorPatch = `() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	window.chrome = window.chrome || {};
	window.chrome.runtime = window.chrome.runtime || {};
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
}`

// applyStealth must run before the first navigation of page.
func applyStealth(page *rod.Page) {
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	if _, err := page.EvalOnNewDocument("(" + navigatorPatch + ")()"); err != nil {
		slog.Warn("navigator patch failed", "error", err)
	}
}
