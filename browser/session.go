// Package browser owns the Chromium process of one task: isolated contexts
// with randomized fingerprints, resource interception, stealth injection and
// the retrying navigator.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/proxy"
)

// ContextOptions selects proxying and resource blocking for a new context.
type ContextOptions struct {
	UseProxy   bool
	UltraFast  bool
	BlockMedia bool
	BlockFonts bool
}

// Session manages one browser process. It is created per task, initialised
// lazily and must be cleaned up by its owner. Safe for concurrent use.
type Session struct {
	cfg     config.BrowserConfig
	proxies proxy.Selector
	nav     *Navigator

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	closed   bool
	rnd      *rand.Rand

	contexts registry
}

// NewSession does not start Chromium; Initialize (or the first CreateContext) does.
// proxies may be nil.
func NewSession(cfg config.BrowserConfig, navCfg config.NavigationConfig, proxies proxy.Selector) *Session {
	return &Session{
		cfg:     cfg,
		proxies: proxies,
		nav:     NewNavigator(navCfg),
		rnd:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x2545f4914f6cdd1d)),
	}
}

// Navigator returns the session's page loader policy.
func (s *Session) Navigator() *Navigator { return s.nav }

// Initialize launches the browser if it is not running yet. Repeated calls
// are no-ops.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *Session) initLocked(ctx context.Context) error {
	if s.closed {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "session already cleaned up", nil)
	}
	if s.browser != nil {
		return nil
	}

	l := launcher.New().
		Context(ctx).
		Headless(s.cfg.Headless).
		NoSandbox(s.cfg.NoSandbox)
	if s.cfg.BrowserBin != "" {
		l = l.Bin(s.cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-setuid-sandbox"))
	l.Set(flags.Flag("disable-web-security"))
	l.Set(flags.Flag("disable-features"), "IsolateOrigins,site-per-process,TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	s.launcher = l
	s.browser = b
	metrics.SessionOpened()
	slog.Debug("browser launched", "controlURL", controlURL)
	return nil
}

// CreateContext opens an isolated browser context with its own cookie jar,
// fingerprint and optional proxy, and registers it for teardown.
func (s *Session) CreateContext(ctx context.Context, opts ContextOptions) (*Context, error) {
	s.mu.Lock()
	if err := s.initLocked(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	b := s.browser
	fp := newFingerprint(s.rnd, s.cfg)
	s.mu.Unlock()

	var desc *proxy.Descriptor
	if opts.UseProxy && s.proxies != nil {
		if d, ok := s.proxies.GetRotatingProxy(proxy.StrategyBest); ok {
			desc = d
			slog.Info("using proxy", "host", d.Host, "port", d.Port)
		}
	}

	req := proto.TargetCreateBrowserContext{DisposeOnDetach: true}
	if desc != nil {
		req.ProxyServer = desc.Server()
	}
	res, err := req.Call(b.Context(ctx))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create browser context", err)
	}

	// Same connection, pages created through it land in the new context.
	scoped := *b
	scoped.BrowserContextID = res.BrowserContextID

	c := &Context{
		session:     s,
		browser:     &scoped,
		id:          res.BrowserContextID,
		fingerprint: fp,
		policy:      BlockPolicy{UltraFast: opts.UltraFast, BlockMedia: opts.BlockMedia, BlockFonts: opts.BlockFonts},
		proxy:       desc,
	}
	if desc != nil && desc.Username != "" {
		c.creds = &credentials{username: desc.Username, password: desc.Password}
	}
	if c.policy.Active() {
		slog.Debug("resource blocking enabled",
			"ultra_fast", opts.UltraFast, "media", opts.BlockMedia, "fonts", opts.BlockFonts)
	}

	s.contexts.track(c)
	return c, nil
}

// NavigateWithRetry loads url on page using the session's navigator.
func (s *Session) NavigateWithRetry(ctx context.Context, page *rod.Page, url string, maxRetries int) bool {
	return s.nav.NavigateWithRetry(ctx, Loader(page), url, maxRetries)
}

// Cleanup closes every tracked context, then the browser, then the launcher
// (process and user-data dir). Safe to call more than once and on a session
// that never launched.
func (s *Session) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	errs := []error{s.contexts.closeAll()}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		s.browser = nil
		metrics.SessionClosed()
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}

	err := errors.Join(errs...)
	if err != nil {
		slog.Warn("session cleanup finished with errors", "error", err)
	} else {
		slog.Debug("session cleaned up")
	}
	return err
}
