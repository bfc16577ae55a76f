package browser

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// trackerRule matches a host (or any subdomain of it) and an optional path prefix.
type trackerRule struct {
	domain string
	path   string
}

// trackers are aborted whenever interception is installed, whatever the flags.
var trackers = []trackerRule{
	{domain: "google-analytics.com"},
	{domain: "googletagmanager.com"},
	{domain: "facebook.com", path: "/tr"},
	{domain: "doubleclick.net"},
	{domain: "analytics.google.com"},
	{domain: "stats.g.doubleclick.net"},
}

var fontExtensions = []string{".woff", ".woff2", ".ttf", ".otf"}

// BlockPolicy is the per-context resource interception policy.
type BlockPolicy struct {
	UltraFast  bool
	BlockMedia bool
	BlockFonts bool
}

// Active reports whether interception should be installed at all.
func (p BlockPolicy) Active() bool {
	return p.UltraFast || p.BlockMedia || p.BlockFonts
}

// Decide reports whether a request must be aborted.
//
// Precedence: trackers, images, fonts, stylesheets.
func (p BlockPolicy) Decide(resourceType proto.NetworkResourceType, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err == nil && isTracker(u) {
		return true
	}

	switch resourceType {
	case proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia:
		if p.UltraFast || p.BlockMedia {
			return true
		}
	}

	if p.UltraFast || p.BlockFonts {
		if resourceType == proto.NetworkResourceTypeFont {
			return true
		}
		if err == nil && hasFontExtension(u.Path) {
			return true
		}
	}

	return p.UltraFast && resourceType == proto.NetworkResourceTypeStylesheet
}

func hasFontExtension(path string) bool {
	path = strings.ToLower(path)
	for _, ext := range fontExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// isTracker checks the hostname and every parent domain against the rules.
func isTracker(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	for host != "" {
		for _, r := range trackers {
			if r.domain != host {
				continue
			}
			if r.path == "" || u.Path == r.path || strings.HasPrefix(u.Path, r.path+"/") {
				return true
			}
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return false
}

// credentials answer proxy authentication challenges.
type credentials struct {
	username string
	password string
}

// fetchCommand is a Fetch domain reply to a paused request or auth challenge.
type fetchCommand interface {
	Call(c proto.Client) error
}

// interceptor resolves every paused request and auth challenge of one page.
// It serves both the block policy and proxy credentials so a single Fetch
// session owns the page.
type interceptor struct {
	policy BlockPolicy
	creds  *credentials
}

func (i interceptor) active() bool {
	return i.policy.Active() || i.creds != nil
}

func (i interceptor) enable() proto.FetchEnable {
	return proto.FetchEnable{
		Patterns:           []*proto.FetchRequestPattern{{URLPattern: "*"}},
		HandleAuthRequests: i.creds != nil,
	}
}

// onPaused aborts requests the policy blocks and continues everything else.
func (i interceptor) onPaused(e *proto.FetchRequestPaused) fetchCommand {
	if i.policy.Active() && e.Request != nil && i.policy.Decide(e.ResourceType, e.Request.URL) {
		return proto.FetchFailRequest{RequestID: e.RequestID, ErrorReason: proto.NetworkErrorReasonBlockedByClient}
	}
	return proto.FetchContinueRequest{RequestID: e.RequestID}
}

// onAuth answers proxy challenges with the credentials and leaves server
// challenges to the browser default.
func (i interceptor) onAuth(e *proto.FetchAuthRequired) fetchCommand {
	resp := &proto.FetchAuthChallengeResponse{Response: proto.FetchAuthChallengeResponseResponseDefault}
	if i.creds != nil && e.AuthChallenge != nil && e.AuthChallenge.Source == proto.FetchAuthChallengeSourceProxy {
		resp = &proto.FetchAuthChallengeResponse{
			Response: proto.FetchAuthChallengeResponseResponseProvideCredentials,
			Username: i.creds.username,
			Password: i.creds.password,
		}
	}
	return proto.FetchContinueWithAuth{RequestID: e.RequestID, AuthChallengeResponse: resp}
}

// install enables interception on page and returns the func that stops it,
// or nil when nothing needs intercepting.
func (i interceptor) install(page *rod.Page) func() {
	if !i.active() {
		return nil
	}
	ctx, cancel := context.WithCancel(page.GetContext())
	p := page.Context(ctx)

	reply := func(cmd fetchCommand) {
		if err := cmd.Call(p); err != nil && ctx.Err() == nil {
			slog.Debug("fetch reply failed", "error", err)
		}
	}
	wait := p.EachEvent(
		func(e *proto.FetchRequestPaused) { go reply(i.onPaused(e)) },
		func(e *proto.FetchAuthRequired) { go reply(i.onAuth(e)) },
	)
	if err := i.enable().Call(p); err != nil {
		slog.Debug("fetch enable failed", "error", err)
	}
	go wait()

	return func() {
		cancel()
		_ = proto.FetchDisable{}.Call(page)
	}
}
