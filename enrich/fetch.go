package enrich

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	tls2 "github.com/refraction-networking/utls"
	"github.com/use-agent/harvest/models"
	"golang.org/x/time/rate"
)

const (
	chromeUA     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	maxBodyBytes = 5 * 1024 * 1024
)

// Fetcher performs GET requests with a Chrome TLS fingerprint (utls) and
// spaces requests to the same host.
type Fetcher struct {
	client *http.Client
	rps    float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher builds a fetcher. proxy may be empty; http(s) proxies are used
// for plain requests and CONNECT tunnels. rps <= 0 disables spacing.
func NewFetcher(proxy string, rps float64) *Fetcher {
	transport := &http.Transport{
		DialTLSContext:      dialTLSChrome,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		rps:      rps,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch returns the body of targetURL and the URL it finally resolved to.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) ([]byte, *url.URL, error) {
	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return nil, nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid website URL: "+targetURL, err)
	}
	if err := f.wait(ctx, u.Hostname()); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("enrich: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, models.NewScrapeError(models.ErrCodeNavigation, "request failed: "+targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, nil, models.NewScrapeError(models.ErrCodeNavigation, fmt.Sprintf("HTTP %d for %s", resp.StatusCode, targetURL), nil)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text/plain") {
		return nil, nil, models.NewScrapeError(models.ErrCodeNavigation, "not an HTML page: "+ct, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("enrich: read body: %w", err)
	}
	return body, resp.Request.URL, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

func (f *Fetcher) wait(ctx context.Context, host string) error {
	if f.rps <= 0 {
		return nil
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	f.mu.Lock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.rps), 1)
		f.limiters[host] = l
	}
	f.mu.Unlock()
	return l.Wait(ctx)
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via
// utls. ALPN is pinned to http/1.1 because the transport does not speak h2
// over a custom dialer.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	spec, err := tls2.UTLSIdToSpec(tls2.HelloChrome_Auto)
	if err != nil {
		rawConn.Close()
		return nil, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls2.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	tlsConn := tls2.UClient(rawConn, &tls2.Config{ServerName: host}, tls2.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		rawConn.Close()
		return nil, err
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
