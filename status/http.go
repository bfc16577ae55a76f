package status

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/use-agent/harvest/models"
)

// HTTPSink posts events to {base}/runs/{id}/status and {base}/runs/{id}/enrich-update.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
// Header: X-Harvest-Signature: sha256=<hex>
type HTTPSink struct {
	base   string
	secret string
	client *http.Client
}

// NewHTTPSink returns a sink for baseURL. client may be nil.
func NewHTTPSink(baseURL, secret string, client *http.Client) *HTTPSink {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSink{base: strings.TrimRight(baseURL, "/"), secret: secret, client: client}
}

// Send performs one POST. The deadline comes from ctx.
func (s *HTTPSink) Send(ctx context.Context, ev *models.StatusEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("status: marshal event: %w", err)
	}

	endpoint := s.base + "/runs/" + url.PathEscape(ev.CorrelationID) + "/" + kindPath(ev.Kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("status: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Harvest-Status/1.0")

	if s.secret != "" {
		mac := hmac.New(sha256.New, []byte(s.secret))
		mac.Write(body)
		req.Header.Set("X-Harvest-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("status: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func kindPath(kind string) string {
	if kind == models.KindEnrichUpdate {
		return models.KindEnrichUpdate
	}
	return models.KindStatus
}
