// URL resource tool.
//
// Information Hiding:
// - HTTP client implementation details hidden
// - Request/response handling abstracted
// - Domain allowlist checks hidden

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/richinex/parley/model"
)

// URLURITemplate addresses web pages. The scheme is fixed to https.
const URLURITemplate = "https://{+url}"

// maxBodyBytes caps how much of a response body is kept.
const maxBodyBytes = 1024 * 1024

// HTTPTool fetches web pages as resources.
type HTTPTool struct {
	client         *http.Client
	timeoutSecs    uint64
	allowedDomains []string
}

// NewHTTPTool creates a new HTTP tool with the given timeout.
func NewHTTPTool(timeoutSecs uint64) *HTTPTool {
	return &HTTPTool{
		client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		timeoutSecs: timeoutSecs,
	}
}

// WithAllowedDomains sets the allowed domains for requests.
func (t *HTTPTool) WithAllowedDomains(domains []string) *HTTPTool {
	t.allowedDomains = domains
	return t
}

// WithClient replaces the HTTP client.
func (t *HTTPTool) WithClient(client *http.Client) *HTTPTool {
	t.client = client
	return t
}

type httpArgs struct {
	URL string `json:"url" jsonschema:"description=The URL to fetch; https:// is assumed when no scheme is given"`
}

var httpSchema = SchemaFor(&httpArgs{})

// Metadata returns the tool metadata.
func (t *HTTPTool) Metadata() Metadata {
	return Metadata{
		Name:        "url",
		Description: "Fetch a web page",
		Schema:      httpSchema,
		URI:         URLURITemplate,
	}
}

// normalizeURL adds the https scheme when the input has none.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}

// Resolve fetches the page.
func (t *HTTPTool) Resolve(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]Content, error) {
	target := stringArg(input, "url")
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}
	target = normalizeURL(target)

	if !t.isDomainAllowed(target) {
		return nil, fmt.Errorf("access to domain in '%s' is not allowed", target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("request timed out after %d seconds", t.timeoutSecs)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %s\n\n%s", resp.Status, string(body))
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" {
		mimeType = "text/plain"
	}

	return []Content{{
		URI:      target,
		Name:     target,
		MimeType: strings.TrimSpace(mimeType),
		Data:     string(body),
	}}, nil
}

// isDomainAllowed checks if the URL's domain is in the allowlist.
// Uses proper URL parsing to prevent bypass attacks.
func (t *HTTPTool) isDomainAllowed(urlStr string) bool {
	if len(t.allowedDomains) == 0 {
		return true
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	host := u.Hostname()
	for _, domain := range t.allowedDomains {
		// Exact match or subdomain match
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
