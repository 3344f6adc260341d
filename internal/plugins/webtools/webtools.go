// Package webtools is a built-in plugin that registers web content
// capabilities backed by readability extraction.
package webtools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/driftcove/driftcove/internal/capability"
	"github.com/driftcove/driftcove/internal/plugin"
	"github.com/driftcove/driftcove/internal/schema"
	"github.com/driftcove/driftcove/internal/shared/stringutils"
)

const (
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"
	defaultMaxLen  = 8000
	defaultTimeout = 30 * time.Second
)

// Metadata describes the plugin for the host's factory registry.
func Metadata() schema.PluginMetadata {
	return schema.PluginMetadata{
		ID:          "webtools",
		Name:        "Web Tools",
		Version:     "1.0.0",
		Description: "Fetches web pages and extracts readable article content",
		Author:      "driftcove",
		Hooks:       []schema.HookKind{schema.HookToolAfterExecute},
		Provides:    []string{"web_fetch", "web_stats"},
		DefaultConfig: map[string]any{
			"maxContentLength": defaultMaxLen,
		},
	}
}

// Register declares the plugin on the host at process start.
func Register(host *plugin.Host) error {
	return host.RegisterFactory(Metadata(), func() plugin.Instance { return &WebTools{} })
}

// WebTools implements the plugin contract.
type WebTools struct {
	httpClient *http.Client
	maxLen     int
	fetches    atomic.Int64
}

// Initialize registers the web capabilities into the shared registry.
func (w *WebTools) Initialize(ctx context.Context, pc *plugin.Context) error {
	w.httpClient = &http.Client{Timeout: defaultTimeout}
	w.maxLen = defaultMaxLen
	if v, ok := intOption(pc.Config, "maxContentLength"); ok && v > 0 {
		w.maxLen = v
	}

	pc.RegisterCapability(capability.Definition{
		Name:        "web_fetch",
		Description: "Fetch a URL and return its readable article content",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "HTTP(S) URL to fetch"}
			},
			"required": ["url"]
		}`),
		Handler:  w.fetch,
		Enabled:  true,
		Version:  "1.0.0",
		Category: "web",
		Examples: []string{`{"url": "https://example.com/article"}`},
	})

	pc.RegisterCapability(capability.Definition{
		Name:        "web_stats",
		Description: "Report how many pages this plugin has fetched",
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"fetches": w.fetches.Load()}, nil
		},
		Enabled:  true,
		Version:  "1.0.0",
		Category: "web",
	})
	return nil
}

// Shutdown implements the plugin contract. The HTTP client holds no state
// worth tearing down.
func (w *WebTools) Shutdown(ctx context.Context) error { return nil }

// Hooks counts successful web_fetch executions observed on the bus.
func (w *WebTools) Hooks() []plugin.HookSpec {
	return []plugin.HookSpec{
		{
			Kind:     schema.HookToolAfterExecute,
			Priority: plugin.DefaultPriority,
			Handler: func(ctx context.Context, ev *schema.HookEvent) (any, error) {
				if name, _ := ev.Payload["capability"].(string); name == "web_fetch" {
					w.fetches.Add(1)
				}
				return nil, nil
			},
		},
	}
}

// OnConfigChange picks up a new content-length cap without a reload.
func (w *WebTools) OnConfigChange(cfg map[string]any) error {
	if v, ok := intOption(cfg, "maxContentLength"); ok && v > 0 {
		w.maxLen = v
	}
	return nil
}

// intOption reads a numeric config value that may arrive as an int (declared
// defaults) or a float64 (JSON overrides).
func intOption(cfg map[string]any, key string) (int, bool) {
	switch v := cfg[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func (w *WebTools) fetch(ctx context.Context, args map[string]any) (any, error) {
	rawURL, _ := args["url"].(string)
	if err := validateURL(rawURL); err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", rawURL, err)
	}

	return map[string]any{
		"title":   article.Title,
		"content": stringutils.Truncate(article.TextContent, w.maxLen),
		"url":     rawURL,
	}, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing domain in URL")
	}
	return nil
}
