package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Payload formats produced by the fetcher.
const (
	FormatJSON = "json"
	FormatHTML = "html"
)

const (
	fetchTimeout  = 30 * time.Second
	bodyByteLimit = 8 * 1024 * 1024

	fetchUserAgent = "ScholarLinkIngestionBot/1.0 (+https://scholarsetu.netlify.app/)"
)

// FetchResult is the raw text of one source plus its detected format.
type FetchResult struct {
	Format string
	Body   string
}

// Fetcher retrieves source payloads from URLs or local paths with a bounded
// timeout. Failures are per-source; the orchestrator records them and moves
// on.
type Fetcher struct {
	client  *http.Client
	baseDir string
}

// NewFetcher builds a fetcher. baseDir anchors relative local paths; empty
// means the working directory.
func NewFetcher(baseDir string) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: fetchTimeout},
		baseDir: baseDir,
	}
}

// FetchSource reads one configured source and classifies the payload. The
// adapter hint wins; otherwise content starting with '{' or '[' is JSON.
func (f *Fetcher) FetchSource(ctx context.Context, src Source) (FetchResult, error) {
	if isHTTPURL(src.URL) {
		body, err := f.FetchText(ctx, src.URL)
		if err != nil {
			return FetchResult{}, err
		}
		return FetchResult{Format: classifyFormat(src.Adapter, src.URL, body), Body: body}, nil
	}

	local := src.URL
	if strings.HasPrefix(strings.ToLower(local), "file://") {
		parsed, err := url.Parse(local)
		if err != nil {
			return FetchResult{}, fmt.Errorf("parse file url %q: %w", src.URL, err)
		}
		local = parsed.Path
	} else if !filepath.IsAbs(local) && f.baseDir != "" {
		local = filepath.Join(f.baseDir, local)
	}

	raw, err := os.ReadFile(local)
	if err != nil {
		return FetchResult{}, fmt.Errorf("read source file: %w", err)
	}
	body := string(raw)
	return FetchResult{Format: classifyFormat(src.Adapter, local, body), Body: body}, nil
}

// FetchText issues a bounded GET and returns the response body as text.
func (f *Fetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyByteLimit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

func classifyFormat(adapter, location, body string) string {
	if adapter == AdapterJSON {
		return FormatJSON
	}
	if strings.HasSuffix(strings.ToLower(location), ".json") {
		return FormatJSON
	}
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return FormatJSON
	}
	return FormatHTML
}
