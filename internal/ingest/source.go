package ingest

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/config"
)

// Adapter names for the configured source formats.
const (
	AdapterJSON        = "json"
	AdapterNSPHTML     = "nsp_html"
	AdapterMahaDBTHTML = "mahadbt_html"
	AdapterHTMLGeneric = "html_generic"
)

// defaultSourcePath is used when SCHOLARSHIP_SOURCE_URLS is empty, matching
// the seed feed shipped alongside the server.
const defaultSourcePath = "data/raw_scholarships.json"

var knownAdapters = map[string]bool{
	AdapterJSON:        true,
	AdapterNSPHTML:     true,
	AdapterMahaDBTHTML: true,
	AdapterHTMLGeneric: true,
}

// Source is one configured scholarship feed. Constructed once per run from
// configuration; never persisted.
type Source struct {
	Name        string
	DisplayName string
	URL         string
	Adapter     string
}

var identSanitizeRe = regexp.MustCompile(`[^a-z0-9]+`)

// Sources parses the configured source list. Each comma-separated entry is
// "name|url|adapter" with any subset of parts; a 2-part entry is disambiguated
// by checking whether the second token is a known adapter name. The list is
// truncated to the configured maximum. Never fails; a hopeless entry just
// yields a generic name and adapter.
func Sources(cfg *config.Config) []Source {
	maxSources := config.MaxSourcesCeiling
	raw := ""
	if cfg != nil {
		maxSources = cfg.MaxSources
		raw = strings.TrimSpace(cfg.SourceURLs)
	}

	entries := []string{defaultSourcePath}
	if raw != "" {
		entries = strings.Split(raw, ",")
	}

	out := make([]Source, 0, len(entries))
	for i, entry := range entries {
		entry = collapseSpace(entry)
		if entry == "" {
			continue
		}
		if len(out) >= maxSources {
			break
		}

		var name, sourceURL, adapter string
		parts := splitNonEmpty(entry, "|")
		switch {
		case len(parts) >= 3:
			name, sourceURL, adapter = parts[0], parts[1], parts[2]
		case len(parts) == 2:
			if knownAdapters[parts[1]] {
				sourceURL, adapter = parts[0], parts[1]
			} else {
				name, sourceURL = parts[0], parts[1]
			}
		case len(parts) == 1:
			sourceURL = parts[0]
		default:
			continue
		}

		if name == "" {
			name = deriveSourceName(sourceURL, i)
		}
		if !knownAdapters[adapter] {
			adapter = inferAdapter(sourceURL, name)
		}

		out = append(out, Source{
			Name:        name,
			DisplayName: displayName(name),
			URL:         sourceURL,
			Adapter:     adapter,
		})
	}
	return out
}

// inferAdapter guesses an adapter from the URL/path when the entry does not
// declare one.
func inferAdapter(sourceURL, name string) string {
	haystack := strings.ToLower(sourceURL + " " + name)
	if !isHTTPURL(sourceURL) {
		if strings.HasSuffix(strings.ToLower(sourceURL), ".json") {
			return AdapterJSON
		}
		return AdapterHTMLGeneric
	}
	switch {
	case strings.Contains(haystack, ".json"):
		return AdapterJSON
	case strings.Contains(haystack, "scholarships.gov.in"), strings.Contains(haystack, "nsp.gov.in"):
		return AdapterNSPHTML
	case strings.Contains(haystack, "mahadbt.maharashtra.gov.in"):
		return AdapterMahaDBTHTML
	default:
		return AdapterHTMLGeneric
	}
}

// deriveSourceName builds a stable identifier from the URL host+path, or from
// a local file's basename.
func deriveSourceName(sourceURL string, index int) string {
	fallback := fmt.Sprintf("source_%d", index+1)
	if !isHTTPURL(sourceURL) {
		base := filepath.Base(sourceURL)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		if name := collapseSpace(base); name != "" && name != "." && name != string(filepath.Separator) {
			return name
		}
		return fallback
	}

	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return fallback
	}
	host := identSanitizeRe.ReplaceAllString(strings.ToLower(parsed.Hostname()), "_")
	path := identSanitizeRe.ReplaceAllString(strings.ToLower(parsed.Path), "_")
	path = strings.Trim(path, "_")
	if host == "" {
		return fallback
	}
	if path == "" {
		return host
	}
	return host + "_" + path
}

var displayNameRe = regexp.MustCompile(`[_-]+`)

func displayName(name string) string {
	return strings.TrimSpace(displayNameRe.ReplaceAllString(name, " "))
}
