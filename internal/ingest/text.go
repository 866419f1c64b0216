package ingest

import (
	"net/url"
	"regexp"
	"strings"
)

// Text plumbing shared by extraction, enrichment and normalization. Sources
// feed this pipeline broken markup, bullet glyphs, transliterated labels and
// navigation noise; everything here is best-effort cleanup, not parsing.

var (
	spaceRe      = regexp.MustCompile(`\s+`)
	bulletRe     = regexp.MustCompile("[•●▪◦]")
	letterMarkRe = regexp.MustCompile(`(?i)(^|\s)[a-z]\)\s+`)
	numberMarkRe = regexp.MustCompile(`(^|\s)\d+\.\s+`)
	dashPrefixRe = regexp.MustCompile("^[-–—]+\\s*")
	listSplitRe  = regexp.MustCompile(`(?i)[\n,;|]+|\band\b`)

	noiseExactRe  = regexp.MustCompile(`(?i)^(ul|li|div|span|a href|class=|style=|href=|http://|https://)$`)
	noisePhraseRe = regexp.MustCompile(`(?i)(click here for help|guidelines on undisbursement benefit|guidelines for courses not visible|beneficiary search|login to apply|open current link|related documents|user manuals)`)
)

// collapseSpace trims and collapses all whitespace runs to single spaces.
func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// collapseSpaceKeepLines collapses horizontal whitespace but keeps line
// breaks, so bullet splitting still sees them.
func collapseSpaceKeepLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = collapseSpace(line)
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// splitList breaks a free-form value on newlines, commas, semicolons, pipes
// and the word "and", dropping empties.
func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := listSplitRe.Split(value, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if cleaned := collapseSpace(part); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// splitBulletLines splits text on bullet glyphs, numbered/lettered markers and
// newlines, returning unique trimmed lines of at least 3 chars.
func splitBulletLines(text string) []string {
	text = collapseSpaceKeepLines(text)
	if text == "" {
		return nil
	}
	text = bulletRe.ReplaceAllString(text, "\n")
	text = letterMarkRe.ReplaceAllString(text, "\n")
	text = numberMarkRe.ReplaceAllString(text, "\n")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = collapseSpace(dashPrefixRe.ReplaceAllString(collapseSpace(line), ""))
		if len(line) >= 3 {
			out = append(out, line)
		}
	}
	return uniqueStrings(out)
}

// isNoisyLine drops navigation chrome and markup fragments that survive
// HTML-to-text conversion.
func isNoisyLine(line string) bool {
	line = strings.ToLower(collapseSpace(line))
	if len(line) < 3 {
		return true
	}
	if noiseExactRe.MatchString(line) {
		return true
	}
	return noisePhraseRe.MatchString(line)
}

// splitNonEmpty splits on sep and drops blank parts after trimming.
func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if cleaned := collapseSpace(part); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = collapseSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// textSummary clips cleaned text to max runes, appending an ellipsis marker.
func textSummary(text string, max int) string {
	cleaned := collapseSpace(collapseSpaceKeepLines(text))
	runes := []rune(cleaned)
	if len(runes) <= max {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:max-1])) + "..."
}

func isLikelyParagraph(s string) bool {
	return len(collapseSpace(s)) >= 20
}

// isHTTPURL reports whether s parses as an absolute http(s) URL.
func isHTTPURL(s string) bool {
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// absoluteURL resolves raw against base (or fallbackBase when base is not an
// http(s) URL). Non-http(s) results resolve to "".
func absoluteURL(raw, base, fallbackBase string) string {
	value := collapseSpace(raw)
	if value == "" {
		return ""
	}
	if isHTTPURL(value) {
		return value
	}
	root := base
	if !isHTTPURL(root) {
		root = fallbackBase
	}
	if !isHTTPURL(root) {
		return ""
	}
	baseURL, err := url.Parse(root)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(value)
	if err != nil {
		return ""
	}
	resolved := baseURL.ResolveReference(ref).String()
	if !isHTTPURL(resolved) {
		return ""
	}
	return resolved
}
