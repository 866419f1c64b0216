package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/config"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/db"
)

const (
	maxSectionsPerPage       = 250
	detailCacheCapacity      = 2000
	maxDetailErrorsPerSource = 20
)

// genericDescriptionRe matches the placeholder text the normalizer writes
// when a listing arrives without a real description. Enrichment treats those
// as empty.
var genericDescriptionRe = regexp.MustCompile(`(?i)^(imported from|view official portal|verify details on official portal|learn more|apply now)\b`)

// Heading patterns per detail-page section, lower-cased substrings. Portal
// layouts differ but the heading vocabulary is stable.
var (
	overviewPatterns     = []string{"about scheme", "about the scheme", "overview", "objective", "description"}
	benefitsPatterns     = []string{"benefit", "scholarship amount", "financial assistance"}
	eligibilityPatterns  = []string{"eligibility", "who can apply", "criteria"}
	documentsPatterns    = []string{"documents required", "required documents", "documents"}
	procedurePatterns    = []string{"how to apply", "application procedure", "procedure", "apply scheme"}
	instructionsPatterns = []string{"important instruction", "guideline", "error description", "action to be taken", "note"}
)

var (
	stepMarkerRe    = regexp.MustCompile(`(?im)step\s*\d+\s*[:\-]?`)
	applyLinkTextRe = regexp.MustCompile(`(?i)(login to apply|apply now|apply here|apply online|apply for)`)
	sentenceSplitRe = regexp.MustCompile(`(?m)(?:[.!?]\s+|\n+)`)

	eligibilityStartRe = regexp.MustCompile(`(?i)eligibility`)
	documentsStartRe   = regexp.MustCompile(`(?i)documents required|required documents`)
	procedureStartRe   = regexp.MustCompile(`(?i)how to apply|application procedure`)

	chunkStopRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)renewal policy`),
		regexp.MustCompile(`(?i)documents required`),
		regexp.MustCompile(`(?i)benefits?`),
		regexp.MustCompile(`(?i)related documents`),
		regexp.MustCompile(`(?i)user manuals`),
		regexp.MustCompile(`(?i)login to apply`),
		regexp.MustCompile(`(?i)eligibility`),
		regexp.MustCompile(`(?i)how to apply`),
	}
)

// DetailExtract holds what a scheme detail page yields. Empty fields mean
// the page did not expose that section; merging fills gaps only.
type DetailExtract struct {
	Description        string
	Benefits           string
	EligibilitySummary string
	DocumentsRequired  []string
	Steps              []string
	CommonMistakes     []string
	ApplyLink          string
}

func (d DetailExtract) empty() bool {
	return d.Description == "" && d.Benefits == "" && d.EligibilitySummary == "" &&
		len(d.DocumentsRequired) == 0 && len(d.Steps) == 0 && len(d.CommonMistakes) == 0 &&
		d.ApplyLink == ""
}

type pageSection struct {
	heading string
	text    string
}

// collectSections segments a page by its heading elements: each section is a
// heading plus the sibling text up to the next heading.
func collectSections(doc *goquery.Document) []pageSection {
	var sections []pageSection
	doc.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		heading := collapseSpace(sel.Text())
		if heading == "" {
			return true
		}
		body := collapseSpaceKeepLines(sel.NextUntil("h1, h2, h3, h4, h5, h6").Text())
		sections = append(sections, pageSection{heading: heading, text: body})
		return len(sections) < maxSectionsPerPage
	})
	return sections
}

func pickSection(sections []pageSection, patterns []string) *pageSection {
	for i := range sections {
		heading := strings.ToLower(sections[i].heading)
		for _, p := range patterns {
			if strings.Contains(heading, p) {
				return &sections[i]
			}
		}
	}
	return nil
}

// bestParagraphFromSection joins the first few real sentences of a section
// into a capped summary, skipping navigation noise.
func bestParagraphFromSection(text string) string {
	var parts []string
	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		sentence = collapseSpace(sentence)
		if !isLikelyParagraph(sentence) || isNoisyLine(sentence) {
			continue
		}
		parts = append(parts, sentence)
		if len(parts) >= 4 {
			break
		}
	}
	joined := strings.Join(parts, ". ")
	if joined == "" {
		return ""
	}
	if !strings.HasSuffix(joined, ".") {
		joined += "."
	}
	if len([]rune(joined)) > 700 {
		return textSummary(joined, 650)
	}
	return joined
}

func linesFromSection(text string, minLen, limit int) []string {
	var out []string
	for _, line := range splitBulletLines(text) {
		if len(line) < minLen || isNoisyLine(line) {
			continue
		}
		out = append(out, line)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// textChunkBetween cuts the run of page text after the first start match and
// before the earliest stop match, capped at maxLen runes. Used when a portal
// renders a labelled block without a heading element.
func textChunkBetween(text string, start *regexp.Regexp, stops []*regexp.Regexp, maxLen int) string {
	loc := start.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	end := len(rest)
	for _, stop := range stops {
		if s := stop.FindStringIndex(rest); s != nil && s[0] > 0 && s[0] < end {
			end = s[0]
		}
	}
	chunk := rest[:end]
	if runes := []rune(chunk); len(runes) > maxLen {
		chunk = string(runes[:maxLen])
	}
	return collapseSpaceKeepLines(chunk)
}

// stepsFromText recovers application steps from "Step 1: ..." runs in free
// text when no procedure heading exists.
func stepsFromText(text string) []string {
	locs := stepMarkerRe.FindAllStringIndex(text, 21)
	if len(locs) < 2 {
		return nil
	}
	var out []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		step := collapseSpace(text[loc[1]:end])
		if len(step) >= 6 && !isNoisyLine(step) {
			out = append(out, step)
		}
		if len(out) >= 20 {
			break
		}
	}
	return uniqueStrings(out)
}

func extractApplyLink(doc *goquery.Document, pageURL string) string {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !applyLinkTextRe.MatchString(collapseSpace(sel.Text())) {
			return true
		}
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return true
		}
		if resolved := absoluteURL(href, pageURL, ""); resolved != "" {
			found = resolved
			return false
		}
		return true
	})
	return found
}

// ExtractDetail parses one scheme detail page into its canonical sections.
func ExtractDetail(body, pageURL, adapter string) DetailExtract {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return DetailExtract{}
	}
	doc.Find("script, style, noscript").Remove()

	sections := collectSections(doc)
	fullText := collapseSpaceKeepLines(doc.Find("body").Text())
	if fullText == "" {
		fullText = collapseSpaceKeepLines(doc.Text())
	}

	var out DetailExtract

	// Description resolution order: overview section, eligibility section,
	// whole-page text.
	if sec := pickSection(sections, overviewPatterns); sec != nil {
		out.Description = bestParagraphFromSection(sec.text)
	}
	if out.Description == "" {
		if sec := pickSection(sections, eligibilityPatterns); sec != nil {
			out.Description = bestParagraphFromSection(sec.text)
		}
	}
	if out.Description == "" && len(sections) == 0 {
		out.Description = readableSummary(body, pageURL)
	}
	if out.Description == "" {
		out.Description = textSummary(collapseSpace(fullText), 650)
	}

	if sec := pickSection(sections, benefitsPatterns); sec != nil {
		out.Benefits = bestParagraphFromSection(sec.text)
	}

	if sec := pickSection(sections, eligibilityPatterns); sec != nil {
		out.EligibilitySummary = bestParagraphFromSection(sec.text)
	}
	if len(out.EligibilitySummary) < 30 {
		if chunk := textChunkBetween(fullText, eligibilityStartRe, chunkStopRes, 2500); chunk != "" {
			if summary := bestParagraphFromSection(chunk); len(summary) > len(out.EligibilitySummary) {
				out.EligibilitySummary = summary
			}
		}
	}

	if sec := pickSection(sections, documentsPatterns); sec != nil {
		out.DocumentsRequired = linesFromSection(sec.text, 4, 20)
	}
	if len(out.DocumentsRequired) == 0 {
		if chunk := textChunkBetween(fullText, documentsStartRe, chunkStopRes, 2500); chunk != "" {
			out.DocumentsRequired = linesFromSection(chunk, 4, 20)
		}
	}

	if sec := pickSection(sections, procedurePatterns); sec != nil {
		out.Steps = linesFromSection(sec.text, 6, 20)
	}
	if len(out.Steps) == 0 {
		if chunk := textChunkBetween(fullText, procedureStartRe, chunkStopRes, 2500); chunk != "" {
			out.Steps = linesFromSection(chunk, 6, 20)
		}
	}
	if len(out.Steps) == 0 {
		out.Steps = stepsFromText(fullText)
	}

	if sec := pickSection(sections, instructionsPatterns); sec != nil {
		out.CommonMistakes = linesFromSection(sec.text, 8, 20)
	}

	out.ApplyLink = extractApplyLink(doc, pageURL)

	// NSP renders scheme pages as a JS shell: few headings and no real
	// sections. Suppress the prose fields rather than ship shell chrome.
	if adapter == AdapterNSPHTML && len(sections) < 2 && len(out.DocumentsRequired) == 0 && len(out.Steps) == 0 {
		out.Description = ""
		out.Benefits = ""
		out.EligibilitySummary = ""
		out.CommonMistakes = nil
	}

	return out
}

// readableSummary runs the page through article extraction as a last resort
// for heading-free layouts.
func readableSummary(body, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(body), parsed)
	if err != nil {
		return ""
	}
	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return ""
	}
	text := collapseSpaceKeepLines(rendered.String())
	if text == "" {
		return ""
	}
	return bestParagraphFromSection(text)
}

// detailCache is a bounded fetch cache keyed by page URL. Oldest entries are
// evicted first; scheme pages rarely change within a run.
type detailCache struct {
	entries  map[string]DetailExtract
	order    []string
	capacity int
}

func newDetailCache(capacity int) *detailCache {
	return &detailCache{
		entries:  make(map[string]DetailExtract),
		capacity: capacity,
	}
}

func (c *detailCache) get(key string) (DetailExtract, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *detailCache) put(key string, value DetailExtract) {
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = value
}

// Enricher fetches scheme detail pages and fills the gaps left by listing
// extraction. All failures are soft: a candidate that cannot be enriched
// continues through normalization with what it has.
type Enricher struct {
	fetcher *Fetcher
	cache   *detailCache
	logger  zerolog.Logger

	enabled bool
	verbose bool
	budget  int
}

func NewEnricher(cfg *config.Config, fetcher *Fetcher, logger zerolog.Logger) *Enricher {
	e := &Enricher{
		fetcher: fetcher,
		cache:   newDetailCache(detailCacheCapacity),
		logger:  logger,
	}
	if cfg != nil {
		e.enabled = cfg.DetailFetchEnabled
		e.verbose = cfg.DetailFetchVerbose
		e.budget = cfg.MaxDetailFetchPerSource
	}
	return e
}

// detailLink resolves the page a candidate's enrichment would fetch. Empty
// means the candidate is not enrichable.
func detailLink(c Candidate, src Source) string {
	link := absoluteURL(c.firstString(applyLinkAliases...), src.URL, "")
	if !isHTTPURL(link) {
		return ""
	}
	// The NSP dashboard is a login shell, never a scheme page.
	if src.Adapter == AdapterNSPHTML {
		if parsed, err := url.Parse(link); err == nil && strings.HasSuffix(strings.TrimRight(parsed.Path, "/"), "dashboard") {
			return ""
		}
	}
	return link
}

// needsEnrichment reports whether a candidate is still missing substance a
// detail page could supply.
func needsEnrichment(c Candidate) bool {
	desc := c.stringAt("description")
	if desc == "" || genericDescriptionRe.MatchString(desc) || !isLikelyParagraph(desc) {
		return true
	}
	return len(c.listAt(documentsAliases...)) == 0 ||
		len(c.listAt(stepsAliases...)) == 0 ||
		len(c.listAt(mistakesAliases...)) == 0
}

// EnrichAll enriches candidates in place up to the per-source fetch budget.
// Fetch errors surface on the summary only in verbose mode, capped so one
// broken portal cannot flood a run record.
func (e *Enricher) EnrichAll(ctx context.Context, src Source, candidates []Candidate, summary *db.SourceSummary) {
	if !e.enabled || e.budget <= 0 {
		return
	}

	fetched := 0
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return
		}
		link := detailLink(c, src)
		if link == "" || !needsEnrichment(c) {
			continue
		}

		detail, hit := e.cache.get(link)
		if !hit {
			if fetched >= e.budget {
				break
			}
			fetched++
			body, err := e.fetcher.FetchText(ctx, link)
			if err != nil {
				e.logger.Debug().Str("source", src.Name).Str("url", link).Err(err).Msg("detail fetch failed")
				if e.verbose && summary != nil && len(summary.Errors) < maxDetailErrorsPerSource {
					summary.Errors = append(summary.Errors, fmt.Sprintf("detail fetch %s: %v", link, err))
				}
				continue
			}
			detail = ExtractDetail(body, link, src.Adapter)
			e.cache.put(link, detail)
		}
		if detail.empty() {
			continue
		}
		mergeDetail(c, detail, src)
	}
	e.logger.Debug().Str("source", src.Name).Int("detail_fetches", fetched).Msg("detail enrichment done")
}

// mergeDetail fills candidate gaps from a detail extract. Existing real
// values win; lists only grow; the apply link upgrades when the candidate
// points at nothing better than the listing page itself.
func mergeDetail(c Candidate, d DetailExtract, src Source) {
	desc := c.stringAt("description")
	if d.Description != "" && (desc == "" || genericDescriptionRe.MatchString(desc) || !isLikelyParagraph(desc)) {
		c["description"] = d.Description
	}
	if d.Benefits != "" && c.stringAt("benefits") == "" {
		c["benefits"] = d.Benefits
	}
	if d.EligibilitySummary != "" && c.firstString(eligibilitySummaryAliases...) == "" {
		c["eligibilitySummary"] = d.EligibilitySummary
	}
	if len(d.DocumentsRequired) > len(c.listAt(documentsAliases...)) {
		c["documentsRequired"] = d.DocumentsRequired
	}
	if len(d.Steps) > len(c.listAt(stepsAliases...)) {
		c["steps"] = d.Steps
	}
	if len(d.CommonMistakes) > len(c.listAt(mistakesAliases...)) {
		c["commonMistakes"] = d.CommonMistakes
	}
	if d.ApplyLink != "" {
		current := c.firstString(applyLinkAliases...)
		if !isHTTPURL(current) || current == src.URL {
			c["applyLink"] = d.ApplyLink
		}
	}
}
