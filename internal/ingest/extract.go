package ingest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// htmlHeuristicCap bounds each HTML heuristic against pathological pages.
const htmlHeuristicCap = 500

// jsonListKeys are the conventional wrapper keys for a JSON feed that returns
// an object instead of a bare array. First match wins.
var jsonListKeys = []string{"scholarships", "data", "items", "results"}

// scholarshipKeywordRe recognizes title-shaped cells/anchors. Covers English
// terms plus transliterated Hindi/Marathi equivalents seen on state portals.
var scholarshipKeywordRe = regexp.MustCompile(
	`(?i)(scholarship|fellowship|stipend|grant|fee reimbursement|financial assistance|post\s*-?\s*matric|pre\s*-?\s*matric|` +
		"शिष्यवृत्ती|छात्रवृत्ति|छात्रवृत्ती|विद्यार्थी)")

// dateTokenRe matches D/M/Y-ish and Y/M/D-ish tokens inside free text.
var dateTokenRe = regexp.MustCompile(`\b\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}\b|\b20\d{2}[/.\-]\d{1,2}[/.\-]\d{1,2}\b`)

// RecordsFromJSON converts a JSON payload into candidates. The payload is
// either already a list, or an object wrapping the list under a conventional
// key.
func RecordsFromJSON(body string) ([]Candidate, error) {
	var payload any
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &payload); err != nil {
		return nil, fmt.Errorf("parse JSON payload: %w", err)
	}

	items, ok := payload.([]any)
	if !ok {
		obj, isObj := payload.(map[string]any)
		if !isObj {
			return nil, nil
		}
		for _, key := range jsonListKeys {
			if list, isList := obj[key].([]any); isList {
				items = list
				break
			}
		}
	}

	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		if record, isMap := item.(map[string]any); isMap {
			out = append(out, Candidate(record))
		}
	}
	return out, nil
}

// RecordsFromHTML runs the table and anchor heuristics over a page and merges
// their output, de-duplicated by resolved link when present, else by
// lower-cased title. linkBase is the configured fallback base for relative
// hrefs.
func RecordsFromHTML(body string, src Source, linkBase string) []Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}
	doc.Find("script,style,noscript").Remove()

	var out []Candidate
	seen := make(map[string]struct{})
	push := func(title, description, href, deadline string, amount int64, externalID string) {
		title = collapseSpace(title)
		if title == "" || !scholarshipKeywordRe.MatchString(title) {
			return
		}
		link := absoluteURL(href, src.URL, linkBase)
		key := "title:" + strings.ToLower(title)
		if link != "" {
			key = "link:" + strings.ToLower(link)
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		if externalID == "" {
			externalID = link
		}
		out = append(out, Candidate{
			"title":       title,
			"description": collapseSpace(description),
			"applyLink":   link,
			"deadline":    deadline,
			"amount":      amount,
			"externalId":  externalID,
		})
	}

	// Table heuristic: one candidate per <tr> whose cells carry a keyword.
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		var cells []string
		row.Find("td,th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, collapseSpace(cell.Text()))
		})
		if len(cells) == 0 {
			return true
		}
		rowText := collapseSpace(strings.Join(cells, " | "))
		title := cells[0]
		for _, cell := range cells {
			if scholarshipKeywordRe.MatchString(cell) {
				title = cell
				break
			}
		}
		href := row.Find("a[href]").First().AttrOr("href", "")
		push(title, strings.Join(sliceAfterFirst(cells), " | "), href, firstDateToken(rowText), amountFromText(rowText), href)
		return len(out) < htmlHeuristicCap
	})

	// Anchor heuristic: title-shaped link text with surrounding page text as
	// description context.
	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		title := collapseSpace(anchor.Text())
		if n := len([]rune(title)); n < 8 || n > 220 {
			return true
		}
		href := anchor.AttrOr("href", "")
		ctx := anchorContext(anchor, title)
		push(title, ctx, href, firstDateToken(ctx), amountFromText(ctx), href)
		return len(out) < htmlHeuristicCap
	})

	return out
}

// anchorContext returns a window of page text around the anchor: the nearest
// enclosing block's text clipped to ~260 runes either side of the title.
func anchorContext(anchor *goquery.Selection, title string) string {
	const window = 260

	parent := anchor.Parent()
	text := collapseSpace(parent.Text())
	for hops := 0; hops < 3 && len([]rune(text)) < len([]rune(title))+40 && parent.Length() > 0; hops++ {
		parent = parent.Parent()
		text = collapseSpace(parent.Text())
	}

	runes := []rune(text)
	titleRunes := []rune(title)
	idx := runeIndex(runes, titleRunes)
	if idx < 0 {
		if len(runes) > 2*window {
			runes = runes[:2*window]
		}
		return strings.TrimSpace(string(runes))
	}

	start := idx - window
	if start < 0 {
		start = 0
	}
	end := idx + len(titleRunes) + window
	if end > len(runes) {
		end = len(runes)
	}
	return strings.TrimSpace(string(runes[start:end]))
}

func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func firstDateToken(text string) string {
	return dateTokenRe.FindString(text)
}

func sliceAfterFirst(values []string) []string {
	if len(values) <= 1 {
		return nil
	}
	return values[1:]
}
