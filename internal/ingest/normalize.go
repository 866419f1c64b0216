package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/config"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/db"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/globaltime"
)

// Field alias tables: ordered accessor candidates per canonical attribute,
// first non-empty wins. New sources add entries here, not branches in the
// normalizer.
var (
	titleAliases       = []string{"title", "scholarshipName", "name"}
	descriptionAliases = []string{"description", "summary", "details", "purposeAward", "reward", "whoCanApply"}
	deadlineAliases    = []string{"deadline", "deadlineDate", "lastDate", "lastDateToApply"}
	amountAliases      = []string{"amount", "awardAmount", "purposeAward", "reward", "benefits"}
	benefitsAliases    = []string{"benefits", "reward", "purposeAward"}

	providerNameAliases    = []string{"provider.name", "providerName", "organization", "postedBy"}
	providerTypeAliases    = []string{"provider.type", "providerType"}
	providerWebsiteAliases = []string{"provider.website", "providerWebsite", "website"}

	applyLinkAliases  = []string{"applicationProcess.applyLink", "applyLink", "applicationLink", "applyUrl", "url", "pageSlug"}
	externalIDAliases = []string{"externalId", "id", "_id", "usid", "slug", "pageSlug", "bsid"}

	eligibilitySummaryAliases = []string{"eligibility.summary", "eligibilitySummary", "eligibilityText", "whoCanApply"}
	minMarksAliases           = []string{"eligibility.minMarks", "minMarks", "minimumMarks"}
	maxIncomeAliases          = []string{"eligibility.maxIncome", "maxIncome", "incomeLimit"}
	categoriesAliases         = []string{"eligibility.categories", "categories", "caste", "category"}
	genderAliases             = []string{"eligibility.gender", "gender"}
	statesAliases             = []string{"eligibility.statesAllowed", "statesAllowed", "state", "region"}
	educationAliases          = []string{"eligibility.educationLevel", "educationLevel", "studyLevel"}

	tagsAliases      = []string{"tags", "tagList", "oppurtunityType", "type"}
	documentsAliases = []string{"documentsRequired", "requiredDocuments", "documents"}
	mistakesAliases  = []string{"commonMistakes", "commonErrors"}
	stepsAliases     = []string{"applicationProcess.steps", "steps", "howToApply"}
	modeAliases      = []string{"applicationProcess.mode", "applicationMode"}
)

var validCategories = map[string]bool{
	"OPEN": true, "OBC": true, "SC": true, "ST": true,
	"VJNT": true, "EWS": true, "SEBC": true,
}

var (
	govProviderRe = regexp.MustCompile(`(?i)gov|ministry|state|central`)
	ngoProviderRe = regexp.MustCompile(`(?i)ngo|trust|foundation`)
	csrProviderRe = regexp.MustCompile(`(?i)csr|corporate|company`)
)

// Normalizer maps arbitrary candidates onto canonical catalog records.
type Normalizer struct {
	allowPartial         bool
	fallbackDeadlineDays int
	fallbackAmount       int64
	autoApproveAll       bool
	defaultStatus        string
	defaultLinkBase      string
}

func NewNormalizer(cfg *config.Config) *Normalizer {
	n := &Normalizer{
		allowPartial:         true,
		fallbackDeadlineDays: 120,
		fallbackAmount:       10000,
		autoApproveAll:       true,
		defaultStatus:        db.StatusApproved,
	}
	if cfg != nil {
		n.allowPartial = cfg.AllowPartialRecords
		n.fallbackDeadlineDays = cfg.FallbackDeadlineDays
		n.fallbackAmount = cfg.FallbackAmount
		n.autoApproveAll = cfg.AutoApproveAll
		n.defaultStatus = normalizeStatus(cfg.DefaultStatus, db.StatusApproved)
		n.defaultLinkBase = cfg.DefaultLinkBaseURL
	}
	return n
}

// Normalize maps one candidate onto the canonical record shape. A nil return
// means the record is skipped: no title, or no resolvable deadline/amount
// when partial-record admission is off. Skips are counted outcomes, not
// errors.
func (n *Normalizer) Normalize(record Candidate, src Source) *db.Scholarship {
	now := globaltime.UTC()

	title := record.firstString(titleAliases...)
	if title == "" {
		return nil
	}

	rawDescription := record.firstString(descriptionAliases...)
	description := rawDescription
	if description == "" {
		description = fmt.Sprintf("Imported from %s. Verify details on official portal.", src.DisplayName)
	}

	deadline, deadlineParsed := parseDeadline(record.firstValue(deadlineAliases...))
	if !deadlineParsed {
		if !n.allowPartial {
			return nil
		}
		deadline = now.AddDate(0, 0, n.fallbackDeadlineDays)
	}

	rawAmount := parseAmount(record.firstValue(amountAliases...))
	amount := rawAmount
	if amount <= 0 {
		if !n.allowPartial {
			return nil
		}
		amount = n.fallbackAmount
	}
	if amount <= 0 {
		return nil
	}

	providerName := record.firstString(providerNameAliases...)
	if providerName == "" {
		providerName = src.DisplayName
	}
	providerType := inferProviderType(record.firstString(providerTypeAliases...), providerName)

	applyLink := absoluteURL(record.firstString(applyLinkAliases...), src.URL, n.defaultLinkBase)
	sourcePortalLink := ""
	if isHTTPURL(src.URL) {
		sourcePortalLink = src.URL
	}

	usedFallback := rawDescription == "" || rawAmount <= 0 || !deadlineParsed

	status := n.defaultStatus
	if !n.autoApproveAll {
		if usedFallback {
			status = db.StatusPending
		} else {
			status = normalizeStatus(record.stringAt("status"), n.defaultStatus)
		}
	}

	verification := db.VerificationUnverified
	if !usedFallback && isTruthy(record.firstValue("verified", "verifiedStatus")) {
		verification = db.VerificationVerified
	}

	tags := record.listAt(tagsAliases...)
	if usedFallback {
		tags = append(tags, "auto-imported", "needs-review")
	}

	processApplyLink := applyLink
	if processApplyLink == "" {
		processApplyLink = sourcePortalLink
	}

	dedupeKey := dedupeKeyFor(title, providerName, deadline, applyLink)

	return &db.Scholarship{
		Title:       title,
		Description: description,
		Provider: db.Provider{
			Name:    providerName,
			Type:    providerType,
			Website: absoluteURL(record.firstString(providerWebsiteAliases...), src.URL, n.defaultLinkBase),
		},
		Amount:   amount,
		Benefits: record.firstString(benefitsAliases...),
		Tags:     db.StringList(uniqueStrings(tags)),
		Eligibility: db.Eligibility{
			Summary:        record.firstString(eligibilitySummaryAliases...),
			MinMarks:       parseOptionalFloat(record.firstValue(minMarksAliases...)),
			MaxIncome:      parseOptionalInt(record.firstValue(maxIncomeAliases...)),
			Categories:     normalizeCategories(record.listAt(categoriesAliases...)),
			Gender:         normalizeGender(record.firstString(genderAliases...)),
			StatesAllowed:  record.listAt(statesAliases...),
			EducationLevel: normalizeEducationLevel(record.firstString(educationAliases...)),
		},
		DocumentsRequired: db.StringList(record.listAt(documentsAliases...)),
		CommonMistakes:    db.StringList(record.listAt(mistakesAliases...)),
		ApplicationProcess: db.ApplicationProcess{
			Mode:      normalizeMode(record.firstString(modeAliases...)),
			ApplyLink: processApplyLink,
			Steps:     record.listAt(stepsAliases...),
		},
		Status:             status,
		Deadline:           deadline,
		IsActive:           !deadline.Before(now),
		VerificationStatus: verification,
		Source: db.SourceMeta{
			Provider:   src.Name,
			Adapter:    src.Adapter,
			ExternalID: record.firstString(externalIDAliases...),
			DedupeKey:  dedupeKey,
			SourceURL:  src.URL,
		},
		LastSyncedAt: now,
	}
}

// dedupeKeyFor hashes the identity of a listing: title, provider, deadline
// day and apply link, all lower-cased. Amount and description are left out on
// purpose so minor re-scrapes collapse to one key.
func dedupeKeyFor(title, providerName string, deadline time.Time, applyLink string) string {
	day := deadline.UTC().Format("2006-01-02")
	sum := sha1.Sum([]byte(strings.ToLower(title) + "|" + strings.ToLower(providerName) + "|" + day + "|" + strings.ToLower(applyLink)))
	return hex.EncodeToString(sum[:])
}

var (
	dmyTokenRe    = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})$`)
	isoDayLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006/01/02"}
)

// parseDeadline parses a date-like value: ISO layouts first, then an explicit
// D/M/Y numeric form (Indian portals write day-first), then a loose parse as
// last resort.
func parseDeadline(value any) (time.Time, bool) {
	if t, ok := value.(time.Time); ok {
		return t.UTC(), true
	}
	raw := collapseSpace(stringify(value))
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range isoDayLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}

	if m := dmyTokenRe.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			// Reject rollovers like 31/02.
			if t.Day() == day && int(t.Month()) == month {
				return t, true
			}
		}
		return time.Time{}, false
	}

	if t, err := dateparse.ParseAny(raw); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

var (
	numberTokenRe = regexp.MustCompile(`\d+(\.\d+)?`)
	croreRe       = regexp.MustCompile(`(?i)(crore|\bcr\b)`)
	lakhRe        = regexp.MustCompile(`(?i)(lakh|lac)`)
	thousandRe    = regexp.MustCompile(`(?i)(thousand|\bk\b)`)
)

// parseAmount extracts a positive amount in the smallest currency unit,
// applying Indian magnitude words. Returns 0 when nothing positive resolves.
func parseAmount(value any) int64 {
	switch t := value.(type) {
	case float64:
		if t > 0 {
			return int64(math.Round(t))
		}
		return 0
	case int:
		if t > 0 {
			return int64(t)
		}
		return 0
	case int64:
		if t > 0 {
			return t
		}
		return 0
	}

	raw := strings.ReplaceAll(stringify(value), ",", "")
	token := numberTokenRe.FindString(raw)
	if token == "" {
		return 0
	}
	n, err := strconv.ParseFloat(token, 64)
	if err != nil || n <= 0 {
		return 0
	}
	switch {
	case croreRe.MatchString(raw):
		n *= 10_000_000
	case lakhRe.MatchString(raw):
		n *= 100_000
	case thousandRe.MatchString(raw):
		n *= 1_000
	}
	return int64(math.Round(n))
}

var currencyAmountRe = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr\b)\s*([\d,]+(?:\.\d+)?)(\s*(?:crore|cr|lakh|lac|thousand|k)\b)?`)

// amountFromText pulls an amount out of free text. Unlike parseAmount it
// requires a currency marker, so row numbers and years in scraped cells are
// not mistaken for award amounts.
func amountFromText(text string) int64 {
	m := currencyAmountRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	return parseAmount(m[1] + m[2])
}

func inferProviderType(declaredType, providerName string) string {
	haystack := declaredType + " " + providerName
	switch {
	case govProviderRe.MatchString(haystack):
		return db.ProviderGovernment
	case ngoProviderRe.MatchString(haystack):
		return db.ProviderNGO
	case csrProviderRe.MatchString(haystack):
		return db.ProviderCSR
	default:
		return db.ProviderPrivate
	}
}

func normalizeStatus(value, fallback string) string {
	switch strings.ToUpper(collapseSpace(value)) {
	case db.StatusPending:
		return db.StatusPending
	case db.StatusApproved:
		return db.StatusApproved
	case db.StatusRejected:
		return db.StatusRejected
	default:
		return fallback
	}
}

func normalizeCategories(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		c := strings.ToUpper(collapseSpace(v))
		if c == "GENERAL" {
			c = "OPEN"
		}
		if !validCategories[c] {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func normalizeGender(value string) string {
	upper := strings.ToUpper(value)
	switch {
	case strings.Contains(upper, "FEMALE"):
		return "FEMALE"
	case strings.Contains(upper, "MALE"):
		return "MALE"
	default:
		return "ANY"
	}
}

func normalizeEducationLevel(value string) string {
	upper := strings.ToUpper(value)
	switch {
	case strings.Contains(upper, "DIPLOMA"):
		return "DIPLOMA"
	case strings.Contains(upper, "PHD"):
		return "PHD"
	case strings.Contains(upper, "PG"), strings.Contains(upper, "MASTER"):
		return "PG"
	case strings.Contains(upper, "UG"), strings.Contains(upper, "BACHELOR"):
		return "UG"
	default:
		return ""
	}
}

func normalizeMode(value string) string {
	switch strings.ToUpper(collapseSpace(value)) {
	case "OFFLINE":
		return "OFFLINE"
	case "BOTH":
		return "BOTH"
	default:
		return "ONLINE"
	}
}

func parseOptionalFloat(value any) *float64 {
	switch t := value.(type) {
	case float64:
		if t > 0 {
			return &t
		}
	case int:
		f := float64(t)
		if f > 0 {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(collapseSpace(t), 64); err == nil && f > 0 {
			return &f
		}
	}
	return nil
}

func parseOptionalInt(value any) *int64 {
	switch t := value.(type) {
	case float64:
		if t > 0 {
			n := int64(math.Round(t))
			return &n
		}
	case int:
		if t > 0 {
			n := int64(t)
			return &n
		}
	case string:
		if n, err := strconv.ParseInt(collapseSpace(t), 10, 64); err == nil && n > 0 {
			return &n
		}
	}
	return nil
}

func isTruthy(value any) bool {
	switch t := value.(type) {
	case bool:
		return t
	case string:
		lower := strings.ToLower(collapseSpace(t))
		return lower == "true" || lower == "yes" || lower == "1"
	case float64:
		return t != 0
	default:
		return false
	}
}
