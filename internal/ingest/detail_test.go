package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/config"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/db"
)

const schemePage = `<html><body>
<h2>About the Scheme</h2>
<p>The Post Matric Scholarship supports students from economically weaker sections pursuing higher education. The award covers tuition and maintenance allowance for the full academic year.</p>
<h2>Eligibility Criteria</h2>
<p>Applicants must be domiciled in the state and enrolled in a recognized institution. Family income must not exceed the prescribed ceiling for the category.</p>
<h2>Documents Required</h2>
<ul>
<li>Aadhaar card of the applicant</li>
<li>Income certificate issued by competent authority</li>
<li>Previous year marksheet</li>
</ul>
<h2>How to Apply</h2>
<ol>
<li>Register on the portal with a valid mobile number</li>
<li>Fill the application form and upload documents</li>
<li>Submit and note the application id</li>
</ol>
<h2>Important Instructions</h2>
<ul>
<li>Applications with mismatched bank details are rejected</li>
<li>Do not upload blurred document scans</li>
</ul>
<p><a href="/portal/apply?scheme=42">Apply Now</a></p>
</body></html>`

func TestExtractDetail_Sections(t *testing.T) {
	t.Parallel()

	got := ExtractDetail(schemePage, "https://portal.example.gov.in/schemes/42", AdapterHTMLGeneric)

	if !strings.Contains(got.Description, "Post Matric Scholarship supports students") {
		t.Fatalf("overview not extracted: %q", got.Description)
	}
	if !strings.Contains(got.EligibilitySummary, "domiciled in the state") {
		t.Fatalf("eligibility not extracted: %q", got.EligibilitySummary)
	}
	if len(got.DocumentsRequired) != 3 {
		t.Fatalf("documents: got %v", got.DocumentsRequired)
	}
	if len(got.Steps) != 3 {
		t.Fatalf("steps: got %v", got.Steps)
	}
	if len(got.CommonMistakes) != 2 {
		t.Fatalf("mistakes: got %v", got.CommonMistakes)
	}
	if got.ApplyLink != "https://portal.example.gov.in/portal/apply?scheme=42" {
		t.Fatalf("apply link: got %q", got.ApplyLink)
	}
}

func TestExtractDetail_StepPatternFallback(t *testing.T) {
	t.Parallel()

	page := `<html><body><div>
Step 1: Create an account on the portal using your email address.
Step 2: Complete the profile and bank details section.
Step 3: Upload the required certificates and submit.
</div></body></html>`

	got := ExtractDetail(page, "https://portal.example.org/s", AdapterHTMLGeneric)
	if len(got.Steps) != 3 {
		t.Fatalf("step pattern fallback: got %v", got.Steps)
	}
	if !strings.HasPrefix(got.Steps[0], "Create an account") {
		t.Fatalf("step marker not stripped: %q", got.Steps[0])
	}
}

func TestExtractDetail_DescriptionFallsBackToEligibility(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<h2>Eligibility Criteria</h2>
<p>Students of minority communities studying in class XI and above with annual family income below the prescribed ceiling are eligible for this scheme.</p>
<h2>Benefits</h2>
<p>Tuition fee reimbursement up to the sanctioned ceiling.</p>
</body></html>`

	got := ExtractDetail(page, "https://portal.example.org/scheme", AdapterHTMLGeneric)
	if !strings.Contains(got.Description, "minority communities") {
		t.Fatalf("eligibility paragraph must back the description: %q", got.Description)
	}
}

func TestExtractDetail_DescriptionFallsBackToPageText(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<h2>General Information</h2>
<p>The state government grants an annual stipend to students enrolled in recognised industrial training institutes.</p>
</body></html>`

	got := ExtractDetail(page, "https://portal.example.org/iti", AdapterHTMLGeneric)
	if !strings.Contains(got.Description, "annual stipend") {
		t.Fatalf("page text must back the description: %q", got.Description)
	}
}

func TestExtractDetail_NSPShellSuppressed(t *testing.T) {
	t.Parallel()

	shell := `<html><body><h1>National Scholarship Portal</h1>
<p>Welcome to the portal. Login to apply. Beneficiary search and user manuals are available in the menu.</p>
</body></html>`

	got := ExtractDetail(shell, "https://scholarships.gov.in/fresh/scheme", AdapterNSPHTML)
	if got.Description != "" || got.Benefits != "" || got.EligibilitySummary != "" {
		t.Fatalf("shell page prose must be suppressed: %+v", got)
	}
}

func TestDetailLink_NSPDashboardExcluded(t *testing.T) {
	t.Parallel()

	src := Source{Name: "nsp", URL: "https://scholarships.gov.in", Adapter: AdapterNSPHTML}
	c := Candidate{"applyLink": "https://scholarships.gov.in/dashboard"}
	if got := detailLink(c, src); got != "" {
		t.Fatalf("dashboard link must not be enriched, got %q", got)
	}

	c = Candidate{"applyLink": "https://scholarships.gov.in/fresh/scheme/42"}
	if got := detailLink(c, src); got == "" {
		t.Fatalf("scheme link must be enrichable")
	}
}

func TestNeedsEnrichment(t *testing.T) {
	t.Parallel()

	if !needsEnrichment(Candidate{"title": "X Scholarship"}) {
		t.Fatalf("empty record must need enrichment")
	}
	if !needsEnrichment(Candidate{"description": "Imported from nsp. Verify details on official portal."}) {
		t.Fatalf("generic description must need enrichment")
	}
	full := Candidate{
		"description":       "A real multi-sentence description of the scholarship scheme.",
		"documentsRequired": []string{"Aadhaar"},
		"steps":             []string{"Register on the portal"},
		"commonMistakes":    []string{"Blurred document scans"},
	}
	if needsEnrichment(full) {
		t.Fatalf("complete record must not need enrichment")
	}
}

func TestMergeDetail_FillsGapsOnly(t *testing.T) {
	t.Parallel()

	src := Source{URL: "https://portal.example.org/list"}
	c := Candidate{
		"title":             "Merit Scholarship",
		"description":       "Imported from portal. Verify details on official portal.",
		"applyLink":         "https://portal.example.org/list",
		"documentsRequired": []string{"Aadhaar"},
	}
	mergeDetail(c, DetailExtract{
		Description:       "Supports meritorious students with an annual award for tuition fees.",
		DocumentsRequired: []string{"Aadhaar card", "Income certificate"},
		Steps:             []string{"Register", "Apply"},
		ApplyLink:         "https://portal.example.org/apply/merit",
	}, src)

	if !strings.HasPrefix(c.stringAt("description"), "Supports meritorious") {
		t.Fatalf("generic description not replaced: %q", c.stringAt("description"))
	}
	if got := c.listAt(documentsAliases...); len(got) != 2 {
		t.Fatalf("longer document list must win: %v", got)
	}
	if c.stringAt("applyLink") != "https://portal.example.org/apply/merit" {
		t.Fatalf("listing-page link must upgrade: %q", c.stringAt("applyLink"))
	}

	// A real description survives a second merge.
	mergeDetail(c, DetailExtract{Description: "Another description entirely."}, src)
	if !strings.HasPrefix(c.stringAt("description"), "Supports meritorious") {
		t.Fatalf("real description overwritten: %q", c.stringAt("description"))
	}
}

func TestDetailCache_EvictsOldest(t *testing.T) {
	t.Parallel()

	cache := newDetailCache(2)
	cache.put("a", DetailExtract{Description: "a"})
	cache.put("b", DetailExtract{Description: "b"})
	cache.put("c", DetailExtract{Description: "c"})

	if _, ok := cache.get("a"); ok {
		t.Fatalf("oldest entry must be evicted")
	}
	if _, ok := cache.get("b"); !ok {
		t.Fatalf("recent entry lost")
	}
	if _, ok := cache.get("c"); !ok {
		t.Fatalf("newest entry lost")
	}
}

func TestEnrichAll_BudgetAndCache(t *testing.T) {
	t.Parallel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, schemePage)
	}))
	defer server.Close()

	cfg := &config.Config{
		DetailFetchEnabled:      true,
		MaxDetailFetchPerSource: 2,
	}
	enricher := NewEnricher(cfg, NewFetcher(""), zerolog.Nop())
	src := Source{Name: "portal", URL: server.URL, Adapter: AdapterHTMLGeneric}

	candidates := []Candidate{
		{"title": "A Scholarship", "applyLink": server.URL + "/schemes/1"},
		{"title": "B Scholarship", "applyLink": server.URL + "/schemes/1"},
		{"title": "C Scholarship", "applyLink": server.URL + "/schemes/2"},
		{"title": "D Scholarship", "applyLink": server.URL + "/schemes/3"},
	}
	var summary db.SourceSummary
	enricher.EnrichAll(context.Background(), src, candidates, &summary)

	if hits != 2 {
		t.Fatalf("expected 2 fetches (budget + cache), got %d", hits)
	}
	if desc := candidates[0].stringAt("description"); !strings.Contains(desc, "Post Matric Scholarship") {
		t.Fatalf("first candidate not enriched: %q", desc)
	}
	if desc := candidates[1].stringAt("description"); !strings.Contains(desc, "Post Matric Scholarship") {
		t.Fatalf("cached page not applied to second candidate: %q", desc)
	}
	if desc := candidates[3].stringAt("description"); desc != "" {
		t.Fatalf("over-budget candidate must stay untouched: %q", desc)
	}
}

func TestEnrichAll_VerboseErrorsCapped(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := &config.Config{
		DetailFetchEnabled:      true,
		DetailFetchVerbose:      true,
		MaxDetailFetchPerSource: 1000,
	}
	enricher := NewEnricher(cfg, NewFetcher(""), zerolog.Nop())
	src := Source{Name: "portal", URL: server.URL, Adapter: AdapterHTMLGeneric}

	candidates := make([]Candidate, 0, 30)
	for i := 0; i < 30; i++ {
		candidates = append(candidates, Candidate{
			"title":     fmt.Sprintf("Scholarship %d", i),
			"applyLink": fmt.Sprintf("%s/schemes/%d", server.URL, i),
		})
	}
	var summary db.SourceSummary
	enricher.EnrichAll(context.Background(), src, candidates, &summary)

	if len(summary.Errors) != maxDetailErrorsPerSource {
		t.Fatalf("expected error cap %d, got %d", maxDetailErrorsPerSource, len(summary.Errors))
	}
}
