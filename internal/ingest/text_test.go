package ingest

import (
	"strings"
	"testing"
)

func TestCollapseSpace(t *testing.T) {
	t.Parallel()

	if got := collapseSpace("  Post   Matric\n\tScholarship  "); got != "Post Matric Scholarship" {
		t.Fatalf("unexpected collapse result: %q", got)
	}
}

func TestSplitList_SeparatorsAndAnd(t *testing.T) {
	t.Parallel()

	got := splitList("Aadhaar card, income certificate; marksheet | bonafide and caste certificate")
	want := []string{"Aadhaar card", "income certificate", "marksheet", "bonafide", "caste certificate"}
	if len(got) != len(want) {
		t.Fatalf("unexpected part count: got %d (%v) want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("part %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestSplitBulletLines(t *testing.T) {
	t.Parallel()

	got := splitBulletLines("• Aadhaar card • Income certificate\n- Domicile certificate\n1. Bank passbook")
	if len(got) != 4 {
		t.Fatalf("unexpected line count: got %d (%v)", len(got), got)
	}
	for _, line := range got {
		if strings.ContainsAny(line, "•-") && strings.HasPrefix(line, "-") {
			t.Fatalf("bullet marker survived: %q", line)
		}
	}
	if got[2] != "Domicile certificate" {
		t.Fatalf("dash prefix not stripped: %q", got[2])
	}
}

func TestIsNoisyLine(t *testing.T) {
	t.Parallel()

	noisy := []string{"Click here for help", "Login to Apply", "Related Documents", "li"}
	for _, line := range noisy {
		if !isNoisyLine(line) {
			t.Fatalf("expected %q to be noisy", line)
		}
	}
	if isNoisyLine("Students must have scored at least 60% in the qualifying examination") {
		t.Fatalf("real content flagged as noise")
	}
}

func TestTextSummary_ClipsRuneSafe(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("विद्यार्थी ", 100)
	got := textSummary(long, 50)
	if runes := []rune(got); len(runes) > 52 {
		t.Fatalf("summary too long: %d runes", len(runes))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("missing ellipsis: %q", got)
	}
}

func TestAbsoluteURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw, base, fallback, want string
	}{
		{"https://nsp.gov.in/apply", "https://example.com", "", "https://nsp.gov.in/apply"},
		{"/schemes/42", "https://mahadbt.maharashtra.gov.in/home", "", "https://mahadbt.maharashtra.gov.in/schemes/42"},
		{"/schemes/42", "data/feed.json", "https://scholarsetu.netlify.app", "https://scholarsetu.netlify.app/schemes/42"},
		{"/schemes/42", "data/feed.json", "", ""},
		{"", "https://example.com", "", ""},
	}
	for _, tc := range cases {
		if got := absoluteURL(tc.raw, tc.base, tc.fallback); got != tc.want {
			t.Fatalf("absoluteURL(%q, %q, %q): got %q want %q", tc.raw, tc.base, tc.fallback, got, tc.want)
		}
	}
}

func TestSplitNonEmpty(t *testing.T) {
	t.Parallel()

	got := splitNonEmpty("nsp | https://scholarships.gov.in | nsp_html", "|")
	if len(got) != 3 || got[0] != "nsp" || got[2] != "nsp_html" {
		t.Fatalf("unexpected parts: %v", got)
	}
}
