package schema

import (
	"strings"
	"testing"
)

func TestValidateFeed_BareArray(t *testing.T) {
	t.Parallel()

	report, err := ValidateFeed([]byte(`[
		{"title":"Merit Scholarship","deadline":"2031-06-30","amount":25000},
		{"title":"Welfare Scholarship","deadline":"","amount":null}
	]`))
	if err != nil {
		t.Fatalf("valid feed rejected: %v", err)
	}
	if report.Records != 2 {
		t.Fatalf("unexpected record count: %d", report.Records)
	}
	if report.MissingDeadline != 1 || report.MissingAmount != 1 {
		t.Fatalf("unexpected gap counts: %+v", report)
	}
}

func TestValidateFeed_WrappedList(t *testing.T) {
	t.Parallel()

	report, err := ValidateFeed([]byte(`{"scholarships":[{"title":"Wrapped Scholarship"}]}`))
	if err != nil {
		t.Fatalf("wrapped feed rejected: %v", err)
	}
	if report.Records != 1 {
		t.Fatalf("unexpected record count: %d", report.Records)
	}
}

func TestValidateFeed_MissingTitle(t *testing.T) {
	t.Parallel()

	_, err := ValidateFeed([]byte(`[{"description":"no title"}]`))
	if err == nil {
		t.Fatalf("record without title must fail validation")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFeed_EmptyAndMalformed(t *testing.T) {
	t.Parallel()

	if _, err := ValidateFeed([]byte("  ")); err == nil {
		t.Fatalf("empty payload must fail")
	}
	if _, err := ValidateFeed([]byte(`[{"title":"x"}] trailing`)); err == nil {
		t.Fatalf("trailing content must fail")
	}
	if _, err := ValidateFeed([]byte(`{"broken":`)); err == nil {
		t.Fatalf("malformed JSON must fail")
	}
}
