package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFetchSource_HTTPJSON(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`[{"title":"Post Matric Scholarship"}]`))
	}))
	defer server.Close()

	f := NewFetcher("")
	result, err := f.FetchSource(context.Background(), Source{URL: server.URL, Adapter: AdapterHTMLGeneric})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if result.Format != FormatJSON {
		t.Fatalf("expected JSON classification from body shape, got %q", result.Format)
	}
	if !strings.Contains(result.Body, "Post Matric") {
		t.Fatalf("unexpected body: %q", result.Body)
	}
	if !strings.HasPrefix(gotUA, "ScholarLinkIngestionBot/") {
		t.Fatalf("unexpected user agent: %q", gotUA)
	}
	if !strings.Contains(gotAccept, "application/json") {
		t.Fatalf("unexpected accept header: %q", gotAccept)
	}
}

func TestFetchSource_HTTPErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer server.Close()

	f := NewFetcher("")
	_, err := f.FetchSource(context.Background(), Source{URL: server.URL})
	if err == nil {
		t.Fatalf("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status in error, got: %v", err)
	}
}

func TestFetchSource_LocalFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "feed.json")
	if err := os.WriteFile(path, []byte(`{"scholarships":[]}`), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	f := NewFetcher(dir)
	result, err := f.FetchSource(context.Background(), Source{URL: "feed.json", Adapter: AdapterJSON})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if result.Format != FormatJSON {
		t.Fatalf("unexpected format: %q", result.Format)
	}
}

func TestFetchSource_MissingLocalFile(t *testing.T) {
	t.Parallel()

	f := NewFetcher(t.TempDir())
	if _, err := f.FetchSource(context.Background(), Source{URL: "nope.json"}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestClassifyFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		adapter, location, body, want string
	}{
		{AdapterJSON, "x", "<html>", FormatJSON},
		{AdapterNSPHTML, "page.json", "<html>", FormatJSON},
		{AdapterNSPHTML, "page", `  {"a":1}`, FormatJSON},
		{AdapterNSPHTML, "page", "<html></html>", FormatHTML},
	}
	for _, tc := range cases {
		if got := classifyFormat(tc.adapter, tc.location, tc.body); got != tc.want {
			t.Fatalf("classifyFormat(%q, %q): got %q want %q", tc.adapter, tc.location, got, tc.want)
		}
	}
}
