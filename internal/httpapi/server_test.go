package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/db"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/ingest"
)

type fakeService struct {
	startResult ingest.RunResult
	startErr    error
	status      ingest.StatusReport
	statusErr   error
	runs        []db.IngestionRun
	lastTrigger string
	lastBy      string
	listLimit   int
}

func (f *fakeService) StartRun(_ context.Context, trigger, initiatedBy string) (ingest.RunResult, error) {
	f.lastTrigger = trigger
	f.lastBy = initiatedBy
	return f.startResult, f.startErr
}

func (f *fakeService) Status(_ context.Context) (ingest.StatusReport, error) {
	return f.status, f.statusErr
}

func (f *fakeService) ListRuns(_ context.Context, limit int) ([]db.IngestionRun, error) {
	f.listLimit = limit
	return f.runs, nil
}

func newTestServer(svc IngestionService, ping func(context.Context) error, cronSecret string) *Server {
	return NewServer(svc, ping, cronSecret, zerolog.Nop(), Options{})
}

func doRequest(t *testing.T, s *Server, method, target, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.buildEcho().ServeHTTP(rec, req)
	return rec
}

func doJSONRequest(t *testing.T, s *Server, method, target, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.buildEcho().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeService{}, func(context.Context) error { return nil }, "")
	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	if data["database"] != "up" {
		t.Fatalf("unexpected health payload: %v", data)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeService{}, func(context.Context) error { return fmt.Errorf("dead") }, "")
	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["database"] != "down" {
		t.Fatalf("ping failure not reflected: %v", data)
	}
}

func TestTriggerRun_Accepted(t *testing.T) {
	t.Parallel()

	svc := &fakeService{startResult: ingest.RunResult{
		Accepted: true,
		RunID:    "run-1",
		Status:   db.RunStatusRunning,
	}}
	s := newTestServer(svc, nil, "")

	rec := doRequest(t, s, http.MethodPost, "/api/v1/ingestion/run", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["runId"] != "run-1" {
		t.Fatalf("unexpected payload: %v", data)
	}
	if svc.lastTrigger != db.TriggerManual || svc.lastBy != "api" {
		t.Fatalf("unexpected trigger attribution: %q by %q", svc.lastTrigger, svc.lastBy)
	}
}

func TestTriggerRun_InitiatedByFromBody(t *testing.T) {
	t.Parallel()

	svc := &fakeService{startResult: ingest.RunResult{
		Accepted: true,
		RunID:    "run-2",
		Status:   db.RunStatusRunning,
	}}
	s := newTestServer(svc, nil, "")

	rec := doJSONRequest(t, s, http.MethodPost, "/api/v1/ingestion/run",
		`{"initiatedBy":"admin-7"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastBy != "admin-7" {
		t.Fatalf("initiated-by not propagated: %q", svc.lastBy)
	}

	// A blank value still falls back to the default attribution.
	rec = doJSONRequest(t, s, http.MethodPost, "/api/v1/ingestion/run",
		`{"initiatedBy":"  "}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if svc.lastBy != "api" {
		t.Fatalf("blank initiated-by must default: %q", svc.lastBy)
	}
}

func TestTriggerRun_Conflict(t *testing.T) {
	t.Parallel()

	svc := &fakeService{startResult: ingest.RunResult{
		Accepted: false,
		RunID:    "active-run",
		Message:  "an ingestion run is already in progress",
	}}
	s := newTestServer(svc, nil, "")

	rec := doRequest(t, s, http.MethodPost, "/api/v1/ingestion/run", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "fail" {
		t.Fatalf("unexpected envelope: %v", body)
	}
	data := body["data"].(map[string]any)
	if data["activeRunId"] != "active-run" {
		t.Fatalf("active run not reported: %v", data)
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	svc := &fakeService{status: ingest.StatusReport{IsRunning: true, Running: &ingest.RunSnapshot{RunID: "r"}}}
	s := newTestServer(svc, nil, "")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/ingestion/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["isRunning"] != true {
		t.Fatalf("unexpected payload: %v", data)
	}
}

func TestRunHistory_LimitClamped(t *testing.T) {
	t.Parallel()

	svc := &fakeService{runs: []db.IngestionRun{{RunUUID: "a"}}}
	s := newTestServer(svc, nil, "")

	// Zero means "use the default"; garbage and out-of-range values degrade
	// instead of erroring.
	cases := []struct {
		raw  string
		want int
	}{
		{"5", 5},
		{"", 0},
		{"0", 0},
		{"-3", 0},
		{"abc", 0},
		{"101", 100},
		{"100", 100},
	}
	for _, tc := range cases {
		target := "/api/v1/ingestion/runs"
		if tc.raw != "" {
			target += "?limit=" + tc.raw
		}
		rec := doRequest(t, s, http.MethodGet, target, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("limit=%q: unexpected status %d", tc.raw, rec.Code)
		}
		if svc.listLimit != tc.want {
			t.Fatalf("limit=%q: forwarded %d, want %d", tc.raw, svc.listLimit, tc.want)
		}
	}
}

func TestCron_Auth(t *testing.T) {
	t.Parallel()

	svc := &fakeService{startResult: ingest.RunResult{Accepted: true, RunID: "cron-run", Status: db.RunStatusRunning}}
	s := newTestServer(svc, nil, "topsecret")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/ingestion/cron", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing bearer: expected 401, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/ingestion/cron", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong bearer: expected 401, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/ingestion/cron", "topsecret")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("valid bearer: expected 202, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastTrigger != db.TriggerCron {
		t.Fatalf("unexpected trigger: %q", svc.lastTrigger)
	}
}

func TestCron_DisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeService{}, nil, "")
	rec := doRequest(t, s, http.MethodGet, "/api/v1/ingestion/cron", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when cron secret unset, got %d", rec.Code)
	}
}

func TestUnknownRoute_JSONFail(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeService{}, nil, "")
	rec := doRequest(t, s, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"fail"`) {
		t.Fatalf("error not in jsend envelope: %s", rec.Body.String())
	}
}
