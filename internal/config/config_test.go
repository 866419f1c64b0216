package config

import (
	"os"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/scholarlink")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxSources != 10 {
		t.Fatalf("unexpected MaxSources: %d", cfg.MaxSources)
	}
	if cfg.MaxCandidatesPerSource != 500 {
		t.Fatalf("unexpected MaxCandidatesPerSource: %d", cfg.MaxCandidatesPerSource)
	}
	if cfg.MaxDetailFetchPerSource != 120 {
		t.Fatalf("unexpected MaxDetailFetchPerSource: %d", cfg.MaxDetailFetchPerSource)
	}
	if !cfg.AllowPartialRecords || !cfg.AutoApproveAll || !cfg.DetailFetchEnabled {
		t.Fatalf("expected permissive defaults, got %+v", cfg)
	}
	if cfg.DefaultStatus != "APPROVED" {
		t.Fatalf("unexpected DefaultStatus: %q", cfg.DefaultStatus)
	}
	if cfg.DailyHourUTC != 2 {
		t.Fatalf("unexpected DailyHourUTC: %d", cfg.DailyHourUTC)
	}
}

func TestLoadClampsOutOfRangeKnobs(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("INGEST_MAX_SOURCES", "9000")
	t.Setenv("INGEST_MAX_CANDIDATES_PER_SOURCE", "0")
	t.Setenv("INGEST_MAX_DETAIL_FETCH_PER_SOURCE", "99999")
	t.Setenv("INGEST_FALLBACK_DEADLINE_DAYS", "3")
	t.Setenv("INGEST_FALLBACK_AMOUNT", "5")
	t.Setenv("INGEST_DAILY_HOUR_UTC", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxSources != MaxSourcesCeiling {
		t.Fatalf("MaxSources not clamped: %d", cfg.MaxSources)
	}
	if cfg.MaxCandidatesPerSource != 1 {
		t.Fatalf("MaxCandidatesPerSource not clamped: %d", cfg.MaxCandidatesPerSource)
	}
	if cfg.MaxDetailFetchPerSource != MaxDetailFetchCeiling {
		t.Fatalf("MaxDetailFetchPerSource not clamped: %d", cfg.MaxDetailFetchPerSource)
	}
	if cfg.FallbackDeadlineDays != MinFallbackDeadlineDays {
		t.Fatalf("FallbackDeadlineDays not clamped: %d", cfg.FallbackDeadlineDays)
	}
	if cfg.FallbackAmount != MinFallbackAmount {
		t.Fatalf("FallbackAmount not clamped: %d", cfg.FallbackAmount)
	}
	if cfg.DailyHourUTC != 23 {
		t.Fatalf("DailyHourUTC not clamped: %d", cfg.DailyHourUTC)
	}
}

func TestLoadRejectsMissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoadRejectsUnknownDefaultStatus(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("INGEST_DEFAULT_STATUS", "MAYBE")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown INGEST_DEFAULT_STATUS")
	}
}

func TestSchedulerActive(t *testing.T) {
	cases := []struct {
		name   string
		flag   string
		vercel string
		want   bool
	}{
		{name: "default on", flag: "", vercel: "", want: true},
		{name: "explicit off", flag: "false", vercel: "", want: false},
		{name: "serverless default off", flag: "", vercel: "1", want: false},
		{name: "serverless explicit on", flag: "true", vercel: "1", want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("VERCEL", tc.vercel)
			if tc.vercel == "" {
				os.Unsetenv("VERCEL")
			}
			cfg := &Config{SchedulerEnabled: tc.flag}
			if got := cfg.SchedulerActive(); got != tc.want {
				t.Fatalf("SchedulerActive = %v, want %v", got, tc.want)
			}
		})
	}
}
