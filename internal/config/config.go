package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Default and ceiling values for the ingestion pipeline knobs. The env vars
// keep the names the ops runbooks already use.
const (
	MaxSourcesCeiling       = 50
	MaxCandidatesCeiling    = 5000
	MaxDetailFetchCeiling   = 1000
	MinFallbackDeadlineDays = 30
	MinFallbackAmount       = 1000
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"SL_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"SL_DB_MAX_CONNS" default:"8"`

	// Source list: comma-separated entries, each "name|url|adapter" with any
	// subset of the three parts.
	SourceURLs string `envconfig:"SCHOLARSHIP_SOURCE_URLS" default:""`
	MaxSources int    `envconfig:"INGEST_MAX_SOURCES" default:"10"`

	MaxCandidatesPerSource int `envconfig:"INGEST_MAX_CANDIDATES_PER_SOURCE" default:"500"`

	DetailFetchEnabled      bool `envconfig:"INGEST_DETAIL_FETCH_ENABLED" default:"true"`
	DetailFetchVerbose      bool `envconfig:"INGEST_DETAIL_FETCH_VERBOSE" default:"false"`
	MaxDetailFetchPerSource int  `envconfig:"INGEST_MAX_DETAIL_FETCH_PER_SOURCE" default:"120"`

	AllowPartialRecords  bool   `envconfig:"INGEST_ALLOW_PARTIAL_RECORDS" default:"true"`
	FallbackDeadlineDays int    `envconfig:"INGEST_FALLBACK_DEADLINE_DAYS" default:"120"`
	FallbackAmount       int64  `envconfig:"INGEST_FALLBACK_AMOUNT" default:"10000"`
	AutoApproveAll       bool   `envconfig:"INGEST_AUTO_APPROVE_ALL" default:"true"`
	DefaultStatus        string `envconfig:"INGEST_DEFAULT_STATUS" default:"APPROVED"`

	DeactivateStaleSources bool `envconfig:"INGEST_DEACTIVATE_STALE_SOURCES" default:"true"`

	DailyHourUTC     int    `envconfig:"INGEST_DAILY_HOUR_UTC" default:"2"`
	RunOnBoot        bool   `envconfig:"INGEST_RUN_ON_BOOT" default:"true"`
	SchedulerEnabled string `envconfig:"INGEST_SCHEDULER_ENABLED" default:""`

	DefaultLinkBaseURL string `envconfig:"INGEST_DEFAULT_LINK_BASE_URL" default:""`

	CronSecret string `envconfig:"CRON_SECRET" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.clamp()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// clamp bounds the numeric knobs instead of rejecting them; operators tune
// these live and a typo should degrade, not crash.
func (c *Config) clamp() {
	c.MaxSources = boundInt(c.MaxSources, 1, MaxSourcesCeiling)
	c.MaxCandidatesPerSource = boundInt(c.MaxCandidatesPerSource, 1, MaxCandidatesCeiling)
	c.MaxDetailFetchPerSource = boundInt(c.MaxDetailFetchPerSource, 0, MaxDetailFetchCeiling)
	if c.FallbackDeadlineDays < MinFallbackDeadlineDays {
		c.FallbackDeadlineDays = MinFallbackDeadlineDays
	}
	if c.FallbackAmount < MinFallbackAmount {
		c.FallbackAmount = MinFallbackAmount
	}
	c.DailyHourUTC = boundInt(c.DailyHourUTC, 0, 23)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("SL_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("SL_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("SL_DB_MIN_CONNS (%d) cannot exceed SL_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	switch strings.ToUpper(strings.TrimSpace(c.DefaultStatus)) {
	case "PENDING", "APPROVED", "REJECTED":
	default:
		return fmt.Errorf("INGEST_DEFAULT_STATUS must be one of PENDING, APPROVED, REJECTED")
	}
	return nil
}

// SchedulerActive reports whether the in-process daily scheduler should run.
// On serverless runtimes the platform cron endpoint is expected instead, so
// the scheduler stays off unless INGEST_SCHEDULER_ENABLED is set explicitly.
func (c *Config) SchedulerActive() bool {
	flag := strings.ToLower(strings.TrimSpace(c.SchedulerEnabled))
	if flag == "false" {
		return false
	}
	if isServerlessRuntime() && flag == "" {
		return false
	}
	return true
}

func isServerlessRuntime() bool {
	return strings.TrimSpace(os.Getenv("VERCEL")) != ""
}

func boundInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
