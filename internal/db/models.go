package db

import (
	"time"
)

// Scholarship enum values. The normalizer only ever writes values from these
// sets; anything else from a source is dropped, not guessed.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"

	VerificationUnverified = "UNVERIFIED"
	VerificationVerified   = "VERIFIED"
	VerificationFlagged    = "FLAGGED"

	ProviderGovernment = "GOVERNMENT"
	ProviderNGO        = "NGO"
	ProviderCSR        = "CSR"
	ProviderPrivate    = "PRIVATE"
)

// IngestionRun status and trigger values.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusPartial = "PARTIAL"
	RunStatusFailed  = "FAILED"

	TriggerManual    = "MANUAL"
	TriggerScheduled = "SCHEDULED"
	TriggerStartup   = "STARTUP"
	TriggerCron      = "CRON"
)

// Scholarship maps the scholarships catalog table. Records are mutated in
// place by repeat ingestion runs and deactivated, never deleted, when their
// source disappears from configuration.
type Scholarship struct {
	ID              int64  `gorm:"column:scholarship_id;primaryKey;autoIncrement"`
	ScholarshipUUID string `gorm:"column:scholarship_uuid;type:uuid;not null;default:gen_random_uuid();unique"`

	Title       string   `gorm:"column:title;type:text;not null"`
	Description string   `gorm:"column:description;type:text;not null"`
	Provider    Provider `gorm:"column:provider;type:jsonb;not null"`

	Amount   int64      `gorm:"column:amount;type:bigint;not null"`
	Benefits string     `gorm:"column:benefits;type:text;not null;default:''"`
	Tags     StringList `gorm:"column:tags;type:jsonb"`

	Eligibility Eligibility `gorm:"column:eligibility;type:jsonb"`

	DocumentsRequired  StringList         `gorm:"column:documents_required;type:jsonb"`
	CommonMistakes     StringList         `gorm:"column:common_mistakes;type:jsonb"`
	ApplicationProcess ApplicationProcess `gorm:"column:application_process;type:jsonb"`

	Status             string    `gorm:"column:status;type:text;not null;default:PENDING"`
	Deadline           time.Time `gorm:"column:deadline;type:timestamptz;not null"`
	IsActive           bool      `gorm:"column:is_active;not null;default:true"`
	VerificationStatus string    `gorm:"column:verification_status;type:text;not null;default:UNVERIFIED"`

	Source       SourceMeta `gorm:"column:source;type:jsonb;not null"`
	LastSyncedAt time.Time  `gorm:"column:last_synced_at;type:timestamptz"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Scholarship) TableName() string { return "scholarships" }

// IngestionRun maps the ingestion_runs history table. Rows are created in
// RUNNING state when a run opens and finalized exactly once; finalized rows
// are never touched again.
type IngestionRun struct {
	ID      int64  `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID string `gorm:"column:run_uuid;type:uuid;not null;unique"`

	Trigger     string `gorm:"column:trigger;type:text;not null;default:MANUAL"`
	Status      string `gorm:"column:status;type:text;not null;default:RUNNING;index"`
	InitiatedBy string `gorm:"column:initiated_by;type:text;not null;default:''"`
	SourceCount int    `gorm:"column:source_count;not null;default:0"`

	Totals          RunTotals         `gorm:"column:totals;type:jsonb"`
	SourceSummaries SourceSummaryList `gorm:"column:source_summaries;type:jsonb"`

	StartedAt    time.Time  `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt   *time.Time `gorm:"column:finished_at;type:timestamptz"`
	DurationMs   int64      `gorm:"column:duration_ms;not null;default:0"`
	ErrorMessage string     `gorm:"column:error_message;type:text;not null;default:''"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (IngestionRun) TableName() string { return "ingestion_runs" }

func autoMigrateModels() []any {
	return []any{
		&Scholarship{},
		&IngestionRun{},
	}
}
