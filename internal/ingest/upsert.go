package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/db"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/globaltime"
)

// Catalog is the slice of storage the upsert engine needs. *db.Pool
// satisfies it; tests use an in-memory fake.
type Catalog interface {
	FindScholarshipBySourceIdentity(ctx context.Context, provider, externalID, dedupeKey string) (*db.Scholarship, error)
	FindScholarshipByDedupeKey(ctx context.Context, provider, dedupeKey string) (*db.Scholarship, error)
	FindScholarshipByContent(ctx context.Context, title, providerName string, dayStart, dayEnd time.Time) (*db.Scholarship, error)
	InsertScholarship(ctx context.Context, record *db.Scholarship) error
	UpdateScholarship(ctx context.Context, record *db.Scholarship) error
	DeactivateStaleSources(ctx context.Context, activeSources []string, now time.Time) (int64, error)
}

// RunStore persists the run ledger.
type RunStore interface {
	CreateIngestionRun(ctx context.Context, run *db.IngestionRun) error
	FinalizeIngestionRun(ctx context.Context, run *db.IngestionRun) error
	LatestIngestionRun(ctx context.Context) (*db.IngestionRun, error)
	ListIngestionRuns(ctx context.Context, limit int) ([]db.IngestionRun, error)
}

// Store is everything the orchestrator touches.
type Store interface {
	Catalog
	RunStore
}

// Upsert outcomes.
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
)

// UpsertScholarship writes one normalized record, deduplicating against
// earlier syncs. Resolution order: source identity (externalId, then
// dedupeKey), then content identity (title + provider + deadline day) for
// records that predate source tagging. A unique-violation on insert means a
// concurrent writer won the race; the record is re-resolved and merged.
func UpsertScholarship(ctx context.Context, catalog Catalog, record *db.Scholarship) (string, error) {
	existing, err := resolveExisting(ctx, catalog, record, false)
	if err != nil {
		return "", err
	}
	if existing != nil {
		mergeIntoExisting(existing, record)
		if err := catalog.UpdateScholarship(ctx, existing); err != nil {
			return "", fmt.Errorf("update scholarship: %w", err)
		}
		return OutcomeUpdated, nil
	}

	err = catalog.InsertScholarship(ctx, record)
	if err == nil {
		return OutcomeInserted, nil
	}
	if !errors.Is(err, db.ErrDuplicateScholarship) {
		return "", fmt.Errorf("insert scholarship: %w", err)
	}

	// Lost an insert race. The row exists now; find it and merge.
	existing, rerr := resolveExisting(ctx, catalog, record, true)
	if rerr != nil {
		return "", rerr
	}
	if existing == nil {
		return "", fmt.Errorf("insert scholarship: %w", err)
	}
	mergeIntoExisting(existing, record)
	if err := catalog.UpdateScholarship(ctx, existing); err != nil {
		return "", fmt.Errorf("update scholarship: %w", err)
	}
	return OutcomeUpdated, nil
}

func resolveExisting(ctx context.Context, catalog Catalog, record *db.Scholarship, afterRace bool) (*db.Scholarship, error) {
	src := record.Source

	existing, err := catalog.FindScholarshipBySourceIdentity(ctx, src.Provider, src.ExternalID, src.DedupeKey)
	if err != nil {
		return nil, fmt.Errorf("find by source identity: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if afterRace && src.DedupeKey != "" {
		existing, err = catalog.FindScholarshipByDedupeKey(ctx, src.Provider, src.DedupeKey)
		if err != nil {
			return nil, fmt.Errorf("find by dedupe key: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	dayStart, dayEnd := dayBounds(record.Deadline)
	existing, err = catalog.FindScholarshipByContent(ctx, record.Title, record.Provider.Name, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("find by content: %w", err)
	}
	return existing, nil
}

// dayBounds buckets a deadline to its UTC calendar day, so re-scrapes whose
// timestamps differ within the day still match.
func dayBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// mergeIntoExisting refreshes an existing row from a new sync. Content fields
// replace wholesale; moderation is sticky: a REJECTED status and a FLAGGED
// verification survive re-imports so a re-scrape cannot resurface a listing
// an admin pulled. Source metadata merges field-wise, keeping old values a
// new sync no longer carries.
func mergeIntoExisting(existing, incoming *db.Scholarship) {
	existing.Title = incoming.Title
	existing.Description = incoming.Description
	existing.Provider = incoming.Provider
	existing.Amount = incoming.Amount
	existing.Benefits = incoming.Benefits
	existing.Tags = incoming.Tags
	existing.Eligibility = incoming.Eligibility
	existing.DocumentsRequired = incoming.DocumentsRequired
	existing.CommonMistakes = incoming.CommonMistakes
	existing.ApplicationProcess = incoming.ApplicationProcess
	existing.Deadline = incoming.Deadline
	existing.IsActive = incoming.IsActive

	if existing.Status != db.StatusRejected {
		existing.Status = incoming.Status
	}
	if existing.VerificationStatus != db.VerificationFlagged {
		existing.VerificationStatus = incoming.VerificationStatus
	}

	merged := existing.Source
	if incoming.Source.Provider != "" {
		merged.Provider = incoming.Source.Provider
	}
	if incoming.Source.Adapter != "" {
		merged.Adapter = incoming.Source.Adapter
	}
	if incoming.Source.ExternalID != "" {
		merged.ExternalID = incoming.Source.ExternalID
	}
	if incoming.Source.DedupeKey != "" {
		merged.DedupeKey = incoming.Source.DedupeKey
	}
	if incoming.Source.SourceURL != "" {
		merged.SourceURL = incoming.Source.SourceURL
	}
	existing.Source = merged

	existing.LastSyncedAt = globaltime.UTC()
}
