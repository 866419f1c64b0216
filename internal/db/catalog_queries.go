package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrDuplicateScholarship reports a unique-violation on insert. The caller
// re-resolves through the lookup chain and merges instead of failing.
var ErrDuplicateScholarship = errors.New("scholarship already exists")

// FindScholarshipBySourceIdentity resolves a record by its source identity:
// (provider, externalId) when an external id is present, otherwise
// (provider, dedupeKey). Returns (nil, nil) when no record matches.
func (p *Pool) FindScholarshipBySourceIdentity(ctx context.Context, provider, externalID, dedupeKey string) (*Scholarship, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	q := p.gdb.WithContext(ctx).Where("source ->> 'provider' = ?", provider)
	if externalID != "" {
		q = q.Where("source ->> 'externalId' = ?", externalID)
	} else {
		q = q.Where("source ->> 'dedupeKey' = ?", dedupeKey)
	}

	var row Scholarship
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find scholarship by source identity: %w", err)
	}
	return &row, nil
}

// FindScholarshipByDedupeKey resolves strictly by (provider, dedupeKey),
// ignoring any external id. Used as the second step of the race re-resolution
// chain.
func (p *Pool) FindScholarshipByDedupeKey(ctx context.Context, provider, dedupeKey string) (*Scholarship, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var row Scholarship
	err := p.gdb.WithContext(ctx).
		Where("source ->> 'provider' = ?", provider).
		Where("source ->> 'dedupeKey' = ?", dedupeKey).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find scholarship by dedupe key: %w", err)
	}
	return &row, nil
}

// FindScholarshipByContent is the fuzzy fallback: exact title + provider name
// + deadline within the given UTC day bucket. Returns (nil, nil) when no
// record matches.
func (p *Pool) FindScholarshipByContent(ctx context.Context, title, providerName string, dayStart, dayEnd time.Time) (*Scholarship, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var row Scholarship
	err := p.gdb.WithContext(ctx).
		Where("title = ?", title).
		Where("provider ->> 'name' = ?", providerName).
		Where("deadline >= ? AND deadline < ?", dayStart, dayEnd).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find scholarship by content: %w", err)
	}
	return &row, nil
}

// InsertScholarship creates a new catalog record. A unique-violation surfaces
// as ErrDuplicateScholarship.
func (p *Pool) InsertScholarship(ctx context.Context, record *Scholarship) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if err := p.gdb.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateScholarship
		}
		return fmt.Errorf("insert scholarship: %w", err)
	}
	return nil
}

// UpdateScholarship saves a merged record wholesale.
func (p *Pool) UpdateScholarship(ctx context.Context, record *Scholarship) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if record == nil || record.ID == 0 {
		return fmt.Errorf("scholarship record has no primary key")
	}
	if err := p.gdb.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("update scholarship: %w", err)
	}
	return nil
}

// DeactivateStaleSources marks every still-active record whose source
// provider is set but not in the current source list as inactive. Returns the
// number of records deactivated.
func (p *Pool) DeactivateStaleSources(ctx context.Context, activeSources []string, now time.Time) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}
	if len(activeSources) == 0 {
		return 0, nil
	}

	res := p.gdb.WithContext(ctx).Exec(`
UPDATE scholarships
SET is_active = FALSE,
    last_synced_at = ?,
    updated_at = ?
WHERE is_active = TRUE
  AND COALESCE(source ->> 'provider', '') <> ''
  AND source ->> 'provider' NOT IN ?`,
		now, now, activeSources)
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate stale sources: %w", res.Error)
	}
	return res.RowsAffected, nil
}
