package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// CreateIngestionRun persists a run record in its opening state.
func (p *Pool) CreateIngestionRun(ctx context.Context, run *IngestionRun) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if err := p.gdb.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("create ingestion run: %w", err)
	}
	return nil
}

// FinalizeIngestionRun writes the closing state of a run exactly once.
func (p *Pool) FinalizeIngestionRun(ctx context.Context, run *IngestionRun) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if run == nil || run.ID == 0 {
		return fmt.Errorf("ingestion run has no primary key")
	}
	if err := p.gdb.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("finalize ingestion run: %w", err)
	}
	return nil
}

// LatestIngestionRun returns the most recent run, or (nil, nil) when the
// history is empty.
func (p *Pool) LatestIngestionRun(ctx context.Context) (*IngestionRun, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	var row IngestionRun
	if err := p.gdb.WithContext(ctx).Order("created_at DESC").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest ingestion run: %w", err)
	}
	return &row, nil
}

// ListIngestionRuns returns run history ordered by recency.
func (p *Pool) ListIngestionRuns(ctx context.Context, limit int) ([]IngestionRun, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	var rows []IngestionRun
	if err := p.gdb.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list ingestion runs: %w", err)
	}
	return rows, nil
}
