package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/config"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/db"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/globaltime"
)

const (
	maxErrorsPerSource = 50

	defaultRunHistoryLimit = 20
)

// RunResult is what a trigger gets back. Accepted=false means another run
// holds the lock; RunID then names the run already in flight.
type RunResult struct {
	Accepted        bool
	RunID           string
	Status          string
	Totals          db.RunTotals
	SourceSummaries []db.SourceSummary
	Message         string
}

// StatusReport is the point-in-time view served by the status endpoint.
type StatusReport struct {
	IsRunning bool
	Running   *RunSnapshot
	LatestRun *db.IngestionRun
}

// Service orchestrates ingestion runs end to end: fetch, extract, enrich,
// normalize, upsert, finalize the ledger row.
type Service struct {
	cfg      *config.Config
	store    Store
	fetcher  *Fetcher
	enricher *Enricher
	norm     *Normalizer
	lock     runLock
	logger   zerolog.Logger
}

func NewService(cfg *config.Config, store Store, logger zerolog.Logger) *Service {
	fetcher := NewFetcher("")
	return &Service{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		enricher: NewEnricher(cfg, fetcher, logger),
		norm:     NewNormalizer(cfg),
		logger:   logger,
	}
}

// Run executes one ingestion pass synchronously. Source failures are
// recorded on the run and never abort it; only ledger writes are fatal.
// Concurrent triggers are rejected while a run is active.
func (s *Service) Run(ctx context.Context, trigger, initiatedBy string) (RunResult, error) {
	run, rejected, err := s.begin(ctx, trigger, initiatedBy)
	if err != nil {
		return RunResult{}, err
	}
	if rejected != nil {
		return *rejected, nil
	}
	return s.execute(ctx, run)
}

// StartRun begins a run and executes it in the background, returning as soon
// as the ledger row exists. The HTTP trigger uses this so the request does
// not hang on a multi-minute scrape.
func (s *Service) StartRun(ctx context.Context, trigger, initiatedBy string) (RunResult, error) {
	run, rejected, err := s.begin(ctx, trigger, initiatedBy)
	if err != nil {
		return RunResult{}, err
	}
	if rejected != nil {
		return *rejected, nil
	}

	go func() {
		if _, err := s.execute(context.Background(), run); err != nil {
			s.logger.Error().Err(err).Str("run_id", run.RunUUID).Msg("background ingestion run failed")
		}
	}()

	return RunResult{Accepted: true, RunID: run.RunUUID, Status: db.RunStatusRunning}, nil
}

// begin claims the run lock and opens the ledger row. A non-nil rejected
// result means another run holds the lock.
func (s *Service) begin(ctx context.Context, trigger, initiatedBy string) (*db.IngestionRun, *RunResult, error) {
	startedAt := globaltime.UTC()
	if !s.lock.Acquire(trigger, startedAt) {
		active := s.lock.Snapshot()
		rejected := &RunResult{Message: "an ingestion run is already in progress"}
		if active != nil {
			rejected.RunID = active.RunID
		}
		return nil, rejected, nil
	}

	run := &db.IngestionRun{
		RunUUID:     uuid.NewString(),
		Trigger:     trigger,
		Status:      db.RunStatusRunning,
		InitiatedBy: initiatedBy,
		SourceCount: len(Sources(s.cfg)),
		StartedAt:   startedAt,
	}
	if err := s.store.CreateIngestionRun(ctx, run); err != nil {
		s.lock.Release()
		return nil, nil, fmt.Errorf("create ingestion run: %w", err)
	}
	s.lock.SetRunID(run.RunUUID)
	return run, nil, nil
}

// execute processes every source and finalizes the ledger row. The caller
// must hold the run lock; execute releases it.
func (s *Service) execute(ctx context.Context, run *db.IngestionRun) (RunResult, error) {
	defer s.lock.Release()

	sources := Sources(s.cfg)

	logger := s.logger.With().Str("run_id", run.RunUUID).Str("trigger", run.Trigger).Logger()
	logger.Info().Int("sources", len(sources)).Msg("ingestion run started")

	var totals db.RunTotals
	summaries := make([]db.SourceSummary, 0, len(sources)+1)
	anyErrors := false

	for _, src := range sources {
		summary := s.runSource(ctx, src, &totals)
		if len(summary.Errors) > 0 {
			anyErrors = true
		}
		summaries = append(summaries, summary)
	}

	if s.cfg.DeactivateStaleSources && len(sources) > 0 {
		names := make([]string, 0, len(sources))
		for _, src := range sources {
			names = append(names, src.Name)
		}
		modified, err := s.store.DeactivateStaleSources(ctx, names, globaltime.UTC())
		if err != nil {
			anyErrors = true
			summaries = append(summaries, db.SourceSummary{
				Name:   "stale_source_cleanup",
				Errors: []string{fmt.Sprintf("deactivate stale sources: %v", err)},
			})
		} else if modified > 0 {
			logger.Info().Int64("deactivated", modified).Msg("stale source listings deactivated")
			anyErrors = true
			summaries = append(summaries, db.SourceSummary{
				Name:    "stale_source_cleanup",
				URL:     "-",
				Adapter: "system",
				Updated: int(modified),
				Errors:  []string{fmt.Sprintf("deactivated %d stale records from removed sources", modified)},
			})
		}
	}

	status := db.RunStatusSuccess
	switch {
	case totals.Normalized == 0:
		status = db.RunStatusFailed
	case anyErrors || totals.Skipped > 0:
		status = db.RunStatusPartial
	}

	finishedAt := globaltime.UTC()
	run.Status = status
	run.Totals = totals
	run.SourceSummaries = db.SourceSummaryList(summaries)
	run.FinishedAt = &finishedAt
	run.DurationMs = finishedAt.Sub(run.StartedAt).Milliseconds()
	if err := s.store.FinalizeIngestionRun(ctx, run); err != nil {
		logger.Error().Err(err).Msg("finalize ingestion run failed")
		// Best effort so the ledger row does not sit RUNNING forever.
		run.Status = db.RunStatusFailed
		run.ErrorMessage = err.Error()
		if ferr := s.store.FinalizeIngestionRun(context.Background(), run); ferr != nil {
			logger.Error().Err(ferr).Msg("failed ingestion run could not be recorded")
		}
		return RunResult{}, fmt.Errorf("finalize ingestion run: %w", err)
	}

	logger.Info().
		Str("status", status).
		Int("fetched", totals.Fetched).
		Int("normalized", totals.Normalized).
		Int("inserted", totals.Inserted).
		Int("updated", totals.Updated).
		Int("skipped", totals.Skipped).
		Int64("duration_ms", run.DurationMs).
		Msg("ingestion run finished")

	return RunResult{
		Accepted:        true,
		RunID:           run.RunUUID,
		Status:          status,
		Totals:          totals,
		SourceSummaries: summaries,
	}, nil
}

// runSource processes one configured source. Every failure lands on the
// summary, capped so a pathological source cannot bloat the ledger row.
func (s *Service) runSource(ctx context.Context, src Source, totals *db.RunTotals) db.SourceSummary {
	summary := db.SourceSummary{
		Name:    src.Name,
		URL:     src.URL,
		Adapter: src.Adapter,
	}
	logger := s.logger.With().Str("source", src.Name).Logger()

	result, err := s.fetcher.FetchSource(ctx, src)
	if err != nil {
		logger.Warn().Err(err).Msg("source fetch failed")
		summary.Errors = append(summary.Errors, fmt.Sprintf("fetch: %v", err))
		return summary
	}

	var candidates []Candidate
	if result.Format == FormatJSON {
		candidates, err = RecordsFromJSON(result.Body)
		if err != nil {
			logger.Warn().Err(err).Msg("source payload unparseable")
			summary.Errors = append(summary.Errors, fmt.Sprintf("parse: %v", err))
			return summary
		}
	} else {
		candidates = RecordsFromHTML(result.Body, src, s.cfg.DefaultLinkBaseURL)
	}

	if limit := s.cfg.MaxCandidatesPerSource; len(candidates) > limit {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("truncated: %d candidates exceeded the per-source cap of %d", len(candidates), limit))
		candidates = candidates[:limit]
	}
	summary.Fetched = len(candidates)
	totals.Fetched += len(candidates)

	s.enricher.EnrichAll(ctx, src, candidates, &summary)

	for _, candidate := range candidates {
		record := s.norm.Normalize(candidate, src)
		if record == nil {
			summary.Skipped++
			totals.Skipped++
			continue
		}
		summary.Normalized++
		totals.Normalized++

		outcome, err := UpsertScholarship(ctx, s.store, record)
		if err != nil {
			summary.Skipped++
			totals.Skipped++
			if len(summary.Errors) < maxErrorsPerSource {
				summary.Errors = append(summary.Errors, fmt.Sprintf("upsert %q: %v", record.Title, err))
			}
			continue
		}
		switch outcome {
		case OutcomeInserted:
			summary.Inserted++
			totals.Inserted++
		case OutcomeUpdated:
			summary.Updated++
			totals.Updated++
		}
	}

	logger.Info().
		Int("fetched", summary.Fetched).
		Int("normalized", summary.Normalized).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("errors", len(summary.Errors)).
		Msg("source processed")
	return summary
}

// Status reports whether a run is active plus the most recent ledger row.
func (s *Service) Status(ctx context.Context) (StatusReport, error) {
	latest, err := s.store.LatestIngestionRun(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("latest ingestion run: %w", err)
	}
	running := s.lock.Snapshot()
	return StatusReport{
		IsRunning: running != nil,
		Running:   running,
		LatestRun: latest,
	}, nil
}

// ListRuns returns recent run history, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]db.IngestionRun, error) {
	if limit <= 0 {
		limit = defaultRunHistoryLimit
	}
	return s.store.ListIngestionRuns(ctx, limit)
}
