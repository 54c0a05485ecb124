package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"emitenwatch/internal/domain"
)

// Tracker owns the server-side analysis job lifecycle: create a job,
// advance it through the runner, and answer status queries. Job records
// are append-only per symbol.
type Tracker struct {
	Jobs     domain.AnalysisJobRepository
	Analyzer domain.Analyzer

	wg sync.WaitGroup
}

// NewTracker creates a new Tracker instance.
func NewTracker(jobs domain.AnalysisJobRepository, analyzer domain.Analyzer) *Tracker {
	return &Tracker{
		Jobs:     jobs,
		Analyzer: analyzer,
	}
}

// Create starts a new analysis job for a symbol. It is only valid while no
// job for that symbol is in flight; callers violating the protocol get
// domain.ErrJobInFlight. The runner is detached from the caller's
// cancellation so a dropped request does not abort the job.
func (t *Tracker) Create(ctx context.Context, symbol, analysisContext string) (*domain.AnalysisJob, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, domain.NewValidationError("symbol is required")
	}

	latest, err := t.Jobs.GetLatest(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("query latest job for %s: %w", symbol, err)
	}
	if latest != nil && latest.Status.InFlight() {
		return nil, domain.ErrJobInFlight
	}

	now := time.Now()
	job := &domain.AnalysisJob{
		ID:        uuid.New(),
		Symbol:    symbol,
		Status:    domain.JobStatusPending,
		Context:   analysisContext,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.Jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job for %s: %w", symbol, err)
	}

	t.wg.Add(1)
	go t.run(context.WithoutCancel(ctx), job)

	return job, nil
}

func (t *Tracker) run(ctx context.Context, job *domain.AnalysisJob) {
	defer t.wg.Done()

	if err := t.Jobs.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing, "", ""); err != nil {
		log.Printf("[ERROR] mark job %s processing: %v", job.ID, err)
	}

	result, err := t.Analyzer.Analyze(ctx, job.Symbol, job.Context)
	if err != nil {
		log.Printf("[WARN] analysis for %s failed: %v", job.Symbol, err)
		if uerr := t.Jobs.UpdateStatus(ctx, job.ID, domain.JobStatusError, "", err.Error()); uerr != nil {
			log.Printf("[ERROR] mark job %s errored: %v", job.ID, uerr)
		}
		return
	}

	if err := t.Jobs.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, result, ""); err != nil {
		log.Printf("[ERROR] mark job %s completed: %v", job.ID, err)
	}
}

// Status returns the current status of the latest job for a symbol.
// A symbol with no records yields idle and a nil record. Pure read.
func (t *Tracker) Status(ctx context.Context, symbol string) (domain.JobStatus, *domain.AnalysisJob, error) {
	latest, err := t.Jobs.GetLatest(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return domain.JobStatusIdle, nil, fmt.Errorf("query latest job for %s: %w", symbol, err)
	}
	if latest == nil {
		return domain.JobStatusIdle, nil, nil
	}
	return latest.Status, latest, nil
}

// History returns all job records for a symbol, newest first.
func (t *Tracker) History(ctx context.Context, symbol string) ([]*domain.AnalysisJob, error) {
	return t.Jobs.ListBySymbol(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}

// Wait blocks until all in-flight runners have finished. Used on shutdown
// and in tests.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
