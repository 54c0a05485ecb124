package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"emitenwatch/internal/domain"
)

// analysisJobRepository implements domain.AnalysisJobRepository
type analysisJobRepository struct {
	db *DB
}

// NewAnalysisJobRepository creates a new analysis job repository
func NewAnalysisJobRepository(db *DB) domain.AnalysisJobRepository {
	return &analysisJobRepository{db: db}
}

// Create inserts a new job record
func (r *analysisJobRepository) Create(ctx context.Context, job *domain.AnalysisJob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs (id, symbol, status, context, result, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID.String(), job.Symbol, string(job.Status), job.Context, job.Result, job.ErrorMessage,
		job.CreatedAt.UnixNano(), job.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create analysis job: %w", err)
	}
	return nil
}

// UpdateStatus advances the status of an existing record
func (r *analysisJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, result, errorMessage string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = ?, result = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, string(status), result, errorMessage, time.Now().UnixNano(), id.String())
	if err != nil {
		return fmt.Errorf("failed to update analysis job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("analysis job %s not found", id)
	}
	return nil
}

// GetLatest returns the most recently created record for a symbol
func (r *analysisJobRepository) GetLatest(ctx context.Context, symbol string) (*domain.AnalysisJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, symbol, status, context, result, error_message, created_at, updated_at
		FROM analysis_jobs
		WHERE symbol = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, symbol)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

// ListBySymbol returns all records for a symbol, newest first
func (r *analysisJobRepository) ListBySymbol(ctx context.Context, symbol string) ([]*domain.AnalysisJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, symbol, status, context, result, error_message, created_at, updated_at
		FROM analysis_jobs
		WHERE symbol = ?
		ORDER BY created_at DESC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.AnalysisJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis jobs: %w", err)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.AnalysisJob, error) {
	var job domain.AnalysisJob
	var idStr, statusStr string
	var createdAt, updatedAt int64

	err := row.Scan(&idStr, &job.Symbol, &statusStr, &job.Context, &job.Result, &job.ErrorMessage, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan analysis job: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job id: %w", err)
	}
	job.ID = id
	job.Status = domain.JobStatus(statusStr)
	job.CreatedAt = time.Unix(0, createdAt)
	job.UpdatedAt = time.Unix(0, updatedAt)
	return &job, nil
}
