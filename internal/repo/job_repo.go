package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/autopkg/internal/domain"
)

// JobRepo — репозиторий для работы с jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Create создаёт новый job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	processorsJSON, err := json.Marshal(job.Processors)
	if err != nil {
		return fmt.Errorf("marshal processors: %w", err)
	}

	query := `
		INSERT INTO jobs (id, boundary_name, processors, state, expires_at, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.BoundaryName,
		processorsJSON,
		job.State,
		job.ExpiresAt,
		job.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, boundary_name, processors, state, error,
		       expires_at, started_at, finished_at, submitted_at
		FROM jobs
		WHERE id = $1
	`
	return r.scanJob(r.pool.QueryRow(ctx, query, id))
}

// Update обновляет job.
func (r *JobRepo) Update(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs
		SET state = $2, error = $3, started_at = $4, finished_at = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.State,
		nullString(job.Error),
		job.StartedAt,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive возвращает незавершённые jobs (PENDING, RUNNING).
// Нужен оркестратору для восстановления состояния после рестарта.
func (r *JobRepo) ListActive(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		SELECT id, boundary_name, processors, state, error,
		       expires_at, started_at, finished_at, submitted_at
		FROM jobs
		WHERE state IN ('PENDING', 'RUNNING')
		ORDER BY submitted_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// List возвращает список jobs с фильтрацией.
func (r *JobRepo) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `
		SELECT id, boundary_name, processors, state, error,
		       expires_at, started_at, finished_at, submitted_at
		FROM jobs
		WHERE ($1::text IS NULL OR boundary_name = $1)
		  AND ($2::text IS NULL OR state = $2::job_state)
		ORDER BY submitted_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.BoundaryName),
		nullString(string(filter.State)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// --- Helpers ---

// JobFilter — параметры фильтрации jobs.
type JobFilter struct {
	BoundaryName string
	State        domain.JobState
	Limit        int
	Offset       int
}

func (r *JobRepo) scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var processorsJSON []byte
	var jobError *string

	err := row.Scan(
		&job.ID,
		&job.BoundaryName,
		&processorsJSON,
		&job.State,
		&jobError,
		&job.ExpiresAt,
		&job.StartedAt,
		&job.FinishedAt,
		&job.SubmittedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if processorsJSON != nil {
		if err := json.Unmarshal(processorsJSON, &job.Processors); err != nil {
			return nil, fmt.Errorf("unmarshal processors: %w", err)
		}
	}
	if jobError != nil {
		job.Error = *jobError
	}

	return &job, nil
}

func (r *JobRepo) scanJobFromRows(rows pgx.Rows) (*domain.Job, error) {
	var job domain.Job
	var processorsJSON []byte
	var jobError *string

	err := rows.Scan(
		&job.ID,
		&job.BoundaryName,
		&processorsJSON,
		&job.State,
		&jobError,
		&job.ExpiresAt,
		&job.StartedAt,
		&job.FinishedAt,
		&job.SubmittedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if processorsJSON != nil {
		if err := json.Unmarshal(processorsJSON, &job.Processors); err != nil {
			return nil, fmt.Errorf("unmarshal processors: %w", err)
		}
	}
	if jobError != nil {
		job.Error = *jobError
	}

	return &job, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
