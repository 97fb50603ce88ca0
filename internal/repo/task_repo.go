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

// TaskRepo — репозиторий для работы с tasks.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create создаёт новый task.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, job_id, kind, processor_sig, attempt, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.JobID,
		task.Kind,
		task.ProcessorSig,
		task.Attempt,
		task.Status,
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID возвращает task по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, job_id, kind, processor_sig, attempt, status, result, progress,
		       started_at, finished_at, created_at
		FROM tasks
		WHERE id = $1
	`
	return r.scanTask(r.pool.QueryRow(ctx, query, id))
}

// ListByJobID возвращает все tasks job в порядке создания.
func (r *TaskRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	query := `
		SELECT id, job_id, kind, processor_sig, attempt, status, result, progress,
		       started_at, finished_at, created_at
		FROM tasks
		WHERE job_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by job_id: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := r.scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Update обновляет task.
func (r *TaskRepo) Update(ctx context.Context, task *domain.Task) error {
	resultJSON, err := json.Marshal(task.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	progressJSON, err := marshalProgress(task.Progress)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET attempt = $2, status = $3, result = $4, progress = $5,
		    started_at = $6, finished_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Attempt,
		task.Status,
		resultJSON,
		progressJSON,
		task.StartedAt,
		task.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProgress обновляет только прогресс выполняющегося task.
// Вызывается часто и с чужого потока: отдельный узкий UPDATE,
// чтобы не гонять весь result.
func (r *TaskRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress *domain.TaskProgress) error {
	progressJSON, err := marshalProgress(progress)
	if err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE tasks SET progress = $2 WHERE id = $1
	`, id, progressJSON)
	if err != nil {
		return fmt.Errorf("update task progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQueued возвращает tasks в статусе QUEUED.
// Polling-fallback воркера, когда MQ недоступен.
func (r *TaskRepo) ListQueued(ctx context.Context, limit int) ([]domain.Task, error) {
	query := `
		SELECT id, job_id, kind, processor_sig, attempt, status, result, progress,
		       started_at, finished_at, created_at
		FROM tasks
		WHERE status = 'QUEUED'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := r.scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// CountByJobAndStatus возвращает количество tasks job в статусе.
func (r *TaskRepo) CountByJobAndStatus(ctx context.Context, jobID uuid.UUID, status domain.TaskStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tasks WHERE job_id = $1 AND status = $2
	`, jobID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

// --- Helpers ---

func marshalProgress(progress *domain.TaskProgress) ([]byte, error) {
	if progress == nil {
		return nil, nil
	}
	raw, err := json.Marshal(progress)
	if err != nil {
		return nil, fmt.Errorf("marshal progress: %w", err)
	}
	return raw, nil
}

func (r *TaskRepo) scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var resultJSON, progressJSON []byte

	err := row.Scan(
		&task.ID,
		&task.JobID,
		&task.Kind,
		&task.ProcessorSig,
		&task.Attempt,
		&task.Status,
		&resultJSON,
		&progressJSON,
		&task.StartedAt,
		&task.FinishedAt,
		&task.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &task.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if progressJSON != nil {
		task.Progress = &domain.TaskProgress{}
		if err := json.Unmarshal(progressJSON, task.Progress); err != nil {
			return nil, fmt.Errorf("unmarshal progress: %w", err)
		}
	}

	return &task, nil
}

func (r *TaskRepo) scanTaskFromRows(rows pgx.Rows) (*domain.Task, error) {
	var task domain.Task
	var resultJSON, progressJSON []byte

	err := rows.Scan(
		&task.ID,
		&task.JobID,
		&task.Kind,
		&task.ProcessorSig,
		&task.Attempt,
		&task.Status,
		&resultJSON,
		&progressJSON,
		&task.StartedAt,
		&task.FinishedAt,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &task.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if progressJSON != nil {
		task.Progress = &domain.TaskProgress{}
		if err := json.Unmarshal(progressJSON, task.Progress); err != nil {
			return nil, fmt.Errorf("unmarshal progress: %w", err)
		}
	}

	return &task, nil
}
