package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/autopkg/internal/domain"
)

// ScheduleRepo — репозиторий для работы с schedules.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Create создаёт новый schedule.
func (r *ScheduleRepo) Create(ctx context.Context, schedule *domain.Schedule) error {
	processorsJSON, err := json.Marshal(schedule.Processors)
	if err != nil {
		return fmt.Errorf("marshal processors: %w", err)
	}

	query := `
		INSERT INTO schedules (id, name, boundary_name, processors, cron_expr,
		                       timezone, enabled, next_due_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		schedule.ID,
		schedule.Name,
		schedule.BoundaryName,
		processorsJSON,
		schedule.CronExpr,
		schedule.Timezone,
		schedule.Enabled,
		schedule.NextDueAt,
		schedule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByID возвращает schedule по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := `
		SELECT id, name, boundary_name, processors, cron_expr, timezone,
		       enabled, next_due_at, last_job_id, created_at
		FROM schedules
		WHERE id = $1
	`
	return r.scanSchedule(r.pool.QueryRow(ctx, query, id))
}

// List возвращает все schedules.
func (r *ScheduleRepo) List(ctx context.Context, limit, offset int) ([]domain.Schedule, error) {
	query := `
		SELECT id, name, boundary_name, processors, cron_expr, timezone,
		       enabled, next_due_at, last_job_id, created_at
		FROM schedules
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		schedule, err := r.scanScheduleFromRows(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}

// ListDue возвращает schedules, готовые к срабатыванию.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	query := `
		SELECT id, name, boundary_name, processors, cron_expr, timezone,
		       enabled, next_due_at, last_job_id, created_at
		FROM schedules
		WHERE enabled = true
		  AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		schedule, err := r.scanScheduleFromRows(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}

// Update обновляет schedule.
func (r *ScheduleRepo) Update(ctx context.Context, schedule *domain.Schedule) error {
	processorsJSON, err := json.Marshal(schedule.Processors)
	if err != nil {
		return fmt.Errorf("marshal processors: %w", err)
	}

	query := `
		UPDATE schedules
		SET name = $2, boundary_name = $3, processors = $4, cron_expr = $5,
		    timezone = $6, enabled = $7, next_due_at = $8, last_job_id = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		schedule.ID,
		schedule.Name,
		schedule.BoundaryName,
		processorsJSON,
		schedule.CronExpr,
		schedule.Timezone,
		schedule.Enabled,
		schedule.NextDueAt,
		schedule.LastJobID,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет schedule.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled включает/выключает schedule.
func (r *ScheduleRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules SET enabled = $2 WHERE id = $1
	`, id, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func (r *ScheduleRepo) scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var processorsJSON []byte

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.BoundaryName,
		&processorsJSON,
		&s.CronExpr,
		&s.Timezone,
		&s.Enabled,
		&s.NextDueAt,
		&s.LastJobID,
		&s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if processorsJSON != nil {
		if err := json.Unmarshal(processorsJSON, &s.Processors); err != nil {
			return nil, fmt.Errorf("unmarshal processors: %w", err)
		}
	}

	return &s, nil
}

func (r *ScheduleRepo) scanScheduleFromRows(rows pgx.Rows) (*domain.Schedule, error) {
	var s domain.Schedule
	var processorsJSON []byte

	err := rows.Scan(
		&s.ID,
		&s.Name,
		&s.BoundaryName,
		&processorsJSON,
		&s.CronExpr,
		&s.Timezone,
		&s.Enabled,
		&s.NextDueAt,
		&s.LastJobID,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if processorsJSON != nil {
		if err := json.Unmarshal(processorsJSON, &s.Processors); err != nil {
			return nil, fmt.Errorf("unmarshal processors: %w", err)
		}
	}

	return &s, nil
}
