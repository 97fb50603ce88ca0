package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/mq"
	"github.com/shaiso/autopkg/internal/repo"
)

// defaultJobExpiry — срок запуска для jobs, созданных по расписанию.
// Просроченный регулярный job отбрасывается: следующее срабатывание
// пересоберёт пакет заново.
const defaultJobExpiry = time.Hour

// Scheduler — планировщик, создающий jobs по due schedules.
type Scheduler struct {
	scheduleRepo *repo.ScheduleRepo
	jobRepo      *repo.JobRepo
	publisher    *mq.Publisher
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Scheduler.
type Config struct {
	ScheduleRepo *repo.ScheduleRepo
	JobRepo      *repo.JobRepo
	Publisher    *mq.Publisher
	Logger       *slog.Logger
	BatchSize    int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		scheduleRepo: cfg.ScheduleRepo,
		jobRepo:      cfg.JobRepo,
		publisher:    cfg.Publisher,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule создаёт job
// 3. Обновляет next_due_at
// 4. Публикует job.submitted в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
// Наложение с ещё выполняющимся предыдущим запуском безопасно:
// повторные задачи упрутся в блокировки сигнатур и разрешатся
// пропуском.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now().UTC()

	// 1. Находим due schedules
	schedules, err := s.scheduleRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	// 2. Обрабатываем каждый schedule
	var created int
	for i := range schedules {
		sched := &schedules[i]

		if err := s.processSchedule(ctx, sched, now); err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}
		created++
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"jobs_created", created,
	)

	return nil
}

// processSchedule создаёт job для одного schedule и переносит
// next_due_at на следующее срабатывание.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) error {
	// 1. Создаём job
	expiresAt := now.Add(defaultJobExpiry)
	job := &domain.Job{
		ID:           uuid.New(),
		BoundaryName: sched.BoundaryName,
		Processors:   sched.Processors,
		State:        domain.JobStatePending,
		ExpiresAt:    &expiresAt,
		SubmittedAt:  now,
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	s.logger.Info("created job from schedule",
		"job_id", job.ID,
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"boundary", sched.BoundaryName,
	)

	// 2. Вычисляем следующее срабатывание
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// Выражение испортилось после создания — next_due_at не трогаем
		s.logger.Error("failed to calculate next due",
			"schedule_id", sched.ID,
			"error", err,
		)
		return nil
	}

	// 3. Обновляем schedule
	sched.NextDueAt = nextDue
	sched.LastJobID = &job.ID
	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}

	// 4. Публикуем событие в RabbitMQ
	if s.publisher != nil {
		if err := s.publisher.PublishJobSubmitted(ctx, job.ID); err != nil {
			// Не фатальная ошибка — job уже создан в БД
			// Orchestrator может забрать его через polling
			s.logger.Warn("failed to publish job.submitted",
				"job_id", job.ID,
				"error", err,
			)
		}
	}

	return nil
}
