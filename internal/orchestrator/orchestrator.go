package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/mq"
	"github.com/shaiso/autopkg/internal/repo"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// Orchestrator управляет выполнением jobs.
//
// Orchestrator — центральный компонент системы, который:
//   - Получает новые jobs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет активные jobs в БД (polling fallback)
//   - Отбрасывает jobs с истёкшим сроком запуска (EXPIRED)
//   - Создаёт tasks для стадий фиксированного DAG
//   - Отслеживает разрешение tasks
//   - Финализирует jobs (COMPLETE)
type Orchestrator struct {
	// Repositories
	jobRepo  *repo.JobRepo
	taskRepo *repo.TaskRepo

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Active jobs — jobs в процессе выполнения (jobID → state)
	activeJobs map[uuid.UUID]*JobExecution
	mu         sync.RWMutex

	// Consumers
	jobConsumer  *mq.Consumer
	taskConsumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Repositories
	JobRepo  *repo.JobRepo
	TaskRepo *repo.TaskRepo

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество jobs за один poll (default: 100)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		jobRepo:      cfg.JobRepo,
		taskRepo:     cfg.TaskRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		activeJobs:   make(map[uuid.UUID]*JobExecution),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для jobs.submitted
//   - Consumer для tasks.completed
//   - Polling горутину для fallback
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
	)

	// Создаём consumers
	o.jobConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueJobsSubmitted),
		Handler:  o.handleJobSubmitted,
		Prefetch: 10,
	})

	o.taskConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueTasksCompleted),
		Handler:  o.handleTaskCompleted,
		Prefetch: 10,
	})

	// Запускаем job consumer
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.jobConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("job consumer error", "error", err)
		}
	}()

	// Запускаем task consumer
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.taskConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("task consumer error", "error", err)
		}
	}()

	// Запускаем polling
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	// Останавливаем consumers
	if o.jobConsumer != nil {
		o.jobConsumer.Stop()
	}
	if o.taskConsumer != nil {
		o.taskConsumer.Stop()
	}

	// Ждём завершения горутин
	o.wg.Wait()

	o.logger.Info("orchestrator stopped",
		"active_jobs", len(o.activeJobs),
	)
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем jobs созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
//
// Подхватывает две категории jobs:
//   - PENDING — ещё не стартовали (событие jobs.submitted потеряно)
//   - RUNNING без состояния в памяти — рестарт оркестратора либо
//     потерянное событие tasks.completed
func (o *Orchestrator) poll(ctx context.Context) {
	jobs, err := o.jobRepo.ListActive(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list active jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	o.logger.Debug("poll found active jobs", "count", len(jobs))

	for i := range jobs {
		job := &jobs[i]

		switch job.State {
		case domain.JobStatePending:
			if o.isJobActive(job.ID) {
				continue
			}
			if err := o.processJob(ctx, job.ID); err != nil {
				o.logger.Error("failed to process job from poll",
					"job_id", job.ID,
					"error", err,
				)
			}

		case domain.JobStateRunning:
			if err := o.advanceJob(ctx, job.ID); err != nil {
				o.logger.Error("failed to advance job from poll",
					"job_id", job.ID,
					"error", err,
				)
			}
		}
	}
}

// isJobActive проверяет, находится ли job в обработке.
func (o *Orchestrator) isJobActive(jobID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.activeJobs[jobID]
	return exists
}

// getActiveJob возвращает активный JobExecution.
func (o *Orchestrator) getActiveJob(jobID uuid.UUID) *JobExecution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.activeJobs[jobID]
}

// addActiveJob добавляет job в активные.
func (o *Orchestrator) addActiveJob(exec *JobExecution) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeJobs[exec.JobID()]; exists {
		return ErrJobAlreadyActive
	}

	o.activeJobs[exec.JobID()] = exec
	return nil
}

// removeActiveJob удаляет job из активных.
func (o *Orchestrator) removeActiveJob(jobID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeJobs, jobID)
}

// ActiveJobsCount возвращает количество активных jobs.
func (o *Orchestrator) ActiveJobsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeJobs)
}

// GetActiveJobStats возвращает статистику по активному job.
func (o *Orchestrator) GetActiveJobStats(jobID uuid.UUID) (JobStats, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	exec, exists := o.activeJobs[jobID]
	if !exists {
		return JobStats{}, false
	}

	return exec.Stats(), true
}
