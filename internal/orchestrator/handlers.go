package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/mq"
	"github.com/shaiso/autopkg/internal/repo"
)

// handleJobSubmitted обрабатывает событие о новом job.
func (o *Orchestrator) handleJobSubmitted(ctx context.Context, delivery *mq.Delivery) error {
	// Парсим payload
	payload, err := mq.ParsePayload[mq.JobSubmittedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse job.submitted payload", "error", err)
		return err
	}

	o.logger.Debug("received job.submitted event", "job_id", payload.JobID)

	// Проверяем, не обрабатывается ли уже
	if o.isJobActive(payload.JobID) {
		o.logger.Debug("job already active, skipping", "job_id", payload.JobID)
		return nil
	}

	// Обрабатываем job
	if err := o.processJob(ctx, payload.JobID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrJobNotPending) || errors.Is(err, ErrJobAlreadyActive) {
			o.logger.Debug("job not processed", "job_id", payload.JobID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process job", "job_id", payload.JobID, "error", err)
		return err
	}

	return nil
}

// handleTaskCompleted обрабатывает событие о разрешённой task.
func (o *Orchestrator) handleTaskCompleted(ctx context.Context, delivery *mq.Delivery) error {
	// Парсим payload
	payload, err := mq.ParsePayload[mq.TaskCompletedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse task.completed payload", "error", err)
		return err
	}

	o.logger.Debug("received task.completed event",
		"task_id", payload.TaskID,
		"job_id", payload.JobID,
		"kind", payload.Kind,
		"processor", payload.ProcessorSig,
	)

	// Обрабатываем разрешение task
	if err := o.processTaskCompleted(ctx, payload); err != nil {
		o.logger.Error("failed to process task completion",
			"task_id", payload.TaskID,
			"job_id", payload.JobID,
			"error", err,
		)
		return err
	}

	return nil
}

// processJob обрабатывает новый job.
func (o *Orchestrator) processJob(ctx context.Context, jobID uuid.UUID) error {
	// 1. Загружаем job из БД
	job, err := o.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return fmt.Errorf("get job: %w", err)
	}

	// 2. Проверяем состояние
	if job.State != domain.JobStatePending {
		return ErrJobNotPending
	}

	// 3. Истёкший срок: отбрасываем вместо позднего запуска
	if job.IsExpired(time.Now().UTC()) {
		return o.expireJob(ctx, job)
	}

	// 4. Создаём состояние выполнения
	exec := NewJobExecution(job)

	// 5. Добавляем в активные jobs
	if err := o.addActiveJob(exec); err != nil {
		return err
	}

	// 6. Переводим job в RUNNING
	job.MarkRunning()
	if err := o.jobRepo.Update(ctx, job); err != nil {
		o.removeActiveJob(jobID)
		return fmt.Errorf("update job to running: %w", err)
	}

	o.logger.Info("job started",
		"job_id", jobID,
		"boundary", job.BoundaryName,
		"processors", len(job.Processors),
	)

	// 7. Диспетчеризуем первую стадию
	if err := o.dispatchSetup(ctx, exec); err != nil {
		o.logger.Error("failed to dispatch setup task", "job_id", jobID, "error", err)
		// Не удаляем из активных — poll попробует продвинуть позже
	}

	return nil
}

// processTaskCompleted обрабатывает разрешение task.
func (o *Orchestrator) processTaskCompleted(ctx context.Context, payload mq.TaskCompletedPayload) error {
	// 1. Получаем активный JobExecution
	exec := o.getActiveJob(payload.JobID)

	// Если job не в памяти, пытаемся восстановить
	if exec == nil {
		var err error
		exec, err = o.restoreJobExecution(ctx, payload.JobID)
		if err != nil {
			return fmt.Errorf("restore job state: %w", err)
		}
		if exec == nil {
			// Job уже завершён или не существует
			o.logger.Debug("job not active and cannot restore", "job_id", payload.JobID)
			return nil
		}
	}

	// 2. Загружаем task из БД (для получения актуального результата)
	task, err := o.taskRepo.GetByID(ctx, payload.TaskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, payload.TaskID)
		}
		return fmt.Errorf("get task: %w", err)
	}
	exec.Observe(task)

	// 3. Продвигаем DAG
	return o.advance(ctx, exec)
}

// advanceJob продвигает RUNNING job, восстанавливая состояние при
// необходимости. Используется polling fallback.
func (o *Orchestrator) advanceJob(ctx context.Context, jobID uuid.UUID) error {
	exec := o.getActiveJob(jobID)
	if exec == nil {
		var err error
		exec, err = o.restoreJobExecution(ctx, jobID)
		if err != nil {
			return err
		}
		if exec == nil {
			return nil
		}
	} else {
		// Обновляем состояние из БД: события могли потеряться
		tasks, err := o.taskRepo.ListByJobID(ctx, jobID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		exec.RestoreFromTasks(tasks)
	}

	return o.advance(ctx, exec)
}

// stageAction — следующий шаг продвижения DAG.
type stageAction int

const (
	actionNone stageAction = iota
	actionDispatchSetup
	actionDispatchGroup
	actionDispatchProvenance
	actionComplete
)

// nextAction выбирает следующий шаг по состоянию выполнения.
//
// Решения опираются на недостающие задачи, а не на факт первой
// диспетчеризации: потерянный setup и частично созданная группа
// добираются повторным вызовом (dispatchGroup создаёт только
// недостающие сигнатуры).
func nextAction(exec *JobExecution) stageAction {
	if !exec.SetupDispatched() {
		return actionDispatchSetup
	}

	// Все стадии гейтятся разрешением setup: GroupResolved для пустой
	// группы истинна тривиально
	if !exec.SetupResolved() {
		return actionNone
	}

	switch {
	case exec.ProvenanceResolved():
		return actionComplete

	case exec.GroupResolved() && !exec.ProvenanceDispatched():
		return actionDispatchProvenance

	case len(exec.MissingGroupSignatures()) > 0:
		return actionDispatchGroup
	}

	return actionNone
}

// advance диспетчеризует следующую стадию DAG, если предыдущая
// разрешена, и финализирует job после финальной стадии.
func (o *Orchestrator) advance(ctx context.Context, exec *JobExecution) error {
	switch nextAction(exec) {
	case actionDispatchSetup:
		return o.dispatchSetup(ctx, exec)

	case actionComplete:
		return o.completeJob(ctx, exec)

	case actionDispatchProvenance:
		return o.dispatchProvenance(ctx, exec)

	case actionDispatchGroup:
		return o.dispatchGroup(ctx, exec)
	}

	return nil
}

// dispatchSetup создаёт задачу boundary_setup.
func (o *Orchestrator) dispatchSetup(ctx context.Context, exec *JobExecution) error {
	task, err := o.dispatchTask(ctx, exec, domain.TaskKindBoundarySetup, "")
	if err != nil {
		return err
	}
	exec.SetSetupTask(task)
	return nil
}

// dispatchGroup создаёт задачи группы процессоров.
//
// Пустая группа допустима: job сводится к setup и provenance.
func (o *Orchestrator) dispatchGroup(ctx context.Context, exec *JobExecution) error {
	missing := exec.MissingGroupSignatures()

	o.logger.Debug("dispatching processor group",
		"job_id", exec.JobID(),
		"count", len(missing),
	)

	for _, sig := range missing {
		task, err := o.dispatchTask(ctx, exec, domain.TaskKindProcessor, sig)
		if err != nil {
			o.logger.Error("failed to dispatch processor task",
				"job_id", exec.JobID(),
				"processor", sig,
				"error", err,
			)
			// Продолжаем с остальными; недостающие доберёт poll
			continue
		}
		exec.SetGroupTask(task)
	}

	return nil
}

// dispatchProvenance создаёт задачу финальной стадии.
func (o *Orchestrator) dispatchProvenance(ctx context.Context, exec *JobExecution) error {
	task, err := o.dispatchTask(ctx, exec, domain.TaskKindProvenance, "")
	if err != nil {
		return err
	}
	exec.SetProvenanceTask(task)
	return nil
}

// dispatchTask создаёт task в БД и публикует событие для Worker.
func (o *Orchestrator) dispatchTask(ctx context.Context, exec *JobExecution, kind domain.TaskKind, processorSig string) (*domain.Task, error) {
	task := &domain.Task{
		ID:           uuid.New(),
		JobID:        exec.JobID(),
		Kind:         kind,
		ProcessorSig: processorSig,
		Attempt:      0,
		Status:       domain.TaskStatusQueued,
		CreatedAt:    time.Now().UTC(),
	}

	// Сохраняем в БД
	if err := o.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	tasksDispatchedTotal.Inc()

	// Публикуем событие для Worker
	if o.publisher != nil {
		if err := o.publisher.PublishTaskReady(ctx, task.ID, task.JobID); err != nil {
			o.logger.Warn("failed to publish task.ready",
				"task_id", task.ID,
				"job_id", exec.JobID(),
				"error", err,
			)
			// Task создан в БД — Worker может забрать через polling
		}
	}

	o.logger.Debug("task dispatched",
		"task_id", task.ID,
		"job_id", exec.JobID(),
		"kind", kind,
		"processor", processorSig,
	)

	return task, nil
}

// completeJob финализирует job.
//
// COMPLETE означает "все стадии разрешены": отдельные процессоры
// могут нести в записях provenance "failed" или "skipped".
func (o *Orchestrator) completeJob(ctx context.Context, exec *JobExecution) error {
	job := exec.Job

	if job.IsFinished() {
		o.removeActiveJob(job.ID)
		return nil
	}

	job.MarkComplete()
	if err := o.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	jobsCompletedTotal.Inc()

	o.logger.Info("job complete",
		"job_id", job.ID,
		"boundary", job.BoundaryName,
		"duration", job.Duration(),
	)

	// Удаляем из активных
	o.removeActiveJob(job.ID)

	return nil
}

// expireJob отбрасывает job с истёкшим сроком запуска.
func (o *Orchestrator) expireJob(ctx context.Context, job *domain.Job) error {
	reason := fmt.Sprintf("job not started before %s", job.ExpiresAt.Format(time.RFC3339))
	job.MarkExpired(reason)

	if err := o.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job to expired: %w", err)
	}
	jobsExpiredTotal.Inc()

	o.logger.Warn("job expired",
		"job_id", job.ID,
		"boundary", job.BoundaryName,
		"expired_at", job.ExpiresAt,
	)

	return nil
}

// restoreJobExecution восстанавливает JobExecution из БД.
// Используется когда tasks.completed приходит для job, которого нет
// в памяти (после рестарта Orchestrator).
func (o *Orchestrator) restoreJobExecution(ctx context.Context, jobID uuid.UUID) (*JobExecution, error) {
	// Загружаем job
	job, err := o.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil // Job не существует
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	// Если job уже завершён — ничего не делаем
	if job.IsFinished() {
		return nil, nil
	}

	// Создаём состояние
	exec := NewJobExecution(job)

	// Загружаем tasks и восстанавливаем состояние
	tasks, err := o.taskRepo.ListByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	exec.RestoreFromTasks(tasks)

	// Добавляем в активные
	if err := o.addActiveJob(exec); err != nil {
		if errors.Is(err, ErrJobAlreadyActive) {
			// Кто-то уже восстановил — возвращаем его
			return o.getActiveJob(jobID), nil
		}
		return nil, err
	}

	o.logger.Info("job state restored",
		"job_id", jobID,
		"stats", exec.Stats(),
	)

	return exec, nil
}
