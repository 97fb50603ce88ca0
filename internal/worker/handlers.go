package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/mq"
	"github.com/shaiso/autopkg/internal/repo"
)

// handleTaskReady обрабатывает событие о новой task из очереди tasks.ready.
func (w *Worker) handleTaskReady(ctx context.Context, delivery *mq.Delivery) error {
	// Парсим payload
	payload, err := mq.ParsePayload[mq.TaskReadyPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse task.ready payload", "error", err)
		return err
	}

	w.logger.Debug("received task.ready event",
		"task_id", payload.TaskID,
		"job_id", payload.JobID,
	)

	// Обрабатываем task
	if err := w.processTask(ctx, payload.TaskID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrTaskNotQueued) {
			w.logger.Debug("task not processed", "task_id", payload.TaskID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process task", "task_id", payload.TaskID, "error", err)
		return err
	}

	return nil
}

// processTask загружает task из БД, выполняет и обрабатывает исход.
func (w *Worker) processTask(ctx context.Context, taskID uuid.UUID) error {
	// 1. Загружаем task из БД
	task, err := w.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return fmt.Errorf("get task: %w", err)
	}

	// 2. Проверяем статус
	if task.Status != domain.TaskStatusQueued {
		return ErrTaskNotQueued
	}

	// 3. Загружаем job и его границу
	job, err := w.jobRepo.GetByID(ctx, task.JobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, task.JobID)
		}
		return fmt.Errorf("get job: %w", err)
	}
	boundary, err := w.boundaries.GetByName(ctx, job.BoundaryName)
	if err != nil {
		return fmt.Errorf("get boundary %s: %w", job.BoundaryName, err)
	}

	// 4. Помечаем как running
	task.MarkRunning()
	if err := w.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("update task to running: %w", err)
	}

	w.logger.Info("task started",
		"task_id", task.ID,
		"job_id", task.JobID,
		"kind", task.Kind,
		"processor", task.ProcessorSig,
		"attempt", task.Attempt,
	)

	// 5. Выполняем
	executor, err := w.registry.Get(task.Kind)
	if err != nil {
		return err
	}
	outcome, err := executor.Execute(ctx, &Request{Job: job, Boundary: boundary, Task: task})
	if err != nil {
		// Инфраструктурный сбой: вернуть задачу в QUEUED,
		// попытку не засчитываем
		task.Status = domain.TaskStatusQueued
		task.StartedAt = nil
		task.Progress = nil
		if updateErr := w.taskRepo.Update(ctx, task); updateErr != nil {
			return fmt.Errorf("reset task after executor error: %w", updateErr)
		}
		return fmt.Errorf("execute task: %w", err)
	}

	// 6. Отложенный повтор: сигнатура занята
	if outcome.Retry {
		task.ResetForRetry()
		if err := w.taskRepo.Update(ctx, task); err != nil {
			return fmt.Errorf("update task for retry: %w", err)
		}
		tasksRetriedTotal.Inc()

		w.logger.Info("task deferred",
			"task_id", task.ID,
			"job_id", task.JobID,
			"kind", task.Kind,
			"attempt", task.Attempt,
		)

		if w.publisher != nil {
			if err := w.publisher.PublishTaskRetry(ctx, task.ID, task.JobID); err != nil {
				w.logger.Warn("failed to publish task.retry, polling will pick it up",
					"task_id", task.ID, "error", err)
			}
		}
		return nil
	}

	// 7. Разрешение (включая записи "failed"/"skipped")
	task.MarkResolved(outcome.Result)
	if err := w.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("update task to resolved: %w", err)
	}

	tasksResolvedTotal.Inc()
	for _, value := range task.Result {
		switch domain.EntryOutcome(value) {
		case domain.OutcomeFailed:
			tasksFailedTotal.Inc()
		case domain.OutcomeSkipped:
			tasksSkippedTotal.Inc()
		}
	}

	w.logger.Info("task resolved",
		"task_id", task.ID,
		"job_id", task.JobID,
		"kind", task.Kind,
		"processor", task.ProcessorSig,
		"attempt", task.Attempt,
		"duration", task.Duration(),
	)

	return w.publishCompletion(ctx, task)
}

// publishCompletion публикует событие task.completed.
func (w *Worker) publishCompletion(ctx context.Context, task *domain.Task) error {
	if w.publisher == nil {
		w.logger.Warn("publisher not available, skipping task.completed publish",
			"task_id", task.ID,
		)
		return nil
	}

	payload := mq.TaskCompletedPayload{
		TaskID:       task.ID,
		JobID:        task.JobID,
		Kind:         string(task.Kind),
		ProcessorSig: task.ProcessorSig,
		Attempt:      task.Attempt,
	}

	if err := w.publisher.PublishTaskCompleted(ctx, payload); err != nil {
		w.logger.Warn("failed to publish task.completed",
			"task_id", task.ID,
			"error", err,
		)
		// Не возвращаем ошибку — task обновлён в БД, оркестратор подхватит через polling
	}

	return nil
}
