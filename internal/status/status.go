// Package status строит внешний статус job из состояния его задач.
//
// Агрегатор ничего не персистит: модель собирается заново на каждый
// опрос, источником истины остаются таблицы jobs и tasks.
package status

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/repo"
)

// JobStore — чтение jobs. Реализуется repo.JobRepo.
type JobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// TaskStore — чтение задач job. Реализуется repo.TaskRepo.
type TaskStore interface {
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error)
}

// Aggregator собирает domain.JobGroupStatus по ID job.
type Aggregator struct {
	jobs  JobStore
	tasks TaskStore
}

// New создаёт Aggregator.
func New(jobs JobStore, tasks TaskStore) *Aggregator {
	return &Aggregator{jobs: jobs, tasks: tasks}
}

// JobGroupStatus возвращает статус job по его ID.
//
// Неизвестный ID — не ошибка: клиент мог опросить статус раньше, чем
// заявка была зафиксирована. Такой job отображается как пустой PENDING.
func (a *Aggregator) JobGroupStatus(ctx context.Context, jobID uuid.UUID) (*domain.JobGroupStatus, error) {
	job, err := a.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return &domain.JobGroupStatus{
				JobGroupStatus:     domain.GroupStatePending,
				JobGroupProcessors: []domain.JobStatus{},
			}, nil
		}
		return nil, err
	}

	tasks, err := a.tasks.ListByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	expired := job.State == domain.JobStateExpired

	processors := make([]domain.JobStatus, 0, len(job.Processors))
	seen := make(map[string]bool, len(job.Processors))
	resolved := 0
	for i := range tasks {
		task := &tasks[i]
		if task.Kind != domain.TaskKindProcessor {
			continue
		}
		seen[task.ProcessorSig] = true
		if task.IsFinished() {
			resolved++
		}
		processors = append(processors, processorStatus(task, expired))
	}

	// Процессоры без задач (стадия группы ещё не диспетчеризована)
	for _, sig := range job.Processors {
		if seen[sig] {
			continue
		}
		state := domain.ProcessorStatePending
		if expired {
			state = domain.ProcessorStateRevoked
		}
		processors = append(processors, domain.JobStatus{
			ProcessorName: sig,
			JobStatus:     state,
		})
	}

	total := len(job.Processors)
	groupState := domain.GroupStatePending
	if job.State == domain.JobStateComplete || (total > 0 && resolved == total) {
		groupState = domain.GroupStateComplete
	}

	return &domain.JobGroupStatus{
		JobGroupStatus:          groupState,
		JobGroupPercentComplete: percentComplete(resolved, total),
		JobGroupProcessors:      processors,
	}, nil
}

// percentComplete — доля разрешённых процессоров группы.
func percentComplete(resolved, total int) int {
	if total == 0 {
		return 0
	}
	return resolved * 100 / total
}

// processorStatus сводит задачу-процессор к внешнему статусу.
func processorStatus(task *domain.Task, expired bool) domain.JobStatus {
	s := domain.JobStatus{
		ProcessorName: task.ProcessorSig,
		JobID:         task.ID.String(),
	}

	switch task.Status {
	case domain.TaskStatusQueued:
		switch {
		case expired:
			s.JobStatus = domain.ProcessorStateRevoked
		case task.Attempt > 0:
			s.JobStatus = domain.ProcessorStateRetry
		default:
			s.JobStatus = domain.ProcessorStatePending
		}

	case domain.TaskStatusRunning:
		s.JobStatus = domain.ProcessorStateExecuting
		if task.Progress != nil {
			s.JobProgress = &domain.JobProgress{
				PercentComplete: task.Progress.Percent,
				CurrentTask:     task.Progress.CurrentTask,
			}
		}

	case domain.TaskStatusResolved:
		s.JobStatus = resolvedState(task)
		s.JobResult = task.Result
	}

	return s
}

// resolvedState классифицирует разрешённую задачу по её записи:
// ключ "failed" — FAILURE, "skipped" — SKIPPED, иначе SUCCESS.
func resolvedState(task *domain.Task) domain.ProcessorState {
	value, ok := task.Result[task.ProcessorSig]
	if !ok {
		return domain.ProcessorStateSuccess
	}
	switch domain.EntryOutcome(value) {
	case domain.OutcomeFailed:
		return domain.ProcessorStateFailure
	case domain.OutcomeSkipped:
		return domain.ProcessorStateSkipped
	default:
		return domain.ProcessorStateSuccess
	}
}
