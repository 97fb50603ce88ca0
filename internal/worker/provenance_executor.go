package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/locks"
	"github.com/shaiso/autopkg/internal/processors"
	"github.com/shaiso/autopkg/internal/storage"
)

// TaskLister — минимальный интерфейс чтения задач job.
// Реализуется repo.TaskRepo.
type TaskLister interface {
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error)
}

// ProvenanceExecutor выполняет финальные задачи generate_provenance:
// собирает результаты всех разрешённых задач job и фиксирует их
// в provenance-файле и datapackage границы.
//
// Финализация никогда не разрешается ошибкой: contention на файлах
// границы и сбои слияния приводят к отложенному повтору, пока job
// не истечёт.
type ProvenanceExecutor struct {
	locks   *locks.Manager
	backend storage.Backend
	tasks   TaskLister
	logger  *slog.Logger
}

// NewProvenanceExecutor создаёт executor финализации.
func NewProvenanceExecutor(lockMgr *locks.Manager, backend storage.Backend, tasks TaskLister, logger *slog.Logger) *ProvenanceExecutor {
	return &ProvenanceExecutor{
		locks:   lockMgr,
		backend: backend,
		tasks:   tasks,
		logger:  logger,
	}
}

// Execute финализирует job.
func (e *ProvenanceExecutor) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	signature := req.Task.LockSignature(req.Job.BoundaryName)

	acquired, err := e.locks.Acquire(ctx, signature, req.Task.ID.String())
	if err != nil {
		return nil, fmt.Errorf("acquire provenance lock: %w", err)
	}
	if !acquired {
		e.logger.Info("provenance signature locked, deferring", "signature", signature)
		return &Outcome{Retry: true}, nil
	}
	defer func() {
		if err := e.locks.Release(ctx, signature); err != nil {
			e.logger.Warn("failed to release provenance lock", "signature", signature, "error", err)
		}
	}()

	// Собираем результаты разрешённых задач предыдущих стадий
	all, err := e.tasks.ListByJobID(ctx, req.Job.ID)
	if err != nil {
		return nil, fmt.Errorf("list job tasks: %w", err)
	}
	entries := make([]domain.ProvenanceEntry, 0, len(all))
	for i := range all {
		task := &all[i]
		if task.Kind == domain.TaskKindProvenance {
			continue
		}
		if task.Status != domain.TaskStatusResolved || task.Result == nil {
			continue
		}
		entries = append(entries, domain.ProvenanceEntry(task.Result))
	}

	writer := processors.NewProvenanceWriter(req.Job.BoundaryName, e.backend, e.logger)
	final, err := writer.Write(ctx, entries)
	if err != nil {
		// Не терминальная ошибка: повторим, когда хранилище оживёт
		e.logger.Error("provenance finalisation failed, deferring",
			"boundary", req.Job.BoundaryName, "error", err)
		return &Outcome{Retry: true}, nil
	}

	return &Outcome{Result: map[string]any(final)}, nil
}
