package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/locks"
	"github.com/shaiso/autopkg/internal/processors"
	"github.com/shaiso/autopkg/internal/storage"
)

// ProgressStore — минимальный интерфейс сохранения прогресса задачи.
// Реализуется repo.TaskRepo.
type ProgressStore interface {
	UpdateProgress(ctx context.Context, id uuid.UUID, progress *domain.TaskProgress) error
}

// ProcessorExecutor выполняет задачи вида processor: запускает
// процессор генерации данных для границы job.
//
// Семантика блокировок:
//   - пока удерживается "{boundary}.boundary_setup" — граница ещё
//     готовится, задача откладывается (Retry);
//   - занятая собственная сигнатура "{boundary}.{processor}" — та же
//     работа уже идёт у другого владельца, задача разрешается
//     пропуском (запись "skipped").
type ProcessorExecutor struct {
	locks          *locks.Manager
	backend        storage.Backend
	registry       *processors.Registry
	progress       ProgressStore
	processingRoot string
	logger         *slog.Logger
}

// NewProcessorExecutor создаёт executor процессоров.
func NewProcessorExecutor(lockMgr *locks.Manager, backend storage.Backend, registry *processors.Registry, progress ProgressStore, processingRoot string, logger *slog.Logger) *ProcessorExecutor {
	return &ProcessorExecutor{
		locks:          lockMgr,
		backend:        backend,
		registry:       registry,
		progress:       progress,
		processingRoot: processingRoot,
		logger:         logger,
	}
}

// Execute запускает процессор задачи.
func (e *ProcessorExecutor) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	boundaryName := req.Job.BoundaryName
	processorSig := req.Task.ProcessorSig
	signature := req.Task.LockSignature(boundaryName)

	// 1. Граница ещё готовится — отложить
	setupSig := domain.TaskSignature(boundaryName, string(domain.TaskKindBoundarySetup))
	setupHeld, err := e.locks.IsHeld(ctx, setupSig)
	if err != nil {
		return nil, fmt.Errorf("check setup lock: %w", err)
	}
	if setupHeld {
		e.logger.Info("boundary setup in progress, deferring",
			"boundary", boundaryName, "processor", processorSig)
		return &Outcome{Retry: true}, nil
	}

	// 2. Та же работа уже идёт — разрешить пропуском
	acquired, err := e.locks.Acquire(ctx, signature, req.Task.ID.String())
	if err != nil {
		return nil, fmt.Errorf("acquire processor lock: %w", err)
	}
	if !acquired {
		e.logger.Info("processor signature locked, skipping", "signature", signature)
		return &Outcome{Result: skippedEntry(processorSig, signature+" already executing")}, nil
	}
	defer func() {
		if err := e.locks.Release(ctx, signature); err != nil {
			e.logger.Warn("failed to release processor lock", "signature", signature, "error", err)
		}
	}()

	// 3. Неизвестная сигнатура — изолированная ошибка
	_, factory, err := e.registry.Get(processorSig)
	if err != nil {
		return &Outcome{Result: failedEntry(processorSig, errKindProcessor, err)}, nil
	}

	processingDir, err := os.MkdirTemp(e.processingRoot, "processor-")
	if err != nil {
		return nil, fmt.Errorf("create processing dir: %w", err)
	}
	defer os.RemoveAll(processingDir)

	reporter := &progressReporter{
		store:  e.progress,
		taskID: req.Task.ID,
		logger: e.logger,
	}
	processor := factory(req.Boundary, e.backend, reporter, processingDir)

	// 4. Запуск с изоляцией ошибок и паник
	value, err := e.generate(ctx, processor)
	if err != nil {
		e.logger.Error("processor failed",
			"boundary", boundaryName,
			"processor", processorSig,
			"error", err)
		return &Outcome{Result: failedEntry(processorSig, errorKind(err), err)}, nil
	}

	return &Outcome{Result: map[string]any{processorSig: value}}, nil
}

// generate вызывает Generate, превращая панику процессора в ошибку.
func (e *ProcessorExecutor) generate(ctx context.Context, processor processors.Processor) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return processor.Generate(ctx)
}

var errPanic = errors.New("processor panic")

func errorKind(err error) string {
	if errors.Is(err, errPanic) {
		return errKindPanic
	}
	return errKindProcessor
}

// progressReporter сохраняет прогресс в БД. Доставка негарантированная:
// ошибка записи логируется и не прерывает генерацию.
type progressReporter struct {
	store  ProgressStore
	taskID uuid.UUID
	logger *slog.Logger
}

func (r *progressReporter) Report(ctx context.Context, percent int, currentTask string) {
	progress := &domain.TaskProgress{Percent: percent, CurrentTask: currentTask}
	if err := r.store.UpdateProgress(ctx, r.taskID, progress); err != nil {
		r.logger.Debug("failed to store task progress",
			"task_id", r.taskID, "percent", percent, "error", err)
	}
}
