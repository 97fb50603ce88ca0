package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/locks"
	"github.com/shaiso/autopkg/internal/processors"
	"github.com/shaiso/autopkg/internal/storage"
)

// SetupExecutor выполняет задачи boundary_setup.
//
// Блокировка "{boundary}.boundary_setup" гарантирует, что скелет
// пакета готовит ровно один воркер. Занятая блокировка — пропуск:
// подготовка идемпотентна, дубликат ничего не добавил бы.
type SetupExecutor struct {
	locks          *locks.Manager
	backend        storage.Backend
	processingRoot string
	logger         *slog.Logger
}

// NewSetupExecutor создаёт executor подготовки границы.
func NewSetupExecutor(lockMgr *locks.Manager, backend storage.Backend, processingRoot string, logger *slog.Logger) *SetupExecutor {
	return &SetupExecutor{
		locks:          lockMgr,
		backend:        backend,
		processingRoot: processingRoot,
		logger:         logger,
	}
}

// Execute готовит пакет границы job.
func (e *SetupExecutor) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	signature := req.Task.LockSignature(req.Job.BoundaryName)

	acquired, err := e.locks.Acquire(ctx, signature, req.Task.ID.String())
	if err != nil {
		return nil, fmt.Errorf("acquire setup lock: %w", err)
	}
	if !acquired {
		e.logger.Info("setup signature locked, skipping", "signature", signature)
		return &Outcome{Result: skippedEntry(domain.BoundaryProcessorKey, signature+" already executing")}, nil
	}
	defer func() {
		if err := e.locks.Release(ctx, signature); err != nil {
			e.logger.Warn("failed to release setup lock", "signature", signature, "error", err)
		}
	}()

	processingDir, err := os.MkdirTemp(e.processingRoot, "setup-")
	if err != nil {
		return nil, fmt.Errorf("create processing dir: %w", err)
	}
	defer os.RemoveAll(processingDir)

	setup := processors.NewBoundarySetup(req.Boundary, e.backend, processingDir)
	value, err := setup.Generate(ctx)
	if err != nil {
		// Изолированная ошибка: job продолжится, процессоры создадут
		// недостающие каталоги сами
		e.logger.Error("boundary setup failed",
			"boundary", req.Job.BoundaryName, "error", err)
		return &Outcome{Result: failedEntry(domain.BoundaryProcessorKey, errKindSetup, err)}, nil
	}

	return &Outcome{Result: map[string]any{domain.BoundaryProcessorKey: value}}, nil
}
