package worker

import "errors"

// Ошибки воркера.
var (
	// ErrTaskNotFound — task не найден в БД.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotQueued — task не в статусе QUEUED.
	ErrTaskNotQueued = errors.New("task is not in QUEUED status")

	// ErrJobNotFound — job задачи не найден в БД.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownTaskKind — нет executor'а для данного вида задачи.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
