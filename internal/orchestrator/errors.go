package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrJobNotFound — job не найден в БД.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyActive — job уже обрабатывается.
	ErrJobAlreadyActive = errors.New("job already being processed")

	// ErrJobNotPending — job не в состоянии PENDING.
	ErrJobNotPending = errors.New("job is not in PENDING state")

	// ErrJobExpired — job не стартовал до expires_at и был отброшен.
	ErrJobExpired = errors.New("job expired before start")

	// ErrTaskNotFound — task не найден.
	ErrTaskNotFound = errors.New("task not found")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
