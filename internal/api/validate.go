package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/processors"
	"github.com/shaiso/autopkg/internal/repo"
)

// Ошибки валидации заявки.
var (
	// ErrBoundaryUnknown — граница не найдена в БД.
	ErrBoundaryUnknown = errors.New("boundary not found")

	// ErrProcessorUnknown — сигнатура не зарегистрирована в реестре.
	ErrProcessorUnknown = errors.New("processor not registered")

	// ErrProcessorDuplicate — сигнатура встречается в заявке дважды.
	ErrProcessorDuplicate = errors.New("duplicate processor in request")
)

// BoundaryChecker — проверка существования границы.
// Реализуется repo.BoundaryRepo.
type BoundaryChecker interface {
	GetByName(ctx context.Context, name string) (*domain.Boundary, error)
}

// Validator синхронно проверяет заявку до её фиксации: граница
// существует, сигнатуры известны реестру, дубликатов нет.
// Невалидная заявка отклоняется целиком — частичный приём группы
// недопустим.
type Validator struct {
	boundaries BoundaryChecker
	registry   *processors.Registry
}

// NewValidator создаёт Validator.
func NewValidator(boundaries BoundaryChecker, registry *processors.Registry) *Validator {
	return &Validator{boundaries: boundaries, registry: registry}
}

// ValidateSubmission проверяет заявку (boundary, processors).
func (v *Validator) ValidateSubmission(ctx context.Context, boundaryName string, signatures []string) error {
	if boundaryName == "" {
		return fmt.Errorf("%w: empty name", ErrBoundaryUnknown)
	}

	if _, err := v.boundaries.GetByName(ctx, boundaryName); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrBoundaryUnknown, boundaryName)
		}
		return fmt.Errorf("check boundary: %w", err)
	}

	seen := make(map[string]bool, len(signatures))
	for _, sig := range signatures {
		if seen[sig] {
			return fmt.Errorf("%w: %s", ErrProcessorDuplicate, sig)
		}
		seen[sig] = true

		if !v.registry.Has(sig) {
			return fmt.Errorf("%w: %s", ErrProcessorUnknown, sig)
		}
	}

	return nil
}
