// Package core содержит встроенные процессоры генерации данных.
//
// Каждый процессор — отдельный файл с метаданными и фабрикой;
// NewRegistry собирает их в реестр. Добавление процессора — это
// новый файл плюс строка регистрации здесь.
package core

import (
	"fmt"

	"github.com/shaiso/autopkg/internal/processors"
)

// NewRegistry возвращает реестр со всеми встроенными процессорами.
func NewRegistry() (*processors.Registry, error) {
	registry := processors.NewRegistry()

	for _, reg := range []struct {
		meta    processors.Metadata
		factory processors.Factory
	}{
		{testProcessorMeta, newTestProcessor},
		{testFailProcessorMeta, newTestFailProcessor},
	} {
		if err := registry.Register(reg.meta, reg.factory); err != nil {
			return nil, fmt.Errorf("register %s: %w", reg.meta.Signature(), err)
		}
	}
	return registry, nil
}
