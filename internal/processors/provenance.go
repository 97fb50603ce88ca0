package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/storage"
)

// ProvenanceWriter — внутренний процессор финальной стадии job:
// собирает результаты всех задач группы в одну запись журнала
// provenance и сливает объявленные ресурсы в datapackage.json.
type ProvenanceWriter struct {
	boundaryName string
	backend      storage.Backend
	logger       *slog.Logger
}

// NewProvenanceWriter создаёт финальный процессор для границы.
func NewProvenanceWriter(boundaryName string, backend storage.Backend, logger *slog.Logger) *ProvenanceWriter {
	return &ProvenanceWriter{
		boundaryName: boundaryName,
		backend:      backend,
		logger:       logger,
	}
}

// Write финализирует job: нормализует журнал, сливает ресурсы
// в datapackage.json и дописывает журнал в provenance-файл границы.
// Возвращает собственную bookkeeping-запись.
//
// Порядок записей стабилен: запись boundary_processor первая,
// затем записи процессоров в порядке поступления, последней —
// запись provenance_processor.
func (p *ProvenanceWriter) Write(ctx context.Context, results []domain.ProvenanceEntry) (domain.ProvenanceEntry, error) {
	log := p.collapseBoundaryEntries(results)

	merged := 0
	for _, entry := range log {
		for sig, value := range entry {
			resource, ok, err := extractResource(value)
			if err != nil {
				return nil, fmt.Errorf("extract resource from %s: %w", sig, err)
			}
			if !ok {
				continue
			}
			if err := p.backend.UpdateDatapackage(ctx, p.boundaryName, resource); err != nil {
				return nil, fmt.Errorf("merge resource %s: %w", sig, err)
			}
			merged++
		}
	}

	final := domain.ProvenanceEntry{
		domain.ProvenanceProcessorKey: map[string]any{
			"entries":          len(log),
			"resources_merged": merged,
		},
	}
	log = append(log, final)

	if err := p.backend.AddProvenance(ctx, p.boundaryName, log, storage.ProvenanceFilename); err != nil {
		return nil, fmt.Errorf("write provenance: %w", err)
	}

	p.logger.Info("provenance written",
		"boundary", p.boundaryName,
		"entries", len(log),
		"resources_merged", merged)
	return final, nil
}

// collapseBoundaryEntries оставляет одну запись boundary_processor
// и ставит её в начало журнала. Дубликаты появляются, когда несколько
// процессоров группы независимо наблюдали стадию подготовки.
func (p *ProvenanceWriter) collapseBoundaryEntries(results []domain.ProvenanceEntry) []domain.ProvenanceEntry {
	var boundaryEntry domain.ProvenanceEntry
	log := make([]domain.ProvenanceEntry, 0, len(results)+2)

	for _, entry := range results {
		if value, ok := entry[domain.BoundaryProcessorKey]; ok && len(entry) == 1 {
			if boundaryEntry == nil {
				boundaryEntry = domain.ProvenanceEntry{domain.BoundaryProcessorKey: value}
			}
			continue
		}
		log = append(log, entry)
	}

	if boundaryEntry != nil {
		log = append([]domain.ProvenanceEntry{boundaryEntry}, log...)
	}
	return log
}

// extractResource достаёт объявление ресурса datapackage из значения
// записи процессора. Возвращает ok=false, если значение ресурса
// не содержит.
func extractResource(value any) (domain.DataPackageResource, bool, error) {
	meta, ok := value.(map[string]any)
	if !ok {
		return domain.DataPackageResource{}, false, nil
	}
	declared, ok := meta["datapackage"]
	if !ok {
		return domain.DataPackageResource{}, false, nil
	}

	// Значение приходит из JSON (результат задачи в БД) либо
	// как map от самого процессора: раунд-трип покрывает оба случая.
	raw, err := json.Marshal(declared)
	if err != nil {
		return domain.DataPackageResource{}, false, err
	}
	var resource domain.DataPackageResource
	if err := json.Unmarshal(raw, &resource); err != nil {
		return domain.DataPackageResource{}, false, err
	}
	return resource, true, nil
}
