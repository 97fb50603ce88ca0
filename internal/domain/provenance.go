package domain

// Ключи записей provenance, не являющиеся сигнатурами процессоров.
const (
	// BoundaryProcessorKey — ключ записи стадии boundary_setup.
	BoundaryProcessorKey = "boundary_processor"

	// ProvenanceProcessorKey — ключ финальной bookkeeping-записи.
	ProvenanceProcessorKey = "provenance_processor"
)

// Ключи исхода внутри значения записи provenance.
const (
	// OutcomeFailed — значение записи содержит текст ошибки процессора.
	OutcomeFailed = "failed"

	// OutcomeSkipped — значение записи содержит причину пропуска
	// (сигнатура уже выполнялась другим владельцем).
	OutcomeSkipped = "skipped"
)

// ProvenanceEntry — одна запись журнала provenance: отображение
// сигнатуры процессора (или внутреннего ключа) в произвольную
// структуру, описывающую результат.
//
// Структура значения должна быть достаточной, чтобы Status Aggregator
// классифицировал исход: ключ "failed" — FAILURE, "skipped" — SKIPPED,
// иначе SUCCESS после разрешения задачи.
type ProvenanceEntry map[string]any

// EntryOutcome классифицирует значение записи provenance.
// Возвращает OutcomeFailed, OutcomeSkipped либо "".
func EntryOutcome(value any) string {
	meta, ok := value.(map[string]any)
	if !ok {
		return ""
	}
	if _, ok := meta[OutcomeFailed]; ok {
		return OutcomeFailed
	}
	if _, ok := meta[OutcomeSkipped]; ok {
		return OutcomeSkipped
	}
	return ""
}
