package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/autopkg/internal/domain"
)

// Request — контекст выполнения одной задачи: job, его граница
// и сама задача.
type Request struct {
	Job      *domain.Job
	Boundary *domain.Boundary
	Task     *domain.Task
}

// Outcome — исход выполнения задачи.
//
// Retry=true означает "сигнатура сейчас занята, повторить позже":
// задача возвращается в QUEUED и уходит в очередь-таймер.
// Иначе Result — готовая запись результата для sink
// ({сигнатура: значение}), включая записи "failed" и "skipped".
type Outcome struct {
	Result map[string]any
	Retry  bool
}

// Executor выполняет задачи одного вида.
//
// Возврат error — только инфраструктурный сбой (БД, хранилище
// недоступно): сообщение вернётся в очередь. Ошибки самой генерации
// упаковываются в Result и ошибкой не являются.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Outcome, error)
}

// Registry — реестр executor'ов по виду задачи.
type Registry struct {
	executors map[domain.TaskKind]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[domain.TaskKind]Executor)}
}

// Register добавляет executor для вида задачи.
func (r *Registry) Register(kind domain.TaskKind, executor Executor) {
	r.executors[kind] = executor
}

// Get возвращает executor для вида задачи.
func (r *Registry) Get(kind domain.TaskKind) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskKind, kind)
	}
	return executor, nil
}

// Виды ошибок в записях "failed". Формат значения:
// "<вид> - <сообщение>".
const (
	errKindProcessor = "ProcessorError"
	errKindSetup     = "BoundarySetupError"
	errKindPanic     = "Panic"
)

// failedEntry собирает запись изолированной ошибки для сигнатуры.
func failedEntry(signature, kind string, err error) map[string]any {
	return map[string]any{
		signature: map[string]any{
			domain.OutcomeFailed: fmt.Sprintf("%s - %s", kind, err),
		},
	}
}

// skippedEntry собирает запись пропуска для сигнатуры.
func skippedEntry(signature, reason string) map[string]any {
	return map[string]any{
		signature: map[string]any{
			domain.OutcomeSkipped: reason,
		},
	}
}
