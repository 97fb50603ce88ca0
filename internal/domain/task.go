package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus — статус задачи с точки зрения исполнителя.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → RESOLVED
//	       ↖ (retry: RESOLVED не достигнут, задача возвращена в QUEUED)
//
// RESOLVED означает "задача терминальна", а не "задача успешна":
// пропуск и ошибка процессора кодируются внутри Result
// ("skipped"/"failed"), сама задача при этом никогда не падает.
type TaskStatus string

const (
	// TaskStatusQueued — задача в очереди, ожидает воркера.
	TaskStatusQueued TaskStatus = "QUEUED"

	// TaskStatusRunning — задача выполняется воркером.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusResolved — задача терминальна; результат в Result.
	TaskStatusResolved TaskStatus = "RESOLVED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusResolved
}

// TaskProgress — грубый прогресс выполняющегося процессора.
// Публикуется процессором на крупных вехах (fetch/crop/upload),
// это телеметрия, не сигнал координации.
type TaskProgress struct {
	Percent     int    `json:"percent"`
	CurrentTask string `json:"current_task"`
}

// Task — один член DAG: стадия setup, один процессор из группы
// или финальная стадия provenance.
type Task struct {
	// ID — уникальный идентификатор задачи.
	ID uuid.UUID `json:"id"`

	// JobID — ссылка на родительский job.
	JobID uuid.UUID `json:"job_id"`

	// Kind — вид задачи (boundary_setup, processor, generate_provenance).
	Kind TaskKind `json:"kind"`

	// ProcessorSig — сигнатура процессора для Kind == processor,
	// пусто для внутренних стадий.
	ProcessorSig string `json:"processor_sig,omitempty"`

	// Attempt — номер попытки. Увеличивается только на
	// запланированных retry (гонка setup/processor, contention
	// на стадии provenance).
	Attempt int `json:"attempt"`

	// Status — статус задачи.
	Status TaskStatus `json:"status"`

	// Result — запись этой задачи в общем sink, с ключом по сигнатуре:
	// {"<sig>": {...}} либо {"boundary_processor": {...}}.
	Result map[string]any `json:"result,omitempty"`

	// Progress — последний опубликованный прогресс (только пока RUNNING).
	Progress *TaskProgress `json:"progress,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время разрешения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания задачи.
	CreatedAt time.Time `json:"created_at"`
}

// LockSignature возвращает ключ взаимного исключения этой задачи
// для заданной границы.
func (t *Task) LockSignature(boundaryName string) string {
	if t.Kind == TaskKindProcessor {
		return TaskSignature(boundaryName, t.ProcessorSig)
	}
	return TaskSignature(boundaryName, string(t.Kind))
}

// IsFinished возвращает true, если задача разрешена.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит задачу в RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now().UTC()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// MarkResolved делает задачу терминальной с записью для sink.
func (t *Task) MarkResolved(result map[string]any) {
	now := time.Now().UTC()
	t.Status = TaskStatusResolved
	t.FinishedAt = &now
	t.Result = result
	t.Progress = nil
}

// ResetForRetry возвращает задачу в QUEUED для запланированной
// повторной попытки.
func (t *Task) ResetForRetry() {
	t.Status = TaskStatusQueued
	t.StartedAt = nil
	t.FinishedAt = nil
	t.Progress = nil
	t.Attempt++
}

// Duration возвращает продолжительность выполнения.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}
