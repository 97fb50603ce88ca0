package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobState — состояние выполнения job (всего DAG).
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETE
//	        ↘ EXPIRED (не стартовал до expires_at)
type JobState string

const (
	// JobStatePending — job принят, но DAG ещё не начал выполняться.
	JobStatePending JobState = "PENDING"

	// JobStateRunning — DAG в процессе выполнения.
	JobStateRunning JobState = "RUNNING"

	// JobStateComplete — все стадии DAG разрешены. COMPLETE означает
	// "все члены группы завершились", а не "все успешны": отдельные
	// процессоры могут нести в результате failed или skipped.
	JobStateComplete JobState = "COMPLETE"

	// JobStateExpired — job не начал выполняться до expires_at
	// и был отброшен оркестратором.
	JobStateExpired JobState = "EXPIRED"
)

// IsTerminal возвращает true, если состояние финальное.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateComplete, JobStateExpired:
		return true
	default:
		return false
	}
}

// Job — одна заявка на генерацию пакета: (boundary, [processor...]).
//
// Job создаётся при приёме запроса (после синхронной валидации)
// и разворачивается оркестратором в фиксированный трёхстадийный DAG.
type Job struct {
	// ID — уникальный идентификатор job. Это же значение клиент
	// использует для опроса статуса.
	ID uuid.UUID `json:"id"`

	// BoundaryName — имя границы (и пакета верхнего уровня).
	BoundaryName string `json:"boundary_name"`

	// Processors — сигнатуры запрошенных процессоров ("dataset.version").
	// Дубликаты отклоняются на этапе валидации.
	Processors []string `json:"processors"`

	// State — текущее состояние job.
	State JobState `json:"state"`

	// Error — текст ошибки уровня job (например, истёкший срок).
	Error string `json:"error,omitempty"`

	// ExpiresAt — если job не начал выполняться до этого момента,
	// оркестратор его отбрасывает вместо позднего запуска.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// StartedAt — время старта DAG.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время разрешения всех стадий.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// SubmittedAt — время приёма заявки.
	SubmittedAt time.Time `json:"submitted_at"`
}

// IsFinished возвращает true, если job завершён.
func (j *Job) IsFinished() bool {
	return j.State.IsTerminal()
}

// IsExpired проверяет, истёк ли срок запуска job на момент now.
func (j *Job) IsExpired(now time.Time) bool {
	return j.ExpiresAt != nil && now.After(*j.ExpiresAt)
}

// MarkRunning переводит job в состояние RUNNING.
func (j *Job) MarkRunning() {
	now := time.Now().UTC()
	j.State = JobStateRunning
	j.StartedAt = &now
}

// MarkComplete переводит job в состояние COMPLETE.
func (j *Job) MarkComplete() {
	now := time.Now().UTC()
	j.State = JobStateComplete
	j.FinishedAt = &now
}

// MarkExpired переводит job в состояние EXPIRED.
func (j *Job) MarkExpired(reason string) {
	now := time.Now().UTC()
	j.State = JobStateExpired
	j.FinishedAt = &now
	j.Error = reason
}

// Duration возвращает продолжительность выполнения.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}
