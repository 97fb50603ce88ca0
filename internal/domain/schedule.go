package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — регулярное переформирование пакета: по cron-расписанию
// создаётся job (boundary, processors).
//
// Дубликаты при наложении запусков безопасны: повторная заявка
// упирается в Lock Manager и наблюдает skip-путь.
type Schedule struct {
	// ID — уникальный идентификатор расписания.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя расписания.
	Name string `json:"name"`

	// BoundaryName — граница, для которой пересобирается пакет.
	BoundaryName string `json:"boundary_name"`

	// Processors — сигнатуры процессоров для заявки.
	Processors []string `json:"processors"`

	// CronExpr — cron-выражение (5 полей, без секунд).
	CronExpr string `json:"cron_expr"`

	// Timezone — IANA timezone для интерпретации CronExpr.
	Timezone string `json:"timezone"`

	// Enabled — выключенные расписания пропускаются.
	Enabled bool `json:"enabled"`

	// NextDueAt — следующее время срабатывания (UTC).
	NextDueAt time.Time `json:"next_due_at"`

	// LastJobID — последний созданный job (для диагностики).
	LastJobID *uuid.UUID `json:"last_job_id,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}
