package domain

// GroupState — агрегированный статус группы задач job для клиента.
type GroupState string

const (
	// GroupStatePending — не все члены группы разрешены.
	GroupStatePending GroupState = "PENDING"

	// GroupStateComplete — все члены группы разрешены (включая
	// пропуски и ошибки отдельных процессоров).
	GroupStateComplete GroupState = "COMPLETE"
)

// ProcessorState — внешний статус одного процессора внутри job.
//
// SUCCESS/FAILURE/SKIPPED выводятся из содержимого результата
// разрешённой задачи ("failed"/"skipped" ключи), EXECUTING и RETRY —
// из живого состояния исполнителя. Модель никогда не персистится:
// она строится заново на каждый опрос статуса.
type ProcessorState string

const (
	ProcessorStatePending   ProcessorState = "PENDING"
	ProcessorStateExecuting ProcessorState = "EXECUTING"
	ProcessorStateSuccess   ProcessorState = "SUCCESS"
	ProcessorStateFailure   ProcessorState = "FAILURE"
	ProcessorStateSkipped   ProcessorState = "SKIPPED"
	ProcessorStateRevoked   ProcessorState = "REVOKED"
	ProcessorStateRetry     ProcessorState = "RETRY"
)

// JobProgress — прогресс выполняющегося процессора для клиента.
type JobProgress struct {
	PercentComplete int    `json:"percent_complete"`
	CurrentTask     string `json:"current_task"`
}

// JobStatus — статус одного процессора внутри job.
type JobStatus struct {
	ProcessorName string         `json:"processor_name"`
	JobID         string         `json:"job_id"`
	JobStatus     ProcessorState `json:"job_status"`
	JobProgress   *JobProgress   `json:"job_progress,omitempty"`
	JobResult     map[string]any `json:"job_result,omitempty"`
}

// JobGroupStatus — стабильная внешняя модель статуса job.
//
// Неизвестный job id сообщается как PENDING с пустым списком
// процессоров: несуществующий job неотличим от "ещё не начался".
// Это документированная неоднозначность, сохранённая намеренно.
type JobGroupStatus struct {
	JobGroupStatus          GroupState  `json:"job_group_status"`
	JobGroupPercentComplete int         `json:"job_group_percent_complete"`
	JobGroupProcessors      []JobStatus `json:"job_group_processors"`
}
