package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
)

// JobExecution — состояние выполнения одного job в памяти.
//
// JobExecution создаётся когда Orchestrator начинает обработку job
// и удаляется когда job завершается (COMPLETE/EXPIRED).
//
// DAG фиксированный и трёхстадийный:
//
//	boundary_setup → [processor ...] → generate_provenance
//
// Следующая стадия диспетчеризуется только когда все задачи
// предыдущей разрешены (RESOLVED), включая разрешения записями
// "failed" и "skipped".
type JobExecution struct {
	// Job — данные job из БД.
	Job *domain.Job

	// setupTask — задача стадии boundary_setup.
	setupTask *domain.Task

	// groupTasks — задачи группы процессоров (сигнатура → task).
	groupTasks map[string]*domain.Task

	// provenanceTask — задача финальной стадии.
	provenanceTask *domain.Task

	mu sync.RWMutex
}

// NewJobExecution создаёт новое состояние выполнения job.
func NewJobExecution(job *domain.Job) *JobExecution {
	return &JobExecution{
		Job:        job,
		groupTasks: make(map[string]*domain.Task),
	}
}

// JobID возвращает ID job.
func (e *JobExecution) JobID() uuid.UUID {
	return e.Job.ID
}

// SetSetupTask фиксирует задачу стадии boundary_setup.
func (e *JobExecution) SetSetupTask(task *domain.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setupTask = task
}

// SetGroupTask фиксирует задачу процессора группы.
func (e *JobExecution) SetGroupTask(task *domain.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.groupTasks[task.ProcessorSig] = task
}

// SetProvenanceTask фиксирует задачу финальной стадии.
func (e *JobExecution) SetProvenanceTask(task *domain.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.provenanceTask = task
}

// Observe обновляет сохранённую копию задачи по свежим данным из БД.
func (e *JobExecution) Observe(task *domain.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch task.Kind {
	case domain.TaskKindBoundarySetup:
		e.setupTask = task
	case domain.TaskKindProcessor:
		e.groupTasks[task.ProcessorSig] = task
	case domain.TaskKindProvenance:
		e.provenanceTask = task
	}
}

// SetupDispatched — создана ли задача boundary_setup.
func (e *JobExecution) SetupDispatched() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.setupTask != nil
}

// SetupResolved — разрешена ли стадия boundary_setup.
func (e *JobExecution) SetupResolved() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.setupTask != nil && e.setupTask.IsFinished()
}

// GroupDispatched — созданы ли задачи группы процессоров.
func (e *JobExecution) GroupDispatched() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.groupTasks) > 0
}

// GroupResolved — разрешены ли все задачи группы. Пустая группа
// разрешена тривиально; вызывающая сторона гейтит переход к финальной
// стадии разрешением setup.
func (e *JobExecution) GroupResolved() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.groupTasks) != len(e.Job.Processors) {
		return false
	}
	for _, task := range e.groupTasks {
		if !task.IsFinished() {
			return false
		}
	}
	return true
}

// ProvenanceDispatched — создана ли финальная задача.
func (e *JobExecution) ProvenanceDispatched() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provenanceTask != nil
}

// ProvenanceResolved — разрешена ли финальная стадия.
func (e *JobExecution) ProvenanceResolved() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provenanceTask != nil && e.provenanceTask.IsFinished()
}

// MissingGroupSignatures возвращает сигнатуры процессоров job,
// для которых ещё нет задач. Порядок — порядок заявки.
func (e *JobExecution) MissingGroupSignatures() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	missing := make([]string, 0, len(e.Job.Processors))
	for _, sig := range e.Job.Processors {
		if _, ok := e.groupTasks[sig]; !ok {
			missing = append(missing, sig)
		}
	}
	return missing
}

// RestoreFromTasks восстанавливает состояние из списка tasks
// (после рестарта оркестратора).
func (e *JobExecution) RestoreFromTasks(tasks []domain.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range tasks {
		task := &tasks[i]
		switch task.Kind {
		case domain.TaskKindBoundarySetup:
			e.setupTask = task
		case domain.TaskKindProcessor:
			e.groupTasks[task.ProcessorSig] = task
		case domain.TaskKindProvenance:
			e.provenanceTask = task
		}
	}
}

// Stats возвращает статистику выполнения.
func (e *JobExecution) Stats() JobStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// setup + группа + provenance
	total := 2 + len(e.Job.Processors)

	resolved := 0
	running := 0
	count := func(task *domain.Task) {
		if task == nil {
			return
		}
		switch {
		case task.IsFinished():
			resolved++
		case task.Status == domain.TaskStatusRunning:
			running++
		}
	}
	count(e.setupTask)
	for _, task := range e.groupTasks {
		count(task)
	}
	count(e.provenanceTask)

	return JobStats{
		TotalTasks:    total,
		ResolvedTasks: resolved,
		RunningTasks:  running,
		PendingTasks:  total - resolved - running,
	}
}

// JobStats — статистика выполнения job.
type JobStats struct {
	TotalTasks    int
	ResolvedTasks int
	RunningTasks  int
	PendingTasks  int
}
