package orchestrator

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
)

func newTestJob(processors ...string) *domain.Job {
	return &domain.Job{
		ID:           uuid.New(),
		BoundaryName: "fort-portal",
		Processors:   processors,
		State:        domain.JobStateRunning,
		SubmittedAt:  time.Now().UTC(),
	}
}

func resolvedTask(jobID uuid.UUID, kind domain.TaskKind, sig string) *domain.Task {
	task := &domain.Task{
		ID:           uuid.New(),
		JobID:        jobID,
		Kind:         kind,
		ProcessorSig: sig,
		Status:       domain.TaskStatusQueued,
	}
	task.MarkRunning()
	task.MarkResolved(map[string]any{"ok": true})
	return task
}

func TestJobExecutionStageProgression(t *testing.T) {
	job := newTestJob("elevation.version_1", "landcover.version_2")
	exec := NewJobExecution(job)

	if exec.SetupResolved() {
		t.Error("setup should not be resolved before dispatch")
	}
	if exec.GroupResolved() {
		t.Error("group should not be resolved before dispatch")
	}

	// Стадия setup
	setup := &domain.Task{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindBoundarySetup, Status: domain.TaskStatusQueued}
	exec.SetSetupTask(setup)
	if exec.SetupResolved() {
		t.Error("queued setup task is not resolved")
	}
	exec.Observe(resolvedTask(job.ID, domain.TaskKindBoundarySetup, ""))
	if !exec.SetupResolved() {
		t.Error("setup should be resolved after observing resolved task")
	}

	// Группа: обе задачи должны разрешиться
	exec.SetGroupTask(&domain.Task{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "elevation.version_1", Status: domain.TaskStatusRunning})
	exec.SetGroupTask(&domain.Task{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "landcover.version_2", Status: domain.TaskStatusQueued})
	if !exec.GroupDispatched() {
		t.Error("group should be dispatched")
	}
	if exec.GroupResolved() {
		t.Error("group with unresolved members is not resolved")
	}

	exec.Observe(resolvedTask(job.ID, domain.TaskKindProcessor, "elevation.version_1"))
	if exec.GroupResolved() {
		t.Error("group is not resolved while one member is pending")
	}
	exec.Observe(resolvedTask(job.ID, domain.TaskKindProcessor, "landcover.version_2"))
	if !exec.GroupResolved() {
		t.Error("group should be resolved after all members resolve")
	}

	// Финальная стадия
	if exec.ProvenanceDispatched() {
		t.Error("provenance should not be dispatched yet")
	}
	exec.Observe(resolvedTask(job.ID, domain.TaskKindProvenance, ""))
	if !exec.ProvenanceResolved() {
		t.Error("provenance should be resolved")
	}
}

func TestJobExecutionMissingGroupSignatures(t *testing.T) {
	job := newTestJob("elevation.version_1", "landcover.version_2", "roads.version_1")
	exec := NewJobExecution(job)

	missing := exec.MissingGroupSignatures()
	if len(missing) != 3 {
		t.Fatalf("missing = %d, want 3", len(missing))
	}

	exec.SetGroupTask(&domain.Task{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "landcover.version_2", Status: domain.TaskStatusQueued})

	missing = exec.MissingGroupSignatures()
	if len(missing) != 2 {
		t.Fatalf("missing = %d, want 2", len(missing))
	}
	// Порядок заявки сохраняется
	if missing[0] != "elevation.version_1" || missing[1] != "roads.version_1" {
		t.Errorf("missing = %v, want submission order", missing)
	}
}

func TestJobExecutionEmptyGroup(t *testing.T) {
	job := newTestJob()
	exec := NewJobExecution(job)

	if exec.GroupDispatched() {
		t.Error("empty group has nothing dispatched")
	}
	// Пустая группа разрешена тривиально; переход к финальной стадии
	// гейтится разрешением setup
	if !exec.GroupResolved() {
		t.Error("empty group should count as resolved")
	}
	if exec.SetupResolved() {
		t.Error("setup is not resolved yet")
	}

	exec.Observe(resolvedTask(job.ID, domain.TaskKindBoundarySetup, ""))
	if !exec.SetupResolved() {
		t.Error("setup should be resolved")
	}
}

func TestJobExecutionRestoreFromTasks(t *testing.T) {
	job := newTestJob("elevation.version_1")
	exec := NewJobExecution(job)

	setup := resolvedTask(job.ID, domain.TaskKindBoundarySetup, "")
	processor := &domain.Task{
		ID: uuid.New(), JobID: job.ID,
		Kind: domain.TaskKindProcessor, ProcessorSig: "elevation.version_1",
		Status: domain.TaskStatusRunning,
	}

	exec.RestoreFromTasks([]domain.Task{*setup, *processor})

	if !exec.SetupResolved() {
		t.Error("restored setup should be resolved")
	}
	if !exec.GroupDispatched() {
		t.Error("restored group should be dispatched")
	}
	if exec.GroupResolved() {
		t.Error("restored running processor is not resolved")
	}
	if exec.ProvenanceDispatched() {
		t.Error("provenance was never dispatched")
	}

	stats := exec.Stats()
	if stats.TotalTasks != 3 {
		t.Errorf("total tasks = %d, want 3", stats.TotalTasks)
	}
	if stats.ResolvedTasks != 1 {
		t.Errorf("resolved tasks = %d, want 1", stats.ResolvedTasks)
	}
	if stats.RunningTasks != 1 {
		t.Errorf("running tasks = %d, want 1", stats.RunningTasks)
	}
	if stats.PendingTasks != 1 {
		t.Errorf("pending tasks = %d, want 1", stats.PendingTasks)
	}
}

func TestNextActionRedispatchesLostSetup(t *testing.T) {
	job := newTestJob("elevation.version_1")
	exec := NewJobExecution(job)

	// Создание setup сорвалось: задачи нет, job нельзя бросать в RUNNING
	if got := nextAction(exec); got != actionDispatchSetup {
		t.Fatalf("action = %v, want dispatch setup", got)
	}

	exec.SetSetupTask(&domain.Task{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindBoundarySetup, Status: domain.TaskStatusQueued})
	if got := nextAction(exec); got != actionNone {
		t.Fatalf("action = %v, want none while setup is pending", got)
	}
}

func TestNextActionCompletesPartialGroup(t *testing.T) {
	job := newTestJob("elevation.version_1", "landcover.version_2", "roads.version_1")
	exec := NewJobExecution(job)
	exec.Observe(resolvedTask(job.ID, domain.TaskKindBoundarySetup, ""))

	if got := nextAction(exec); got != actionDispatchGroup {
		t.Fatalf("action = %v, want dispatch group after setup resolves", got)
	}

	// Создалась только часть группы: недостающие сигнатуры добираются
	exec.SetGroupTask(&domain.Task{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "landcover.version_2", Status: domain.TaskStatusQueued})
	if got := nextAction(exec); got != actionDispatchGroup {
		t.Fatalf("action = %v, want dispatch group while signatures are missing", got)
	}

	exec.SetGroupTask(&domain.Task{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "elevation.version_1", Status: domain.TaskStatusQueued})
	exec.SetGroupTask(&domain.Task{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "roads.version_1", Status: domain.TaskStatusQueued})
	if got := nextAction(exec); got != actionNone {
		t.Fatalf("action = %v, want none while group is running", got)
	}

	for _, sig := range job.Processors {
		exec.Observe(resolvedTask(job.ID, domain.TaskKindProcessor, sig))
	}
	if got := nextAction(exec); got != actionDispatchProvenance {
		t.Fatalf("action = %v, want dispatch provenance after group resolves", got)
	}

	exec.Observe(resolvedTask(job.ID, domain.TaskKindProvenance, ""))
	if got := nextAction(exec); got != actionComplete {
		t.Fatalf("action = %v, want complete after provenance resolves", got)
	}
}

func TestNextActionEmptyGroup(t *testing.T) {
	job := newTestJob()
	exec := NewJobExecution(job)
	exec.Observe(resolvedTask(job.ID, domain.TaskKindBoundarySetup, ""))

	// Пустая группа: сразу финальная стадия
	if got := nextAction(exec); got != actionDispatchProvenance {
		t.Fatalf("action = %v, want dispatch provenance", got)
	}
}

func TestOrchestratorNewAppliesDefaults(t *testing.T) {
	o := New(Config{})

	if o.pollInterval != defaultPollInterval {
		t.Errorf("poll interval = %v, want %v", o.pollInterval, defaultPollInterval)
	}
	if o.batchSize != defaultBatchSize {
		t.Errorf("batch size = %d, want %d", o.batchSize, defaultBatchSize)
	}
	if o.ActiveJobsCount() != 0 {
		t.Errorf("active jobs = %d, want 0", o.ActiveJobsCount())
	}
	if _, ok := o.GetActiveJobStats(uuid.New()); ok {
		t.Error("stats for unknown job should report not found")
	}
}
