package status

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/repo"
)

type fakeJobStore struct {
	jobs map[uuid.UUID]*domain.Job
}

func (s *fakeJobStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return job, nil
}

type fakeTaskStore struct {
	tasks map[uuid.UUID][]domain.Task
}

func (s *fakeTaskStore) ListByJobID(_ context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	return s.tasks[jobID], nil
}

func newAggregator(jobs ...*domain.Job) (*Aggregator, *fakeTaskStore) {
	jobStore := &fakeJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
	for _, job := range jobs {
		jobStore.jobs[job.ID] = job
	}
	taskStore := &fakeTaskStore{tasks: make(map[uuid.UUID][]domain.Task)}
	return New(jobStore, taskStore), taskStore
}

func TestUnknownJobReportsEmptyPending(t *testing.T) {
	agg, _ := newAggregator()

	got, err := agg.JobGroupStatus(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("job group status: %v", err)
	}
	if got.JobGroupStatus != domain.GroupStatePending {
		t.Errorf("group status = %q, want %q", got.JobGroupStatus, domain.GroupStatePending)
	}
	if got.JobGroupPercentComplete != 0 {
		t.Errorf("percent = %d, want 0", got.JobGroupPercentComplete)
	}
	if got.JobGroupProcessors == nil || len(got.JobGroupProcessors) != 0 {
		t.Errorf("processors = %v, want empty slice", got.JobGroupProcessors)
	}
}

func TestExpiredJobReportsRevokedProcessors(t *testing.T) {
	job := &domain.Job{
		ID:           uuid.New(),
		BoundaryName: "fort-portal",
		Processors:   []string{"elevation.version_1", "landcover.version_2"},
		State:        domain.JobStateExpired,
		SubmittedAt:  time.Now().UTC(),
	}
	agg, taskStore := newAggregator(job)

	// Одна задача успела создаться до отбрасывания
	taskStore.tasks[job.ID] = []domain.Task{
		{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "elevation.version_1", Status: domain.TaskStatusQueued},
	}

	got, err := agg.JobGroupStatus(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("job group status: %v", err)
	}
	if len(got.JobGroupProcessors) != 2 {
		t.Fatalf("processors = %d, want 2", len(got.JobGroupProcessors))
	}
	for _, p := range got.JobGroupProcessors {
		if p.JobStatus != domain.ProcessorStateRevoked {
			t.Errorf("%s status = %q, want %q", p.ProcessorName, p.JobStatus, domain.ProcessorStateRevoked)
		}
	}
}

func TestProcessorStatusMapping(t *testing.T) {
	job := &domain.Job{
		ID:           uuid.New(),
		BoundaryName: "fort-portal",
		Processors: []string{
			"queued.version_1",
			"retry.version_1",
			"running.version_1",
			"success.version_1",
			"failed.version_1",
			"skipped.version_1",
		},
		State:       domain.JobStateRunning,
		SubmittedAt: time.Now().UTC(),
	}
	agg, taskStore := newAggregator(job)

	progress := &domain.TaskProgress{Percent: 40, CurrentTask: "cropping"}
	taskStore.tasks[job.ID] = []domain.Task{
		{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindBoundarySetup, Status: domain.TaskStatusResolved},
		{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "queued.version_1", Status: domain.TaskStatusQueued},
		{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "retry.version_1", Status: domain.TaskStatusQueued, Attempt: 2},
		{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "running.version_1", Status: domain.TaskStatusRunning, Progress: progress},
		{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "success.version_1", Status: domain.TaskStatusResolved,
			Result: map[string]any{"success.version_1": map[string]any{"uri": "https://example.com/x.tif"}}},
		{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "failed.version_1", Status: domain.TaskStatusResolved,
			Result: map[string]any{"failed.version_1": map[string]any{domain.OutcomeFailed: "ProcessorError - boom"}}},
		{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "skipped.version_1", Status: domain.TaskStatusResolved,
			Result: map[string]any{"skipped.version_1": map[string]any{domain.OutcomeSkipped: "fort-portal.skipped.version_1 already executing"}}},
	}

	got, err := agg.JobGroupStatus(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("job group status: %v", err)
	}

	want := map[string]domain.ProcessorState{
		"queued.version_1":  domain.ProcessorStatePending,
		"retry.version_1":   domain.ProcessorStateRetry,
		"running.version_1": domain.ProcessorStateExecuting,
		"success.version_1": domain.ProcessorStateSuccess,
		"failed.version_1":  domain.ProcessorStateFailure,
		"skipped.version_1": domain.ProcessorStateSkipped,
	}
	byName := make(map[string]domain.JobStatus, len(got.JobGroupProcessors))
	for _, p := range got.JobGroupProcessors {
		byName[p.ProcessorName] = p
	}
	for name, wantState := range want {
		p, ok := byName[name]
		if !ok {
			t.Errorf("processor %s missing from status", name)
			continue
		}
		if p.JobStatus != wantState {
			t.Errorf("%s status = %q, want %q", name, p.JobStatus, wantState)
		}
	}

	running := byName["running.version_1"]
	if running.JobProgress == nil || running.JobProgress.PercentComplete != 40 || running.JobProgress.CurrentTask != "cropping" {
		t.Errorf("running progress = %v, want 40%% cropping", running.JobProgress)
	}
	if byName["success.version_1"].JobResult == nil {
		t.Error("resolved processor should expose result")
	}
	if byName["queued.version_1"].JobResult != nil {
		t.Error("queued processor should not expose result")
	}

	// 3 из 6 процессоров разрешены
	if got.JobGroupPercentComplete != 50 {
		t.Errorf("percent = %d, want 50", got.JobGroupPercentComplete)
	}
	if got.JobGroupStatus != domain.GroupStatePending {
		t.Errorf("group status = %q, want PENDING until all processors resolve", got.JobGroupStatus)
	}
}

func TestGroupCompleteWhenAllProcessorsResolved(t *testing.T) {
	job := &domain.Job{
		ID:           uuid.New(),
		BoundaryName: "fort-portal",
		Processors:   []string{"elevation.version_1"},
		State:        domain.JobStateRunning,
		SubmittedAt:  time.Now().UTC(),
	}
	agg, taskStore := newAggregator(job)

	taskStore.tasks[job.ID] = []domain.Task{
		{ID: uuid.New(), JobID: job.ID, Kind: domain.TaskKindProcessor, ProcessorSig: "elevation.version_1", Status: domain.TaskStatusResolved,
			Result: map[string]any{"elevation.version_1": map[string]any{"uri": "https://example.com/dem.tif"}}},
	}

	got, err := agg.JobGroupStatus(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("job group status: %v", err)
	}
	if got.JobGroupStatus != domain.GroupStateComplete {
		t.Errorf("group status = %q, want %q", got.JobGroupStatus, domain.GroupStateComplete)
	}
	if got.JobGroupPercentComplete != 100 {
		t.Errorf("percent = %d, want 100", got.JobGroupPercentComplete)
	}
}

func TestUndispatchedProcessorsCountAsPending(t *testing.T) {
	job := &domain.Job{
		ID:           uuid.New(),
		BoundaryName: "fort-portal",
		Processors:   []string{"elevation.version_1", "landcover.version_2"},
		State:        domain.JobStatePending,
		SubmittedAt:  time.Now().UTC(),
	}
	agg, _ := newAggregator(job)

	got, err := agg.JobGroupStatus(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("job group status: %v", err)
	}
	if len(got.JobGroupProcessors) != 2 {
		t.Fatalf("processors = %d, want 2", len(got.JobGroupProcessors))
	}
	for _, p := range got.JobGroupProcessors {
		if p.JobStatus != domain.ProcessorStatePending {
			t.Errorf("%s status = %q, want %q", p.ProcessorName, p.JobStatus, domain.ProcessorStatePending)
		}
		if p.JobID != "" {
			t.Errorf("%s has task id %q before dispatch", p.ProcessorName, p.JobID)
		}
	}
	if got.JobGroupPercentComplete != 0 {
		t.Errorf("percent = %d, want 0", got.JobGroupPercentComplete)
	}
}
