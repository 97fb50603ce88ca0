package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/locks"
	"github.com/shaiso/autopkg/internal/processors"
	"github.com/shaiso/autopkg/internal/processors/core"
	"github.com/shaiso/autopkg/internal/storage"
	"github.com/shaiso/autopkg/internal/storage/localfs"
)

func newTestLocks(t *testing.T) *locks.Manager {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return locks.New(client, time.Minute, slog.Default())
}

func newTestBackend() *localfs.Backend {
	return localfs.NewWithFs(afero.NewMemMapFs(), "/packages", "https://data.example.com")
}

func testBoundary() *domain.Boundary {
	return &domain.Boundary{
		Name:     "fort-portal",
		Geometry: json.RawMessage(`{"type":"MultiPolygon","coordinates":[[[[30.2,0.6],[30.3,0.6],[30.3,0.7],[30.2,0.7],[30.2,0.6]]]]}`),
		Envelope: json.RawMessage(`{"type":"Polygon","coordinates":[[[30.2,0.6],[30.3,0.6],[30.3,0.7],[30.2,0.7],[30.2,0.6]]]}`),
	}
}

func newTestRequest(kind domain.TaskKind, processorSig string) *Request {
	jobID := uuid.New()
	return &Request{
		Job: &domain.Job{
			ID:           jobID,
			BoundaryName: "fort-portal",
			Processors:   []string{"test_processor.version_1"},
			State:        domain.JobStateRunning,
		},
		Boundary: testBoundary(),
		Task: &domain.Task{
			ID:           uuid.New(),
			JobID:        jobID,
			Kind:         kind,
			ProcessorSig: processorSig,
			Status:       domain.TaskStatusRunning,
		},
	}
}

type fakeProgressStore struct {
	mu      sync.Mutex
	updates []domain.TaskProgress
}

func (s *fakeProgressStore) UpdateProgress(_ context.Context, _ uuid.UUID, progress *domain.TaskProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, *progress)
	return nil
}

type fakeTaskLister struct {
	tasks []domain.Task
}

func (l *fakeTaskLister) ListByJobID(_ context.Context, _ uuid.UUID) ([]domain.Task, error) {
	return l.tasks, nil
}

func TestSetupExecutorCreatesBoundary(t *testing.T) {
	ctx := context.Background()
	lockMgr := newTestLocks(t)
	backend := newTestBackend()
	executor := NewSetupExecutor(lockMgr, backend, t.TempDir(), slog.Default())

	req := newTestRequest(domain.TaskKindBoundarySetup, "")

	outcome, err := executor.Execute(ctx, req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Retry {
		t.Fatal("setup should not defer on free signature")
	}

	value, ok := outcome.Result[domain.BoundaryProcessorKey].(map[string]any)
	if !ok {
		t.Fatalf("result should carry %s entry, got %v", domain.BoundaryProcessorKey, outcome.Result)
	}
	if value["boundary"] != "created" {
		t.Errorf("boundary = %v, want created", value["boundary"])
	}

	exists, err := backend.BoundaryDataFolderExists(ctx, "fort-portal")
	if err != nil {
		t.Fatalf("data folder exists: %v", err)
	}
	if !exists {
		t.Error("datasets folder should be created")
	}

	// Блокировка снята после выполнения
	held, err := lockMgr.IsHeld(ctx, req.Task.LockSignature("fort-portal"))
	if err != nil {
		t.Fatalf("is held: %v", err)
	}
	if held {
		t.Error("setup lock should be released")
	}
}

func TestSetupExecutorSkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	lockMgr := newTestLocks(t)
	backend := newTestBackend()
	executor := NewSetupExecutor(lockMgr, backend, t.TempDir(), slog.Default())

	req := newTestRequest(domain.TaskKindBoundarySetup, "")

	signature := req.Task.LockSignature("fort-portal")
	if _, err := lockMgr.Acquire(ctx, signature, "other-worker"); err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}

	outcome, err := executor.Execute(ctx, req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Retry {
		t.Fatal("busy setup signature resolves as skip, not retry")
	}

	value, ok := outcome.Result[domain.BoundaryProcessorKey].(map[string]any)
	if !ok {
		t.Fatalf("result should carry %s entry, got %v", domain.BoundaryProcessorKey, outcome.Result)
	}
	reason, _ := value[domain.OutcomeSkipped].(string)
	if reason != signature+" already executing" {
		t.Errorf("skip reason = %q, want %q", reason, signature+" already executing")
	}

	// Чужая блокировка не должна быть снята
	held, err := lockMgr.IsHeld(ctx, signature)
	if err != nil {
		t.Fatalf("is held: %v", err)
	}
	if !held {
		t.Error("foreign lock must stay held after skip")
	}

	// Скелет пакета готовит держатель блокировки, не мы
	exists, err := backend.BoundaryDataFolderExists(ctx, "fort-portal")
	if err != nil {
		t.Fatalf("data folder exists: %v", err)
	}
	if exists {
		t.Error("skipped setup must not touch storage")
	}
}

func TestSetupExecutorContainsFailure(t *testing.T) {
	ctx := context.Background()
	lockMgr := newTestLocks(t)
	// Хранилище только для чтения: создание каталогов обречено
	backend := localfs.NewWithFs(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/packages", "https://data.example.com")
	executor := NewSetupExecutor(lockMgr, backend, t.TempDir(), slog.Default())

	req := newTestRequest(domain.TaskKindBoundarySetup, "")

	outcome, err := executor.Execute(ctx, req)
	if err != nil {
		t.Fatalf("setup failure must be contained, got infra error: %v", err)
	}
	if outcome.Retry {
		t.Fatal("contained failure should resolve, not defer")
	}

	value, ok := outcome.Result[domain.BoundaryProcessorKey].(map[string]any)
	if !ok {
		t.Fatalf("result should carry %s entry, got %v", domain.BoundaryProcessorKey, outcome.Result)
	}
	msg, ok := value[domain.OutcomeFailed].(string)
	if !ok {
		t.Fatalf("entry should carry %q key, got %v", domain.OutcomeFailed, value)
	}
	if !strings.HasPrefix(msg, "BoundarySetupError - ") {
		t.Errorf("failure message = %q, want BoundarySetupError prefix", msg)
	}
}

func newProcessorExecutor(t *testing.T, lockMgr *locks.Manager, backend storage.Backend, store *fakeProgressStore) *ProcessorExecutor {
	t.Helper()
	registry, err := core.NewRegistry()
	if err != nil {
		t.Fatalf("core registry: %v", err)
	}
	return NewProcessorExecutor(lockMgr, backend, registry, store, t.TempDir(), slog.Default())
}

func TestProcessorExecutorSuccess(t *testing.T) {
	ctx := context.Background()
	lockMgr := newTestLocks(t)
	backend := newTestBackend()
	store := &fakeProgressStore{}
	executor := newProcessorExecutor(t, lockMgr, backend, store)

	req := newTestRequest(domain.TaskKindProcessor, "test_processor.version_1")

	outcome, err := executor.Execute(ctx, req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Retry {
		t.Fatal("processor should not defer on free signatures")
	}

	value, ok := outcome.Result["test_processor.version_1"].(map[string]any)
	if !ok {
		t.Fatalf("result should be keyed by processor signature, got %v", outcome.Result)
	}
	uri, _ := value["uri"].(string)
	if !strings.HasPrefix(uri, "https://data.example.com/fort-portal/") {
		t.Errorf("uri = %q, want host-prefixed package path", uri)
	}

	exists, err := backend.ProcessorFileExists(ctx, "fort-portal", "test_processor", "version_1", "fort-portal_test.tif")
	if err != nil {
		t.Fatalf("processor file exists: %v", err)
	}
	if !exists {
		t.Error("generated file should be stored in backend")
	}

	if len(store.updates) == 0 {
		t.Fatal("processor should report progress")
	}
	last := store.updates[len(store.updates)-1]
	if last.Percent != 100 {
		t.Errorf("last progress = %d%%, want 100%%", last.Percent)
	}

	held, err := lockMgr.IsHeld(ctx, req.Task.LockSignature("fort-portal"))
	if err != nil {
		t.Fatalf("is held: %v", err)
	}
	if held {
		t.Error("processor lock should be released")
	}
}

func TestProcessorExecutorDefersWhileSetupRunning(t *testing.T) {
	ctx := context.Background()
	lockMgr := newTestLocks(t)
	executor := newProcessorExecutor(t, lockMgr, newTestBackend(), &fakeProgressStore{})

	req := newTestRequest(domain.TaskKindProcessor, "test_processor.version_1")

	setupSig := domain.TaskSignature("fort-portal", string(domain.TaskKindBoundarySetup))
	if _, err := lockMgr.Acquire(ctx, setupSig, "setup-worker"); err != nil {
		t.Fatalf("pre-acquire setup lock: %v", err)
	}

	outcome, err := executor.Execute(ctx, req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !outcome.Retry {
		t.Error("processor should defer while boundary setup is running")
	}
}

func TestProcessorExecutorSkipsWhenSignatureLocked(t *testing.T) {
	ctx := context.Background()
	lockMgr := newTestLocks(t)
	executor := newProcessorExecutor(t, lockMgr, newTestBackend(), &fakeProgressStore{})

	req := newTestRequest(domain.TaskKindProcessor, "test_processor.version_1")

	signature := req.Task.LockSignature("fort-portal")
	if _, err := lockMgr.Acquire(ctx, signature, "other-worker"); err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}

	outcome, err := executor.Execute(ctx, req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Retry {
		t.Fatal("busy own signature resolves as skip, not retry")
	}

	value, ok := outcome.Result["test_processor.version_1"].(map[string]any)
	if !ok {
		t.Fatalf("result should be keyed by processor signature, got %v", outcome.Result)
	}
	reason, _ := value[domain.OutcomeSkipped].(string)
	if reason != signature+" already executing" {
		t.Errorf("skip reason = %q, want %q", reason, signature+" already executing")
	}

	// Чужая блокировка не должна быть снята
	held, err := lockMgr.IsHeld(ctx, signature)
	if err != nil {
		t.Fatalf("is held: %v", err)
	}
	if !held {
		t.Error("foreign lock must stay held after skip")
	}
}

func TestProcessorExecutorContainsFailure(t *testing.T) {
	ctx := context.Background()
	lockMgr := newTestLocks(t)
	executor := newProcessorExecutor(t, lockMgr, newTestBackend(), &fakeProgressStore{})

	req := newTestRequest(domain.TaskKindProcessor, "test_fail_processor.version_1")

	outcome, err := executor.Execute(ctx, req)
	if err != nil {
		t.Fatalf("processor failure must be contained, got infra error: %v", err)
	}

	value, ok := outcome.Result["test_fail_processor.version_1"].(map[string]any)
	if !ok {
		t.Fatalf("result should be keyed by processor signature, got %v", outcome.Result)
	}
	msg, _ := value[domain.OutcomeFailed].(string)
	if !strings.HasPrefix(msg, "ProcessorError - ") {
		t.Errorf("failure message = %q, want ProcessorError prefix", msg)
	}
	if !strings.Contains(msg, "deliberate failure") {
		t.Errorf("failure message = %q, should carry the processor error text", msg)
	}
}

func TestProcessorExecutorUnknownSignature(t *testing.T) {
	ctx := context.Background()
	lockMgr := newTestLocks(t)
	executor := newProcessorExecutor(t, lockMgr, newTestBackend(), &fakeProgressStore{})

	req := newTestRequest(domain.TaskKindProcessor, "no_such_dataset.version_9")

	outcome, err := executor.Execute(ctx, req)
	if err != nil {
		t.Fatalf("unknown signature must be contained, got infra error: %v", err)
	}

	value, ok := outcome.Result["no_such_dataset.version_9"].(map[string]any)
	if !ok {
		t.Fatalf("result should be keyed by processor signature, got %v", outcome.Result)
	}
	msg, _ := value[domain.OutcomeFailed].(string)
	if !strings.Contains(msg, processors.ErrUnknownProcessor.Error()) {
		t.Errorf("failure message = %q, should mention unknown processor", msg)
	}
}

func TestProvenanceExecutorDefersWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	lockMgr := newTestLocks(t)
	executor := NewProvenanceExecutor(lockMgr, newTestBackend(), &fakeTaskLister{}, slog.Default())

	req := newTestRequest(domain.TaskKindProvenance, "")

	if _, err := lockMgr.Acquire(ctx, req.Task.LockSignature("fort-portal"), "other-worker"); err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}

	outcome, err := executor.Execute(ctx, req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !outcome.Retry {
		t.Error("provenance should defer while signature is held")
	}
}

func TestProvenanceExecutorWritesProvenance(t *testing.T) {
	ctx := context.Background()
	lockMgr := newTestLocks(t)
	backend := newTestBackend()

	// Готовим скелет пакета, чтобы было куда сливать datapackage
	boundary := testBoundary()
	if _, err := processors.NewBoundarySetup(boundary, backend, t.TempDir()).Generate(ctx); err != nil {
		t.Fatalf("boundary setup: %v", err)
	}

	req := newTestRequest(domain.TaskKindProvenance, "")
	jobID := req.Job.ID

	resource := map[string]any{
		"name":    "test_processor",
		"version": "version_1",
		"path":    []any{"https://data.example.com/fort-portal/datasets/test_processor/version_1/data/fort-portal_test.tif"},
		"format":  "GeoTIFF",
		"license": map[string]any{"name": "ODbL-1.0", "path": "https://opendatacommons.org/licenses/odbl/1-0/", "title": "ODbL"},
	}
	lister := &fakeTaskLister{tasks: []domain.Task{
		{
			ID: uuid.New(), JobID: jobID,
			Kind:   domain.TaskKindBoundarySetup,
			Status: domain.TaskStatusResolved,
			Result: map[string]any{domain.BoundaryProcessorKey: map[string]any{"boundary": "created"}},
		},
		{
			ID: uuid.New(), JobID: jobID,
			Kind: domain.TaskKindProcessor, ProcessorSig: "test_processor.version_1",
			Status: domain.TaskStatusResolved,
			Result: map[string]any{"test_processor.version_1": map[string]any{
				"uri":         "https://data.example.com/fort-portal/datasets/test_processor/version_1/data/fort-portal_test.tif",
				"datapackage": resource,
			}},
		},
		{
			ID: uuid.New(), JobID: jobID,
			Kind:   domain.TaskKindProvenance,
			Status: domain.TaskStatusRunning,
		},
	}}

	executor := NewProvenanceExecutor(lockMgr, backend, lister, slog.Default())

	outcome, err := executor.Execute(ctx, req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Retry {
		t.Fatal("provenance should resolve when storage is healthy")
	}
	if _, ok := outcome.Result[domain.ProvenanceProcessorKey]; !ok {
		t.Errorf("result should carry %s entry, got %v", domain.ProvenanceProcessorKey, outcome.Result)
	}

	pkg, err := backend.LoadDatapackage(ctx, "fort-portal")
	if err != nil {
		t.Fatalf("load datapackage: %v", err)
	}
	resources, _ := pkg["resources"].([]any)
	if len(resources) != 1 {
		t.Errorf("datapackage resources = %d, want 1", len(resources))
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	w := New(Config{})

	if w.pollInterval != defaultPollInterval {
		t.Errorf("poll interval = %v, want %v", w.pollInterval, defaultPollInterval)
	}
	if w.batchSize != defaultBatchSize {
		t.Errorf("batch size = %d, want %d", w.batchSize, defaultBatchSize)
	}
	if w.registry == nil {
		t.Error("registry should default to an empty registry")
	}
	if w.IsStopped() {
		t.Error("new worker should not be stopped")
	}
}
