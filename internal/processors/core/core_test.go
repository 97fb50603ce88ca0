package core

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/storage/localfs"
)

type recordingReporter struct {
	percents []int
}

func (r *recordingReporter) Report(_ context.Context, percent int, _ string) {
	r.percents = append(r.percents, percent)
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	sigs := registry.Signatures()
	if len(sigs) != 2 {
		t.Fatalf("expected 2 core processors, got %v", sigs)
	}
	if !registry.Has("test_processor.version_1") {
		t.Error("test_processor.version_1 should be registered")
	}
	if !registry.Has("test_fail_processor.version_1") {
		t.Error("test_fail_processor.version_1 should be registered")
	}
}

func TestTestProcessor_Generate(t *testing.T) {
	backend := localfs.NewWithFs(afero.NewMemMapFs(), "/packages", "https://data.example.com")
	boundary := &domain.Boundary{Name: "nepal", Envelope: []byte(`[80.0,26.3,88.2,30.4]`)}
	reporter := &recordingReporter{}
	p := newTestProcessor(boundary, backend, reporter, t.TempDir())
	ctx := context.Background()

	exists, err := p.Exists(ctx)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("output should not exist before generate")
	}

	value, err := p.Generate(ctx)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	result, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", value)
	}
	uri, _ := result["uri"].(string)
	want := "https://data.example.com/nepal/datasets/test_processor/version_1/data/nepal_test.tif"
	if uri != want {
		t.Errorf("expected uri %s, got %s", want, uri)
	}
	resource, ok := result["datapackage"].(domain.DataPackageResource)
	if !ok {
		t.Fatalf("expected resource declaration, got %T", result["datapackage"])
	}
	if resource.Name != "test_processor" || resource.Version != "version_1" {
		t.Errorf("unexpected resource identity: %+v", resource)
	}
	if resource.SizeBytes == 0 || len(resource.Hashes) != 1 {
		t.Errorf("resource should carry size and hash: %+v", resource)
	}

	exists, err = p.Exists(ctx)
	if err != nil {
		t.Fatalf("exists after generate: %v", err)
	}
	if !exists {
		t.Error("output should exist after generate")
	}

	// Прогресс доходил до 100
	if len(reporter.percents) == 0 || reporter.percents[len(reporter.percents)-1] != 100 {
		t.Errorf("expected final progress 100, got %v", reporter.percents)
	}
}

func TestTestProcessor_GenerateSkipsExistingOutput(t *testing.T) {
	backend := localfs.NewWithFs(afero.NewMemMapFs(), "/packages", "https://data.example.com")
	boundary := &domain.Boundary{Name: "nepal", Envelope: []byte(`[80.0,26.3,88.2,30.4]`)}
	p := newTestProcessor(boundary, backend, &recordingReporter{}, t.TempDir())
	ctx := context.Background()

	if _, err := p.Generate(ctx); err != nil {
		t.Fatalf("first generate: %v", err)
	}

	// Готовый выход не перегенерируется
	value, err := p.Generate(ctx)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	result, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", value)
	}
	if result["exists"] != true {
		t.Errorf("expected exists record, got %v", result)
	}
	if _, ok := result["uri"]; ok {
		t.Errorf("existing output should not be re-uploaded: %v", result)
	}
}

func TestTestFailProcessor_Generate(t *testing.T) {
	reporter := &recordingReporter{}
	p := newTestFailProcessor(nil, nil, reporter, "")

	_, err := p.Generate(context.Background())
	if !errors.Is(err, ErrDeliberateFailure) {
		t.Errorf("expected ErrDeliberateFailure, got %v", err)
	}
	if len(reporter.percents) != 1 {
		t.Errorf("expected one progress report before failure, got %v", reporter.percents)
	}
}
