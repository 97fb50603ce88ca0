package processors

import (
	"context"
	"log/slog"
	"testing"

	"github.com/spf13/afero"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/storage/localfs"
)

func setupProvenanceBackend(t *testing.T) *localfs.Backend {
	t.Helper()
	backend := localfs.NewWithFs(afero.NewMemMapFs(), "/packages", "https://data.example.com")
	setup := NewBoundarySetup(&domain.Boundary{Name: "nepal"}, backend, t.TempDir())
	if _, err := setup.Generate(context.Background()); err != nil {
		t.Fatalf("boundary setup: %v", err)
	}
	return backend
}

func TestProvenanceWriter_Write(t *testing.T) {
	backend := setupProvenanceBackend(t)
	writer := NewProvenanceWriter("nepal", backend, slog.Default())
	ctx := context.Background()

	results := []domain.ProvenanceEntry{
		{domain.BoundaryProcessorKey: map[string]any{"boundary": "created"}},
		{"elevation.version_1": map[string]any{
			"uri": "https://data.example.com/nepal/datasets/elevation/version_1/data/a.tif",
			"datapackage": map[string]any{
				"name":    "elevation",
				"version": "version_1",
				"license": map[string]any{"name": "ODbL-1.0"},
			},
		}},
		// Дубликат записи подготовки от второго процессора группы
		{domain.BoundaryProcessorKey: map[string]any{"boundary": "exists"}},
		{"rivers.version_1": map[string]any{"failed": "ProcessorError - source unavailable"}},
	}

	final, err := writer.Write(ctx, results)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := final[domain.ProvenanceProcessorKey]; !ok {
		t.Error("final entry should be keyed by provenance_processor")
	}

	// Объявленный ресурс слит в datapackage; упавший — нет
	datapackage, err := backend.LoadDatapackage(ctx, "nepal")
	if err != nil {
		t.Fatalf("load datapackage: %v", err)
	}
	resources, ok := datapackage["resources"].([]any)
	if !ok || len(resources) != 1 {
		t.Fatalf("expected 1 merged resource, got %v", datapackage["resources"])
	}
	resource := resources[0].(map[string]any)
	if resource["name"] != "elevation" {
		t.Errorf("expected elevation resource, got %v", resource["name"])
	}
}

func TestProvenanceWriter_CollapsesBoundaryEntries(t *testing.T) {
	writer := NewProvenanceWriter("nepal", nil, slog.Default())

	results := []domain.ProvenanceEntry{
		{"elevation.version_1": map[string]any{"uri": "u"}},
		{domain.BoundaryProcessorKey: map[string]any{"boundary": "created"}},
		{domain.BoundaryProcessorKey: map[string]any{"boundary": "exists"}},
	}

	log := writer.collapseBoundaryEntries(results)
	if len(log) != 2 {
		t.Fatalf("expected 2 entries after collapse, got %d", len(log))
	}
	// Единственная запись подготовки должна стоять первой
	if _, ok := log[0][domain.BoundaryProcessorKey]; !ok {
		t.Error("boundary entry should be first")
	}
	if _, ok := log[1]["elevation.version_1"]; !ok {
		t.Error("processor entry should follow boundary entry")
	}
}

func TestExtractResource(t *testing.T) {
	// Значение без объявления ресурса
	_, ok, err := extractResource(map[string]any{"uri": "u"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ok {
		t.Error("value without datapackage key should not yield a resource")
	}

	// Значение-строка (например, причина пропуска)
	_, ok, err = extractResource("skipped")
	if err != nil || ok {
		t.Errorf("scalar value should yield nothing, got ok=%v err=%v", ok, err)
	}

	// Ресурс как struct (прямой результат процессора)
	resource, ok, err := extractResource(map[string]any{
		"datapackage": domain.DataPackageResource{Name: "elevation", Version: "version_1"},
	})
	if err != nil {
		t.Fatalf("extract struct: %v", err)
	}
	if !ok || resource.Name != "elevation" || resource.Version != "version_1" {
		t.Errorf("unexpected resource: ok=%v %+v", ok, resource)
	}
}
