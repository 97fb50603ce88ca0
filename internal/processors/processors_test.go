package processors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/storage"
	"github.com/shaiso/autopkg/internal/storage/localfs"
)

func fixtureMeta(dataset, version string) Metadata {
	return Metadata{
		Dataset: dataset,
		Version: version,
		License: domain.DataPackageLicense{Name: "ODbL-1.0"},
	}
}

func nilFactory(_ *domain.Boundary, _ storage.Backend, _ ProgressReporter, _ string) Processor {
	return nil
}

func TestAllOutputsExist(t *testing.T) {
	ctx := context.Background()
	backend := localfs.NewWithFs(afero.NewMemMapFs(), "/packages", "https://data.example.com")
	meta := fixtureMeta("elevation", "version_1")
	filenames := []string{"nepal_dem.tif", "nepal_slope.tif"}

	put := func(filename string) {
		t.Helper()
		localPath := filepath.Join(t.TempDir(), filename)
		if err := os.WriteFile(localPath, []byte("data"), 0o644); err != nil {
			t.Fatalf("write %s: %v", filename, err)
		}
		if _, err := backend.PutProcessorData(ctx, localPath, "nepal", meta.Dataset, meta.Version, true); err != nil {
			t.Fatalf("put %s: %v", filename, err)
		}
	}

	exists, err := AllOutputsExist(ctx, backend, "nepal", meta, filenames)
	if err != nil {
		t.Fatalf("all outputs exist: %v", err)
	}
	if exists {
		t.Error("empty storage should not report existing outputs")
	}

	// Частичный выход — не выход
	put("nepal_dem.tif")
	exists, err = AllOutputsExist(ctx, backend, "nepal", meta, filenames)
	if err != nil {
		t.Fatalf("all outputs exist: %v", err)
	}
	if exists {
		t.Error("partial output should not count as existing")
	}

	put("nepal_slope.tif")
	exists, err = AllOutputsExist(ctx, backend, "nepal", meta, filenames)
	if err != nil {
		t.Fatalf("all outputs exist: %v", err)
	}
	if !exists {
		t.Error("all files present should count as existing")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(fixtureMeta("elevation", "version_1"), nilFactory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(fixtureMeta("elevation", "version_2"), nilFactory); err != nil {
		t.Fatalf("register second version: %v", err)
	}

	// Повторная сигнатура отклоняется
	err := r.Register(fixtureMeta("elevation", "version_1"), nilFactory)
	if !errors.Is(err, ErrDuplicateSignature) {
		t.Errorf("expected ErrDuplicateSignature, got %v", err)
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(fixtureMeta("elevation", "version_1"), nilFactory); err != nil {
		t.Fatalf("register: %v", err)
	}

	meta, factory, err := r.Get("elevation.version_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if meta.Dataset != "elevation" || meta.Version != "version_1" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if factory == nil {
		t.Error("factory should not be nil")
	}

	_, _, err = r.Get("missing.version_1")
	if !errors.Is(err, ErrUnknownProcessor) {
		t.Errorf("expected ErrUnknownProcessor, got %v", err)
	}
}

func TestRegistry_Signatures(t *testing.T) {
	r := NewRegistry()
	for _, meta := range []Metadata{
		fixtureMeta("rivers", "version_1"),
		fixtureMeta("elevation", "version_1"),
	} {
		if err := r.Register(meta, nilFactory); err != nil {
			t.Fatalf("register %s: %v", meta.Signature(), err)
		}
	}

	sigs := r.Signatures()
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sigs))
	}
	// Сортировка стабильна
	if sigs[0] != "elevation.version_1" || sigs[1] != "rivers.version_1" {
		t.Errorf("unexpected order: %v", sigs)
	}

	if !r.Has("rivers.version_1") {
		t.Error("Has should report registered signature")
	}
	if r.Has("rivers.version_9") {
		t.Error("Has should not report unregistered signature")
	}
}
