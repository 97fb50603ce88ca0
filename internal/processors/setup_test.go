package processors

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/storage"
	"github.com/shaiso/autopkg/internal/storage/localfs"
)

func TestBoundarySetup_Generate(t *testing.T) {
	backend := localfs.NewWithFs(afero.NewMemMapFs(), "/packages", "https://data.example.com")
	boundary := &domain.Boundary{Name: "nepal"}
	setup := NewBoundarySetup(boundary, backend, t.TempDir())
	ctx := context.Background()

	value, err := setup.Generate(ctx)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	meta, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected map value, got %T", value)
	}
	if meta["boundary"] != "created" {
		t.Errorf("expected boundary created, got %v", meta["boundary"])
	}

	for _, filename := range []string{
		storage.IndexFilename,
		storage.LicenseFilename,
		storage.VersionFilename,
		storage.DatapackageFilename,
	} {
		exists, err := backend.BoundaryFileExists(ctx, "nepal", filename)
		if err != nil {
			t.Fatalf("check %s: %v", filename, err)
		}
		if !exists {
			t.Errorf("file %s should exist after setup", filename)
		}
	}

	exists, err := backend.BoundaryDataFolderExists(ctx, "nepal")
	if err != nil {
		t.Fatalf("check data folder: %v", err)
	}
	if !exists {
		t.Error("datasets folder should exist after setup")
	}

	// Шаблон datapackage валиден и пуст
	datapackage, err := backend.LoadDatapackage(ctx, "nepal")
	if err != nil {
		t.Fatalf("load datapackage: %v", err)
	}
	if datapackage["name"] != "nepal" {
		t.Errorf("expected datapackage name nepal, got %v", datapackage["name"])
	}
}

func TestBoundarySetup_Idempotent(t *testing.T) {
	backend := localfs.NewWithFs(afero.NewMemMapFs(), "/packages", "https://data.example.com")
	boundary := &domain.Boundary{Name: "nepal"}
	setup := NewBoundarySetup(boundary, backend, t.TempDir())
	ctx := context.Background()

	if _, err := setup.Generate(ctx); err != nil {
		t.Fatalf("first generate: %v", err)
	}

	// Помечаем datapackage, чтобы заметить перезапись
	if err := backend.UpdateDatapackage(ctx, "nepal", domain.DataPackageResource{
		Name: "elevation", Version: "version_1",
		License: domain.DataPackageLicense{Name: "ODbL-1.0"},
	}); err != nil {
		t.Fatalf("update datapackage: %v", err)
	}

	value, err := setup.Generate(ctx)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	meta := value.(map[string]any)
	if meta["boundary"] != "exists" {
		t.Errorf("expected boundary exists, got %v", meta["boundary"])
	}
	if files, ok := meta["files_created"].([]any); ok && len(files) != 0 {
		t.Errorf("no files should be created on rerun, got %v", files)
	}

	// Существующий datapackage не перезаписан шаблоном
	datapackage, err := backend.LoadDatapackage(ctx, "nepal")
	if err != nil {
		t.Fatalf("load datapackage: %v", err)
	}
	resources, ok := datapackage["resources"].([]any)
	if !ok || len(resources) != 1 {
		t.Errorf("existing resources should survive setup rerun, got %v", datapackage["resources"])
	}
}
