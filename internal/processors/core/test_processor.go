package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/processors"
	"github.com/shaiso/autopkg/internal/storage"
)

// testProcessorMeta — процессор-фикстура: генерирует маленький
// детерминированный GeoTIFF-файл. Нужен для сквозной проверки
// конвейера без тяжёлых источников данных.
var testProcessorMeta = processors.Metadata{
	Dataset:     "test_processor",
	Version:     "version_1",
	Description: "Deterministic fixture dataset for pipeline verification",
	DataFormats: []string{"GeoTIFF"},
	Author:      "autopkg developers",
	OriginURL:   "https://github.com/shaiso/autopkg",
	License: domain.DataPackageLicense{
		Name:  "ODbL-1.0",
		Path:  "https://opendatacommons.org/licenses/odbl/1-0/",
		Title: "Open Data Commons Open Database License 1.0",
	},
	Sources: []domain.DataPackageSource{
		{Title: "autopkg fixture", Path: "https://github.com/shaiso/autopkg"},
	},
}

type testProcessor struct {
	boundary      *domain.Boundary
	backend       storage.Backend
	reporter      processors.ProgressReporter
	processingDir string
}

func newTestProcessor(boundary *domain.Boundary, backend storage.Backend, reporter processors.ProgressReporter, processingDir string) processors.Processor {
	return &testProcessor{
		boundary:      boundary,
		backend:       backend,
		reporter:      reporter,
		processingDir: processingDir,
	}
}

// OutputFilenames возвращает единственный файл данных фикстуры.
func (p *testProcessor) OutputFilenames() []string {
	return []string{p.boundary.Name + "_test.tif"}
}

// Exists — присутствуют ли уже все файлы данных в хранилище.
func (p *testProcessor) Exists(ctx context.Context) (bool, error) {
	return processors.AllOutputsExist(ctx, p.backend, p.boundary.Name, testProcessorMeta, p.OutputFilenames())
}

// Generate пишет файл данных во временный каталог, загружает его
// в хранилище и объявляет ресурс datapackage. Готовый выход не
// перегенерируется: запись provenance фиксирует "exists".
func (p *testProcessor) Generate(ctx context.Context) (any, error) {
	exists, err := p.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check existing output: %w", err)
	}
	if exists {
		p.reporter.Report(ctx, 100, "complete")
		return map[string]any{"exists": true}, nil
	}

	p.reporter.Report(ctx, 10, "generating test data")

	// Детерминированное содержимое: имя границы и её envelope
	content := fmt.Sprintf("autopkg test raster\nboundary: %s\nenvelope: %s\n",
		p.boundary.Name, string(p.boundary.Envelope))
	localPath := filepath.Join(p.processingDir, p.OutputFilenames()[0])
	if err := os.WriteFile(localPath, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write test raster: %w", err)
	}

	digest := sha256.Sum256([]byte(content))

	p.reporter.Report(ctx, 50, "uploading test data")
	uri, err := p.backend.PutProcessorData(ctx, localPath,
		p.boundary.Name, testProcessorMeta.Dataset, testProcessorMeta.Version, true)
	if err != nil {
		return nil, err
	}

	resource := domain.DataPackageResource{
		Name:        testProcessorMeta.Dataset,
		Version:     testProcessorMeta.Version,
		Path:        []string{uri},
		Description: testProcessorMeta.Description,
		Format:      "GeoTIFF",
		SizeBytes:   int64(len(content)),
		Hashes:      []string{hex.EncodeToString(digest[:])},
		Sources:     testProcessorMeta.Sources,
		License:     testProcessorMeta.License,
	}

	p.reporter.Report(ctx, 100, "complete")
	return map[string]any{
		"uri":         uri,
		"datapackage": resource,
	}, nil
}
