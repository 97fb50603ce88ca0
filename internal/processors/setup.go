package processors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/storage"
)

// BoundarySetup — внутренний процессор первой стадии job: готовит
// скелет пакета границы до запуска пользовательских процессоров.
//
// Идемпотентен: существующие файлы не перезаписываются, повторный
// запуск для готовой границы — no-op с записью "exists".
type BoundarySetup struct {
	boundary      *domain.Boundary
	backend       storage.Backend
	processingDir string
}

// NewBoundarySetup создаёт процессор подготовки границы.
func NewBoundarySetup(boundary *domain.Boundary, backend storage.Backend, processingDir string) *BoundarySetup {
	return &BoundarySetup{
		boundary:      boundary,
		backend:       backend,
		processingDir: processingDir,
	}
}

// Exists — существует ли уже корень пакета границы.
func (s *BoundarySetup) Exists(ctx context.Context) (bool, error) {
	return s.backend.BoundaryFolderExists(ctx, s.boundary.Name)
}

// Generate создаёт каталоги пакета и стартовые файлы границы:
// index/license/version страницы и шаблон datapackage.json.
// Возвращает значение записи provenance под ключом
// domain.BoundaryProcessorKey.
func (s *BoundarySetup) Generate(ctx context.Context) (any, error) {
	existed, err := s.backend.BoundaryFolderExists(ctx, s.boundary.Name)
	if err != nil {
		return nil, fmt.Errorf("check boundary folder: %w", err)
	}

	if err := s.backend.CreateBoundaryFolder(ctx, s.boundary.Name); err != nil {
		return nil, err
	}
	if err := s.backend.CreateBoundaryDataFolder(ctx, s.boundary.Name); err != nil {
		return nil, err
	}

	created := []any{}
	for filename, content := range s.templates() {
		exists, err := s.backend.BoundaryFileExists(ctx, s.boundary.Name, filename)
		if err != nil {
			return nil, fmt.Errorf("check boundary file %s: %w", filename, err)
		}
		if exists {
			continue
		}

		localPath := filepath.Join(s.processingDir, filename)
		if err := os.WriteFile(localPath, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write template %s: %w", filename, err)
		}
		uri, err := s.backend.PutBoundaryData(ctx, localPath, s.boundary.Name)
		if err != nil {
			return nil, err
		}
		if err := os.Remove(localPath); err != nil {
			return nil, fmt.Errorf("remove template %s: %w", filename, err)
		}
		created = append(created, uri)
	}

	state := "created"
	if existed {
		state = "exists"
	}
	return map[string]any{
		"boundary":      state,
		"files_created": created,
	}, nil
}

// templates возвращает стартовые файлы пакета границы.
func (s *BoundarySetup) templates() map[string]string {
	name := s.boundary.Name
	return map[string]string{
		storage.IndexFilename: fmt.Sprintf(
			"<!DOCTYPE html>\n<html>\n<head><title>%s data package</title></head>\n<body>\n<h1>%s</h1>\n<p>Generated data package for boundary %s.</p>\n</body>\n</html>\n",
			name, name, name),
		storage.LicenseFilename: fmt.Sprintf(
			"<!DOCTYPE html>\n<html>\n<head><title>%s licenses</title></head>\n<body>\n<h1>Licenses</h1>\n<p>Dataset licenses are listed in datapackage.json.</p>\n</body>\n</html>\n",
			name),
		storage.VersionFilename: fmt.Sprintf(
			"<!DOCTYPE html>\n<html>\n<head><title>%s versions</title></head>\n<body>\n<h1>Versions</h1>\n<p>Dataset versions are listed in datapackage.json.</p>\n</body>\n</html>\n",
			name),
		storage.DatapackageFilename: fmt.Sprintf(
			"{\n  \"name\": %q,\n  \"title\": \"Data package for boundary %s\",\n  \"resources\": [],\n  \"licenses\": []\n}\n",
			name, name),
	}
}
