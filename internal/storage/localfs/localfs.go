// Package localfs реализует storage.Backend поверх локальной
// файловой системы (через afero, чтобы тесты работали в памяти).
package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/storage"
)

// Backend — файловое хранилище пакетов под единым корневым каталогом.
type Backend struct {
	fs      afero.Fs
	root    string
	hostURL string
}

// New создаёт Backend поверх реальной файловой системы.
func New(root, hostURL string) *Backend {
	return NewWithFs(afero.NewOsFs(), root, hostURL)
}

// NewWithFs создаёт Backend поверх переданной файловой системы.
func NewWithFs(fs afero.Fs, root, hostURL string) *Backend {
	return &Backend{
		fs:      fs,
		root:    filepath.Clean(root),
		hostURL: strings.TrimSuffix(hostURL, "/"),
	}
}

func (b *Backend) path(parts ...string) string {
	return filepath.Join(append([]string{b.root}, parts...)...)
}

// uri переписывает внутренний абсолютный путь в публичный URI:
// наружу корень хранилища не выходит.
func (b *Backend) uri(absPath string) string {
	rel := strings.TrimPrefix(absPath, b.root)
	return b.hostURL + filepath.ToSlash(rel)
}

func (b *Backend) listDirs(dirPath string) ([]string, error) {
	infos, err := afero.ReadDir(b.fs, dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dirPath, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Tree строит дерево package → dataset → [versions] обходом каталогов.
func (b *Backend) Tree(_ context.Context, summaryOnly bool) (storage.Tree, error) {
	packages, err := b.listDirs(b.root)
	if err != nil {
		return nil, err
	}

	tree := make(storage.Tree, len(packages))
	for _, pkg := range packages {
		tree[pkg] = map[string][]string{}
		if summaryOnly {
			continue
		}
		datasets, err := b.listDirs(b.path(pkg, storage.DatasetsFolderName))
		if err != nil {
			return nil, err
		}
		for _, dataset := range datasets {
			versions, err := b.listDirs(b.path(pkg, storage.DatasetsFolderName, dataset))
			if err != nil {
				return nil, err
			}
			tree[pkg][dataset] = versions
		}
	}
	return tree, nil
}

// Packages возвращает отсортированный список пакетов.
func (b *Backend) Packages(ctx context.Context) ([]string, error) {
	tree, err := b.Tree(ctx, true)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// PackageDatasets возвращает датасеты пакета.
func (b *Backend) PackageDatasets(_ context.Context, packageName string) ([]string, error) {
	exists, err := afero.DirExists(b.fs, b.path(packageName))
	if err != nil {
		return nil, fmt.Errorf("stat package %s: %w", packageName, err)
	}
	if !exists {
		return nil, fmt.Errorf("package %s: %w", packageName, storage.ErrPackageNotFound)
	}
	return b.listDirs(b.path(packageName, storage.DatasetsFolderName))
}

// DatasetVersions возвращает версии датасета.
func (b *Backend) DatasetVersions(ctx context.Context, packageName, dataset string) ([]string, error) {
	if _, err := b.PackageDatasets(ctx, packageName); err != nil {
		return nil, err
	}
	dirPath := b.path(packageName, storage.DatasetsFolderName, dataset)
	exists, err := afero.DirExists(b.fs, dirPath)
	if err != nil {
		return nil, fmt.Errorf("stat dataset %s: %w", dataset, err)
	}
	if !exists {
		return nil, fmt.Errorf("dataset %s/%s: %w", packageName, dataset, storage.ErrDatasetNotFound)
	}
	return b.listDirs(dirPath)
}

// BoundaryFolderExists — существует ли корень пакета границы.
func (b *Backend) BoundaryFolderExists(_ context.Context, boundaryName string) (bool, error) {
	return afero.DirExists(b.fs, b.path(boundaryName))
}

// BoundaryDataFolderExists — существует ли каталог datasets границы.
func (b *Backend) BoundaryDataFolderExists(_ context.Context, boundaryName string) (bool, error) {
	return afero.DirExists(b.fs, b.path(boundaryName, storage.DatasetsFolderName))
}

// BoundaryFileExists — существует ли файл в корне пакета границы.
func (b *Backend) BoundaryFileExists(_ context.Context, boundaryName, filename string) (bool, error) {
	return afero.Exists(b.fs, b.path(boundaryName, filename))
}

func (b *Backend) createDir(dirPath string) error {
	if err := b.fs.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrFolderCreation, dirPath, err)
	}
	exists, err := afero.DirExists(b.fs, dirPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dirPath, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s not present after create", storage.ErrFolderCreation, dirPath)
	}
	return nil
}

// CreateBoundaryFolder создаёт корень пакета границы.
func (b *Backend) CreateBoundaryFolder(_ context.Context, boundaryName string) error {
	return b.createDir(b.path(boundaryName))
}

// CreateBoundaryDataFolder создаёт каталог datasets границы.
func (b *Backend) CreateBoundaryDataFolder(_ context.Context, boundaryName string) error {
	return b.createDir(b.path(boundaryName, storage.DatasetsFolderName))
}

// putFile копирует локальный файл в хранилище и проверяет,
// что результат действительно существует.
func (b *Backend) putFile(localSourcePath, destPath string) (string, error) {
	src, err := os.Open(localSourcePath)
	if err != nil {
		return "", fmt.Errorf("open source %s: %w", localSourcePath, err)
	}
	defer src.Close()

	if err := b.fs.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("%w: %s: %v", storage.ErrFolderCreation, filepath.Dir(destPath), err)
	}
	if err := afero.WriteReader(b.fs, destPath, src); err != nil {
		return "", fmt.Errorf("%w: %s: %v", storage.ErrFileCreation, destPath, err)
	}

	exists, err := afero.Exists(b.fs, destPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", destPath, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s not present after write", storage.ErrFileCreation, destPath)
	}
	return b.uri(destPath), nil
}

// PutBoundaryData кладёт вспомогательный файл в корень пакета границы.
func (b *Backend) PutBoundaryData(_ context.Context, localSourcePath, boundaryName string) (string, error) {
	dest := b.path(boundaryName, filepath.Base(localSourcePath))
	return b.putFile(localSourcePath, dest)
}

// PutProcessorData кладёт файл данных процессора в каталог data
// версии датасета.
func (b *Backend) PutProcessorData(_ context.Context, localSourcePath, boundaryName, dataset, version string, removeSource bool) (string, error) {
	dest := b.path(boundaryName, storage.DatasetsFolderName, dataset, version, storage.DataFolderName, filepath.Base(localSourcePath))
	uri, err := b.putFile(localSourcePath, dest)
	if err != nil {
		return "", err
	}
	if removeSource {
		if err := os.Remove(localSourcePath); err != nil {
			return "", fmt.Errorf("remove source %s: %w", localSourcePath, err)
		}
	}
	return uri, nil
}

// PutProcessorMetadata кладёт файл метаданных процессора в каталог
// версии датасета.
func (b *Backend) PutProcessorMetadata(_ context.Context, localSourcePath, boundaryName, dataset, version string) (string, error) {
	dest := b.path(boundaryName, storage.DatasetsFolderName, dataset, version, filepath.Base(localSourcePath))
	return b.putFile(localSourcePath, dest)
}

// ProcessorFileExists — существует ли файл данных процессора.
func (b *Backend) ProcessorFileExists(_ context.Context, boundaryName, dataset, version, filename string) (bool, error) {
	return afero.Exists(b.fs, b.path(boundaryName, storage.DatasetsFolderName, dataset, version, storage.DataFolderName, filename))
}

// ProcessorDatasetExists — существует ли каталог версии датасета.
func (b *Backend) ProcessorDatasetExists(_ context.Context, boundaryName, dataset, version string) (bool, error) {
	return afero.DirExists(b.fs, b.path(boundaryName, storage.DatasetsFolderName, dataset, version))
}

// CountDataFiles считает файлы данных с данным расширением.
func (b *Backend) CountDataFiles(_ context.Context, boundaryName, dataset, version, ext string) (int, error) {
	dirPath := b.path(boundaryName, storage.DatasetsFolderName, dataset, version, storage.DataFolderName)
	infos, err := afero.ReadDir(b.fs, dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", storage.ErrFolderNotFound, dirPath)
		}
		return 0, fmt.Errorf("read dir %s: %w", dirPath, err)
	}

	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	count := 0
	for _, info := range infos {
		if !info.IsDir() && filepath.Ext(info.Name()) == ext {
			count++
		}
	}
	return count, nil
}

// RemoveDataFiles удаляет все файлы данных версии датасета.
func (b *Backend) RemoveDataFiles(_ context.Context, boundaryName, dataset, version string) error {
	dirPath := b.path(boundaryName, storage.DatasetsFolderName, dataset, version, storage.DataFolderName)
	infos, err := afero.ReadDir(b.fs, dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", storage.ErrFolderNotFound, dirPath)
		}
		return fmt.Errorf("read dir %s: %w", dirPath, err)
	}
	for _, info := range infos {
		if err := b.fs.RemoveAll(filepath.Join(dirPath, info.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", info.Name(), err)
		}
	}
	return nil
}

// AddProvenance дописывает журнал в накопительный JSON границы.
// Файл переписывается целиком: читаем историю, добавляем новый
// верхнеуровневый ключ с текущим временем, пишем назад.
func (b *Backend) AddProvenance(_ context.Context, boundaryName string, log []domain.ProvenanceEntry, filename string) error {
	filePath := b.path(boundaryName, filename)

	history := map[string][]domain.ProvenanceEntry{}
	raw, err := afero.ReadFile(b.fs, filePath)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &history); err != nil {
			return fmt.Errorf("decode provenance %s: %w", filePath, err)
		}
	case os.IsNotExist(err):
		// первый запуск: истории ещё нет
	default:
		return fmt.Errorf("read provenance %s: %w", filePath, err)
	}

	history[storage.ProvenanceTimestamp(time.Now())] = log

	updated, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode provenance: %w", err)
	}
	if err := afero.WriteFile(b.fs, filePath, updated, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrFileCreation, filePath, err)
	}
	return nil
}

// LoadDatapackage читает datapackage.json границы.
func (b *Backend) LoadDatapackage(_ context.Context, boundaryName string) (map[string]any, error) {
	filePath := b.path(boundaryName, storage.DatapackageFilename)
	raw, err := afero.ReadFile(b.fs, filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrFileNotFound, filePath)
		}
		return nil, fmt.Errorf("read datapackage %s: %w", filePath, err)
	}
	datapackage := map[string]any{}
	if err := json.Unmarshal(raw, &datapackage); err != nil {
		return nil, fmt.Errorf("decode datapackage %s: %w", filePath, err)
	}
	return datapackage, nil
}

// UpdateDatapackage сливает ресурс в datapackage.json границы.
func (b *Backend) UpdateDatapackage(ctx context.Context, boundaryName string, resource domain.DataPackageResource) error {
	datapackage, err := b.LoadDatapackage(ctx, boundaryName)
	if err != nil {
		return err
	}
	datapackage = domain.AddResourceToDatapackage(resource, datapackage)

	updated, err := json.MarshalIndent(datapackage, "", "  ")
	if err != nil {
		return fmt.Errorf("encode datapackage: %w", err)
	}
	filePath := b.path(boundaryName, storage.DatapackageFilename)
	if err := afero.WriteFile(b.fs, filePath, updated, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrFileCreation, filePath, err)
	}
	return nil
}
