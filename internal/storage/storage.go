package storage

import (
	"context"
	"time"

	"github.com/shaiso/autopkg/internal/domain"
)

// Имена элементов раскладки пакета. Раскладка стабильна между
// реализациями backend:
//
//	{boundary}/
//	  index.html license.html version.html
//	  datapackage.json provenance.json
//	  datasets/{dataset}/{version}/
//	    data/<файлы данных>
//	    <файлы метаданных>
const (
	DatasetsFolderName  = "datasets"
	DataFolderName      = "data"
	IndexFilename       = "index.html"
	LicenseFilename     = "license.html"
	VersionFilename     = "version.html"
	DatapackageFilename = "datapackage.json"
	ProvenanceFilename  = "provenance.json"
)

// ProvenanceTimestamp — верхнеуровневый ключ одного запуска в файле
// provenance. Наносекундная точность: два запуска в одну секунду
// не должны затирать друг друга.
func ProvenanceTimestamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339Nano)
}

// Tree — производная структура "package → dataset → [versions]".
//
// Tree всегда вычисляется заново из фактической раскладки backend
// и никогда не персистится отдельно. Наличие в дереве означает лишь
// что каталог версии существует; полнота файлов данных — отдельная,
// более сильная проверка (ProcessorFileExists / CountDataFiles).
type Tree map[string]map[string][]string

// Backend — абстракция над деревом package/dataset/version.
//
// Реализации: локальная файловая система и объектное хранилище (S3).
// Обе обязаны давать идентичную семантику tree/exists/put. Backend
// не выполняет собственных блокировок: конкурентные записи для одной
// и той же пары (dataset, version) сериализует Lock Manager.
//
// Внутренние абсолютные пути/ключи наружу не выходят: каждый
// возвращаемый URI переписан через настроенный публичный базовый URL.
type Backend interface {
	// Tree строит дерево пакетов. summaryOnly пропускает спуск
	// в datasets/versions для дешёвой проверки существования.
	Tree(ctx context.Context, summaryOnly bool) (Tree, error)

	// Packages возвращает список существующих пакетов.
	Packages(ctx context.Context) ([]string, error)

	// PackageDatasets возвращает датасеты пакета.
	// Отсутствующий пакет — ErrPackageNotFound.
	PackageDatasets(ctx context.Context, packageName string) ([]string, error)

	// DatasetVersions возвращает версии датасета.
	// Отсутствующий датасет — ErrDatasetNotFound.
	DatasetVersions(ctx context.Context, packageName, dataset string) ([]string, error)

	// BoundaryFolderExists — существует ли корень пакета границы.
	BoundaryFolderExists(ctx context.Context, boundaryName string) (bool, error)

	// BoundaryDataFolderExists — существует ли каталог datasets границы.
	BoundaryDataFolderExists(ctx context.Context, boundaryName string) (bool, error)

	// BoundaryFileExists — существует ли файл в корне пакета границы.
	BoundaryFileExists(ctx context.Context, boundaryName, filename string) (bool, error)

	// CreateBoundaryFolder создаёт корень пакета границы.
	CreateBoundaryFolder(ctx context.Context, boundaryName string) error

	// CreateBoundaryDataFolder создаёт каталог datasets границы.
	CreateBoundaryDataFolder(ctx context.Context, boundaryName string) error

	// PutBoundaryData кладёт вспомогательный файл в корень пакета
	// границы. Возвращает публичный URI.
	PutBoundaryData(ctx context.Context, localSourcePath, boundaryName string) (string, error)

	// PutProcessorData кладёт файл данных процессора в
	// datasets/{dataset}/{version}/data/, создавая промежуточные
	// каталоги/префиксы. Если объект не обнаружен сразу после записи —
	// ErrFileCreation. Возвращает публичный URI.
	PutProcessorData(ctx context.Context, localSourcePath, boundaryName, dataset, version string, removeSource bool) (string, error)

	// PutProcessorMetadata кладёт файл метаданных процессора в
	// datasets/{dataset}/{version}/. Возвращает публичный URI.
	PutProcessorMetadata(ctx context.Context, localSourcePath, boundaryName, dataset, version string) (string, error)

	// ProcessorFileExists — существует ли файл данных процессора.
	ProcessorFileExists(ctx context.Context, boundaryName, dataset, version, filename string) (bool, error)

	// ProcessorDatasetExists — существует ли каталог версии датасета.
	ProcessorDatasetExists(ctx context.Context, boundaryName, dataset, version string) (bool, error)

	// CountDataFiles считает файлы данных с данным расширением.
	// Для процессоров, чей критерий полноты — "N файлов типа X",
	// а не единственное предсказуемое имя.
	// Отсутствующий каталог данных — ErrFolderNotFound.
	CountDataFiles(ctx context.Context, boundaryName, dataset, version, ext string) (int, error)

	// RemoveDataFiles удаляет все файлы данных версии датасета.
	RemoveDataFiles(ctx context.Context, boundaryName, dataset, version string) error

	// AddProvenance дописывает упорядоченный журнал в накопительный
	// JSON-объект границы: {"<isoTimestamp>": [entries]}. Первый вызов
	// создаёт файл; последующие добавляют новый верхнеуровневый ключ,
	// не перезаписывая историю (файл переписывается целиком — объектные
	// хранилища не умеют частичный append).
	AddProvenance(ctx context.Context, boundaryName string, log []domain.ProvenanceEntry, filename string) error

	// UpdateDatapackage сливает ресурс в datapackage.json границы
	// по правилам дедупликации (name, version) и имени лицензии.
	UpdateDatapackage(ctx context.Context, boundaryName string, resource domain.DataPackageResource) error

	// LoadDatapackage читает datapackage.json границы.
	LoadDatapackage(ctx context.Context, boundaryName string) (map[string]any, error)
}
