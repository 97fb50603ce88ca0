package processors

import (
	"context"
	"sort"
	"sync"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/storage"
)

// Metadata — самоописание процессора. Всё, что нужно снаружи:
// сигнатура для постановки задач и поля для записи ресурса
// в datapackage.
type Metadata struct {
	// Dataset — имя датасета, который генерирует процессор.
	Dataset string `json:"dataset"`

	// Version — версия процессора, например "version_1".
	// Новая семантика выхода — всегда новая версия, не правка старой.
	Version string `json:"version"`

	// Description — человекочитаемое описание датасета.
	Description string `json:"description"`

	// DataFormats — форматы генерируемых файлов данных.
	DataFormats []string `json:"data_formats"`

	// Author — автор исходных данных.
	Author string `json:"author"`

	// OriginURL — страница происхождения исходных данных.
	OriginURL string `json:"origin_url"`

	// License — лицензия генерируемых данных.
	License domain.DataPackageLicense `json:"license"`

	// Sources — источники, из которых собирается датасет.
	Sources []domain.DataPackageSource `json:"sources"`
}

// Signature возвращает сигнатуру процессора "{dataset}.{version}".
func (m Metadata) Signature() string {
	return domain.ProcessorSignature(m.Dataset, m.Version)
}

// ProgressReporter — канал донесения прогресса выполняющегося
// процессора до опроса статуса. Доставка негарантированная:
// потерянный прогресс не влияет на результат.
type ProgressReporter interface {
	Report(ctx context.Context, percent int, currentTask string)
}

// Processor — единица генерации данных: один процессор производит
// одну версию одного датасета для заданной границы.
//
// Generate обязан быть идемпотентным по наблюдаемому результату:
// повторный запуск для той же (граница, датасет, версия) приводит
// хранилище к тому же состоянию.
type Processor interface {
	// Generate выполняет генерацию и возвращает значение записи
	// provenance. Ошибка процессора не фатальна для job: исполнитель
	// преобразует её в запись "failed".
	Generate(ctx context.Context) (any, error)

	// Exists проверяет, присутствует ли уже выход процессора
	// в хранилище. Поведение по умолчанию — AllOutputsExist по
	// OutputFilenames; процессоры с непредсказуемым числом выходов
	// переопределяют проверку подсчётом файлов.
	Exists(ctx context.Context) (bool, error)

	// OutputFilenames возвращает имена файлов данных, которые
	// производит процессор для своей границы.
	OutputFilenames() []string
}

// AllOutputsExist — проверка Exists по умолчанию: все перечисленные
// файлы процессора присутствуют в хранилище.
func AllOutputsExist(ctx context.Context, backend storage.Backend, boundaryName string, meta Metadata, filenames []string) (bool, error) {
	for _, filename := range filenames {
		exists, err := backend.ProcessorFileExists(ctx, boundaryName, meta.Dataset, meta.Version, filename)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}

// Factory создаёт экземпляр процессора под конкретный запуск.
// processingDir — локальный каталог для промежуточных файлов.
type Factory func(boundary *domain.Boundary, backend storage.Backend, reporter ProgressReporter, processingDir string) Processor

type registration struct {
	meta    Metadata
	factory Factory
}

// Registry — реестр доступных процессоров по сигнатуре.
// Наполняется при старте процесса; после этого только читается.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]registration{}}
}

// Register добавляет процессор в реестр.
// Повторная сигнатура — ErrDuplicateSignature.
func (r *Registry) Register(meta Metadata, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sig := meta.Signature()
	if _, exists := r.entries[sig]; exists {
		return ErrDuplicateSignature
	}
	r.entries[sig] = registration{meta: meta, factory: factory}
	return nil
}

// Get возвращает метаданные и фабрику процессора по сигнатуре.
// Неизвестная сигнатура — ErrUnknownProcessor.
func (r *Registry) Get(signature string) (Metadata, Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[signature]
	if !ok {
		return Metadata{}, nil, ErrUnknownProcessor
	}
	return reg.meta, reg.factory, nil
}

// Has проверяет наличие сигнатуры в реестре.
func (r *Registry) Has(signature string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[signature]
	return ok
}

// Signatures возвращает отсортированный список сигнатур.
func (r *Registry) Signatures() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sigs := make([]string, 0, len(r.entries))
	for sig := range r.entries {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)
	return sigs
}

// List возвращает метаданные всех процессоров, отсортированные
// по сигнатуре.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]Metadata, 0, len(r.entries))
	for _, reg := range r.entries {
		metas = append(metas, reg.meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Signature() < metas[j].Signature()
	})
	return metas
}
