package domain

import "strings"

// TaskKind — вид задачи внутри DAG одного job.
//
// DAG всегда имеет фиксированную форму:
//
//	boundary_setup → group(processor, ...) → generate_provenance
type TaskKind string

const (
	// TaskKindBoundarySetup — подготовка структуры пакета границы.
	TaskKindBoundarySetup TaskKind = "boundary_setup"

	// TaskKindProcessor — выполнение одного dataset-процессора.
	TaskKindProcessor TaskKind = "processor"

	// TaskKindProvenance — финальный шаг: слияние provenance и datapackage.
	TaskKindProvenance TaskKind = "generate_provenance"
)

// ProcessorSignature строит каноническую сигнатуру процессора
// из имени датасета и версии: "dataset.version".
//
// Сигнатура глобально уникальна в реестре процессоров и используется
// для маршрутизации, блокировок и путей вывода.
func ProcessorSignature(dataset, version string) string {
	return dataset + "." + version
}

// DatasetFromSignature возвращает имя датасета из сигнатуры процессора.
func DatasetFromSignature(signature string) string {
	name, _, _ := strings.Cut(signature, ".")
	return name
}

// VersionFromSignature возвращает версию из сигнатуры процессора.
func VersionFromSignature(signature string) string {
	_, version, _ := strings.Cut(signature, ".")
	return version
}

// TaskSignature строит ключ взаимного исключения для Lock Manager:
// "{boundary}.{processorSignature|taskKind}".
//
// В любой момент времени ключ может удерживать только один владелец.
func TaskSignature(boundaryName, processorOrKind string) string {
	return boundaryName + "." + processorOrKind
}
