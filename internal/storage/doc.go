// Package storage определяет контракт хранилища сгенерированных
// пакетов данных: дерево package/dataset/version, файлы provenance
// и datapackage, вспомогательные файлы границы.
//
// Конкретные реализации живут в подпакетах localfs (локальная
// файловая система) и awss3 (объектное хранилище S3). Выбор backend
// делают бинарники по переменной окружения AUTOPKG_STORAGE_BACKEND.
package storage
