package storage

import "errors"

// Ошибки уровня хранилища.
var (
	// ErrPackageNotFound — запрошенный пакет отсутствует в хранилище.
	ErrPackageNotFound = errors.New("package not found")

	// ErrDatasetNotFound — запрошенный датасет отсутствует в пакете.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrFolderNotFound — запрошенный каталог отсутствует.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrFolderCreation — каталог не удалось создать либо он
	// не обнаружен сразу после создания.
	ErrFolderCreation = errors.New("folder creation failed")

	// ErrFileCreation — файл не удалось записать либо он
	// не обнаружен сразу после записи.
	ErrFileCreation = errors.New("file creation failed")

	// ErrFileNotFound — запрошенный файл отсутствует.
	ErrFileNotFound = errors.New("file not found")
)
