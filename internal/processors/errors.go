package processors

import "errors"

// Ошибки реестра процессоров.
var (
	// ErrUnknownProcessor — сигнатура не зарегистрирована в реестре.
	ErrUnknownProcessor = errors.New("unknown processor signature")

	// ErrDuplicateSignature — попытка повторной регистрации сигнатуры.
	ErrDuplicateSignature = errors.New("duplicate processor signature")
)
