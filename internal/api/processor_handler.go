package api

import "net/http"

// ListProcessors возвращает метаданные зарегистрированных процессоров.
// GET /api/v1/processors
func (h *Handler) ListProcessors(w http.ResponseWriter, r *http.Request) {
	metadata := h.registry.List()

	result := make([]ProcessorResponse, len(metadata))
	for i, m := range metadata {
		result[i] = ProcessorFromMetadata(m)
	}

	List(w, result, len(result))
}
