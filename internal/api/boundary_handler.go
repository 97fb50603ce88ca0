package api

import (
	"net/http"
	"strconv"
)

// ListBoundaries возвращает список границ.
// GET /api/v1/boundaries?name=...&lon=...&lat=...&limit=...&offset=...
//
// Параметр name включает поиск по подстроке имени, пара lon/lat —
// поиск границ, пересекающих точку. Без параметров — постраничный
// список.
func (h *Handler) ListBoundaries(w http.ResponseWriter, r *http.Request) {
	limit := int(mustParseInt(r.URL.Query().Get("limit"), 50))
	offset := int(mustParseInt(r.URL.Query().Get("offset"), 0))

	lonStr := r.URL.Query().Get("lon")
	latStr := r.URL.Query().Get("lat")

	switch {
	case lonStr != "" || latStr != "":
		lon, lonErr := strconv.ParseFloat(lonStr, 64)
		lat, latErr := strconv.ParseFloat(latStr, 64)
		if lonErr != nil || latErr != nil {
			BadRequest(w, "lon and lat must both be valid coordinates")
			return
		}
		summaries, err := h.boundaryRepo.SearchByPoint(r.Context(), lon, lat, limit)
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		List(w, summaries, len(summaries))

	case r.URL.Query().Get("name") != "":
		summaries, err := h.boundaryRepo.SearchByName(r.Context(), r.URL.Query().Get("name"), limit)
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		List(w, summaries, len(summaries))

	default:
		summaries, err := h.boundaryRepo.List(r.Context(), limit, offset)
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		List(w, summaries, len(summaries))
	}
}

// GetBoundary возвращает границу с геометрией по имени.
// GET /api/v1/boundaries/{name}
func (h *Handler) GetBoundary(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		BadRequest(w, "boundary name is required")
		return
	}

	boundary, err := h.boundaryRepo.GetByName(r.Context(), name)
	if HandleRepoError(w, h.logger, err, "boundary not found") {
		return
	}

	Success(w, BoundaryFromDomain(boundary))
}
