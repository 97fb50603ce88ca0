package api

import (
	"errors"
	"net/http"

	"github.com/shaiso/autopkg/internal/storage"
)

// ListPackages возвращает дерево пакетов в хранилище.
// GET /api/v1/packages?summary=true
//
// summary=true обрезает дерево до списков датасетов без версий —
// дешёвый обзор для каталогов с большим числом версий.
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	summaryOnly := r.URL.Query().Get("summary") == "true"

	tree, err := h.backend.Tree(r.Context(), summaryOnly)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, tree)
}

// ListPackageDatasets возвращает датасеты пакета.
// GET /api/v1/packages/{name}/datasets
func (h *Handler) ListPackageDatasets(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	datasets, err := h.backend.PackageDatasets(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrPackageNotFound) {
			NotFound(w, "package not found")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	List(w, datasets, len(datasets))
}

// ListDatasetVersions возвращает версии датасета пакета.
// GET /api/v1/packages/{name}/datasets/{dataset}
func (h *Handler) ListDatasetVersions(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	dataset := r.PathValue("dataset")

	versions, err := h.backend.DatasetVersions(r.Context(), name, dataset)
	if err != nil {
		if errors.Is(err, storage.ErrPackageNotFound) || errors.Is(err, storage.ErrDatasetNotFound) {
			NotFound(w, "dataset not found")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	List(w, versions, len(versions))
}

// GetDatapackage возвращает datapackage.json пакета.
// GET /api/v1/packages/{name}/datapackage
func (h *Handler) GetDatapackage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	datapackage, err := h.backend.LoadDatapackage(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			NotFound(w, "datapackage not found")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, datapackage)
}
