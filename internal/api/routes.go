package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Jobs
	mux.Handle("POST /api/v1/jobs", chain(http.HandlerFunc(h.SubmitJob)))
	mux.Handle("GET /api/v1/jobs", chain(http.HandlerFunc(h.ListJobs)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJobStatus)))
	mux.Handle("GET /api/v1/jobs/{id}/tasks", chain(http.HandlerFunc(h.ListJobTasks)))

	// Boundaries
	mux.Handle("GET /api/v1/boundaries", chain(http.HandlerFunc(h.ListBoundaries)))
	mux.Handle("GET /api/v1/boundaries/{name}", chain(http.HandlerFunc(h.GetBoundary)))

	// Packages
	mux.Handle("GET /api/v1/packages", chain(http.HandlerFunc(h.ListPackages)))
	mux.Handle("GET /api/v1/packages/{name}/datasets", chain(http.HandlerFunc(h.ListPackageDatasets)))
	mux.Handle("GET /api/v1/packages/{name}/datasets/{dataset}", chain(http.HandlerFunc(h.ListDatasetVersions)))
	mux.Handle("GET /api/v1/packages/{name}/datapackage", chain(http.HandlerFunc(h.GetDatapackage)))

	// Processors
	mux.Handle("GET /api/v1/processors", chain(http.HandlerFunc(h.ListProcessors)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
}
