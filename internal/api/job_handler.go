package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/repo"
)

// defaultJobExpiry — срок, в течение которого принятый job должен
// стартовать; после него оркестратор отбрасывает заявку.
const defaultJobExpiry = time.Hour

// SubmitJob принимает заявку на генерацию пакета.
// POST /api/v1/jobs
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	// Синхронная валидация: невалидная заявка отклоняется целиком
	if err := h.validator.ValidateSubmission(r.Context(), req.BoundaryName, req.Processors); err != nil {
		switch {
		case errors.Is(err, ErrBoundaryUnknown):
			NotFound(w, err.Error())
		case errors.Is(err, ErrProcessorUnknown), errors.Is(err, ErrProcessorDuplicate):
			BadRequest(w, err.Error())
		default:
			InternalError(w, h.logger, err)
		}
		return
	}

	expiry := defaultJobExpiry
	if req.ExpiresInSec > 0 {
		expiry = time.Duration(req.ExpiresInSec) * time.Second
	}

	now := time.Now().UTC()
	expiresAt := now.Add(expiry)
	job := &domain.Job{
		ID:           uuid.New(),
		BoundaryName: req.BoundaryName,
		Processors:   req.Processors,
		State:        domain.JobStatePending,
		ExpiresAt:    &expiresAt,
		SubmittedAt:  now,
	}

	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Публикуем событие в очередь
	if h.publisher != nil {
		if err := h.publisher.PublishJobSubmitted(r.Context(), job.ID); err != nil {
			h.logger.Warn("failed to publish job.submitted", "job_id", job.ID, "error", err)
			// Job зафиксирован в БД — оркестратор подхватит через polling
		}
	}

	h.logger.Info("job submitted",
		"job_id", job.ID,
		"boundary", job.BoundaryName,
		"processors", len(job.Processors),
	)

	Accepted(w, SubmitJobResponse{JobID: job.ID})
}

// GetJobStatus возвращает агрегированный статус job.
// GET /api/v1/jobs/{id}
//
// Неизвестный ID отдаётся как пустой PENDING, не как 404:
// клиент не может отличить "не существует" от "ещё не виден".
func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	groupStatus, err := h.aggregator.JobGroupStatus(r.Context(), id)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, groupStatus)
}

// ListJobs возвращает список jobs с фильтрацией.
// GET /api/v1/jobs?boundary=...&state=...&limit=...&offset=...
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := repo.JobFilter{}

	// Парсим query параметры
	if boundary := r.URL.Query().Get("boundary"); boundary != "" {
		filter.BoundaryName = boundary
	}

	if state := r.URL.Query().Get("state"); state != "" {
		filter.State = domain.JobState(state)
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		filter.Limit = int(mustParseInt(limitStr, 50))
	} else {
		filter.Limit = 50
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		filter.Offset = int(mustParseInt(offsetStr, 0))
	}

	jobs, err := h.jobRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		result[i] = JobFromDomain(job)
	}

	List(w, result, len(result))
}

// ListJobTasks возвращает задачи job.
// GET /api/v1/jobs/{id}/tasks
func (h *Handler) ListJobTasks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	// Проверяем, что job существует
	_, err = h.jobRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	tasks, err := h.taskRepo.ListByJobID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// mustParseInt парсит строку в int с дефолтным значением.
func mustParseInt(s string, defaultVal int64) int64 {
	if n, err := json.Number(s).Int64(); err == nil {
		return n
	}
	return defaultVal
}
