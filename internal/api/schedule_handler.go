package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/scheduler"
)

// ListSchedules возвращает список schedules.
// GET /api/v1/schedules?limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	limit := int(mustParseInt(r.URL.Query().Get("limit"), 50))
	offset := int(mustParseInt(r.URL.Query().Get("offset"), 0))

	schedules, err := h.scheduleRepo.List(r.Context(), limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ScheduleResponse, len(schedules))
	for i := range schedules {
		result[i] = ScheduleFromDomain(&schedules[i])
	}

	List(w, result, len(result))
}

// CreateSchedule создаёт новый schedule.
// POST /api/v1/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	// Валидация
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if err := scheduler.ValidateCronExpr(req.CronExpr); err != nil {
		BadRequest(w, err.Error())
		return
	}

	// Заявка расписания проверяется так же, как разовая заявка
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

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	schedule := &domain.Schedule{
		ID:           uuid.New(),
		Name:         req.Name,
		BoundaryName: req.BoundaryName,
		Processors:   req.Processors,
		CronExpr:     req.CronExpr,
		Timezone:     timezone,
		Enabled:      req.Enabled,
		CreatedAt:    time.Now().UTC(),
	}

	nextDue, err := scheduler.CalculateNextDue(schedule, time.Now())
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	schedule.NextDueAt = nextDue

	if err := h.scheduleRepo.Create(r.Context(), schedule); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ScheduleFromDomain(schedule))
}

// GetSchedule возвращает schedule по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	schedule, err := h.scheduleRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(schedule))
}

// UpdateSchedule обновляет schedule.
// PUT /api/v1/schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	schedule, err := h.scheduleRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	if req.Name != nil {
		schedule.Name = *req.Name
	}
	if req.Processors != nil {
		if err := h.validator.ValidateSubmission(r.Context(), schedule.BoundaryName, *req.Processors); err != nil {
			BadRequest(w, err.Error())
			return
		}
		schedule.Processors = *req.Processors
	}
	if req.Timezone != nil {
		schedule.Timezone = *req.Timezone
	}
	if req.CronExpr != nil {
		if err := scheduler.ValidateCronExpr(*req.CronExpr); err != nil {
			BadRequest(w, err.Error())
			return
		}
		schedule.CronExpr = *req.CronExpr
	}

	// Пересчитываем следующее срабатывание по новым параметрам
	if req.CronExpr != nil || req.Timezone != nil {
		nextDue, err := scheduler.CalculateNextDue(schedule, time.Now())
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		schedule.NextDueAt = nextDue
	}

	if err := h.scheduleRepo.Update(r.Context(), schedule); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, ScheduleFromDomain(schedule))
}

// DeleteSchedule удаляет schedule.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	if err := h.scheduleRepo.Delete(r.Context(), id); err != nil {
		HandleRepoError(w, h.logger, err, "schedule not found")
		return
	}

	NoContent(w)
}

// SetScheduleEnabled включает или выключает schedule.
// PUT /api/v1/schedules/{id}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.scheduleRepo.SetEnabled(r.Context(), id, req.Enabled); err != nil {
		HandleRepoError(w, h.logger, err, "schedule not found")
		return
	}

	// Возвращаем обновлённый schedule
	schedule, err := h.scheduleRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(schedule))
}
