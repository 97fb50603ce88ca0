package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/processors"
)

// Job DTOs

// SubmitJobRequest — заявка на генерацию пакета.
type SubmitJobRequest struct {
	BoundaryName string   `json:"boundary_name"`
	Processors   []string `json:"processors"`

	// ExpiresInSec — срок, в течение которого job должен стартовать.
	// 0 — срок по умолчанию (1 час).
	ExpiresInSec int `json:"expires_in_sec,omitempty"`
}

// SubmitJobResponse — подтверждение приёма заявки.
type SubmitJobResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// JobResponse — ответ с job.
type JobResponse struct {
	ID           uuid.UUID  `json:"id"`
	BoundaryName string     `json:"boundary_name"`
	Processors   []string   `json:"processors"`
	State        string     `json:"state"`
	Error        string     `json:"error,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
func JobFromDomain(j domain.Job) JobResponse {
	return JobResponse{
		ID:           j.ID,
		BoundaryName: j.BoundaryName,
		Processors:   j.Processors,
		State:        string(j.State),
		Error:        j.Error,
		ExpiresAt:    j.ExpiresAt,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
		SubmittedAt:  j.SubmittedAt,
	}
}

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID           uuid.UUID            `json:"id"`
	JobID        uuid.UUID            `json:"job_id"`
	Kind         string               `json:"kind"`
	ProcessorSig string               `json:"processor_sig,omitempty"`
	Attempt      int                  `json:"attempt"`
	Status       string               `json:"status"`
	Result       map[string]any       `json:"result,omitempty"`
	Progress     *domain.TaskProgress `json:"progress,omitempty"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:           t.ID,
		JobID:        t.JobID,
		Kind:         string(t.Kind),
		ProcessorSig: t.ProcessorSig,
		Attempt:      t.Attempt,
		Status:       string(t.Status),
		Result:       t.Result,
		Progress:     t.Progress,
		StartedAt:    t.StartedAt,
		FinishedAt:   t.FinishedAt,
		CreatedAt:    t.CreatedAt,
	}
}

// Boundary DTOs

// BoundaryResponse — ответ с границей.
type BoundaryResponse struct {
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry"`
	Envelope json.RawMessage `json:"envelope"`
}

// BoundaryFromDomain конвертирует domain.Boundary в BoundaryResponse.
func BoundaryFromDomain(b *domain.Boundary) BoundaryResponse {
	return BoundaryResponse{
		Name:     b.Name,
		Geometry: b.Geometry,
		Envelope: b.Envelope,
	}
}

// Processor DTOs

// ProcessorResponse — ответ с метаданными процессора.
type ProcessorResponse struct {
	Signature   string   `json:"signature"`
	Dataset     string   `json:"dataset"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	DataFormats []string `json:"data_formats,omitempty"`
	Author      string   `json:"author,omitempty"`
	OriginURL   string   `json:"origin_url,omitempty"`
	License     string   `json:"license,omitempty"`
}

// ProcessorFromMetadata конвертирует processors.Metadata в ProcessorResponse.
func ProcessorFromMetadata(m processors.Metadata) ProcessorResponse {
	return ProcessorResponse{
		Signature:   m.Signature(),
		Dataset:     m.Dataset,
		Version:     m.Version,
		Description: m.Description,
		DataFormats: m.DataFormats,
		Author:      m.Author,
		OriginURL:   m.OriginURL,
		License:     m.License.Name,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name         string   `json:"name"`
	BoundaryName string   `json:"boundary_name"`
	Processors   []string `json:"processors"`
	CronExpr     string   `json:"cron_expr"`
	Timezone     string   `json:"timezone,omitempty"`
	Enabled      bool     `json:"enabled"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name       *string   `json:"name,omitempty"`
	Processors *[]string `json:"processors,omitempty"`
	CronExpr   *string   `json:"cron_expr,omitempty"`
	Timezone   *string   `json:"timezone,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	BoundaryName string     `json:"boundary_name"`
	Processors   []string   `json:"processors"`
	CronExpr     string     `json:"cron_expr"`
	Timezone     string     `json:"timezone"`
	Enabled      bool       `json:"enabled"`
	NextDueAt    time.Time  `json:"next_due_at"`
	LastJobID    *uuid.UUID `json:"last_job_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:           s.ID,
		Name:         s.Name,
		BoundaryName: s.BoundaryName,
		Processors:   s.Processors,
		CronExpr:     s.CronExpr,
		Timezone:     s.Timezone,
		Enabled:      s.Enabled,
		NextDueAt:    s.NextDueAt,
		LastJobID:    s.LastJobID,
		CreatedAt:    s.CreatedAt,
	}
}
