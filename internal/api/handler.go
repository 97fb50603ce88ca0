package api

import (
	"log/slog"

	"github.com/shaiso/autopkg/internal/mq"
	"github.com/shaiso/autopkg/internal/processors"
	"github.com/shaiso/autopkg/internal/repo"
	"github.com/shaiso/autopkg/internal/status"
	"github.com/shaiso/autopkg/internal/storage"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	jobRepo      *repo.JobRepo
	taskRepo     *repo.TaskRepo
	boundaryRepo *repo.BoundaryRepo
	scheduleRepo *repo.ScheduleRepo
	registry     *processors.Registry
	backend      storage.Backend
	aggregator   *status.Aggregator
	validator    *Validator
	publisher    *mq.Publisher
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	JobRepo      *repo.JobRepo
	TaskRepo     *repo.TaskRepo
	BoundaryRepo *repo.BoundaryRepo
	ScheduleRepo *repo.ScheduleRepo
	Registry     *processors.Registry
	Backend      storage.Backend
	Publisher    *mq.Publisher
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		jobRepo:      cfg.JobRepo,
		taskRepo:     cfg.TaskRepo,
		boundaryRepo: cfg.BoundaryRepo,
		scheduleRepo: cfg.ScheduleRepo,
		registry:     cfg.Registry,
		backend:      cfg.Backend,
		aggregator:   status.New(cfg.JobRepo, cfg.TaskRepo),
		validator:    NewValidator(cfg.BoundaryRepo, cfg.Registry),
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
	}
}
