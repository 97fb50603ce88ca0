// Package repo — доступ к PostgreSQL/PostGIS через pgxpool.
//
// Ожидаемая схема:
//
//	CREATE TYPE job_state AS ENUM ('PENDING', 'RUNNING', 'COMPLETE', 'EXPIRED');
//	CREATE TYPE task_status AS ENUM ('QUEUED', 'RUNNING', 'RESOLVED');
//	CREATE TYPE task_kind AS ENUM ('boundary_setup', 'processor', 'generate_provenance');
//
//	CREATE TABLE jobs (
//	    id            UUID PRIMARY KEY,
//	    boundary_name TEXT NOT NULL,
//	    processors    JSONB NOT NULL,
//	    state         job_state NOT NULL,
//	    error         TEXT,
//	    expires_at    TIMESTAMPTZ,
//	    started_at    TIMESTAMPTZ,
//	    finished_at   TIMESTAMPTZ,
//	    submitted_at  TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE tasks (
//	    id            UUID PRIMARY KEY,
//	    job_id        UUID NOT NULL REFERENCES jobs(id),
//	    kind          task_kind NOT NULL,
//	    processor_sig TEXT NOT NULL DEFAULT '',
//	    attempt       INT NOT NULL DEFAULT 0,
//	    status        task_status NOT NULL,
//	    result        JSONB,
//	    progress      JSONB,
//	    started_at    TIMESTAMPTZ,
//	    finished_at   TIMESTAMPTZ,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE schedules (
//	    id            UUID PRIMARY KEY,
//	    name          TEXT NOT NULL,
//	    boundary_name TEXT NOT NULL,
//	    processors    JSONB NOT NULL,
//	    cron_expr     TEXT NOT NULL,
//	    timezone      TEXT NOT NULL DEFAULT 'UTC',
//	    enabled       BOOLEAN NOT NULL DEFAULT true,
//	    next_due_at   TIMESTAMPTZ NOT NULL,
//	    last_job_id   UUID,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
//
//	-- Таблица границ наполняется отдельным импортом; geometry в EPSG:4326.
//	CREATE TABLE boundaries (
//	    id       BIGSERIAL PRIMARY KEY,
//	    name     TEXT NOT NULL UNIQUE,
//	    geometry GEOMETRY(MULTIPOLYGON, 4326) NOT NULL
//	);
//	CREATE INDEX boundaries_geometry_idx ON boundaries USING GIST (geometry);
package repo
