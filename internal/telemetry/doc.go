// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает structured logging через slog: единый формат для всех
// сервисов, уровень и формат из LOG_LEVEL/LOG_FORMAT. Prometheus
// метрики объявляются в cmd рядом с /metrics endpoint.
package telemetry
