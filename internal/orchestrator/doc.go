// Package orchestrator содержит центральный компонент системы,
// разворачивающий каждый принятый job в фиксированный трёхстадийный
// DAG (boundary_setup → группа процессоров → generate_provenance)
// и продвигающий его по событиям RabbitMQ с polling fallback.
//
// Оркестратор держит состояние активных jobs в памяти и умеет
// восстанавливать его из БД после рестарта: источником истины
// всегда остаются таблицы jobs и tasks.
package orchestrator
