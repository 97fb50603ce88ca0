// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - job.submitted    — новый job принят к выполнению
//   - task.ready       — задача готова к выполнению
//   - task.retry       — задача отложена (сигнатура заблокирована)
//   - task.completed   — задача разрешена
//
// Exchanges:
//   - autopkg.jobs     — события jobs
//   - autopkg.tasks    — события tasks
//   - autopkg.dlq      — dead letter queue
package mq
