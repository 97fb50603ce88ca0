// Package worker выполняет отдельные задачи jobs.
//
// Воркер потребляет очередь tasks.ready (с polling-fallback по БД),
// выбирает executor по виду задачи и публикует событие разрешения
// в tasks.completed. Исполнители:
//   - setup_executor.go      — подготовка пакета границы
//   - processor_executor.go  — запуск процессора генерации данных
//   - provenance_executor.go — финализация журнала provenance
//
// Изоляция ошибок: ошибка или паника процессора никогда не роняет
// задачу целиком — она превращается в запись "failed" результата,
// и задача разрешается штатно. Единственные нетерминальные исходы:
// infra-ошибка (сообщение вернётся в очередь) и Retry (сигнатура
// заблокирована, повтор через очередь-таймер tasks.retry).
package worker
