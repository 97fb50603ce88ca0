// Package cli реализует инструмент командной строки autopkg.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с autopkg API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для отправки заявок, контроля их статуса и
// управления schedules, границами и каталогом пакетов.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для autopkg API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	jobs, err := client.ListJobs(cli.ListJobsOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: autopkg job list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - job: submit, status, list, tasks
//   - boundary: list, show
//   - package: list, datasets, versions, datapackage
//   - processor: list
//   - schedule: list, create, show, update, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewJobCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
