// Package api реализует HTTP API сервиса генерации пакетов.
//
// Поверхность:
//   - приём заявок на генерацию (jobs) и опрос их статуса
//   - справочники границ и зарегистрированных процессоров
//   - просмотр дерева пакетов и datapackage границы
//   - CRUD расписаний регулярного переформирования
//
// Вся поверхность синхронная и быстрая: тяжёлая работа уходит
// в очередь, API отвечает сразу после фиксации заявки в БД.
package api
