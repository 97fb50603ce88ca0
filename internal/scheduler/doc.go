// Package scheduler создаёт jobs по cron-расписаниям: каждое
// срабатывание — обычная заявка (boundary, processors), проходящая
// через тот же конвейер, что и разовые заявки из API.
package scheduler
