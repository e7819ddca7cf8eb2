// Package api содержит HTTP API сессии watch.
//
// Структура:
//   - handler.go         — Handler с DI (сессия, хранилище контрольных точек, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — отчёты прохода и истории для API и CLI
//   - pass_handler.go    — обработчики для /pass
//   - history_handler.go — обработчики для /states и /checkpoints
//
// API только читает: последний проход вычисления, текущую историю
// состояний документа и сохранённые контрольные точки.
package api
