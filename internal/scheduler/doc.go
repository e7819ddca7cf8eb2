// Package scheduler сохраняет контрольные точки истории графа по расписанию.
//
// Checkpointer по cron-выражению снимает историю открытых документов
// (undo/redo) и записывает её в хранилище. Неизменившиеся истории
// пропускаются.
//
// Структура:
//   - scheduler.go — Checkpointer (Tick, Start, Stop)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	cp, err := scheduler.New(scheduler.Config{
//	    Store:    repo.NewHistoryRepo(pool),
//	    Source:   session.Histories,
//	    Schedule: "@every 30s",
//	    Logger:   logger,
//	})
//	cp.Start(ctx)
//	defer cp.Stop()
//
// Ошибка одного документа не мешает сохранению остальных.
package scheduler
