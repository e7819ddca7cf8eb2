// Package cli реализует инструмент командной строки Flowgraph.
//
// # Обзор
//
// CLI загружает дизайн графа из JSON, вычисляет его движком eval
// против настроенных окружений (local:// в процессе, amqp:// через
// flowgraph-proxyd) и показывает статусы блоков.
//
// # Ключевые компоненты
//
// ## Env
//
// Реестр блоков и Dialer со схемами local, amqp и amqps. Через Env
// команды загружают дизайн: блоки, заданные только путём, получают
// описание из реестра.
//
// ## Session
//
// Headless сессия редактирования для команды watch. Документ и его
// история (graph.StateManager) принадлежат gui.Loop; изменения файла
// дизайна становятся новыми состояниями истории и снимками для движка.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, логи и сообщения — в stderr:
// flowgraph eval design.json --json | jq .
//
// ## Commands
//
//   - eval: один проход вычисления дизайна
//   - watch: сессия с перевычислением при изменении файла и контрольными точками
//   - blocks: список блоков реестра
//   - history: list, show — контрольные точки истории из Postgres
//
// Каждая команда создаётся фабричной функцией (NewEvalCmd и т.д.),
// принимающей envFn и outputFn — замыкания для ленивого создания
// Env и Output после парсинга PersistentFlags.
package cli
