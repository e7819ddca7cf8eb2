// Package eval реализует фоновое вычисление графа.
//
// GUI-горутина делает снимок документа (Snapshot: BlockInfo для каждого
// блока и ConnectionInfos) и передаёт его Engine. Горутина движка:
//
//  1. обновляет окружения и пулы потоков зон (EnvironmentEval, ThreadPoolEval)
//  2. сопоставляет блоки с существующими BlockEval по UID или IsInfoMatch
//  3. разрывает соединения блоков, которые нужно отключить (TopologyEval.Disconnect)
//  4. параллельно вычисляет блоки (BlockEval.Update)
//  5. подключает готовые блоки и выполняет commit (TopologyEval.Update, Commit)
//
// Объекты графа не читаются из горутины движка. Результат вычисления
// блока (domain.BlockStatus) отправляется в GUI-горутину через
// gui.Dispatcher и применяется там по слабой ссылке на блок.
package eval
