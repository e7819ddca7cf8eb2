// Package local реализует окружение исполнения в текущем процессе.
//
// Окружение создаёт классы, которые движок вычислений использует
// через proxy.Object:
//   - EvalEnvironment — константы и вычисление выражений (expr-lang)
//   - BlockEval       — вычисление свойств и создание блока по описанию
//   - ThreadPool      — параметры пула потоков зоны
//   - Topology        — живая топология соединений
//
// Типы блоков регистрируются в Registry по пути ("/blocks/multiply").
// DefaultRegistry содержит встроенные блоки.
package local
