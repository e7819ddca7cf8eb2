// Package graph содержит объекты графа, принадлежащие GUI-горутине.
//
// Блоки, соединения и разрывы (breakers) изменяются только в GUI-горутине.
// Движок вычислений получает их содержимое через снимки
// (eval.BlockInfoOf, eval.GetConnectionInfo) и возвращает результат
// через Block.ApplyStatus, вызываемый в той же GUI-горутине.
//
// Document хранит объекты, константы и зоны одного дизайна.
// StateManager ведёт историю изменений для undo/redo.
package graph
