// Package gui содержит примитивы взаимодействия с GUI-горутиной.
//
// Включает:
//   - ref.go  — слабая ссылка на объект, принадлежащий GUI
//   - loop.go — очередь сообщений GUI-горутины (Post/Invoke)
//
// Горутина вычислений никогда не разыменовывает объекты GUI напрямую:
// она переносит Ref внутри снимков и разыменовывает его только внутри
// функции, отправленной в Loop.
package gui
