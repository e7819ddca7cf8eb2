package graph

import "errors"

// Ошибки графа.
var (
	// ErrObjectNotFound — объект с таким ID не найден.
	ErrObjectNotFound = errors.New("object not found")

	// ErrDuplicateID — объект с таким ID уже есть в документе.
	ErrDuplicateID = errors.New("duplicate object id")

	// ErrInvalidEndpoint — конец соединения не блок и не разрыв нужного направления.
	ErrInvalidEndpoint = errors.New("invalid connection endpoint")

	// ErrInvalidDesign — файл дизайна не разобран.
	ErrInvalidDesign = errors.New("invalid design")

	// ErrNoState — в истории нет состояния с таким индексом.
	ErrNoState = errors.New("no such state")
)
