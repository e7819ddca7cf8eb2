package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — запись противоречива и не может быть сохранена.
	ErrInvalidState = errors.New("invalid state")
)
