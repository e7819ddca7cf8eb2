package local

import "errors"

// Ошибки локального окружения.
var (
	// ErrUnknownBlockPath — путь блока не зарегистрирован в реестре.
	ErrUnknownBlockPath = errors.New("unknown block path")

	// ErrMissingProperty — свойство, нужное конструктору или вызову, не вычислено.
	ErrMissingProperty = errors.New("missing property")

	// ErrBadArgument — неверный аргумент метода.
	ErrBadArgument = errors.New("bad argument")

	// ErrNoBlock — блок ещё не создан.
	ErrNoBlock = errors.New("block not created")

	// ErrUnknownPort — у блока нет такого порта.
	ErrUnknownPort = errors.New("unknown port")

	// ErrMultipleSources — на вход подано несколько источников.
	ErrMultipleSources = errors.New("input port has multiple sources")
)
