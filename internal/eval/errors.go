package eval

import "errors"

// Ошибки движка вычислений.
var (
	// ErrNotReady — блок не готов к подключению.
	ErrNotReady = errors.New("block not ready")

	// ErrUnknownZone — блок ссылается на несуществующую зону.
	ErrUnknownZone = errors.New("unknown affinity zone")

	// ErrNoEnvironment — окружение зоны недоступно.
	ErrNoEnvironment = errors.New("environment not available")

	// ErrConstantCycle — константы ссылаются друг на друга по кругу.
	ErrConstantCycle = errors.New("constant dependency cycle")

	// ErrConstantDepth — цепочка зависимостей констант слишком глубокая.
	ErrConstantDepth = errors.New("constant dependency too deep")

	// ErrEngineStopped — движок остановлен.
	ErrEngineStopped = errors.New("engine stopped")
)
