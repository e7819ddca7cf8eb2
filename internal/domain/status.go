package domain

// TopologyState — состояние вычисления топологии документа.
//
// Жизненный цикл:
//
//	CLEAN → DIRTY → EVALUATING → COMMITTING → CLEAN
//	                                        ↘ FAILURE
//
// FAILURE сохраняется до следующего успешного commit.
type TopologyState string

const (
	// TopologyStateClean — реализованная топология совпадает с последним снимком.
	TopologyStateClean TopologyState = "CLEAN"

	// TopologyStateDirty — принят снимок с изменениями.
	TopologyStateDirty TopologyState = "DIRTY"

	// TopologyStateEvaluating — вычисляются подключения и отключения.
	TopologyStateEvaluating TopologyState = "EVALUATING"

	// TopologyStateCommitting — выполняется commit.
	TopologyStateCommitting TopologyState = "COMMITTING"

	// TopologyStateFailure — последний commit завершился ошибкой.
	TopologyStateFailure TopologyState = "FAILURE"
)

// IsFailure возвращает true для состояния ошибки.
func (s TopologyState) IsFailure() bool {
	return s == TopologyStateFailure
}

// String возвращает строковое представление TopologyState.
func (s TopologyState) String() string {
	return string(s)
}
