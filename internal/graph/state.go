package graph

import (
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
)

// StateRow — строка списка истории для отображения.
type StateRow struct {
	Index    int
	IconName string
	// HTML — описание с разметкой: текущее состояние жирным, сохранённое курсивом.
	HTML string
}

// StateManager — история состояний графа для undo/redo.
type StateManager struct {
	states  []domain.GraphState
	current int
	saved   int
}

// NewStateManager создаёт пустую историю.
func NewStateManager() *StateManager {
	return &StateManager{current: -1, saved: -1}
}

// Post добавляет состояние после текущего.
// Состояния после текущего (отменённые) отбрасываются.
func (m *StateManager) Post(state domain.GraphState) {
	m.states = append(m.states[:m.current+1], state)
	m.current = len(m.states) - 1
	if m.saved >= m.current {
		m.saved = -1
	}
}

// Undo переходит к предыдущему состоянию.
func (m *StateManager) Undo() (domain.GraphState, error) {
	if m.current <= 0 {
		return domain.GraphState{}, fmt.Errorf("%w: nothing to undo", ErrNoState)
	}
	m.current--
	return m.states[m.current], nil
}

// Redo переходит к следующему состоянию.
func (m *StateManager) Redo() (domain.GraphState, error) {
	if m.current+1 >= len(m.states) {
		return domain.GraphState{}, fmt.Errorf("%w: nothing to redo", ErrNoState)
	}
	m.current++
	return m.states[m.current], nil
}

// Reset переходит к состоянию с указанным индексом.
func (m *StateManager) Reset(index int) (domain.GraphState, error) {
	if index < 0 || index >= len(m.states) {
		return domain.GraphState{}, fmt.Errorf("%w: %d", ErrNoState, index)
	}
	m.current = index
	return m.states[index], nil
}

// Clear удаляет историю.
func (m *StateManager) Clear() {
	m.states = nil
	m.current = -1
	m.saved = -1
}

// MarkSaved отмечает текущее состояние как сохранённое.
func (m *StateManager) MarkSaved() {
	m.saved = m.current
}

// IsModified проверяет, отличается ли текущее состояние от сохранённого.
func (m *StateManager) IsModified() bool {
	return m.current != m.saved
}

// CanUndo проверяет, есть ли состояние для отмены.
func (m *StateManager) CanUndo() bool { return m.current > 0 }

// CanRedo проверяет, есть ли состояние для повтора.
func (m *StateManager) CanRedo() bool { return m.current+1 < len(m.states) }

// CurrentIndex возвращает индекс текущего состояния или -1.
func (m *StateManager) CurrentIndex() int { return m.current }

// SavedIndex возвращает индекс сохранённого состояния или -1.
func (m *StateManager) SavedIndex() int { return m.saved }

// NumStates возвращает количество состояний.
func (m *StateManager) NumStates() int { return len(m.states) }

// StateAt возвращает состояние по индексу.
func (m *StateManager) StateAt(index int) (domain.GraphState, error) {
	if index < 0 || index >= len(m.states) {
		return domain.GraphState{}, fmt.Errorf("%w: %d", ErrNoState, index)
	}
	return m.states[index], nil
}

// States возвращает копию истории.
func (m *StateManager) States() []domain.GraphState {
	out := make([]domain.GraphState, len(m.states))
	copy(out, m.states)
	return out
}

// Rows возвращает строки списка истории, новые сверху.
func (m *StateManager) Rows() []StateRow {
	rows := make([]StateRow, 0, len(m.states))
	for i := len(m.states) - 1; i >= 0; i-- {
		state := m.states[i]
		desc := html.EscapeString(state.Description)
		if i == m.current {
			desc = "<b>" + desc + "</b>"
		}
		if i == m.saved {
			desc = "<i>" + desc + "</i>"
		}
		rows = append(rows, StateRow{
			Index:    i,
			IconName: state.IconName,
			HTML:     "<span>" + desc + "</span>",
		})
	}
	return rows
}

// History возвращает снимок истории для контрольной точки.
func (m *StateManager) History(documentID uuid.UUID) domain.StateHistory {
	return domain.StateHistory{
		DocumentID:   documentID,
		States:       m.States(),
		CurrentIndex: m.current,
		SavedIndex:   m.saved,
		CheckpointAt: time.Now(),
	}
}

// RestoreStateManager восстанавливает историю из контрольной точки.
// Индексы вне диапазона сбрасываются.
func RestoreStateManager(h domain.StateHistory) *StateManager {
	m := NewStateManager()
	m.states = append(m.states, h.States...)
	if h.CurrentIndex >= 0 && h.CurrentIndex < len(m.states) {
		m.current = h.CurrentIndex
	} else {
		m.current = len(m.states) - 1
	}
	if h.SavedIndex >= 0 && h.SavedIndex < len(m.states) {
		m.saved = h.SavedIndex
	}
	return m
}
