package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GraphState — одна запись истории изменений графа (undo/redo).
//
// Payload — либо сериализованный дамп графа (Dump),
// либо структурированные данные (Extra).
type GraphState struct {
	// IconName — имя иконки действия.
	IconName string `json:"icon_name"`

	// Description — описание действия пользователя.
	Description string `json:"description"`

	// Dump — сериализованное состояние графа.
	Dump []byte `json:"dump,omitempty"`

	// Extra — структурированные данные вместо дампа.
	Extra map[string]any `json:"extra,omitempty"`

	// CreatedAt — время записи.
	CreatedAt time.Time `json:"created_at"`
}

// NewGraphState создаёт запись с дампом графа.
func NewGraphState(iconName, description string, dump []byte) GraphState {
	return GraphState{
		IconName:    iconName,
		Description: description,
		Dump:        dump,
		CreatedAt:   time.Now(),
	}
}

// NewGraphStateExtra создаёт запись со структурированными данными.
func NewGraphStateExtra(iconName, description string, extra map[string]any) GraphState {
	return GraphState{
		IconName:    iconName,
		Description: description,
		Extra:       extra,
		CreatedAt:   time.Now(),
	}
}

// StateHistory — снимок истории состояний одного документа для контрольной точки.
type StateHistory struct {
	DocumentID   uuid.UUID    `json:"document_id"`
	States       []GraphState `json:"states"`
	CurrentIndex int          `json:"current_index"`
	SavedIndex   int          `json:"saved_index"`
	CheckpointAt time.Time    `json:"checkpoint_at"`
}

// Revision возвращает отпечаток истории: изменился ли снимок с прошлой контрольной точки.
func (h StateHistory) Revision() string {
	var last time.Time
	if n := len(h.States); n > 0 {
		last = h.States[n-1].CreatedAt
	}
	return fmt.Sprintf("%d/%d/%d/%d", len(h.States), h.CurrentIndex, h.SavedIndex, last.UnixNano())
}
