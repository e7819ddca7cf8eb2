package repo

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
)

func TestValidateHistory(t *testing.T) {
	states := []domain.GraphState{
		domain.NewGraphState("document-new", "Create document", nil),
		domain.NewGraphState("edit", "Edit mult0", nil),
	}

	tests := []struct {
		name    string
		history domain.StateHistory
		wantErr bool
	}{
		{"valid", domain.StateHistory{DocumentID: uuid.New(), States: states, CurrentIndex: 1, SavedIndex: 0}, false},
		{"empty history", domain.StateHistory{DocumentID: uuid.New(), CurrentIndex: -1, SavedIndex: -1}, false},
		{"nil document", domain.StateHistory{States: states, CurrentIndex: 1, SavedIndex: -1}, true},
		{"current out of range", domain.StateHistory{DocumentID: uuid.New(), States: states, CurrentIndex: 2, SavedIndex: -1}, true},
		{"saved out of range", domain.StateHistory{DocumentID: uuid.New(), States: states, CurrentIndex: 0, SavedIndex: -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHistory(tt.history)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidState) {
					t.Errorf("expected ErrInvalidState, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestMarshalExtra(t *testing.T) {
	data, err := marshalExtra(nil)
	if err != nil || data != nil {
		t.Errorf("empty extra must map to NULL, got %q, %v", data, err)
	}

	data, err = marshalExtra(map[string]any{"zone": "gpu"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"zone":"gpu"}` {
		t.Errorf("unexpected json %s", data)
	}
}
