package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
)

// --- Cron Tests ---

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 9 * * 1-5", false},
		{"@every 30s", false},
		{"@hourly", false},
		{"", true},
		{"* * *", true},
		{"@every", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCronExpr(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNextCheckpoint(t *testing.T) {
	from := time.Date(2024, 3, 1, 10, 7, 0, 0, time.UTC)

	next, err := NextCheckpoint("*/15 * * * *", from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}

	next, err = NextCheckpoint("@every 30s", from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := from.Add(30 * time.Second); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

// --- Checkpointer Tests ---

type fakeStore struct {
	saved []domain.StateHistory
	fail  map[uuid.UUID]bool
}

func (s *fakeStore) SaveHistory(_ context.Context, h domain.StateHistory) error {
	if s.fail[h.DocumentID] {
		return errors.New("connection refused")
	}
	s.saved = append(s.saved, h)
	return nil
}

func history(id uuid.UUID, descriptions ...string) domain.StateHistory {
	h := domain.StateHistory{DocumentID: id, CurrentIndex: len(descriptions) - 1, SavedIndex: -1}
	for _, d := range descriptions {
		h.States = append(h.States, domain.NewGraphState("edit", d, nil))
	}
	return h
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{
		Store:    &fakeStore{},
		Source:   func(context.Context) ([]domain.StateHistory, error) { return nil, nil },
		Schedule: "not a cron",
	})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}

	if _, err := New(Config{Schedule: "@every 1s"}); err == nil {
		t.Error("expected error without store and source")
	}
}

func TestTick_SkipsUnchanged(t *testing.T) {
	docA, docB := uuid.New(), uuid.New()
	histories := []domain.StateHistory{
		history(docA, "Create document"),
		history(docB, "Create document", "Add block mult0"),
	}

	store := &fakeStore{}
	cp, err := New(Config{
		Store: store,
		Source: func(context.Context) ([]domain.StateHistory, error) {
			return histories, nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := cp.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Saved != 2 || res.Skipped != 0 {
		t.Errorf("first tick: expected 2 saved, got %+v", res)
	}

	res, _ = cp.Tick(context.Background())
	if res.Saved != 0 || res.Skipped != 2 {
		t.Errorf("second tick: expected 2 skipped, got %+v", res)
	}

	histories[1] = history(docB, "Create document", "Add block mult0", "Edit mult0")
	res, _ = cp.Tick(context.Background())
	if res.Saved != 1 || res.Skipped != 1 {
		t.Errorf("third tick: expected 1 saved, got %+v", res)
	}
	if got := store.saved[len(store.saved)-1]; got.DocumentID != docB || len(got.States) != 3 {
		t.Errorf("unexpected saved history %+v", got)
	}
}

func TestTick_FailureIsRetried(t *testing.T) {
	docA, docB := uuid.New(), uuid.New()
	histories := []domain.StateHistory{
		history(docA, "Create document"),
		history(docB, "Create document"),
	}
	store := &fakeStore{fail: map[uuid.UUID]bool{docA: true}}
	cp, err := New(Config{
		Store: store,
		Source: func(context.Context) ([]domain.StateHistory, error) {
			return histories, nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := cp.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Saved != 1 || res.Failed != 1 {
		t.Errorf("expected 1 saved and 1 failed, got %+v", res)
	}

	delete(store.fail, docA)
	res, _ = cp.Tick(context.Background())
	if res.Saved != 1 || res.Skipped != 1 {
		t.Errorf("failed document must be retried, got %+v", res)
	}
	if got := store.saved[len(store.saved)-1]; got.DocumentID != docA {
		t.Errorf("expected retried document %s, got %s", docA, got.DocumentID)
	}
}

func TestTick_SourceError(t *testing.T) {
	cp, err := New(Config{
		Store: &fakeStore{},
		Source: func(context.Context) ([]domain.StateHistory, error) {
			return nil, errors.New("dispatcher stopped")
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cp.Tick(context.Background()); err == nil {
		t.Error("expected source error")
	}
}

func TestCheckpointer_StartStop(t *testing.T) {
	ticked := make(chan struct{}, 1)
	cp, err := New(Config{
		Store: &fakeStore{},
		Source: func(context.Context) ([]domain.StateHistory, error) {
			select {
			case ticked <- struct{}{}:
			default:
			}
			return nil, nil
		},
		Schedule: "@every 1s",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := cp.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-ticked:
	case <-time.After(5 * time.Second):
		t.Error("checkpointer did not tick")
	}
	cp.Stop()
}
