package gui

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoop_PostRunsInOrder(t *testing.T) {
	loop := NewLoop(8)
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		if !loop.Post(func() { order = append(order, i) }) {
			t.Fatal("post should succeed")
		}
	}

	if n := loop.Drain(); n != 5 {
		t.Fatalf("expected 5 drained messages, got %d", n)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("unexpected order: %v", order)
		}
	}
}

func TestLoop_InvokeWaitsForResult(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loop.Run(ctx)

	var ran atomic.Bool
	err := loop.Invoke(ctx, func() error {
		ran.Store(true)
		return errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
	if !ran.Load() {
		t.Error("function should have run")
	}
}

func TestLoop_InvokeRecoversPanic(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loop.Run(ctx)

	err := loop.Invoke(ctx, func() error { panic("widget") })
	if err == nil {
		t.Fatal("expected error from panic")
	}
}

func TestLoop_StoppedRejectsMessages(t *testing.T) {
	loop := NewLoop(1)
	loop.Stop()

	if loop.Post(func() {}) {
		t.Error("post should fail after stop")
	}
	if err := loop.Invoke(context.Background(), func() error { return nil }); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("expected ErrLoopStopped, got %v", err)
	}
}

func TestLoop_InvokeHonorsContext(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Никто не вызывает Run, поэтому Invoke выходит по таймауту.
	err := loop.Invoke(ctx, func() error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

type widget struct{ name string }

func TestRef_ValueAndSame(t *testing.T) {
	w := &widget{name: "slider"}
	ref := NewRef(w)
	other := NewRef(w)

	if ref.Value() != w {
		t.Error("ref should resolve to the object")
	}
	if !ref.Same(other) {
		t.Error("refs to the same object should be same")
	}
	if ref.IsZero() {
		t.Error("ref should not be zero")
	}
	runtime.KeepAlive(w)

	var empty Ref[widget]
	if !empty.IsZero() || empty.Value() != nil {
		t.Error("zero ref should be empty")
	}
	if !NewRef[widget](nil).IsZero() {
		t.Error("ref to nil should be zero")
	}
}
