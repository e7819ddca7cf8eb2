package local

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shaiso/Flowgraph/internal/proxy"
)

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if r.Count() != 0 {
		t.Errorf("expected empty registry")
	}

	r.Register(multiplyFactory())
	if r.Count() != 1 {
		t.Errorf("expected 1 factory, got %d", r.Count())
	}

	f, err := r.Get(PathMultiply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Desc().Path != PathMultiply {
		t.Errorf("expected %s, got %s", PathMultiply, f.Desc().Path)
	}

	_, err = r.Get("/blocks/unknown")
	if !errors.Is(err, ErrUnknownBlockPath) {
		t.Errorf("expected ErrUnknownBlockPath, got %v", err)
	}

	r.Unregister(PathMultiply)
	if r.Has(PathMultiply) {
		t.Error("should not have multiply after unregister")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	expected := []string{PathConstantSource, PathMultiply, PathSink, PathTee, PathSlider}
	for _, p := range expected {
		if !r.Has(p) {
			t.Errorf("default registry should have %s", p)
		}
	}
	if len(r.Descs()) != len(expected) {
		t.Errorf("expected %d descs, got %d", len(expected), len(r.Descs()))
	}
}

// EvalEnvironment Tests

func TestEvalEnvironment_Constants(t *testing.T) {
	env := NewEvalEnvironment()

	if err := env.RegisterConstant("fc", "1000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := env.Eval("fc + 100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := Convert(v, "float")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != 1100.0 {
		t.Errorf("expected 1100, got %v", f)
	}

	env.UnregisterConstant("fc")
	if _, err := env.Eval("fc + 100"); err == nil {
		t.Error("expected error for unknown constant")
	}
}

func TestEvalEnvironment_TypeMismatch(t *testing.T) {
	env := NewEvalEnvironment()

	if err := env.RegisterConstant("fc", `"center"`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := env.Eval("fc + 100")
	var re *proxy.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if re.Message == "" {
		t.Error("remote error should carry a message")
	}
}

func TestEvalEnvironment_CallEval(t *testing.T) {
	env := NewEvalEnvironment()
	ctx := context.Background()

	if _, err := env.Call(ctx, proxy.MethodRegisterConstant, "n", "2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := env.Call(ctx, proxy.MethodEval, "n * 3.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obj, ok := result.(proxy.Object)
	if !ok {
		t.Fatalf("expected object, got %T", result)
	}
	typ, err := proxy.CallString(ctx, obj, proxy.MethodTypeString)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != "float" {
		t.Errorf("expected float, got %s", typ)
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		dtype   string
		want    any
		wantErr bool
	}{
		{"int to float", 3, "float", 3.0, false},
		{"whole float to int", 4.0, "int", 4, false},
		{"fraction to int", 4.5, "int", nil, true},
		{"string to float", "x", "float", nil, true},
		{"any", "x", "", "x", false},
		{"unknown dtype", 1, "complex", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.value, tt.dtype)
			if tt.wantErr {
				if !errors.Is(err, ErrBadArgument) {
					t.Errorf("expected ErrBadArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// BlockEvaluator Tests

func descJSON(t *testing.T, r *Registry, path string) string {
	t.Helper()
	f, err := r.Get(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(f.Desc())
	if err != nil {
		t.Fatalf("marshal desc: %v", err)
	}
	return string(data)
}

func TestBlockEvaluator_EvalBlockAndApplyCall(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()
	be := NewBlockEvaluator(r, NewEvalEnvironment())

	if _, err := be.EvalProperty("factor", "2.5", "float"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := be.EvalBlock(ctx, "mult0", []byte(descJSON(t, r, PathMultiply))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	block := be.Block()
	if block == nil {
		t.Fatal("block should be created")
	}
	if block.Get("factor") != 2.5 {
		t.Errorf("expected factor 2.5, got %v", block.Get("factor"))
	}

	if _, err := be.EvalProperty("factor", "4", "float"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := be.ApplyCall(ctx, "setFactor"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if be.Block() != block {
		t.Error("applyCall must not recreate the block")
	}
	if block.Get("factor") != 4.0 {
		t.Errorf("expected factor 4, got %v", block.Get("factor"))
	}
}

func TestBlockEvaluator_MissingProperty(t *testing.T) {
	r := DefaultRegistry()
	be := NewBlockEvaluator(r, NewEvalEnvironment())

	err := be.EvalBlock(context.Background(), "tee0", []byte(descJSON(t, r, PathTee)))
	var re *proxy.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if be.Block() != nil {
		t.Error("block should not be created without constructor args")
	}

	if _, err := be.Call(context.Background(), proxy.MethodGetProxyBlock); err == nil {
		t.Error("getProxyBlock should fail before the block exists")
	}
}

func TestBlockEvaluator_TeePorts(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()
	be := NewBlockEvaluator(r, NewEvalEnvironment())

	if _, err := be.EvalProperty("numOutputs", "3", "int"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := be.EvalBlock(ctx, "tee0", []byte(descJSON(t, r, PathTee))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ports, err := be.Block().Call(ctx, proxy.MethodOutputPortInfo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(ports.([]any)); n != 3 {
		t.Errorf("expected 3 outputs, got %d", n)
	}
}

func TestSink_Overlay(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()
	be := NewBlockEvaluator(r, NewEvalEnvironment())

	if _, err := be.EvalProperty("label", `"level"`, "string"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := be.EvalBlock(ctx, "sink0", []byte(descJSON(t, r, PathSink))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	overlay, err := proxy.CallString(ctx, be.Block(), proxy.MethodOverlay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overlay != `{"text":"level"}` {
		t.Errorf("unexpected overlay %s", overlay)
	}
}

// ThreadPool Tests

func TestNewThreadPool(t *testing.T) {
	p, err := NewThreadPool(map[string]any{
		"numThreads": 4,
		"priority":   0.5,
		"affinity":   []any{0, 1},
		"yieldMode":  YieldSpin,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.NumThreads() != 4 || p.Priority() != 0.5 || p.YieldMode() != YieldSpin {
		t.Errorf("unexpected pool config: %d %v %s", p.NumThreads(), p.Priority(), p.YieldMode())
	}
	if len(p.Affinity()) != 2 {
		t.Errorf("expected 2 affinity nodes, got %v", p.Affinity())
	}

	if _, err := NewThreadPool(map[string]any{"priority": 2.0}); err == nil {
		t.Error("expected error for priority out of range")
	}
	if _, err := NewThreadPool(map[string]any{"yieldMode": "BUSY"}); err == nil {
		t.Error("expected error for unknown yield mode")
	}
}

// Topology Tests

func newTestBlock(t *testing.T, r *Registry, path string) *Block {
	t.Helper()
	f, err := r.Get(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := f.New([]any{2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestTopology_CommitAppliesPending(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()
	topo := NewTopology()

	src := newTestBlock(t, r, PathConstantSource)
	mult := newTestBlock(t, r, PathMultiply)
	sink := newTestBlock(t, r, PathSink)

	_ = topo.Connect(ctx, src, "0", mult, "0")
	_ = topo.Connect(ctx, mult, "0", sink, "0")
	if len(topo.Flows()) != 0 {
		t.Error("flows must not change before commit")
	}

	if err := topo.Commit(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topo.Flows()) != 2 {
		t.Errorf("expected 2 flows, got %d", len(topo.Flows()))
	}

	_ = topo.Disconnect(ctx, mult, "0", sink, "0")
	if err := topo.Commit(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topo.Flows()) != 1 {
		t.Errorf("expected 1 flow, got %d", len(topo.Flows()))
	}
}

func TestTopology_CommitFailureKeepsState(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()
	topo := NewTopology()

	a := newTestBlock(t, r, PathConstantSource)
	b := newTestBlock(t, r, PathConstantSource)
	sink := newTestBlock(t, r, PathSink)

	_ = topo.Connect(ctx, a, "0", sink, "0")
	_ = topo.Connect(ctx, b, "0", sink, "0")

	err := topo.Commit(ctx)
	if !errors.Is(err, ErrMultipleSources) {
		t.Fatalf("expected ErrMultipleSources, got %v", err)
	}
	if len(topo.Flows()) != 0 {
		t.Error("failed commit must not change active flows")
	}
	if topo.Pending() != 2 {
		t.Errorf("expected 2 pending ops, got %d", topo.Pending())
	}

	_ = topo.Disconnect(ctx, b, "0", sink, "0")
	if err := topo.Commit(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flows := topo.Flows()
	if len(flows) != 1 || flows[0].Src != a {
		t.Errorf("expected only the flow from a, got %v", flows)
	}
}

func TestTopology_UnknownPort(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()
	topo := NewTopology()

	src := newTestBlock(t, r, PathConstantSource)
	sink := newTestBlock(t, r, PathSink)

	_ = topo.Connect(ctx, src, "out7", sink, "0")
	if err := topo.Commit(ctx); !errors.Is(err, ErrUnknownPort) {
		t.Errorf("expected ErrUnknownPort, got %v", err)
	}
}

func TestTopology_SlotAcceptsManySignals(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()
	topo := NewTopology()

	s1 := newTestBlock(t, r, PathSlider)
	s2 := newTestBlock(t, r, PathSlider)
	mult := newTestBlock(t, r, PathMultiply)

	_ = topo.Connect(ctx, s1, "valueChanged", mult, "setFactor")
	_ = topo.Connect(ctx, s2, "valueChanged", mult, "setFactor")
	if err := topo.Commit(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Environment Tests

func TestEnvironment_Make(t *testing.T) {
	ctx := context.Background()
	d := NewDialer(nil)

	env, err := d.Dial(ctx, "local://", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	evalEnv, err := env.Make(ctx, proxy.ClassEvalEnvironment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.Make(ctx, proxy.ClassBlockEval, evalEnv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	topoObj, err := env.Make(ctx, proxy.ClassTopology)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := proxy.AsTopology(topoObj).(*Topology); !ok {
		t.Error("local topology should be used directly")
	}

	_, err = env.Make(ctx, "Widget")
	if !errors.Is(err, proxy.ErrUnknownClass) {
		t.Errorf("expected ErrUnknownClass, got %v", err)
	}

	_ = env.Close()
	_, err = env.Make(ctx, proxy.ClassEvalEnvironment)
	if !errors.Is(err, proxy.ErrEnvironmentClosed) {
		t.Errorf("expected ErrEnvironmentClosed, got %v", err)
	}
}
