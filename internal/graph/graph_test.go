package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
)

var multiplyDesc = domain.BlockDesc{
	Path: "/blocks/multiply",
	Calls: []domain.CallDesc{
		{Type: domain.CallTypeSetter, Name: "setFactor", Args: []string{"factor"}},
	},
	Params: []domain.ParamDesc{
		{Key: "factor", Default: "1.0", DType: "float"},
	},
}

// Document Tests

func TestDocument_AddBlockDefaults(t *testing.T) {
	doc := NewDocument(uuid.Nil)

	b, err := doc.AddBlock("mult0", multiplyDesc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Property("factor") != "1.0" {
		t.Errorf("expected default factor, got %q", b.Property("factor"))
	}
	if !b.Enabled() {
		t.Error("new block should be enabled")
	}

	_, err = doc.AddBlock("mult0", multiplyDesc)
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestDocument_UIDsAreUnique(t *testing.T) {
	doc := NewDocument(uuid.Nil)
	a, _ := doc.AddBlock("a", multiplyDesc)
	b, _ := doc.AddBlock("b", multiplyDesc)
	if a.UID() == b.UID() {
		t.Errorf("blocks must have distinct uids, both %d", a.UID())
	}
}

func TestDocument_ConnectValidatesBreakers(t *testing.T) {
	doc := NewDocument(uuid.Nil)
	a, _ := doc.AddBlock("a", multiplyDesc)
	in, _ := doc.AddBreaker("in", "n0", true)
	out, _ := doc.AddBreaker("out", "n0", false)

	if _, err := doc.Connect(a, "0", in, "0"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := doc.Connect(in, "0", a, "0"); !errors.Is(err, ErrInvalidEndpoint) {
		t.Errorf("expected ErrInvalidEndpoint for input breaker as source, got %v", err)
	}
	if _, err := doc.Connect(a, "0", out, "0"); !errors.Is(err, ErrInvalidEndpoint) {
		t.Errorf("expected ErrInvalidEndpoint for output breaker as destination, got %v", err)
	}
}

func TestDocument_RemoveBlockDropsConnections(t *testing.T) {
	doc := NewDocument(uuid.Nil)
	a, _ := doc.AddBlock("a", multiplyDesc)
	b, _ := doc.AddBlock("b", multiplyDesc)
	c, _ := doc.AddBlock("c", multiplyDesc)
	_, _ = doc.Connect(a, "0", b, "0")
	_, _ = doc.Connect(b, "0", c, "0")

	if err := doc.Remove("b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(doc.Objects()); n != 2 {
		t.Errorf("expected 2 objects, got %d", n)
	}
	if err := doc.Remove("b"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestDocument_Constants(t *testing.T) {
	doc := NewDocument(uuid.Nil)
	doc.SetConstant("fc", "1000")
	doc.SetConstant("bw", "fc / 10")
	doc.SetConstant("fc", "2000")

	consts := doc.Constants()
	if len(consts) != 2 || consts[0].Name != "fc" || consts[0].Expr != "2000" {
		t.Errorf("unexpected constants %v", consts)
	}

	doc.RemoveConstant("fc")
	if consts := doc.Constants(); len(consts) != 1 || consts[0].Name != "bw" {
		t.Errorf("unexpected constants after remove %v", consts)
	}
}

func TestLoadDocument(t *testing.T) {
	design := `{
		"constants": [{"name": "gain", "expr": "2"}],
		"zones": {"fast": {"hostUri": "local://", "numThreads": 2}},
		"blocks": [
			{"id": "src", "path": "/blocks/constant_source", "properties": {"constant": "gain"}},
			{"id": "mult", "desc": {"path": "/blocks/multiply"}, "zone": "fast", "enabled": false}
		],
		"breakers": [
			{"id": "bin", "node": "x", "input": true},
			{"id": "bout", "node": "x", "input": false}
		],
		"connections": [
			{"src": "src", "srcPort": "0", "dst": "bin", "dstPort": "0"},
			{"src": "bout", "srcPort": "0", "dst": "mult", "dstPort": "0"}
		]
	}`

	lookup := func(path string) (domain.BlockDesc, error) {
		return domain.BlockDesc{Path: path, Params: []domain.ParamDesc{{Key: "constant", Default: "0"}}}, nil
	}

	doc, err := LoadDocument(strings.NewReader(design), lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(doc.Blocks()); n != 2 {
		t.Fatalf("expected 2 blocks, got %d", n)
	}

	obj, _ := doc.Find("mult")
	mult := obj.(*Block)
	if mult.Enabled() {
		t.Error("mult should be disabled")
	}
	if mult.AffinityZone() != "fast" {
		t.Errorf("expected zone fast, got %q", mult.AffinityZone())
	}
	if _, ok := doc.Zones()["fast"]; !ok {
		t.Error("zone fast should be loaded")
	}

	dump, err := doc.Dump()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := ParseDocument(dump, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID() != doc.ID() {
		t.Errorf("document id changed: %s -> %s", doc.ID(), again.ID())
	}
	if len(again.Objects()) != len(doc.Objects()) {
		t.Errorf("expected %d objects, got %d", len(doc.Objects()), len(again.Objects()))
	}
}

func TestLoadDocument_UnknownEndpoint(t *testing.T) {
	design := `{"blocks": [{"id": "a", "path": "/p"}], "connections": [{"src": "a", "srcPort": "0", "dst": "z", "dstPort": "0"}]}`
	_, err := LoadDocument(strings.NewReader(design), nil)
	if !errors.Is(err, ErrInvalidDesign) {
		t.Errorf("expected ErrInvalidDesign, got %v", err)
	}
}

// Block Tests

func TestBlock_ApplyStatusKeepsPortsWhenAbsent(t *testing.T) {
	b := NewBlock("a", multiplyDesc)

	status := domain.NewBlockStatus()
	status.InPortDesc = domain.SomePorts([]domain.PortInfo{{Name: "0"}})
	status.OutPortDesc = domain.SomePorts([]domain.PortInfo{{Name: "0"}})
	b.ApplyStatus(status)

	next := domain.NewBlockStatus()
	next.PropertyErrorMsgs["factor"] = "bad"
	b.ApplyStatus(next)

	if len(b.InputPorts()) != 1 || len(b.OutputPorts()) != 1 {
		t.Errorf("ports must be kept when status has none")
	}
	if b.PropertyErrorMsg("factor") != "bad" {
		t.Errorf("unexpected property error %q", b.PropertyErrorMsg("factor"))
	}
	if !b.HasErrors() {
		t.Error("block should report errors")
	}
}

// StateManager Tests

func TestStateManager_UndoRedo(t *testing.T) {
	m := NewStateManager()

	if _, err := m.Undo(); !errors.Is(err, ErrNoState) {
		t.Errorf("expected ErrNoState, got %v", err)
	}

	m.Post(domain.NewGraphState("document-new", "Create document", nil))
	m.Post(domain.NewGraphState("list-add", "Add block mult0", nil))
	m.Post(domain.NewGraphState("edit", "Edit mult0", nil))

	state, err := m.Undo()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Description != "Add block mult0" {
		t.Errorf("unexpected state %q", state.Description)
	}
	if !m.CanRedo() {
		t.Error("should be able to redo")
	}

	m.Post(domain.NewGraphState("edit", "Rename mult0", nil))
	if m.NumStates() != 3 {
		t.Errorf("posting after undo must drop redo states, got %d states", m.NumStates())
	}
	if m.CanRedo() {
		t.Error("redo must not be possible after post")
	}
}

func TestStateManager_Rows(t *testing.T) {
	m := NewStateManager()
	m.Post(domain.NewGraphState("document-new", "Create <doc>", nil))
	m.MarkSaved()
	m.Post(domain.NewGraphState("edit", "Edit a & b", nil))

	rows := m.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Index != 1 || rows[0].HTML != "<span><b>Edit a &amp; b</b></span>" {
		t.Errorf("unexpected newest row %+v", rows[0])
	}
	if rows[1].HTML != "<span><i>Create &lt;doc&gt;</i></span>" {
		t.Errorf("unexpected saved row %+v", rows[1])
	}
	if !m.IsModified() {
		t.Error("document should be modified after post")
	}

	if _, err := m.Reset(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.IsModified() {
		t.Error("document should match saved state")
	}
	if got := m.Rows()[1].HTML; got != "<span><i><b>Create &lt;doc&gt;</b></i></span>" {
		t.Errorf("unexpected row %s", got)
	}
}

func TestStateManager_HistoryRestore(t *testing.T) {
	m := NewStateManager()
	m.Post(domain.NewGraphState("document-new", "Create document", nil))
	m.MarkSaved()
	m.Post(domain.NewGraphState("edit", "Edit mult0", []byte(`{"blocks":[]}`)))
	m.Post(domain.NewGraphState("edit", "Edit mult1", nil))
	if _, err := m.Undo(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	docID := uuid.New()
	h := m.History(docID)
	if h.DocumentID != docID || len(h.States) != 3 || h.CurrentIndex != 1 || h.SavedIndex != 0 {
		t.Fatalf("unexpected history %+v", h)
	}

	restored := RestoreStateManager(h)
	if restored.CurrentIndex() != 1 || restored.SavedIndex() != 0 || restored.NumStates() != 3 {
		t.Errorf("unexpected restored indexes: current=%d saved=%d states=%d",
			restored.CurrentIndex(), restored.SavedIndex(), restored.NumStates())
	}
	if !restored.CanRedo() {
		t.Error("restored history should keep redo states")
	}

	h.CurrentIndex = 10
	h.SavedIndex = 10
	restored = RestoreStateManager(h)
	if restored.CurrentIndex() != 2 || restored.SavedIndex() != -1 {
		t.Errorf("out of range indexes must be reset, got current=%d saved=%d",
			restored.CurrentIndex(), restored.SavedIndex())
	}
}

func TestStateHistory_Revision(t *testing.T) {
	m := NewStateManager()
	m.Post(domain.NewGraphState("document-new", "Create document", nil))
	before := m.History(uuid.Nil).Revision()

	m.MarkSaved()
	if after := m.History(uuid.Nil).Revision(); after == before {
		t.Error("revision must change after MarkSaved")
	}
	if m.History(uuid.Nil).Revision() != m.History(uuid.Nil).Revision() {
		t.Error("revision must be stable for unchanged history")
	}
}
