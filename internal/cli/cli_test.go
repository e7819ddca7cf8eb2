package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/api"
	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/eval"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const chainDesign = `{
	"blocks": [
		{"id": "src", "path": "/blocks/constant_source", "properties": {"constant": "2.5"}},
		{"id": "mult", "path": "/blocks/multiply", "properties": {"factor": "%s"}},
		{"id": "sink", "path": "/blocks/sink"}
	],
	"connections": [
		{"src": "src", "srcPort": "0", "dst": "mult", "dstPort": "0"},
		{"src": "mult", "srcPort": "0", "dst": "sink", "dstPort": "0"}
	]
}`

func writeDesign(t *testing.T, dir, factor string) string {
	t.Helper()
	path := filepath.Join(dir, "design.json")
	if err := os.WriteFile(path, []byte(strings.Replace(chainDesign, "%s", factor, 1)), 0o644); err != nil {
		t.Fatalf("write design: %v", err)
	}
	return path
}

func testEnv() *Env { return NewEnv(time.Second, testLogger) }

// --- Eval Command Tests ---

func TestEvalCmd_JSON(t *testing.T) {
	path := writeDesign(t, t.TempDir(), "2")

	var stdout, stderr bytes.Buffer
	cmd := NewEvalCmd(testEnv, func() *Output { return NewOutputTo(true, &stdout, &stderr) })
	cmd.SetArgs([]string{path})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v (stderr: %s)", err, stderr.String())
	}

	var report api.PassReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TopologyState != string(domain.TopologyStateClean) {
		t.Errorf("expected CLEAN topology, got %s (%s)", report.TopologyState, report.FailureMsg)
	}
	if len(report.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(report.Blocks))
	}
	for _, b := range report.Blocks {
		if !b.Ready {
			t.Errorf("block %s should be ready: %+v", b.ID, b)
		}
	}
	want := []string{"mult[0] -> sink[0]", "src[0] -> mult[0]"}
	got := slices.Clone(report.Connections)
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Errorf("expected connections %v, got %v", want, got)
	}
}

func TestEvalCmd_PropertyErrorFails(t *testing.T) {
	path := writeDesign(t, t.TempDir(), `\"double\"`)

	var stdout, stderr bytes.Buffer
	cmd := NewEvalCmd(testEnv, func() *Output { return NewOutputTo(false, &stdout, &stderr) })
	cmd.SetArgs([]string{path})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(context.Background())
	if !errors.Is(err, ErrEvalFailed) {
		t.Fatalf("expected ErrEvalFailed, got %v", err)
	}
	if !strings.Contains(stdout.String(), "factor: ") {
		t.Errorf("table should show the factor error:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "topology:") {
		t.Errorf("summary should go to stderr, got %q", stderr.String())
	}
}

func TestEvalCmd_MissingFile(t *testing.T) {
	cmd := NewEvalCmd(testEnv, func() *Output { return NewOutputTo(false, io.Discard, io.Discard) })
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.json")})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("expected error for missing design")
	}
}

func TestBlocksCmd(t *testing.T) {
	var stdout bytes.Buffer
	cmd := NewBlocksCmd(testEnv, func() *Output { return NewOutputTo(false, &stdout, io.Discard) })
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := stdout.String()
	for _, path := range []string{"/blocks/constant_source", "/blocks/multiply", "/blocks/sink", "/blocks/tee"} {
		if !strings.Contains(out, path) {
			t.Errorf("output should list %s:\n%s", path, out)
		}
	}
	if !strings.Contains(out, "widget") {
		t.Errorf("slider should be listed as widget:\n%s", out)
	}
}

// --- Session Tests ---

func newTestSession(t *testing.T, path string, onPass func(eval.PassResult)) *Session {
	t.Helper()
	return NewSession(SessionConfig{
		Path:         path,
		Env:          testEnv(),
		PollInterval: 20 * time.Millisecond,
		Debounce:     10 * time.Millisecond,
		OnPass:       onPass,
		Logger:       testLogger,
	})
}

func TestSession_ReloadPostsStates(t *testing.T) {
	dir := t.TempDir()
	path := writeDesign(t, dir, "2")
	s := newTestSession(t, path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.loop.Run(ctx)

	reload := func() error { return s.Reload() }
	if err := s.loop.Invoke(ctx, reload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.loop.Invoke(ctx, reload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	histories, err := s.Histories(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(histories) != 1 || len(histories[0].States) != 1 {
		t.Fatalf("unchanged file must not add states, got %+v", histories)
	}
	first := histories[0]
	if first.States[0].Description != "Open design.json" || first.States[0].IconName != "document-open" {
		t.Errorf("unexpected first state %+v", first.States[0])
	}

	writeDesign(t, dir, "3")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := s.loop.Invoke(ctx, reload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	histories, err = s.Histories(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := histories[0]
	if len(h.States) != 2 || h.CurrentIndex != 1 {
		t.Fatalf("expected 2 states, got %d (current %d)", len(h.States), h.CurrentIndex)
	}
	if h.DocumentID != first.DocumentID {
		t.Errorf("document id must be stable across reloads: %s -> %s", first.DocumentID, h.DocumentID)
	}
	if !strings.Contains(string(h.States[1].Dump), `"factor": "3"`) {
		t.Errorf("state dump should carry the new factor: %s", h.States[1].Dump)
	}
}

func TestSession_InvalidDesignKeepsDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeDesign(t, dir, "2")
	s := newTestSession(t, path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.loop.Run(ctx)

	if err := s.loop.Invoke(ctx, s.Reload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"blocks": [`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	future := time.Now().Add(time.Hour)
	os.Chtimes(path, future, future)

	if err := s.loop.Invoke(ctx, s.Reload); err == nil {
		t.Error("expected error for broken design")
	}

	var blocks int
	s.loop.Invoke(ctx, func() error {
		blocks = len(s.Document().Blocks())
		return nil
	})
	if blocks != 3 {
		t.Errorf("previous document must be kept, got %d blocks", blocks)
	}
}

func TestSession_RestoreAndRun(t *testing.T) {
	path := writeDesign(t, t.TempDir(), "2")

	passes := make(chan eval.PassResult, 4)
	s := newTestSession(t, path, func(res eval.PassResult) {
		select {
		case passes <- res:
		default:
		}
	})

	docID := uuid.New()
	s.Restore(domain.StateHistory{
		DocumentID:   docID,
		States:       []domain.GraphState{domain.NewGraphState("document-new", "Create document", nil)},
		CurrentIndex: 0,
		SavedIndex:   0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case res := <-passes:
		if res.DocumentID != docID {
			t.Errorf("expected document %s, got %s", docID, res.DocumentID)
		}
		if len(res.Blocks) != 3 || res.BlockErrors() != 0 {
			t.Errorf("unexpected pass %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no evaluation pass")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}

	histories, err := s.Histories(context.Background())
	if err != nil {
		t.Fatalf("history after stop: %v", err)
	}
	h := histories[0]
	if h.DocumentID != docID || len(h.States) != 2 || h.SavedIndex != 0 {
		t.Errorf("unexpected history after restore %+v", h)
	}
}
