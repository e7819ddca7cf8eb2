package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/eval"
	"github.com/shaiso/Flowgraph/internal/graph"
	"github.com/shaiso/Flowgraph/internal/repo"
)

type fakeSession struct {
	pass    *eval.PassResult
	rows    []graph.StateRow
	rowsErr error
}

func (s *fakeSession) LastPass() (eval.PassResult, bool) {
	if s.pass == nil {
		return eval.PassResult{}, false
	}
	return *s.pass, true
}

func (s *fakeSession) StateRows(context.Context) ([]graph.StateRow, error) {
	return s.rows, s.rowsErr
}

type fakeCheckpoints struct {
	histories map[uuid.UUID]domain.StateHistory
}

func (f *fakeCheckpoints) GetHistory(_ context.Context, id uuid.UUID) (*domain.StateHistory, error) {
	h, ok := f.histories[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &h, nil
}

func (f *fakeCheckpoints) ListHistories(context.Context, int) ([]repo.HistorySummary, error) {
	var out []repo.HistorySummary
	for id, h := range f.histories {
		out = append(out, repo.HistorySummary{DocumentID: id, NumStates: len(h.States)})
	}
	return out, nil
}

func newTestServer(t *testing.T, session Session, checkpoints CheckpointStore) *httptest.Server {
	t.Helper()
	h := NewHandler(Config{
		Session:     session,
		Checkpoints: checkpoints,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// --- DTO Tests ---

func TestNewPassReport(t *testing.T) {
	res := eval.PassResult{
		Blocks: []eval.BlockResult{
			{UID: 2, ID: "b", Status: domain.BlockStatus{
				BlockErrorMsgs:    []string{"constructor failed"},
				PropertyErrorMsgs: map[string]string{"z": "bad z", "a": "bad a"},
			}},
			{UID: 1, ID: "a", Ready: true},
		},
		Connections:   domain.ConnectionInfos{{SrcBlockUID: 1, SrcPort: "0", DstBlockUID: 2, DstPort: "0"}},
		TopologyState: domain.TopologyStateClean,
		Trace:         []eval.TraceEntry{{Action: "evalBlock", Message: "b", Failed: true}},
	}

	report := NewPassReport(res, true)
	if !report.Failed() {
		t.Error("report with block errors must fail")
	}
	if report.Blocks[0].ID != "a" || report.Blocks[0].ErrorSummary() != "-" {
		t.Errorf("unexpected first block %+v", report.Blocks[0])
	}
	if got := report.Blocks[1].ErrorSummary(); got != "constructor failed; a: bad a; z: bad z" {
		t.Errorf("unexpected error summary %q", got)
	}
	if len(report.Connections) != 1 || report.Connections[0] != "a[0] -> b[0]" {
		t.Errorf("unexpected connections %v", report.Connections)
	}
	if len(report.Trace) != 1 || report.Trace[0] != "FAILED evalBlock: b" {
		t.Errorf("unexpected trace %v", report.Trace)
	}

	if r := NewPassReport(eval.PassResult{TopologyState: domain.TopologyStateClean}, false); r.Failed() {
		t.Error("empty clean pass must not fail")
	}
}

// --- Handler Tests ---

func TestGetPass(t *testing.T) {
	session := &fakeSession{}
	srv := newTestServer(t, session, nil)

	if code := getJSON(t, srv.URL+"/api/v1/pass", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 before first pass, got %d", code)
	}

	session.pass = &eval.PassResult{
		DocumentID:    uuid.New(),
		StartedAt:     time.Now(),
		Blocks:        []eval.BlockResult{{UID: 1, ID: "src", Path: "/blocks/constant_source", Ready: true}},
		TopologyState: domain.TopologyStateClean,
	}

	var resp struct {
		Data PassReport `json:"data"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/pass", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Data.DocumentID != session.pass.DocumentID.String() || len(resp.Data.Blocks) != 1 {
		t.Errorf("unexpected report %+v", resp.Data)
	}
}

func TestListStates(t *testing.T) {
	states := graph.NewStateManager()
	states.Post(domain.NewGraphState("document-open", "Open design.json", nil))
	states.Post(domain.NewGraphState("edit", "Reload design.json", nil))

	srv := newTestServer(t, &fakeSession{rows: states.Rows()}, nil)

	var resp struct {
		Data  []StateRowResponse `json:"data"`
		Total int                `json:"total"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/states", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Total != 2 || resp.Data[0].Index != 1 || resp.Data[0].HTML != "<span><b>Reload design.json</b></span>" {
		t.Errorf("unexpected rows %+v", resp)
	}
}

func TestListStates_Error(t *testing.T) {
	srv := newTestServer(t, &fakeSession{rowsErr: errors.New("gui loop stopped")}, nil)

	var resp ErrorResponse
	if code := getJSON(t, srv.URL+"/api/v1/states", &resp); code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
	if resp.Error.Code != ErrCodeInternalError {
		t.Errorf("unexpected error %+v", resp.Error)
	}
}

func TestCheckpoints(t *testing.T) {
	docID := uuid.New()
	store := &fakeCheckpoints{histories: map[uuid.UUID]domain.StateHistory{
		docID: {
			DocumentID:   docID,
			States:       []domain.GraphState{domain.NewGraphState("document-open", "Open design.json", nil)},
			CurrentIndex: 0,
			SavedIndex:   -1,
		},
	}}
	srv := newTestServer(t, &fakeSession{}, store)

	var list struct {
		Data  []repo.HistorySummary `json:"data"`
		Total int                   `json:"total"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/checkpoints", &list); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if list.Total != 1 || list.Data[0].DocumentID != docID {
		t.Errorf("unexpected list %+v", list)
	}

	var one struct {
		Data CheckpointResponse `json:"data"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/checkpoints/"+docID.String(), &one); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(one.Data.States) != 1 || one.Data.States[0].HTML != "<span><b>Open design.json</b></span>" {
		t.Errorf("unexpected checkpoint %+v", one.Data)
	}

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/checkpoints/" + uuid.NewString(), http.StatusNotFound},
		{"/api/v1/checkpoints/not-a-uuid", http.StatusBadRequest},
		{"/api/v1/checkpoints?limit=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if code := getJSON(t, srv.URL+tt.path, nil); code != tt.code {
			t.Errorf("GET %s: expected %d, got %d", tt.path, tt.code, code)
		}
	}
}

func TestCheckpoints_Disabled(t *testing.T) {
	srv := newTestServer(t, &fakeSession{}, nil)
	if code := getJSON(t, srv.URL+"/api/v1/checkpoints", nil); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Chain(Recovery(logger), Logging(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pass", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after panic, got %d", rec.Code)
	}
}
