package api

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/eval"
	"github.com/shaiso/Flowgraph/internal/graph"
)

// Pass DTOs

// BlockReport — статус блока.
type BlockReport struct {
	ID             string            `json:"id"`
	Path           string            `json:"path"`
	Ready          bool              `json:"ready"`
	PropertyTypes  map[string]string `json:"property_types,omitempty"`
	PropertyErrors map[string]string `json:"property_errors,omitempty"`
	BlockErrors    []string          `json:"block_errors,omitempty"`
	Inputs         []string          `json:"inputs,omitempty"`
	Outputs        []string          `json:"outputs,omitempty"`
}

// PassReport — итог прохода вычисления.
type PassReport struct {
	DocumentID    string        `json:"document_id"`
	StartedAt     time.Time     `json:"started_at"`
	TopologyState string        `json:"topology_state"`
	FailureMsg    string        `json:"failure,omitempty"`
	Duration      string        `json:"duration"`
	Connections   []string      `json:"connections"`
	Pending       []string      `json:"pending,omitempty"`
	Blocks        []BlockReport `json:"blocks"`
	Trace         []string      `json:"trace,omitempty"`
}

// NewPassReport конвертирует eval.PassResult в PassReport.
// Соединения записываются через ID блоков, блоки упорядочены по ID.
func NewPassReport(res eval.PassResult, withTrace bool) PassReport {
	report := PassReport{
		DocumentID:    res.DocumentID.String(),
		StartedAt:     res.StartedAt,
		TopologyState: res.TopologyState.String(),
		FailureMsg:    res.FailureMsg,
		Duration:      res.Duration.Round(time.Microsecond).String(),
		Connections:   make([]string, 0, len(res.Connections)),
		Blocks:        make([]BlockReport, 0, len(res.Blocks)),
	}

	names := make(map[uint64]string, len(res.Blocks))
	for _, b := range res.Blocks {
		names[b.UID] = b.ID
	}
	for _, c := range res.Connections.Sorted() {
		report.Connections = append(report.Connections, connectionName(c, names))
	}
	for _, c := range res.Pending.Sorted() {
		report.Pending = append(report.Pending, connectionName(c, names))
	}

	for _, b := range res.Blocks {
		br := BlockReport{
			ID:             b.ID,
			Path:           b.Path,
			Ready:          b.Ready,
			PropertyTypes:  b.Status.PropertyTypeInfos,
			PropertyErrors: b.Status.PropertyErrorMsgs,
			BlockErrors:    b.Status.BlockErrorMsgs,
		}
		for _, p := range b.Status.InPortDesc.Ports {
			br.Inputs = append(br.Inputs, p.Name)
		}
		for _, p := range b.Status.OutPortDesc.Ports {
			br.Outputs = append(br.Outputs, p.Name)
		}
		report.Blocks = append(report.Blocks, br)
	}
	slices.SortFunc(report.Blocks, func(a, b BlockReport) int { return strings.Compare(a.ID, b.ID) })

	if withTrace {
		for _, e := range res.Trace {
			line := e.Action + ": " + e.Message
			if e.Failed {
				line = "FAILED " + line
			}
			report.Trace = append(report.Trace, line)
		}
	}
	return report
}

// Failed проверяет, есть ли в проходе ошибки блоков или топологии.
func (r PassReport) Failed() bool {
	if r.FailureMsg != "" {
		return true
	}
	for _, b := range r.Blocks {
		if len(b.BlockErrors) > 0 || len(b.PropertyErrors) > 0 {
			return true
		}
	}
	return false
}

// ErrorSummary возвращает ошибки блока одной строкой или "-".
func (b BlockReport) ErrorSummary() string {
	msgs := slices.Clone(b.BlockErrors)
	keys := make([]string, 0, len(b.PropertyErrors))
	for k := range b.PropertyErrors {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		msgs = append(msgs, k+": "+b.PropertyErrors[k])
	}
	if len(msgs) == 0 {
		return "-"
	}
	return strings.Join(msgs, "; ")
}

func connectionName(c domain.ConnectionInfo, names map[uint64]string) string {
	src, ok := names[c.SrcBlockUID]
	if !ok {
		src = strconv.FormatUint(c.SrcBlockUID, 10)
	}
	dst, ok := names[c.DstBlockUID]
	if !ok {
		dst = strconv.FormatUint(c.DstBlockUID, 10)
	}
	return fmt.Sprintf("%s[%s] -> %s[%s]", src, c.SrcPort, dst, c.DstPort)
}

// History DTOs

// StateRowResponse — строка списка истории.
type StateRowResponse struct {
	Index    int    `json:"index"`
	IconName string `json:"icon_name"`
	HTML     string `json:"html"`
}

// StateRowFromGraph конвертирует graph.StateRow в StateRowResponse.
func StateRowFromGraph(r graph.StateRow) StateRowResponse {
	return StateRowResponse{Index: r.Index, IconName: r.IconName, HTML: r.HTML}
}

// CheckpointResponse — контрольная точка без дампов графа.
type CheckpointResponse struct {
	DocumentID   uuid.UUID          `json:"document_id"`
	CurrentIndex int                `json:"current_index"`
	SavedIndex   int                `json:"saved_index"`
	CheckpointAt time.Time          `json:"checkpoint_at"`
	States       []StateRowResponse `json:"states"`
}

// CheckpointFromDomain конвертирует domain.StateHistory в CheckpointResponse.
func CheckpointFromDomain(h domain.StateHistory) CheckpointResponse {
	rows := graph.RestoreStateManager(h).Rows()
	resp := CheckpointResponse{
		DocumentID:   h.DocumentID,
		CurrentIndex: h.CurrentIndex,
		SavedIndex:   h.SavedIndex,
		CheckpointAt: h.CheckpointAt,
		States:       make([]StateRowResponse, len(rows)),
	}
	for i, r := range rows {
		resp.States[i] = StateRowFromGraph(r)
	}
	return resp
}
