package eval

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/graph"
)

// Snapshot — снимок документа для одного прохода вычисления.
type Snapshot struct {
	DocumentID  uuid.UUID
	Blocks      []BlockInfo
	Connections domain.ConnectionInfos
	Zones       map[string]domain.ZoneConfig
}

// TakeSnapshot делает снимок документа. Вызывается в GUI-горутине.
func TakeSnapshot(doc *graph.Document) Snapshot {
	constants := doc.Constants()
	blocks := doc.Blocks()

	snap := Snapshot{
		DocumentID:  doc.ID(),
		Blocks:      make([]BlockInfo, 0, len(blocks)),
		Connections: GetConnectionInfo(doc.Objects()),
		Zones:       doc.Zones(),
	}
	for _, b := range blocks {
		snap.Blocks = append(snap.Blocks, BlockInfoOf(b, constants))
	}
	return snap
}

// BlockResult — итог вычисления одного блока.
type BlockResult struct {
	UID    uint64
	ID     string
	Path   string
	Ready  bool
	Status domain.BlockStatus
}

// PassResult — итог одного прохода вычисления.
type PassResult struct {
	DocumentID    uuid.UUID
	StartedAt     time.Time
	Duration      time.Duration
	Blocks        []BlockResult
	Connections   domain.ConnectionInfos
	Pending       domain.ConnectionInfos
	TopologyState domain.TopologyState
	FailureMsg    string
	Trace         []TraceEntry
}

// BlockErrors возвращает число блоков с ошибками.
func (r PassResult) BlockErrors() int {
	n := 0
	for _, b := range r.Blocks {
		if b.Status.HasErrors() {
			n++
		}
	}
	return n
}
