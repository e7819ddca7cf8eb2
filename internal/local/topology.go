package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/Flowgraph/internal/proxy"
)

// Flow — соединение выхода одного блока со входом другого.
type Flow struct {
	Src     *Block
	SrcPort string
	Dst     *Block
	DstPort string
}

// String возвращает представление соединения для сообщений.
func (f Flow) String() string {
	return fmt.Sprintf("%s[%s] -> %s[%s]", f.Src.Path(), f.SrcPort, f.Dst.Path(), f.DstPort)
}

type flowOp struct {
	connect bool
	flow    Flow
}

// Topology — топология блоков локального окружения.
//
// Connect и Disconnect накапливают операции; Commit применяет их
// одним шагом. При ошибке активные соединения не меняются,
// а накопленные операции сохраняются до следующего Commit.
type Topology struct {
	mu      sync.Mutex
	pending []flowOp
	active  []Flow
}

// NewTopology создаёт пустую топологию.
func NewTopology() *Topology {
	return &Topology{}
}

// Connect запрашивает соединение.
func (t *Topology) Connect(ctx context.Context, src proxy.Object, srcPort string, dst proxy.Object, dstPort string) error {
	return t.queue(true, src, srcPort, dst, dstPort)
}

// Disconnect запрашивает разрыв соединения.
func (t *Topology) Disconnect(ctx context.Context, src proxy.Object, srcPort string, dst proxy.Object, dstPort string) error {
	return t.queue(false, src, srcPort, dst, dstPort)
}

// Commit применяет накопленные операции.
func (t *Topology) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make([]Flow, len(t.active))
	copy(next, t.active)

	for _, op := range t.pending {
		idx := indexOfFlow(next, op.flow)
		if op.connect {
			if !op.flow.Src.HasPort(op.flow.SrcPort, false) {
				return proxy.WrapRemoteError(proxy.MethodCommit, fmt.Errorf("%w: %s has no output %q", ErrUnknownPort, op.flow.Src.Path(), op.flow.SrcPort))
			}
			if !op.flow.Dst.HasPort(op.flow.DstPort, true) {
				return proxy.WrapRemoteError(proxy.MethodCommit, fmt.Errorf("%w: %s has no input %q", ErrUnknownPort, op.flow.Dst.Path(), op.flow.DstPort))
			}
			if idx < 0 {
				next = append(next, op.flow)
			}
			continue
		}
		if idx < 0 {
			return proxy.NewRemoteError(proxy.MethodCommit, "disconnect: flow not found %s", op.flow)
		}
		next = append(next[:idx], next[idx+1:]...)
	}

	if err := validateFlows(next); err != nil {
		return proxy.WrapRemoteError(proxy.MethodCommit, err)
	}

	t.active = next
	t.pending = nil
	return nil
}

// Flows возвращает активные соединения.
func (t *Topology) Flows() []Flow {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Flow, len(t.active))
	copy(out, t.active)
	return out
}

// Pending возвращает число операций, ожидающих Commit.
func (t *Topology) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Call реализует proxy.Object.
func (t *Topology) Call(ctx context.Context, method string, args ...any) (any, error) {
	switch method {
	case proxy.MethodConnect, proxy.MethodDisconnect:
		if len(args) != 4 {
			return nil, proxy.NewRemoteError(method, "expected src, srcPort, dst, dstPort")
		}
		src, ok1 := args[0].(proxy.Object)
		srcPort, ok2 := args[1].(string)
		dst, ok3 := args[2].(proxy.Object)
		dstPort, ok4 := args[3].(string)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, proxy.NewRemoteError(method, "bad argument types")
		}
		return nil, t.queue(method == proxy.MethodConnect, src, srcPort, dst, dstPort)

	case proxy.MethodCommit:
		return nil, t.Commit(ctx)
	}
	return nil, proxy.WrapRemoteError(method, fmt.Errorf("%w: Topology.%s", proxy.ErrUnknownMethod, method))
}

func (t *Topology) queue(connect bool, src proxy.Object, srcPort string, dst proxy.Object, dstPort string) error {
	op := proxy.MethodDisconnect
	if connect {
		op = proxy.MethodConnect
	}
	srcBlock, ok := src.(*Block)
	if !ok {
		return proxy.NewRemoteError(op, "source is not a local block: %T", src)
	}
	dstBlock, ok := dst.(*Block)
	if !ok {
		return proxy.NewRemoteError(op, "destination is not a local block: %T", dst)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, flowOp{
		connect: connect,
		flow:    Flow{Src: srcBlock, SrcPort: srcPort, Dst: dstBlock, DstPort: dstPort},
	})
	return nil
}

func indexOfFlow(flows []Flow, f Flow) int {
	for i, existing := range flows {
		if existing == f {
			return i
		}
	}
	return -1
}

// validateFlows проверяет, что на каждый потоковый вход подан один источник.
// Входы сигналов и слотов могут принимать несколько соединений.
func validateFlows(flows []Flow) error {
	type input struct {
		block *Block
		port  string
	}
	seen := make(map[input]Flow, len(flows))
	for _, f := range flows {
		if p, ok := f.Dst.port(f.DstPort, true); ok && p.IsSigSlot {
			continue
		}
		key := input{f.Dst, f.DstPort}
		if prev, exists := seen[key]; exists {
			return fmt.Errorf("%w: %s and %s", ErrMultipleSources, prev, f)
		}
		seen[key] = f
	}
	return nil
}
