package eval

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/graph"
	"github.com/shaiso/Flowgraph/internal/proxy"
	"github.com/shaiso/Flowgraph/internal/telemetry"
)

// TopologyEval — вычисление соединений одного документа.
//
// Держит набор запрошенных соединений (current) и набор, подтверждённый
// последним успешным commit (committed). Приводит живую топологию к новому
// снимку: сначала разрывы, затем подключения, затем commit.
// Ошибка commit переводит TopologyEval в состояние FAILURE до следующего
// успешного commit.
type TopologyEval struct {
	logger   *slog.Logger
	topology proxy.Topology

	newConnections  domain.ConnectionInfos
	lastConnections domain.ConnectionInfos

	newBlockEvals  map[uint64]*BlockEval
	lastBlockEvals map[uint64]*BlockEval

	current      domain.ConnectionInfos
	committed    domain.ConnectionInfos
	failureState bool
	failureMsg   string
	state        domain.TopologyState
}

// NewTopologyEval создаёт TopologyEval для живой топологии.
func NewTopologyEval(topology proxy.Topology, logger *slog.Logger) *TopologyEval {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopologyEval{
		logger:         logger,
		topology:       topology,
		newBlockEvals:  make(map[uint64]*BlockEval),
		lastBlockEvals: make(map[uint64]*BlockEval),
		state:          domain.TopologyStateClean,
	}
}

// GetConnectionInfo переводит объекты графа в набор соединений.
//
// Соединения через разрывы (breakers) разворачиваются в прямые
// соединения блоков. Вызывается в GUI-горутине.
func GetConnectionInfo(objects []graph.Object) domain.ConnectionInfos {
	var conns []*graph.Connection
	for _, obj := range objects {
		if c, ok := obj.(*graph.Connection); ok {
			conns = append(conns, c)
		}
	}

	type endpoint struct {
		block *graph.Block
		port  string
	}

	// sources возвращает блоки-источники объекта с учётом разрывов.
	var sources func(obj graph.Object, port string, seen map[string]bool) []endpoint
	sources = func(obj graph.Object, port string, seen map[string]bool) []endpoint {
		switch o := obj.(type) {
		case *graph.Block:
			return []endpoint{{o, port}}
		case *graph.Breaker:
			if o.IsInput() || seen[o.Node()] {
				return nil
			}
			seen[o.Node()] = true
			var out []endpoint
			for _, c := range conns {
				dst, _ := c.Input()
				in, ok := dst.(*graph.Breaker)
				if !ok || !in.IsInput() || in.Node() != o.Node() {
					continue
				}
				src, srcPort := c.Output()
				out = append(out, sources(src, srcPort, seen)...)
			}
			return out
		}
		return nil
	}

	var infos domain.ConnectionInfos
	for _, c := range conns {
		dst, dstPort := c.Input()
		dstBlock, ok := dst.(*graph.Block)
		if !ok {
			continue
		}
		src, srcPort := c.Output()
		for _, ep := range sources(src, srcPort, make(map[string]bool)) {
			infos.Insert(domain.ConnectionInfo{
				SrcBlockUID: ep.block.UID(),
				SrcPort:     ep.port,
				DstBlockUID: dstBlock.UID(),
				DstPort:     dstPort,
			})
		}
	}
	return infos
}

// AcceptConnectionInfo принимает новый набор соединений.
func (t *TopologyEval) AcceptConnectionInfo(infos domain.ConnectionInfos) {
	if !infos.Equal(t.newConnections) {
		t.markDirty()
	}
	t.newConnections = infos.Clone()
}

// AcceptBlockEvals принимает блоки нового снимка по UID.
func (t *TopologyEval) AcceptBlockEvals(evals map[uint64]*BlockEval) {
	if !maps.Equal(evals, t.newBlockEvals) {
		t.markDirty()
	}
	t.newBlockEvals = maps.Clone(evals)
}

// Disconnect разрывает соединения блоков, которые нужно отключить
// или которых больше нет в графе.
func (t *TopologyEval) Disconnect(ctx context.Context, tracer *Tracer) {
	t.disconnectStale(ctx, tracer)
}

// Update подключает новые соединения готовых блоков и разрывает удалённые.
// Соединения неготовых блоков откладываются до следующего Update.
func (t *TopologyEval) Update(ctx context.Context, tracer *Tracer) {
	t.state = domain.TopologyStateEvaluating

	// блоки, сломавшиеся при вычислении
	t.disconnectStale(ctx, tracer)

	for _, info := range domain.DiffConnectionInfos(t.current, t.newConnections) {
		t.disconnect(ctx, tracer, info)
	}

	for _, info := range domain.DiffConnectionInfos(t.newConnections, t.current) {
		src, srcOK := t.newBlockEvals[info.SrcBlockUID]
		dst, dstOK := t.newBlockEvals[info.DstBlockUID]
		if !srcOK || !dstOK {
			tracer.Trace("connect", "%s: block missing", info)
			continue
		}
		if !src.IsReady() || !dst.IsReady() {
			tracer.Trace("connect", "%s: deferred, block not ready", info)
			continue
		}
		if !src.PortExists(info.SrcPort, false) || !dst.PortExists(info.DstPort, true) {
			tracer.Trace("connect", "%s: deferred, port not found", info)
			continue
		}

		srcBlock, err := src.GetProxyBlock()
		if err != nil {
			tracer.Error("connect "+info.String(), err)
			continue
		}
		dstBlock, err := dst.GetProxyBlock()
		if err != nil {
			tracer.Error("connect "+info.String(), err)
			continue
		}

		err = t.topology.Connect(ctx, srcBlock, info.SrcPort, dstBlock, info.DstPort)
		telemetry.ObserveRemoteCall(proxy.MethodConnect, err)
		if err != nil {
			tracer.Error("connect "+info.String(), err)
			continue
		}
		t.current.Insert(info)
		tracer.Trace("connect", "%s", info)
	}

	t.lastConnections = t.newConnections.Clone()
	t.lastBlockEvals = maps.Clone(t.newBlockEvals)
}

// Commit применяет накопленные изменения топологии.
// Ошибка не возвращается, а переводит топологию в состояние FAILURE.
func (t *TopologyEval) Commit(ctx context.Context, tracer *Tracer) {
	t.state = domain.TopologyStateCommitting

	err := t.topology.Commit(ctx)
	telemetry.ObserveRemoteCall(proxy.MethodCommit, err)
	if err != nil {
		t.failureState = true
		t.failureMsg = tracer.Error(proxy.MethodCommit, err)
		t.state = domain.TopologyStateFailure
		t.logger.Error("topology commit failed", "error", err)
		return
	}

	if t.failureState {
		t.logger.Info("topology recovered")
	}
	t.committed = t.current.Clone()
	t.failureState = false
	t.failureMsg = ""
	t.state = domain.TopologyStateClean
}

// IsFailureState возвращает true, если последний commit завершился ошибкой.
func (t *TopologyEval) IsFailureState() bool {
	return t.failureState
}

// FailureMsg возвращает сообщение последней ошибки commit.
func (t *TopologyEval) FailureMsg() string {
	return t.failureMsg
}

// State возвращает состояние вычисления топологии.
func (t *TopologyEval) State() domain.TopologyState {
	return t.state
}

// Topology возвращает живую топологию.
func (t *TopologyEval) Topology() proxy.Topology {
	return t.topology
}

// Current возвращает соединения, подтверждённые последним успешным commit.
func (t *TopologyEval) Current() domain.ConnectionInfos {
	return t.committed.Clone()
}

// Pending возвращает соединения графа, которых нет в живой топологии:
// отложенные до готовности блоков и запрошенные, но не подтверждённые commit.
func (t *TopologyEval) Pending() domain.ConnectionInfos {
	return domain.DiffConnectionInfos(t.newConnections, t.committed)
}

func (t *TopologyEval) markDirty() {
	if !t.state.IsFailure() {
		t.state = domain.TopologyStateDirty
	}
}

// disconnectStale разрывает соединения, у которых блок пропал
// или должен быть отключён.
func (t *TopologyEval) disconnectStale(ctx context.Context, tracer *Tracer) {
	for _, info := range t.current.Clone() {
		src, srcOK := t.newBlockEvals[info.SrcBlockUID]
		dst, dstOK := t.newBlockEvals[info.DstBlockUID]
		if srcOK && dstOK && !src.ShouldDisconnect() && !dst.ShouldDisconnect() {
			continue
		}
		t.disconnect(ctx, tracer, info)
	}
}

// disconnect разрывает одно соединение из current.
func (t *TopologyEval) disconnect(ctx context.Context, tracer *Tracer, info domain.ConnectionInfo) {
	defer t.current.Remove(info)

	src := t.proxyBlockOf(info.SrcBlockUID)
	dst := t.proxyBlockOf(info.DstBlockUID)
	if src == nil || dst == nil {
		tracer.Trace("disconnect", "%s: block already released", info)
		return
	}

	err := t.topology.Disconnect(ctx, src, info.SrcPort, dst, info.DstPort)
	telemetry.ObserveRemoteCall(proxy.MethodDisconnect, err)
	if err != nil {
		tracer.Error(fmt.Sprintf("disconnect %s", info), err)
		return
	}
	tracer.Trace("disconnect", "%s", info)
}

// proxyBlockOf возвращает удалённый блок, с которым было создано соединение.
func (t *TopologyEval) proxyBlockOf(uid uint64) proxy.Object {
	if be, ok := t.lastBlockEvals[uid]; ok && be.ProxyBlock() != nil {
		return be.ProxyBlock()
	}
	if be, ok := t.newBlockEvals[uid]; ok {
		return be.ProxyBlock()
	}
	return nil
}
