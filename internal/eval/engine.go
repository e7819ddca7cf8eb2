package eval

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/gui"
	"github.com/shaiso/Flowgraph/internal/local"
	"github.com/shaiso/Flowgraph/internal/proxy"
	"github.com/shaiso/Flowgraph/internal/telemetry"
)

// Default configuration values.
const (
	defaultDebounce        = 250 * time.Millisecond
	defaultMonitorInterval = time.Second
	defaultParallelism     = 8
)

// Engine — горутина вычисления документа.
//
// Engine принимает снимки через Submit, выжидает паузу в изменениях
// (Debounce) и выполняет проход вычисления по последнему снимку.
// Периодически проверяет окружения и обновляет overlay блоков.
type Engine struct {
	dialer     *proxy.Dialer
	dispatcher gui.Dispatcher

	debounce        time.Duration
	monitorInterval time.Duration
	parallelism     int
	onPass          func(PassResult)

	// состояние горутины вычисления
	envEvals     map[string]*EnvironmentEval
	poolEvals    map[string]*ThreadPoolEval
	blockEvals   map[uint64]*BlockEval
	topologyEval *TopologyEval
	topologyObj  proxy.Object
	topologyEnv  proxy.Environment
	lastSnapshot *Snapshot

	submitCh chan Snapshot

	resultMu   sync.RWMutex
	lastResult *PassResult

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Engine.
type Config struct {
	// Dialer — подключение к окружениям зон по HostURI (default: только local://).
	Dialer *proxy.Dialer

	// Dispatcher — выполнение кода в GUI-горутине (default: gui.Inline).
	Dispatcher gui.Dispatcher

	Debounce        time.Duration // пауза перед проходом (default: 250ms)
	MonitorInterval time.Duration // интервал проверки окружений и overlay (default: 1s)
	Parallelism     int           // блоков, вычисляемых одновременно (default: 8)

	// OnPass вызывается в горутине движка после каждого прохода.
	OnPass func(PassResult)

	Logger *slog.Logger
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	monitorInterval := cfg.MonitorInterval
	if monitorInterval <= 0 {
		monitorInterval = defaultMonitorInterval
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = gui.Inline{}
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = local.NewDialer(nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		dialer:          dialer,
		dispatcher:      dispatcher,
		debounce:        debounce,
		monitorInterval: monitorInterval,
		parallelism:     parallelism,
		onPass:          cfg.OnPass,
		envEvals:        make(map[string]*EnvironmentEval),
		poolEvals:       make(map[string]*ThreadPoolEval),
		blockEvals:      make(map[uint64]*BlockEval),
		submitCh:        make(chan Snapshot, 1),
		logger:          logger,
	}
}

// Start запускает горутину вычисления.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info("starting eval engine",
		"debounce", e.debounce,
		"monitor_interval", e.monitorInterval,
		"parallelism", e.parallelism,
	)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loop(ctx)
	}()

	return nil
}

// Stop останавливает движок и освобождает удалённые объекты.
func (e *Engine) Stop() {
	e.stoppedMu.Lock()
	e.stopped = true
	e.stoppedMu.Unlock()

	e.logger.Info("stopping eval engine...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	e.wg.Wait()

	e.logger.Info("eval engine stopped")
}

// IsStopped проверяет, остановлен ли движок.
func (e *Engine) IsStopped() bool {
	e.stoppedMu.RLock()
	defer e.stoppedMu.RUnlock()
	return e.stopped
}

// Submit передаёт снимок движку. Более старый необработанный снимок
// заменяется новым.
func (e *Engine) Submit(snap Snapshot) error {
	if e.IsStopped() {
		return ErrEngineStopped
	}
	for {
		select {
		case e.submitCh <- snap:
			return nil
		default:
		}
		select {
		case <-e.submitCh:
		default:
		}
	}
}

// LastResult возвращает итог последнего прохода.
func (e *Engine) LastResult() (PassResult, bool) {
	e.resultMu.RLock()
	defer e.resultMu.RUnlock()
	if e.lastResult == nil {
		return PassResult{}, false
	}
	return *e.lastResult, true
}

func (e *Engine) loop(ctx context.Context) {
	monitor := time.NewTicker(e.monitorInterval)
	defer monitor.Stop()

	debounce := time.NewTimer(e.debounce)
	debounce.Stop()

	var pending *Snapshot
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return

		case snap := <-e.submitCh:
			pending = &snap
			debounce.Reset(e.debounce)

		case <-debounce.C:
			if pending == nil {
				continue
			}
			snap := *pending
			pending = nil
			e.Evaluate(ctx, snap)

		case <-monitor.C:
			if !e.monitor(ctx) && pending == nil && e.lastSnapshot != nil {
				e.logger.Info("environment lost, re-evaluating")
				e.Evaluate(ctx, *e.lastSnapshot)
			}
		}
	}
}

// Evaluate выполняет один проход вычисления.
//
// Вызывается из горутины движка; инструменты без GUI могут вызывать
// Evaluate напрямую, не запуская Start.
func (e *Engine) Evaluate(ctx context.Context, snap Snapshot) PassResult {
	start := time.Now()
	logger := telemetry.WithDocumentID(e.logger, snap.DocumentID.String())
	tracer := NewTracer(logger)
	e.lastSnapshot = &snap

	// 1. Окружения и пулы потоков зон
	zones := snap.Zones
	if _, ok := zones[domain.DefaultZone]; !ok {
		zones = make(map[string]domain.ZoneConfig, len(snap.Zones)+1)
		for k, v := range snap.Zones {
			zones[k] = v
		}
		zones[domain.DefaultZone] = domain.DefaultZoneConfig()
	}
	e.updateZones(ctx, zones)
	e.ensureTopology(ctx, tracer, logger)

	// 2. Сопоставление блоков
	evals, removed := e.matchBlockEvals(snap.Blocks)

	// 3. Разрыв соединений блоков, которые будут пересозданы или сломаны
	if e.topologyEval != nil {
		e.topologyEval.AcceptConnectionInfo(snap.Connections)
		e.topologyEval.AcceptBlockEvals(evals)
		e.topologyEval.Disconnect(ctx, tracer)
	}

	// 4. Вычисление блоков
	e.updateBlocks(ctx, tracer, evals)

	// 5. Подключение и commit
	if e.topologyEval != nil {
		e.topologyEval.Update(ctx, tracer)
		e.topologyEval.Commit(ctx, tracer)
	}

	// 6. Освобождение удалённых блоков и зон
	for _, be := range removed {
		be.Release(ctx)
	}
	e.blockEvals = evals
	e.closeRemovedZones(ctx, zones)

	result := e.result(snap, start, tracer)
	telemetry.ObservePass(telemetry.PassStats{
		Duration:           result.Duration,
		BlockErrors:        result.BlockErrors(),
		PendingConnections: len(result.Pending),
		TopologyFailure:    result.TopologyState.IsFailure(),
	})

	logger.Info("eval pass completed",
		"blocks", len(result.Blocks),
		"block_errors", result.BlockErrors(),
		"connections", len(result.Connections),
		"pending", len(result.Pending),
		"topology_state", result.TopologyState,
		"duration", result.Duration,
	)

	e.resultMu.Lock()
	e.lastResult = &result
	e.resultMu.Unlock()

	if e.onPass != nil {
		e.onPass(result)
	}
	return result
}

// Close освобождает удалённые объекты. Для движка, не запущенного через Start.
func (e *Engine) Close() {
	e.shutdown()
}

func (e *Engine) updateZones(ctx context.Context, zones map[string]domain.ZoneConfig) {
	for name, cfg := range zones {
		envEval, ok := e.envEvals[name]
		if !ok {
			envEval = NewEnvironmentEval(name, e.dialer, e.logger)
			e.envEvals[name] = envEval
		}
		envEval.AcceptConfig(cfg)
		envEval.Update(ctx)

		poolEval, ok := e.poolEvals[name]
		if !ok {
			poolEval = NewThreadPoolEval(name, e.logger)
			e.poolEvals[name] = poolEval
		}
		poolEval.AcceptEnvironment(envEval)
		poolEval.AcceptConfig(cfg)
		poolEval.Update(ctx)
	}
}

func (e *Engine) closeRemovedZones(ctx context.Context, zones map[string]domain.ZoneConfig) {
	for name, envEval := range e.envEvals {
		if _, ok := zones[name]; ok {
			continue
		}
		if poolEval, ok := e.poolEvals[name]; ok {
			poolEval.Close(ctx)
			delete(e.poolEvals, name)
		}
		envEval.Close()
		delete(e.envEvals, name)
	}
}

// ensureTopology создаёт живую топологию в окружении зоны по умолчанию.
func (e *Engine) ensureTopology(ctx context.Context, tracer *Tracer, logger *slog.Logger) {
	env := e.envEvals[domain.DefaultZone].Environment()
	if env == nil {
		if e.topologyEval != nil {
			e.releaseTopology(ctx)
		}
		return
	}
	if env == e.topologyEnv {
		return
	}

	obj, err := env.Make(ctx, proxy.ClassTopology)
	telemetry.ObserveRemoteCall(proxy.ClassTopology, err)
	if err != nil {
		tracer.Error("make topology", err)
		return
	}
	e.releaseTopology(ctx)
	e.topologyEval = NewTopologyEval(proxy.AsTopology(obj), logger)
	e.topologyObj = obj
	e.topologyEnv = env
}

func (e *Engine) releaseTopology(ctx context.Context) {
	if e.topologyObj != nil {
		if err := proxy.Release(ctx, e.topologyObj); err != nil {
			e.logger.Debug("release topology", "error", err)
		}
	}
	e.topologyEval = nil
	e.topologyObj = nil
	e.topologyEnv = nil
}

// matchBlockEvals сопоставляет снимки блоков с существующими BlockEval:
// сначала по UID, затем по IsInfoMatch.
func (e *Engine) matchBlockEvals(infos []BlockInfo) (map[uint64]*BlockEval, []*BlockEval) {
	evals := make(map[uint64]*BlockEval, len(infos))
	claimed := make(map[*BlockEval]bool, len(infos))

	var unmatched []BlockInfo
	for _, info := range infos {
		be, ok := e.blockEvals[info.UID]
		if !ok {
			unmatched = append(unmatched, info)
			continue
		}
		evals[info.UID] = be
		claimed[be] = true
	}

	for _, info := range unmatched {
		var found *BlockEval
		for _, candidate := range e.blockEvals {
			if !claimed[candidate] && candidate.IsInfoMatch(info) {
				found = candidate
				break
			}
		}
		if found == nil {
			found = NewBlockEval(e.dispatcher, e.logger)
		}
		evals[info.UID] = found
		claimed[found] = true
	}

	for _, info := range infos {
		be := evals[info.UID]
		be.AcceptInfo(info)
		be.AcceptEnvironment(e.envEvals[info.Zone])
		be.AcceptThreadPool(e.poolEvals[info.Zone])
	}

	var removed []*BlockEval
	for _, be := range e.blockEvals {
		if !claimed[be] {
			removed = append(removed, be)
		}
	}
	return evals, removed
}

// updateBlocks вычисляет блоки параллельно.
func (e *Engine) updateBlocks(ctx context.Context, tracer *Tracer, evals map[uint64]*BlockEval) {
	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for _, be := range evals {
		g.Go(func() error {
			be.Update(ctx, tracer)
			return nil
		})
	}
	_ = g.Wait()
}

// monitor проверяет окружения и обновляет overlay.
// Возвращает false, если какое-то окружение потеряно.
func (e *Engine) monitor(ctx context.Context) bool {
	alive := true
	for _, envEval := range e.envEvals {
		if !envEval.Check(ctx) {
			alive = false
		}
	}
	for _, be := range e.blockEvals {
		be.RefreshOverlay(ctx)
	}
	return alive
}

func (e *Engine) result(snap Snapshot, start time.Time, tracer *Tracer) PassResult {
	result := PassResult{
		DocumentID:    snap.DocumentID,
		StartedAt:     start,
		Duration:      time.Since(start),
		Blocks:        make([]BlockResult, 0, len(snap.Blocks)),
		TopologyState: domain.TopologyStateClean,
		Trace:         tracer.Entries(),
	}
	for _, info := range snap.Blocks {
		be := e.blockEvals[info.UID]
		result.Blocks = append(result.Blocks, BlockResult{
			UID:    info.UID,
			ID:     info.ID,
			Path:   info.Desc.Path,
			Ready:  be.IsReady(),
			Status: be.Status(),
		})
	}
	if e.topologyEval != nil {
		result.Connections = e.topologyEval.Current()
		result.Pending = e.topologyEval.Pending()
		result.TopologyState = e.topologyEval.State()
		result.FailureMsg = e.topologyEval.FailureMsg()
	} else {
		result.Pending = snap.Connections.Clone()
	}
	return result
}

func (e *Engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, be := range e.blockEvals {
		be.Release(ctx)
	}
	e.blockEvals = make(map[uint64]*BlockEval)
	e.releaseTopology(ctx)
	for name, poolEval := range e.poolEvals {
		poolEval.Close(ctx)
		delete(e.poolEvals, name)
	}
	for name, envEval := range e.envEvals {
		envEval.Close()
		delete(e.envEvals, name)
	}
}
