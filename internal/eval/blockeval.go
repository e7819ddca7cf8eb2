package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/gui"
	"github.com/shaiso/Flowgraph/internal/proxy"
	"github.com/shaiso/Flowgraph/internal/telemetry"
)

// overlayTTL — время жизни overlay до повторного запроса.
const overlayTTL = 3 * time.Second

// propRecord — последнее успешное вычисление свойства.
type propRecord struct {
	expr  string
	deps  map[string]string // выражения констант на момент вычисления
	value any
	typ   string
}

// BlockEval — вычисление одного блока.
//
// Accept* только сохраняют новые данные; вся работа выполняется в Update.
// После успешного Update новые данные становятся последними применёнными.
// BlockEval используется только из горутины движка.
type BlockEval struct {
	logger     *slog.Logger
	dispatcher gui.Dispatcher

	newInfo  BlockInfo
	lastInfo BlockInfo
	hasLast  bool

	newEnvEval *EnvironmentEval
	newEnv     proxy.Environment
	lastEnv    proxy.Environment

	newPoolEval *ThreadPoolEval
	newPool     proxy.Object
	lastPool    proxy.Object

	status domain.BlockStatus

	// удалённые объекты
	evaluatorEnv proxy.Environment
	evalEnv      proxy.Object
	blockEval    proxy.Object
	proxyBlock   proxy.Object

	queryPortDesc bool
	inPorts       domain.PortList
	outPorts      domain.PortList

	registered map[string]string
	props      map[string]propRecord
	unapplied  map[string]bool

	overlayExpired time.Time

	// guiMu не даёт двум вызовам в GUI-горутине для блока пересечься.
	guiMu sync.Mutex
}

// NewBlockEval создаёт BlockEval.
// Если dispatcher == nil, вызовы GUI выполняются сразу (gui.Inline).
func NewBlockEval(dispatcher gui.Dispatcher, logger *slog.Logger) *BlockEval {
	if dispatcher == nil {
		dispatcher = gui.Inline{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BlockEval{
		logger:     logger,
		dispatcher: dispatcher,
		status:     domain.NewBlockStatus(),
		registered: make(map[string]string),
		props:      make(map[string]propRecord),
		unapplied:  make(map[string]bool),
	}
}

// AcceptInfo принимает новый снимок блока.
func (b *BlockEval) AcceptInfo(info BlockInfo) {
	b.newInfo = info
}

// AcceptEnvironment принимает окружение зоны блока; nil — зона не найдена.
func (b *BlockEval) AcceptEnvironment(env *EnvironmentEval) {
	b.newEnvEval = env
	b.newEnv = nil
	if env != nil {
		b.newEnv = env.Environment()
	}
}

// AcceptThreadPool принимает пул потоков зоны блока.
func (b *BlockEval) AcceptThreadPool(pool *ThreadPoolEval) {
	b.newPoolEval = pool
	b.newPool = nil
	if pool != nil {
		b.newPool = pool.ThreadPool()
	}
}

// Info возвращает последний принятый снимок.
func (b *BlockEval) Info() BlockInfo {
	return b.newInfo
}

// Status возвращает копию последнего статуса.
func (b *BlockEval) Status() domain.BlockStatus {
	return b.status.Clone()
}

// IsInfoMatch проверяет, относится ли снимок, вероятно, к этому блоку:
// совпадают ID и путь описания.
func (b *BlockEval) IsInfoMatch(info BlockInfo) bool {
	return info.ID == b.newInfo.ID && info.Desc.Path == b.newInfo.Desc.Path
}

// IsGraphWidget проверяет, создаёт ли блок виджет.
func (b *BlockEval) IsGraphWidget() bool {
	return b.newInfo.IsGraphWidget
}

// IsReady проверяет, можно ли подключать блок: окружение активно,
// ошибок нет, порты запрошены после последнего пересоздания.
func (b *BlockEval) IsReady() bool {
	return b.newEnv != nil && b.newEnv == b.lastEnv &&
		b.newInfo.Enabled && b.proxyBlock != nil &&
		!b.status.HasErrors() && !b.queryPortDesc &&
		b.inPorts.Valid && b.outPorts.Valid
}

// ShouldDisconnect проверяет, нужно ли снять соединения блока.
func (b *BlockEval) ShouldDisconnect() bool {
	if b.newEnv == nil || b.proxyBlock == nil || !b.newInfo.Enabled || b.status.HasErrors() {
		return true
	}
	if !b.hasLast {
		return true
	}
	return b.newEnv != b.lastEnv || b.hasCriticalChange()
}

// PortExists проверяет порт по последним запрошенным описаниям.
func (b *BlockEval) PortExists(name string, isInput bool) bool {
	if isInput {
		return b.inPorts.Has(name)
	}
	return b.outPorts.Has(name)
}

// GetProxyBlock возвращает удалённый блок для соединения.
func (b *BlockEval) GetProxyBlock() (proxy.Object, error) {
	if !b.IsReady() {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, b.newInfo.ID)
	}
	return b.proxyBlock, nil
}

// ProxyBlock возвращает текущий удалённый блок без проверки готовности.
func (b *BlockEval) ProxyBlock() proxy.Object {
	return b.proxyBlock
}

// Update выполняет вычисление и отправляет статус в GUI.
func (b *BlockEval) Update(ctx context.Context, tracer *Tracer) bool {
	b.status.BlockErrorMsgs = nil
	b.status.InPortDesc = domain.PortList{}
	b.status.OutPortDesc = domain.PortList{}
	b.status.OverlayDesc = nil
	b.pruneStatus()

	widget, ok := b.evaluationProcedure(ctx, tracer)
	if ok {
		b.lastInfo = b.newInfo
		b.hasLast = true
		b.lastEnv = b.newEnv
		b.lastPool = b.newPool
	}

	b.postStatus(widget)
	return ok
}

// RefreshOverlay перезапрашивает устаревший overlay и отправляет статус.
func (b *BlockEval) RefreshOverlay(ctx context.Context) bool {
	b.status.InPortDesc = domain.PortList{}
	b.status.OutPortDesc = domain.PortList{}
	b.status.OverlayDesc = nil
	if !b.refreshOverlay(ctx, time.Now()) {
		return false
	}
	b.postStatus(nil)
	return true
}

// Release освобождает удалённые объекты блока.
func (b *BlockEval) Release(ctx context.Context) {
	b.releaseAll(ctx)
}

func (b *BlockEval) evaluationProcedure(ctx context.Context, tracer *Tracer) (proxy.Object, bool) {
	if b.newEnvEval == nil {
		b.releaseAll(ctx)
		b.reportError(tracer, "environment", fmt.Errorf("%w: %q", ErrUnknownZone, b.newInfo.Zone))
		return nil, false
	}
	if b.newEnv == nil {
		b.releaseAll(ctx)
		err := ErrNoEnvironment
		if msg := b.newEnvEval.ErrorMsg(); msg != "" {
			err = fmt.Errorf("%w: %s", ErrNoEnvironment, msg)
		}
		b.reportError(tracer, "environment", err)
		return nil, false
	}
	if b.newPoolEval != nil && b.newPoolEval.ErrorMsg() != "" {
		b.reportError(tracer, "thread pool", errors.New(b.newPoolEval.ErrorMsg()))
		return nil, false
	}

	// новое окружение: всё создаётся заново
	if b.evaluatorEnv != nil && b.evaluatorEnv != b.newEnv {
		b.releaseAll(ctx)
	}

	if b.hasCriticalChange() || !b.newInfo.Enabled {
		b.releaseBlock(ctx)
	}

	if b.blockEval == nil {
		if err := b.makeEvaluator(ctx); err != nil {
			b.reportError(tracer, "make", err)
			return nil, false
		}
	}

	ok := b.applyConstants(ctx, tracer)
	if !b.updateProperties(ctx, tracer) {
		ok = false
	}
	if !ok {
		return nil, false
	}

	if !b.newInfo.Enabled {
		tracer.Trace("skip", "%s is disabled", b.newInfo.ID)
		return nil, true
	}

	var widget proxy.Object
	if b.proxyBlock == nil {
		if err := b.evalBlock(ctx); err != nil {
			b.reportError(tracer, proxy.MethodEvalBlock, err)
			return nil, false
		}
		pb, err := proxy.CallObject(ctx, b.blockEval, proxy.MethodGetProxyBlock)
		telemetry.ObserveRemoteCall(proxy.MethodGetProxyBlock, err)
		if err != nil {
			b.reportError(tracer, proxy.MethodGetProxyBlock, err)
			return nil, false
		}
		b.proxyBlock = pb
		b.queryPortDesc = true
		b.lastPool = nil
		clear(b.unapplied)
		if b.newInfo.IsGraphWidget {
			widget = pb
		}
		tracer.Trace(proxy.MethodEvalBlock, "created %s (%s)", b.newInfo.ID, b.newInfo.Desc.Path)
	} else {
		for _, name := range b.settersChanged() {
			_, err := b.blockEval.Call(ctx, proxy.MethodApplyCall, name)
			telemetry.ObserveRemoteCall(proxy.MethodApplyCall, err)
			if err != nil {
				b.reportError(tracer, name, err)
				return nil, false
			}
			tracer.Trace(proxy.MethodApplyCall, "%s.%s", b.newInfo.ID, name)
		}
		clear(b.unapplied)
	}

	if b.newPool != nil && b.newPool != b.lastPool {
		_, err := b.proxyBlock.Call(ctx, proxy.MethodSetThreadPool, b.newPool)
		telemetry.ObserveRemoteCall(proxy.MethodSetThreadPool, err)
		if err != nil {
			b.reportError(tracer, proxy.MethodSetThreadPool, err)
			return widget, false
		}
	}

	if b.queryPortDesc {
		in, err := b.queryPorts(ctx, proxy.MethodInputPortInfo)
		if err != nil {
			b.reportError(tracer, proxy.MethodInputPortInfo, err)
			return widget, false
		}
		out, err := b.queryPorts(ctx, proxy.MethodOutputPortInfo)
		if err != nil {
			b.reportError(tracer, proxy.MethodOutputPortInfo, err)
			return widget, false
		}
		b.inPorts, b.outPorts = in, out
		b.status.InPortDesc, b.status.OutPortDesc = in.Clone(), out.Clone()
		b.queryPortDesc = false
	}

	b.refreshOverlay(ctx, time.Now())
	return widget, true
}

// hasCriticalChange проверяет, нужно ли пересоздать удалённый блок.
func (b *BlockEval) hasCriticalChange() bool {
	if !b.hasLast {
		return true
	}
	n, l := b.newInfo, b.lastInfo

	if n.ID != l.ID || n.Desc.Path != l.Desc.Path || n.Zone != l.Zone || n.Enabled != l.Enabled {
		return true
	}
	if !slices.Equal(n.ConstantNames, l.ConstantNames) {
		return true
	}
	if !slices.Equal(n.PropertyKeys(), l.PropertyKeys()) {
		return true
	}
	if b.newEnv != b.lastEnv {
		return true
	}

	for _, key := range n.Desc.Args {
		if b.didPropKeyHaveChange(key) {
			return true
		}
	}
	for _, call := range n.Desc.Calls {
		if call.Type != domain.CallTypeInitializer {
			continue
		}
		for _, key := range call.Args {
			if b.didPropKeyHaveChange(key) {
				return true
			}
		}
	}
	return false
}

// didPropKeyHaveChange проверяет изменение выражения свойства
// или констант, от которых оно зависит.
func (b *BlockEval) didPropKeyHaveChange(key string) bool {
	expr := b.newInfo.Properties[key]
	if expr != b.lastInfo.Properties[key] {
		return true
	}
	return b.didExprHaveChange(expr)
}

func (b *BlockEval) didExprHaveChange(expr string) bool {
	used, _ := ConstantsUsed(expr, b.newInfo.ConstantNames, b.newInfo.Constants)
	for _, name := range used {
		last, ok := b.lastInfo.Constants[name]
		if !ok || last != b.newInfo.Constants[name] {
			return true
		}
	}
	return false
}

// settersChanged возвращает setter-вызовы, аргументы которых изменились.
func (b *BlockEval) settersChanged() []string {
	var names []string
	for _, call := range b.newInfo.Desc.Calls {
		if call.Type != domain.CallTypeSetter {
			continue
		}
		for _, key := range call.Args {
			if b.unapplied[key] {
				names = append(names, call.Name)
				break
			}
		}
	}
	return names
}

// usedConstants возвращает константы, нужные свойствам блока.
func (b *BlockEval) usedConstants() []string {
	used := make(map[string]bool)
	for _, expr := range b.newInfo.Properties {
		names, _ := ConstantsUsed(expr, b.newInfo.ConstantNames, b.newInfo.Constants)
		for _, name := range names {
			used[name] = true
		}
	}
	out := make([]string, 0, len(used))
	for _, name := range b.newInfo.ConstantNames {
		if used[name] {
			out = append(out, name)
		}
	}
	return out
}

// applyConstants регистрирует в вычислителе только используемые константы.
// Константа регистрируется после констант, на которые ссылается, и
// перерегистрируется, если изменилась любая из них.
func (b *BlockEval) applyConstants(ctx context.Context, tracer *Tracer) bool {
	used := dependencyOrder(b.usedConstants(), b.newInfo.Constants)

	for name := range b.registered {
		if !slices.Contains(used, name) {
			b.unregisterConstant(ctx, name)
		}
	}

	ok := true
	changed := make(map[string]bool)
	for _, name := range used {
		expr := b.newInfo.Constants[name]
		deps, _ := ConstantsUsed(expr, b.newInfo.ConstantNames, b.newInfo.Constants)

		prev, registered := b.registered[name]
		needed := !registered || prev != expr
		for _, dep := range deps {
			if changed[dep] {
				needed = true
			}
		}
		if !needed {
			continue
		}

		changed[name] = true
		_, err := b.evalEnv.Call(ctx, proxy.MethodRegisterConstant, name, expr)
		telemetry.ObserveRemoteCall(proxy.MethodRegisterConstant, err)
		if err != nil {
			b.reportError(tracer, proxy.MethodRegisterConstant, err)
			b.unregisterConstant(ctx, name)
			ok = false
			continue
		}
		b.registered[name] = expr
		tracer.Trace(proxy.MethodRegisterConstant, "%s = %s", name, expr)
	}
	return ok
}

func (b *BlockEval) unregisterConstant(ctx context.Context, name string) {
	delete(b.registered, name)
	if _, err := b.evalEnv.Call(ctx, proxy.MethodUnregisterConstant, name); err != nil {
		b.blockLogger().Debug("unregister constant", "name", name, "error", err)
	}
}

// updateProperties вычисляет свойства, выражения или константы которых изменились.
// Ошибка одного свойства не прерывает вычисление остальных.
func (b *BlockEval) updateProperties(ctx context.Context, tracer *Tracer) bool {
	for key := range b.props {
		if _, ok := b.newInfo.Properties[key]; !ok {
			delete(b.props, key)
		}
	}

	ok := true
	for _, key := range b.newInfo.PropertyKeys() {
		expr := b.newInfo.Properties[key]

		used, err := ConstantsUsed(expr, b.newInfo.ConstantNames, b.newInfo.Constants)
		if err != nil {
			b.propertyError(tracer, key, err)
			ok = false
			continue
		}
		deps := make(map[string]string, len(used))
		for _, name := range used {
			deps[name] = b.newInfo.Constants[name]
		}

		rec, has := b.props[key]
		if has && rec.expr == expr && maps.Equal(rec.deps, deps) {
			continue
		}

		result, err := proxy.CallObject(ctx, b.blockEval, proxy.MethodEvalProperty, key, expr, b.newInfo.DType(key))
		telemetry.ObserveRemoteCall(proxy.MethodEvalProperty, err)
		if err != nil {
			b.propertyError(tracer, key, err)
			ok = false
			continue
		}

		typ, err := proxy.CallString(ctx, result, proxy.MethodTypeString)
		if err != nil {
			b.propertyError(tracer, key, err)
			ok = false
			continue
		}
		value, valueErr := result.Call(ctx, proxy.MethodValue)
		if err := proxy.Release(ctx, result); err != nil {
			b.blockLogger().Debug("release value", "key", key, "error", err)
		}

		delete(b.status.PropertyErrorMsgs, key)
		b.status.PropertyTypeInfos[key] = typ

		if !has || valueErr != nil || !reflect.DeepEqual(rec.value, value) {
			b.unapplied[key] = true
		}
		b.props[key] = propRecord{expr: expr, deps: deps, value: value, typ: typ}
		tracer.Trace(proxy.MethodEvalProperty, "%s.%s = %s (%s)", b.newInfo.ID, key, expr, typ)
	}
	return ok
}

func (b *BlockEval) propertyError(tracer *Tracer, key string, err error) {
	msg := proxy.MessageOf(err)
	tracer.Error(proxy.MethodEvalProperty+" "+b.newInfo.ID+"."+key, err)
	b.status.PropertyErrorMsgs[key] = msg
	delete(b.status.PropertyTypeInfos, key)
	delete(b.props, key)
}

// evalBlock создаёт удалённый блок. Блоки с виджетом создаются в GUI-горутине.
func (b *BlockEval) evalBlock(ctx context.Context) error {
	desc, err := b.newInfo.descJSON()
	if err != nil {
		return err
	}

	call := func() error {
		_, err := b.blockEval.Call(ctx, proxy.MethodEvalBlock, b.newInfo.ID, desc)
		telemetry.ObserveRemoteCall(proxy.MethodEvalBlock, err)
		return err
	}
	if !b.newInfo.IsGraphWidget {
		return call()
	}

	b.guiMu.Lock()
	defer b.guiMu.Unlock()
	return b.dispatcher.Invoke(ctx, call)
}

func (b *BlockEval) queryPorts(ctx context.Context, method string) (domain.PortList, error) {
	result, err := b.proxyBlock.Call(ctx, method)
	telemetry.ObserveRemoteCall(method, err)
	if err != nil {
		return domain.PortList{}, err
	}
	return parsePorts(result)
}

// refreshOverlay запрашивает overlay, если прошлый устарел.
func (b *BlockEval) refreshOverlay(ctx context.Context, now time.Time) bool {
	if b.proxyBlock == nil || now.Before(b.overlayExpired) {
		return false
	}
	b.overlayExpired = now.Add(overlayTTL)

	data, err := proxy.CallString(ctx, b.proxyBlock, proxy.MethodOverlay)
	if err != nil {
		b.blockLogger().Debug("no overlay", "error", err)
		return false
	}
	if !json.Valid([]byte(data)) {
		b.blockLogger().Debug("invalid overlay")
		return false
	}
	b.status.OverlayDesc = json.RawMessage(data)
	b.status.OverlayExpired = b.overlayExpired
	return true
}

func (b *BlockEval) makeEvaluator(ctx context.Context) error {
	evalEnv, err := b.newEnv.Make(ctx, proxy.ClassEvalEnvironment)
	telemetry.ObserveRemoteCall(proxy.ClassEvalEnvironment, err)
	if err != nil {
		return err
	}
	blockEval, err := b.newEnv.Make(ctx, proxy.ClassBlockEval, evalEnv)
	telemetry.ObserveRemoteCall(proxy.ClassBlockEval, err)
	if err != nil {
		_ = proxy.Release(ctx, evalEnv)
		return err
	}

	b.evaluatorEnv = b.newEnv
	b.evalEnv = evalEnv
	b.blockEval = blockEval
	clear(b.registered)
	clear(b.props)
	clear(b.unapplied)
	return nil
}

func (b *BlockEval) releaseBlock(ctx context.Context) {
	if b.proxyBlock == nil {
		return
	}
	if err := proxy.Release(ctx, b.proxyBlock); err != nil {
		b.blockLogger().Debug("release block", "error", err)
	}
	b.proxyBlock = nil
	b.inPorts = domain.PortList{}
	b.outPorts = domain.PortList{}
	b.overlayExpired = time.Time{}
}

func (b *BlockEval) releaseAll(ctx context.Context) {
	b.releaseBlock(ctx)
	for _, obj := range []proxy.Object{b.blockEval, b.evalEnv} {
		if obj == nil {
			continue
		}
		if err := proxy.Release(ctx, obj); err != nil {
			b.blockLogger().Debug("release evaluator", "error", err)
		}
	}
	b.blockEval = nil
	b.evalEnv = nil
	b.evaluatorEnv = nil
	clear(b.registered)
	clear(b.props)
	clear(b.unapplied)
}

func (b *BlockEval) blockLogger() *slog.Logger {
	return telemetry.WithBlockID(b.logger, b.newInfo.UID, b.newInfo.ID)
}

func (b *BlockEval) reportError(tracer *Tracer, action string, err error) {
	msg := tracer.Error(action, err)
	b.status.BlockErrorMsgs = append(b.status.BlockErrorMsgs, msg)
}

// pruneStatus убирает из статуса свойства, которых больше нет.
func (b *BlockEval) pruneStatus() {
	for key := range b.status.PropertyTypeInfos {
		if _, ok := b.newInfo.Properties[key]; !ok {
			delete(b.status.PropertyTypeInfos, key)
		}
	}
	for key := range b.status.PropertyErrorMsgs {
		if _, ok := b.newInfo.Properties[key]; !ok {
			delete(b.status.PropertyErrorMsgs, key)
		}
	}
}

// postStatus отправляет статус в GUI-горутину.
func (b *BlockEval) postStatus(widget proxy.Object) {
	status := b.status.Clone()
	ref := b.newInfo.Block
	b.dispatcher.Post(func() {
		block := ref.Value()
		if block == nil {
			return
		}
		block.ApplyStatus(status)
		if widget != nil {
			block.SetWidget(widget)
		}
	})
}
