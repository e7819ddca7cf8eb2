package eval

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/proxy"
	"github.com/shaiso/Flowgraph/internal/telemetry"
)

// ThreadPoolEval — пул потоков одной affinity-зоны.
//
// Пул создаётся заново при смене окружения или аргументов пула.
type ThreadPoolEval struct {
	logger *slog.Logger

	newEnvEval *EnvironmentEval
	newConfig  domain.ZoneConfig

	lastEnv  proxy.Environment
	lastArgs map[string]any
	pool     proxy.Object
	errorMsg string
}

// NewThreadPoolEval создаёт ThreadPoolEval.
func NewThreadPoolEval(zone string, logger *slog.Logger) *ThreadPoolEval {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThreadPoolEval{logger: telemetry.WithZone(logger, zone)}
}

// AcceptEnvironment принимает окружение зоны без обработки.
func (p *ThreadPoolEval) AcceptEnvironment(env *EnvironmentEval) {
	p.newEnvEval = env
}

// AcceptConfig принимает конфигурацию зоны без обработки.
func (p *ThreadPoolEval) AcceptConfig(cfg domain.ZoneConfig) {
	p.newConfig = cfg
}

// Update создаёт пул, если это нужно.
func (p *ThreadPoolEval) Update(ctx context.Context) {
	var env proxy.Environment
	if p.newEnvEval != nil {
		env = p.newEnvEval.Environment()
	}
	if env == nil {
		p.release(ctx)
		p.lastEnv = nil
		p.errorMsg = reportError("thread pool", ErrNoEnvironment)
		return
	}

	args := p.newConfig.ThreadPoolArgs()
	if p.pool != nil && env == p.lastEnv && reflect.DeepEqual(args, p.lastArgs) {
		return
	}

	p.release(ctx)
	p.lastEnv = env
	p.lastArgs = args

	pool, err := env.Make(ctx, proxy.ClassThreadPool, args)
	telemetry.ObserveRemoteCall(proxy.ClassThreadPool, err)
	if err != nil {
		p.errorMsg = reportError("make thread pool", err)
		p.logger.Warn("thread pool unavailable", "error", err)
		return
	}
	p.pool = pool
	p.errorMsg = ""
}

// ThreadPool возвращает пул или nil.
func (p *ThreadPoolEval) ThreadPool() proxy.Object {
	return p.pool
}

// ErrorMsg возвращает сообщение последней ошибки.
func (p *ThreadPoolEval) ErrorMsg() string {
	return p.errorMsg
}

// Close освобождает пул.
func (p *ThreadPoolEval) Close(ctx context.Context) {
	p.release(ctx)
}

func (p *ThreadPoolEval) release(ctx context.Context) {
	if p.pool == nil {
		return
	}
	if err := proxy.Release(ctx, p.pool); err != nil {
		p.logger.Warn("release thread pool", "error", err)
	}
	p.pool = nil
}
