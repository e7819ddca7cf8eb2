package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/proxy"
)

// Environment — окружение исполнения в текущем процессе.
type Environment struct {
	name     string
	registry *Registry

	mu     sync.RWMutex
	closed bool
}

// NewEnvironment создаёт окружение с реестром блоков.
// Если registry == nil, используется DefaultRegistry().
func NewEnvironment(name string, registry *Registry) *Environment {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Environment{name: name, registry: registry}
}

// DialFunc возвращает proxy.DialFunc для схемы "local".
func DialFunc(registry *Registry) proxy.DialFunc {
	return func(ctx context.Context, hostURI, processName string) (proxy.Environment, error) {
		name := "local"
		if processName != "" {
			name += ":" + processName
		}
		return NewEnvironment(name, registry), nil
	}
}

// Name возвращает имя окружения.
func (e *Environment) Name() string {
	return e.name
}

// Registry возвращает реестр блоков окружения.
func (e *Environment) Registry() *Registry {
	return e.registry
}

// Make создаёт экземпляр класса.
func (e *Environment) Make(ctx context.Context, class string, args ...any) (proxy.Object, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, proxy.WrapRemoteError(class, proxy.ErrEnvironmentClosed)
	}

	switch class {
	case proxy.ClassEvalEnvironment:
		return NewEvalEnvironment(), nil

	case proxy.ClassBlockEval:
		if len(args) != 1 {
			return nil, proxy.NewRemoteError(class, "expected eval environment argument")
		}
		evalEnv, ok := args[0].(*EvalEnvironment)
		if !ok {
			return nil, proxy.NewRemoteError(class, "expected eval environment, got %T", args[0])
		}
		return NewBlockEvaluator(e.registry, evalEnv), nil

	case proxy.ClassThreadPool:
		var poolArgs map[string]any
		if len(args) > 0 {
			m, ok := args[0].(map[string]any)
			if !ok {
				return nil, proxy.NewRemoteError(class, "expected args map, got %T", args[0])
			}
			poolArgs = m
		}
		return NewThreadPool(poolArgs)

	case proxy.ClassTopology:
		return NewTopology(), nil
	}

	return nil, proxy.WrapRemoteError(class, fmt.Errorf("%w: %s", proxy.ErrUnknownClass, class))
}

// Close закрывает окружение.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// NewDialer возвращает Dialer со схемой "local".
func NewDialer(registry *Registry) *proxy.Dialer {
	d := proxy.NewDialer()
	d.Register("local", DialFunc(registry))
	return d
}

// DefaultZones возвращает набор зон с одной локальной зоной по умолчанию.
func DefaultZones() map[string]domain.ZoneConfig {
	return map[string]domain.ZoneConfig{
		domain.DefaultZone: domain.DefaultZoneConfig(),
	}
}
