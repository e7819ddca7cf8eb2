package local

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/proxy"
)

// Режимы ожидания потоков пула.
const (
	YieldCondition = "CONDITION"
	YieldHybrid    = "HYBRID"
	YieldSpin      = "SPIN"
)

// ThreadPool — пул потоков, назначаемый блокам зоны.
//
// Локальное окружение не исполняет блоки, поэтому пул только хранит
// и проверяет свою конфигурацию.
type ThreadPool struct {
	id         uuid.UUID
	numThreads int
	priority   float64
	affinity   []int
	yieldMode  string
}

// NewThreadPool создаёт пул из аргументов зоны.
func NewThreadPool(args map[string]any) (*ThreadPool, error) {
	p := &ThreadPool{id: uuid.New(), yieldMode: YieldCondition}

	if v, ok := args["numThreads"]; ok {
		n, err := Convert(v, "int")
		if err != nil {
			return nil, proxy.NewRemoteError(proxy.ClassThreadPool, "numThreads: %v", err)
		}
		if n.(int) < 0 {
			return nil, proxy.NewRemoteError(proxy.ClassThreadPool, "numThreads must be non-negative, got %d", n)
		}
		p.numThreads = n.(int)
	}

	if v, ok := args["priority"]; ok {
		f, err := Convert(v, "float")
		if err != nil {
			return nil, proxy.NewRemoteError(proxy.ClassThreadPool, "priority: %v", err)
		}
		if f.(float64) < -1 || f.(float64) > 1 {
			return nil, proxy.NewRemoteError(proxy.ClassThreadPool, "priority %v out of range [-1, 1]", f)
		}
		p.priority = f.(float64)
	}

	if v, ok := args["affinity"]; ok {
		list, ok := v.([]any)
		if !ok {
			return nil, proxy.NewRemoteError(proxy.ClassThreadPool, "affinity: expected list, got %T", v)
		}
		for _, item := range list {
			n, err := Convert(item, "int")
			if err != nil {
				return nil, proxy.NewRemoteError(proxy.ClassThreadPool, "affinity: %v", err)
			}
			p.affinity = append(p.affinity, n.(int))
		}
	}

	if v, ok := args["yieldMode"]; ok {
		mode, _ := v.(string)
		switch mode {
		case YieldCondition, YieldHybrid, YieldSpin:
			p.yieldMode = mode
		default:
			return nil, proxy.NewRemoteError(proxy.ClassThreadPool, "unknown yield mode %q", v)
		}
	}

	return p, nil
}

// ID возвращает идентификатор пула.
func (p *ThreadPool) ID() uuid.UUID {
	return p.id
}

// NumThreads возвращает число потоков; 0 — по числу CPU.
func (p *ThreadPool) NumThreads() int {
	return p.numThreads
}

// Priority возвращает приоритет потоков.
func (p *ThreadPool) Priority() float64 {
	return p.priority
}

// Affinity возвращает список узлов.
func (p *ThreadPool) Affinity() []int {
	return slices.Clone(p.affinity)
}

// YieldMode возвращает режим ожидания.
func (p *ThreadPool) YieldMode() string {
	return p.yieldMode
}

// Call реализует proxy.Object. У пула нет удалённых методов.
func (p *ThreadPool) Call(ctx context.Context, method string, args ...any) (any, error) {
	return nil, proxy.WrapRemoteError(method, fmt.Errorf("%w: ThreadPool.%s", proxy.ErrUnknownMethod, method))
}
