package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/proxy"
)

// Method — метод блока, вызываемый по имени.
type Method func(args []any) (any, error)

// Block — экземпляр блока в локальном окружении.
type Block struct {
	id      uuid.UUID
	path    string
	inputs  []domain.PortInfo
	outputs []domain.PortInfo

	mu         sync.Mutex
	methods    map[string]Method
	overlay    func() map[string]any
	threadPool *ThreadPool
	state      map[string]any
}

// NewBlock создаёт блок с указанными портами.
func NewBlock(path string, inputs, outputs []domain.PortInfo) *Block {
	return &Block{
		id:      uuid.New(),
		path:    path,
		inputs:  inputs,
		outputs: outputs,
		methods: make(map[string]Method),
		state:   make(map[string]any),
	}
}

// ID возвращает уникальный идентификатор экземпляра.
func (b *Block) ID() uuid.UUID {
	return b.id
}

// Path возвращает путь фабрики блока.
func (b *Block) Path() string {
	return b.path
}

// Handle регистрирует метод блока.
func (b *Block) Handle(name string, m Method) *Block {
	b.methods[name] = m
	return b
}

// Setter регистрирует метод, сохраняющий аргумент в состоянии блока.
func (b *Block) Setter(name, key, dtype string) *Block {
	return b.Handle(name, func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: %s expects 1 argument, got %d", ErrBadArgument, name, len(args))
		}
		v, err := Convert(args[0], dtype)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		b.Set(key, v)
		return nil, nil
	})
}

// Overlay задаёт функцию построения overlay.
func (b *Block) Overlay(fn func() map[string]any) *Block {
	b.overlay = fn
	return b
}

// Set сохраняет значение в состоянии блока.
func (b *Block) Set(key string, v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state[key] = v
}

// Get возвращает значение из состояния блока.
func (b *Block) Get(key string) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state[key]
}

// ThreadPool возвращает назначенный пул потоков.
func (b *Block) ThreadPool() *ThreadPool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.threadPool
}

// HasPort проверяет наличие порта.
func (b *Block) HasPort(name string, isInput bool) bool {
	ports := b.outputs
	if isInput {
		ports = b.inputs
	}
	for _, p := range ports {
		if p.Name == name {
			return true
		}
	}
	return false
}

// port возвращает описание порта.
func (b *Block) port(name string, isInput bool) (domain.PortInfo, bool) {
	ports := b.outputs
	if isInput {
		ports = b.inputs
	}
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return domain.PortInfo{}, false
}

// Call реализует proxy.Object.
func (b *Block) Call(ctx context.Context, method string, args ...any) (any, error) {
	switch method {
	case proxy.MethodSetThreadPool:
		if len(args) != 1 {
			return nil, proxy.NewRemoteError(method, "expected thread pool argument")
		}
		pool, ok := args[0].(*ThreadPool)
		if !ok {
			return nil, proxy.NewRemoteError(method, "expected thread pool, got %T", args[0])
		}
		b.mu.Lock()
		b.threadPool = pool
		b.mu.Unlock()
		return nil, nil

	case proxy.MethodInputPortInfo:
		return portsToAny(b.inputs), nil

	case proxy.MethodOutputPortInfo:
		return portsToAny(b.outputs), nil

	case proxy.MethodOverlay:
		if b.overlay == nil {
			return nil, proxy.WrapRemoteError(method, fmt.Errorf("%w: %s.overlay", proxy.ErrUnknownMethod, b.path))
		}
		data, err := json.Marshal(b.overlay())
		if err != nil {
			return nil, proxy.WrapRemoteError(method, err)
		}
		return string(data), nil
	}

	m, ok := b.methods[method]
	if !ok {
		return nil, proxy.WrapRemoteError(method, fmt.Errorf("%w: %s.%s", proxy.ErrUnknownMethod, b.path, method))
	}
	result, err := m(args)
	if err != nil {
		return nil, proxy.WrapRemoteError(method, err)
	}
	return result, nil
}

// portsToAny переводит порты в форму, пригодную для JSON транспорта.
func portsToAny(ports []domain.PortInfo) []any {
	out := make([]any, 0, len(ports))
	for _, p := range ports {
		m := map[string]any{"name": p.Name}
		if p.Alias != "" {
			m["alias"] = p.Alias
		}
		if p.IsSigSlot {
			m["isSigSlot"] = true
		}
		if p.DType != "" {
			m["dtype"] = p.DType
		}
		out = append(out, m)
	}
	return out
}
