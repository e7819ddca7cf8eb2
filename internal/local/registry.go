package local

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Flowgraph/internal/domain"
)

// Factory — фабрика блоков одного типа.
type Factory interface {
	// Desc возвращает описание типа блока; Desc().Path — ключ в реестре.
	Desc() domain.BlockDesc

	// New создаёт блок из аргументов конструктора в порядке Desc().Args.
	New(args []any) (*Block, error)
}

// FactoryFunc — Factory из описания и функции.
type FactoryFunc struct {
	Description domain.BlockDesc
	Constructor func(args []any) (*Block, error)
}

// Desc возвращает описание.
func (f FactoryFunc) Desc() domain.BlockDesc {
	return f.Description
}

// New создаёт блок.
func (f FactoryFunc) New(args []any) (*Block, error) {
	return f.Constructor(args)
}

// Registry — реестр типов блоков.
//
// Позволяет регистрировать и получать фабрики по пути.
// Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными блоками.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(constantSourceFactory())
	r.Register(multiplyFactory())
	r.Register(teeFactory())
	r.Register(sinkFactory())
	r.Register(sliderFactory())

	return r
}

// Register регистрирует фабрику. Фабрика с тем же путём перезаписывается.
func (r *Registry) Register(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[f.Desc().Path] = f
}

// Get возвращает фабрику по пути.
// Возвращает ErrUnknownBlockPath, если путь не найден.
func (r *Registry) Get(path string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, exists := r.factories[path]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlockPath, path)
	}
	return f, nil
}

// Has проверяет, зарегистрирован ли путь.
func (r *Registry) Has(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[path]
	return exists
}

// Paths возвращает отсортированный список путей.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.factories))
	for p := range r.factories {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Descs возвращает описания всех блоков в порядке путей.
func (r *Registry) Descs() []domain.BlockDesc {
	paths := r.Paths()

	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]domain.BlockDesc, 0, len(paths))
	for _, p := range paths {
		if f, ok := r.factories[p]; ok {
			descs = append(descs, f.Desc())
		}
	}
	return descs
}

// Count возвращает количество фабрик.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Unregister удаляет фабрику.
func (r *Registry) Unregister(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, path)
}
