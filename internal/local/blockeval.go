package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/proxy"
)

// BlockEvaluator — удалённая сторона вычисления одного блока.
//
// Хранит вычисленные значения свойств, конструирует блок по описанию
// и применяет вызовы (setter/initializer) с этими значениями.
type BlockEvaluator struct {
	registry *Registry
	evalEnv  *EvalEnvironment

	mu    sync.Mutex
	props map[string]any
	id    string
	desc  domain.BlockDesc
	block *Block
}

// NewBlockEvaluator создаёт вычислитель блока.
func NewBlockEvaluator(registry *Registry, evalEnv *EvalEnvironment) *BlockEvaluator {
	return &BlockEvaluator{
		registry: registry,
		evalEnv:  evalEnv,
		props:    make(map[string]any),
	}
}

// Call реализует proxy.Object.
func (b *BlockEvaluator) Call(ctx context.Context, method string, args ...any) (any, error) {
	switch method {
	case proxy.MethodEvalProperty:
		if len(args) != 3 {
			return nil, proxy.NewRemoteError(method, "expected key, expression and dtype")
		}
		key, ok1 := args[0].(string)
		src, ok2 := args[1].(string)
		dtype, ok3 := args[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, proxy.NewRemoteError(method, "expected string arguments")
		}
		v, err := b.EvalProperty(key, src, dtype)
		if err != nil {
			return nil, err
		}
		return NewValue(v), nil

	case proxy.MethodEvalBlock:
		id, descJSON, err := twoStrings(method, args)
		if err != nil {
			return nil, err
		}
		return nil, b.EvalBlock(ctx, id, []byte(descJSON))

	case proxy.MethodApplyCall:
		if len(args) != 1 {
			return nil, proxy.NewRemoteError(method, "expected call name")
		}
		name, ok := args[0].(string)
		if !ok {
			return nil, proxy.NewRemoteError(method, "expected string name, got %T", args[0])
		}
		return nil, b.ApplyCall(ctx, name)

	case proxy.MethodGetProxyBlock:
		block := b.Block()
		if block == nil {
			return nil, proxy.WrapRemoteError(method, ErrNoBlock)
		}
		return block, nil
	}

	return nil, proxy.WrapRemoteError(method, fmt.Errorf("%w: BlockEval.%s", proxy.ErrUnknownMethod, method))
}

// EvalProperty вычисляет выражение свойства и сохраняет значение.
func (b *BlockEvaluator) EvalProperty(key, src, dtype string) (any, error) {
	v, err := b.evalEnv.Eval(src)
	if err != nil {
		return nil, proxy.NewRemoteError(proxy.MethodEvalProperty, "%s", proxy.MessageOf(err))
	}
	v, err = Convert(v, dtype)
	if err != nil {
		return nil, proxy.NewRemoteError(proxy.MethodEvalProperty, "%s: %v", key, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.props[key] = v
	return v, nil
}

// Property возвращает последнее вычисленное значение свойства.
func (b *BlockEvaluator) Property(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.props[key]
	return v, ok
}

// EvalBlock создаёт блок по описанию и применяет все вызовы.
// Если описание не содержит ни аргументов, ни вызовов,
// используется описание фабрики из реестра.
func (b *BlockEvaluator) EvalBlock(ctx context.Context, id string, descJSON []byte) error {
	var desc domain.BlockDesc
	if err := json.Unmarshal(descJSON, &desc); err != nil {
		return proxy.NewRemoteError(proxy.MethodEvalBlock, "parse description: %v", err)
	}

	factory, err := b.registry.Get(desc.Path)
	if err != nil {
		return proxy.WrapRemoteError(proxy.MethodEvalBlock, err)
	}
	if len(desc.Args) == 0 && len(desc.Calls) == 0 {
		desc = factory.Desc()
	}

	args, err := b.argsFor(desc.Args)
	if err != nil {
		return proxy.NewRemoteError(proxy.MethodEvalBlock, "%s constructor: %v", id, err)
	}

	block, err := factory.New(args)
	if err != nil {
		return proxy.NewRemoteError(proxy.MethodEvalBlock, "%s constructor: %v", id, err)
	}

	for _, call := range desc.Calls {
		if err := b.apply(ctx, block, call); err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.id = id
	b.desc = desc
	b.block = block
	b.mu.Unlock()
	return nil
}

// ApplyCall повторно вызывает метод блока с текущими значениями свойств.
func (b *BlockEvaluator) ApplyCall(ctx context.Context, name string) error {
	b.mu.Lock()
	block := b.block
	desc := b.desc
	b.mu.Unlock()

	if block == nil {
		return proxy.WrapRemoteError(proxy.MethodApplyCall, ErrNoBlock)
	}
	for _, call := range desc.Calls {
		if call.Name == name {
			return b.apply(ctx, block, call)
		}
	}
	return proxy.WrapRemoteError(proxy.MethodApplyCall, fmt.Errorf("%w: %s.%s", proxy.ErrUnknownMethod, desc.Path, name))
}

// Block возвращает созданный блок или nil.
func (b *BlockEvaluator) Block() *Block {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block
}

func (b *BlockEvaluator) apply(ctx context.Context, block *Block, call domain.CallDesc) error {
	args, err := b.argsFor(call.Args)
	if err != nil {
		return proxy.NewRemoteError(call.Name, "%v", err)
	}
	if _, err := block.Call(ctx, call.Name, args...); err != nil {
		return proxy.WrapRemoteError(call.Name, err)
	}
	return nil
}

func (b *BlockEvaluator) argsFor(keys []string) ([]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	args := make([]any, 0, len(keys))
	for _, key := range keys {
		v, ok := b.props[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingProperty, key)
		}
		args = append(args, v)
	}
	return args, nil
}
