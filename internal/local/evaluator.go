package local

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/expr-lang/expr"

	"github.com/shaiso/Flowgraph/internal/proxy"
)

// EvalEnvironment — вычислитель выражений с таблицей констант.
//
// Константы регистрируются по порядку; выражение константы может
// ссылаться только на уже зарегистрированные константы.
type EvalEnvironment struct {
	mu        sync.RWMutex
	constants map[string]any
	exprs     map[string]string
}

// NewEvalEnvironment создаёт пустой вычислитель.
func NewEvalEnvironment() *EvalEnvironment {
	return &EvalEnvironment{
		constants: make(map[string]any),
		exprs:     make(map[string]string),
	}
}

// Call реализует proxy.Object.
func (e *EvalEnvironment) Call(ctx context.Context, method string, args ...any) (any, error) {
	switch method {
	case proxy.MethodRegisterConstant:
		name, src, err := twoStrings(method, args)
		if err != nil {
			return nil, err
		}
		return nil, e.RegisterConstant(name, src)

	case proxy.MethodUnregisterConstant:
		if len(args) != 1 {
			return nil, proxy.NewRemoteError(method, "expected constant name")
		}
		name, ok := args[0].(string)
		if !ok {
			return nil, proxy.NewRemoteError(method, "expected string name, got %T", args[0])
		}
		e.UnregisterConstant(name)
		return nil, nil

	case proxy.MethodEval:
		if len(args) != 1 {
			return nil, proxy.NewRemoteError(method, "expected expression")
		}
		src, ok := args[0].(string)
		if !ok {
			return nil, proxy.NewRemoteError(method, "expected string expression, got %T", args[0])
		}
		v, err := e.Eval(src)
		if err != nil {
			return nil, err
		}
		return NewValue(v), nil
	}

	return nil, proxy.WrapRemoteError(method, fmt.Errorf("%w: EvalEnvironment.%s", proxy.ErrUnknownMethod, method))
}

// RegisterConstant вычисляет выражение и сохраняет значение константы.
func (e *EvalEnvironment) RegisterConstant(name, src string) error {
	v, err := e.Eval(src)
	if err != nil {
		return proxy.NewRemoteError(proxy.MethodRegisterConstant, "constant %s: %s", name, proxy.MessageOf(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.constants[name] = v
	e.exprs[name] = src
	return nil
}

// UnregisterConstant удаляет константу.
func (e *EvalEnvironment) UnregisterConstant(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.constants, name)
	delete(e.exprs, name)
}

// Constants возвращает имена зарегистрированных констант.
func (e *EvalEnvironment) Constants() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.constants))
	for name := range e.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Eval вычисляет выражение с текущими константами.
func (e *EvalEnvironment) Eval(src string) (any, error) {
	e.mu.RLock()
	env := make(map[string]any, len(e.constants))
	for k, v := range e.constants {
		env[k] = v
	}
	e.mu.RUnlock()

	program, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return nil, proxy.NewRemoteError(proxy.MethodEval, "%v", err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, proxy.NewRemoteError(proxy.MethodEval, "%v", err)
	}
	return out, nil
}

// Value — результат вычисления выражения.
type Value struct {
	v any
}

// NewValue оборачивает значение.
func NewValue(v any) *Value {
	return &Value{v: v}
}

// Get возвращает значение.
func (v *Value) Get() any {
	return v.v
}

// Call реализует proxy.Object.
func (v *Value) Call(ctx context.Context, method string, args ...any) (any, error) {
	switch method {
	case proxy.MethodTypeString:
		return TypeString(v.v), nil
	case proxy.MethodValue:
		return v.v, nil
	}
	return nil, proxy.WrapRemoteError(method, fmt.Errorf("%w: Value.%s", proxy.ErrUnknownMethod, method))
}

// TypeString возвращает имя типа значения для отображения в GUI.
func TypeString(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "dict"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Convert приводит значение к типу свойства.
// Пустой dtype принимает любое значение.
func Convert(v any, dtype string) (any, error) {
	switch dtype {
	case "":
		return v, nil

	case "float":
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}

	case "int":
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n == math.Trunc(n) {
				return int(n), nil
			}
		}

	case "string":
		if s, ok := v.(string); ok {
			return s, nil
		}

	case "bool":
		if b, ok := v.(bool); ok {
			return b, nil
		}

	default:
		return nil, fmt.Errorf("%w: unknown dtype %q", ErrBadArgument, dtype)
	}

	return nil, fmt.Errorf("%w: cannot convert %v (%s) to %s", ErrBadArgument, v, TypeString(v), dtype)
}

func twoStrings(method string, args []any) (string, string, error) {
	if len(args) != 2 {
		return "", "", proxy.NewRemoteError(method, "expected 2 arguments, got %d", len(args))
	}
	a, ok1 := args[0].(string)
	b, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return "", "", proxy.NewRemoteError(method, "expected string arguments")
	}
	return a, b, nil
}
