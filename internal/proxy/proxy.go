package proxy

import "context"

// Имена классов, создаваемых в окружении.
const (
	ClassEvalEnvironment = "EvalEnvironment"
	ClassBlockEval       = "BlockEval"
	ClassThreadPool      = "ThreadPool"
	ClassTopology        = "Topology"
)

// Методы EvalEnvironment.
const (
	MethodRegisterConstant   = "registerConstantExpr"
	MethodUnregisterConstant = "unregisterConstant"
	MethodEval               = "eval"
)

// Методы BlockEval.
const (
	MethodEvalProperty  = "evalProperty"
	MethodEvalBlock     = "evalBlock"
	MethodApplyCall     = "applyCall"
	MethodGetProxyBlock = "getProxyBlock"
)

// Методы блока.
const (
	MethodSetThreadPool  = "setThreadPool"
	MethodInputPortInfo  = "inputPortInfo"
	MethodOutputPortInfo = "outputPortInfo"
	MethodOverlay        = "overlay"
)

// Методы Topology.
const (
	MethodConnect    = "connect"
	MethodDisconnect = "disconnect"
	MethodCommit     = "commit"
)

// Методы значения, возвращаемого evalProperty.
const (
	MethodTypeString = "getTypeString"
	MethodValue      = "value"
)

// Object — удалённый объект, доступный по имени метода.
type Object interface {
	// Call вызывает метод и возвращает результат.
	// Результатом может быть простое значение (string, float64, bool,
	// []any, map[string]any) или другой Object.
	Call(ctx context.Context, method string, args ...any) (any, error)
}

// Environment — окружение исполнения (процесс, в котором живут блоки).
type Environment interface {
	// Name возвращает имя окружения для логов.
	Name() string

	// Make создаёт экземпляр класса.
	Make(ctx context.Context, class string, args ...any) (Object, error)

	// Close освобождает окружение.
	Close() error
}

// Topology — живая топология соединённых удалённых блоков.
type Topology interface {
	// Connect запрашивает соединение; применяется при Commit.
	Connect(ctx context.Context, src Object, srcPort string, dst Object, dstPort string) error

	// Disconnect запрашивает разрыв соединения; применяется при Commit.
	Disconnect(ctx context.Context, src Object, srcPort string, dst Object, dstPort string) error

	// Commit атомарно применяет накопленные изменения.
	Commit(ctx context.Context) error
}

// Releaser — объект, который нужно явно освободить.
type Releaser interface {
	Release(ctx context.Context) error
}

// Release освобождает объект, если он это поддерживает.
func Release(ctx context.Context, obj Object) error {
	if r, ok := obj.(Releaser); ok {
		return r.Release(ctx)
	}
	return nil
}

// CallString вызывает метод и приводит результат к строке.
func CallString(ctx context.Context, obj Object, method string, args ...any) (string, error) {
	result, err := obj.Call(ctx, method, args...)
	if err != nil {
		return "", err
	}
	s, ok := result.(string)
	if !ok {
		return "", NewRemoteError(method, "expected string result, got %T", result)
	}
	return s, nil
}

// CallObject вызывает метод и приводит результат к Object.
func CallObject(ctx context.Context, obj Object, method string, args ...any) (Object, error) {
	result, err := obj.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	o, ok := result.(Object)
	if !ok {
		return nil, NewRemoteError(method, "expected object result, got %T", result)
	}
	return o, nil
}

// AsTopology возвращает Topology для объекта, созданного классом ClassTopology.
// Объекты, не реализующие Topology напрямую, вызываются по имени метода.
func AsTopology(obj Object) Topology {
	if t, ok := obj.(Topology); ok {
		return t
	}
	return objectTopology{obj: obj}
}

type objectTopology struct {
	obj Object
}

func (t objectTopology) Connect(ctx context.Context, src Object, srcPort string, dst Object, dstPort string) error {
	_, err := t.obj.Call(ctx, MethodConnect, src, srcPort, dst, dstPort)
	return err
}

func (t objectTopology) Disconnect(ctx context.Context, src Object, srcPort string, dst Object, dstPort string) error {
	_, err := t.obj.Call(ctx, MethodDisconnect, src, srcPort, dst, dstPort)
	return err
}

func (t objectTopology) Commit(ctx context.Context) error {
	_, err := t.obj.Call(ctx, MethodCommit)
	return err
}

// Pinger — окружение, умеющее проверить, что удалённая сторона жива.
type Pinger interface {
	Ping(ctx context.Context) error
}
