package mq

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Flowgraph/internal/proxy"
)

// Операции запроса к окружению.
const (
	OpMake    = "make"
	OpCall    = "call"
	OpRelease = "release"
	OpPing    = "ping"
)

// refKey — ключ ссылки на объект окружения.
const refKey = "$ref"

// Request — запрос к окружению.
type Request struct {
	Op     string            `json:"op"`
	Class  string            `json:"class,omitempty"`
	Object string            `json:"object,omitempty"`
	Method string            `json:"method,omitempty"`
	Args   []json.RawMessage `json:"args,omitempty"`
}

// Target возвращает имя вызываемого метода или класса для ошибок и метрик.
func (r *Request) Target() string {
	switch r.Op {
	case OpMake:
		return r.Class
	case OpCall:
		return r.Method
	}
	return r.Op
}

// Response — ответ окружения.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

// WireError — ошибка удалённого вызова в ответе.
type WireError struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

// RemoteError превращает ошибку ответа в proxy.RemoteError.
func (e *WireError) RemoteError() *proxy.RemoteError {
	return &proxy.RemoteError{Op: e.Op, Message: e.Message}
}

// errorResponse создаёт ответ с ошибкой.
func errorResponse(op string, err error) *Response {
	re := proxy.WrapRemoteError(op, err)
	return &Response{Error: &WireError{Op: re.Op, Message: re.Message}}
}

// refFunc возвращает id ссылки на объект.
type refFunc func(obj proxy.Object) (string, error)

// resolveFunc возвращает объект по id ссылки.
type resolveFunc func(id string) (proxy.Object, error)

// encodeArgs кодирует аргументы вызова.
func encodeArgs(args []any, ref refFunc) ([]json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]json.RawMessage, len(args))
	for i, arg := range args {
		data, err := encodeValue(arg, ref)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}

// decodeArgs декодирует аргументы вызова.
func decodeArgs(args []json.RawMessage, resolve resolveFunc) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		v, err := decodeValue(arg, resolve)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// encodeValue кодирует значение; объекты заменяются ссылками.
func encodeValue(v any, ref refFunc) (json.RawMessage, error) {
	w, err := toWire(v, ref)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func toWire(v any, ref refFunc) (any, error) {
	switch x := v.(type) {
	case proxy.Object:
		id, err := ref(x)
		if err != nil {
			return nil, err
		}
		return map[string]any{refKey: id}, nil

	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			w, err := toWire(item, ref)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil

	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			w, err := toWire(item, ref)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	}
	return v, nil
}

// decodeValue декодирует значение; ссылки заменяются объектами.
func decodeValue(data json.RawMessage, resolve resolveFunc) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return fromWire(v, resolve)
}

func fromWire(v any, resolve resolveFunc) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		if id, ok := x[refKey].(string); ok && len(x) == 1 {
			return resolve(id)
		}
		for k, item := range x {
			r, err := fromWire(item, resolve)
			if err != nil {
				return nil, err
			}
			x[k] = r
		}
		return x, nil

	case []any:
		for i, item := range x {
			r, err := fromWire(item, resolve)
			if err != nil {
				return nil, err
			}
			x[i] = r
		}
		return x, nil
	}
	return v, nil
}
