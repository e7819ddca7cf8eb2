package mq

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/shaiso/Flowgraph/internal/proxy"
)

// RoundTripper доставляет запрос окружению и возвращает ответ.
type RoundTripper interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// Client — удалённое окружение на стороне движка.
// Реализует proxy.Environment и proxy.Pinger.
type Client struct {
	name   string
	rt     RoundTripper
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient создаёт клиента окружения.
// Если rt реализует io.Closer, он закрывается вместе с клиентом.
func NewClient(name string, rt RoundTripper, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:   name,
		rt:     rt,
		logger: logger.With("environment", name),
	}
}

// Name возвращает имя окружения.
func (c *Client) Name() string {
	return c.name
}

// Make создаёт экземпляр класса в удалённом окружении.
func (c *Client) Make(ctx context.Context, class string, args ...any) (proxy.Object, error) {
	result, err := c.do(ctx, &Request{Op: OpMake, Class: class}, args)
	if err != nil {
		return nil, err
	}
	obj, ok := result.(proxy.Object)
	if !ok {
		return nil, proxy.NewRemoteError(class, "expected object reference, got %T", result)
	}
	return obj, nil
}

// Ping проверяет, что процесс окружения отвечает.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, &Request{Op: OpPing}, nil)
	return err
}

// Close закрывает клиента. Удалённые объекты освобождаются сервером
// при его остановке.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if closer, ok := c.rt.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *Request, args []any) (any, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, proxy.WrapRemoteError(req.Target(), ErrClientClosed)
	}

	encoded, err := encodeArgs(args, c.refOf)
	if err != nil {
		return nil, proxy.WrapRemoteError(req.Target(), err)
	}
	req.Args = encoded

	resp, err := c.rt.RoundTrip(ctx, req)
	if err != nil {
		return nil, proxy.WrapRemoteError(req.Target(), err)
	}
	if resp.Error != nil {
		return nil, resp.Error.RemoteError()
	}

	result, err := decodeValue(resp.Result, c.resolve)
	if err != nil {
		return nil, proxy.WrapRemoteError(req.Target(), err)
	}
	return result, nil
}

// refOf возвращает id объекта этого окружения.
func (c *Client) refOf(obj proxy.Object) (string, error) {
	ro, ok := obj.(*remoteObject)
	if !ok || ro.client != c {
		return "", fmt.Errorf("%w: %T", ErrForeignObject, obj)
	}
	return ro.id, nil
}

func (c *Client) resolve(id string) (proxy.Object, error) {
	return &remoteObject{client: c, id: id}, nil
}

// remoteObject — ссылка на объект удалённого окружения.
type remoteObject struct {
	client *Client
	id     string
}

// Call вызывает метод удалённого объекта.
func (o *remoteObject) Call(ctx context.Context, method string, args ...any) (any, error) {
	return o.client.do(ctx, &Request{Op: OpCall, Object: o.id, Method: method}, args)
}

// Release освобождает удалённый объект.
func (o *remoteObject) Release(ctx context.Context) error {
	_, err := o.client.do(ctx, &Request{Op: OpRelease, Object: o.id}, nil)
	return err
}

// String возвращает ссылку для логов.
func (o *remoteObject) String() string {
	return o.client.name + "/" + o.id
}
