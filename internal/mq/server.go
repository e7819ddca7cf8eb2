package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Flowgraph/internal/proxy"
	"github.com/shaiso/Flowgraph/internal/telemetry"
)

// Server обслуживает запросы к окружению исполнения.
//
// Объекты, созданные по запросам, хранятся в таблице ссылок
// до запроса release или остановки сервера.
type Server struct {
	env    proxy.Environment
	logger *slog.Logger

	mu      sync.Mutex
	objects map[string]proxy.Object
}

// NewServer создаёт Server для окружения.
func NewServer(env proxy.Environment, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		env:     env,
		logger:  logger,
		objects: make(map[string]proxy.Object),
	}
}

// Handle выполняет один запрос.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	result, err := s.handle(ctx, req)
	telemetry.ObserveRemoteCall(req.Target(), err)
	if err != nil {
		telemetry.FromContext(ctx).Debug("request failed", "op", req.Op, "target", req.Target(), "error", err)
		return errorResponse(req.Target(), err)
	}

	data, err := encodeValue(result, s.register)
	if err != nil {
		return errorResponse(req.Target(), err)
	}
	return &Response{Result: data}
}

func (s *Server) handle(ctx context.Context, req *Request) (any, error) {
	switch req.Op {
	case OpPing:
		return "pong", nil

	case OpMake:
		args, err := decodeArgs(req.Args, s.lookup)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		obj, err := s.env.Make(ctx, req.Class, args...)
		if err != nil {
			return nil, err
		}
		return obj, nil

	case OpCall:
		obj, err := s.lookup(req.Object)
		if err != nil {
			return nil, err
		}
		args, err := decodeArgs(req.Args, s.lookup)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return obj.Call(ctx, req.Method, args...)

	case OpRelease:
		return nil, s.release(ctx, req.Object)
	}

	return nil, fmt.Errorf("%w: unknown op %q", ErrBadRequest, req.Op)
}

// Objects возвращает число живых объектов.
func (s *Server) Objects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Close освобождает все объекты.
func (s *Server) Close(ctx context.Context) {
	s.mu.Lock()
	objects := s.objects
	s.objects = make(map[string]proxy.Object)
	s.mu.Unlock()

	for id, obj := range objects {
		if err := proxy.Release(ctx, obj); err != nil {
			s.logger.Warn("release object", "id", id, "error", err)
		}
	}
}

// ServeAMQP обслуживает очередь окружения processName до отмены ctx.
func (s *Server) ServeAMQP(ctx context.Context, conn *Connection, processName string) error {
	publisher := NewPublisher(conn, s.logger)
	queue := EnvironmentQueue(processName)

	consumer := NewConsumer(conn, s.logger, ConsumerConfig{
		Queue:    string(queue),
		Prefetch: 1,
		Declare: func(ch *amqp.Channel) error {
			return declareEnvironmentQueue(ch, processName)
		},
		Handler: func(ctx context.Context, d *Delivery) error {
			var resp *Response
			req, err := ParsePayload[Request](&d.Message)
			if err != nil {
				resp = errorResponse("request", fmt.Errorf("%w: %v", ErrBadRequest, err))
			} else {
				resp = s.Handle(ctx, &req)
			}

			if d.Message.ReplyTo == "" {
				return nil
			}
			return publisher.Publish(ctx, "", RoutingKey(d.Message.ReplyTo), &Message{
				ID:            uuid.NewString(),
				Type:          MessageTypeResponse,
				Payload:       resp,
				Timestamp:     time.Now(),
				CorrelationID: d.Message.ID,
			})
		},
	})

	s.logger.Info("serving environment", "queue", queue)
	return consumer.Start(ctx)
}

func (s *Server) register(obj proxy.Object) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.objects[id] = obj
	s.mu.Unlock()
	return id, nil
}

func (s *Server) lookup(id string) (proxy.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	return obj, nil
}

func (s *Server) release(ctx context.Context, id string) error {
	s.mu.Lock()
	obj, ok := s.objects[id]
	delete(s.objects, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	return proxy.Release(ctx, obj)
}
