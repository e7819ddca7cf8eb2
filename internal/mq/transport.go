package mq

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Flowgraph/internal/proxy"
)

// defaultCallTimeout — время ожидания ответа по умолчанию.
const defaultCallTimeout = 10 * time.Second

// TransportConfig — конфигурация AMQPTransport.
type TransportConfig struct {
	// ProcessName — имя процесса окружения (default: "default").
	ProcessName string

	// Timeout — время ожидания ответа на запрос (default: 10s).
	Timeout time.Duration

	// CloseConnection — закрывать соединение вместе с транспортом.
	CloseConnection bool
}

// AMQPTransport — RPC через очередь запросов процесса и собственную
// очередь ответов. Ответ сопоставляется с запросом по correlation id.
type AMQPTransport struct {
	conn       *Connection
	publisher  *Publisher
	consumer   *Consumer
	routingKey RoutingKey
	replyQueue string
	timeout    time.Duration
	ownsConn   bool
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]chan *Response

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAMQPTransport создаёт транспорт и начинает приём ответов.
func NewAMQPTransport(ctx context.Context, conn *Connection, cfg TransportConfig, logger *slog.Logger) (*AMQPTransport, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &AMQPTransport{
		conn:       conn,
		publisher:  NewPublisher(conn, logger),
		routingKey: EnvironmentRoutingKey(cfg.ProcessName),
		replyQueue: "flowgraph.reply." + uuid.NewString(),
		timeout:    timeout,
		ownsConn:   cfg.CloseConnection,
		logger:     logger,
		pending:    make(map[string]chan *Response),
		done:       make(chan struct{}),
	}

	// Очередь ответов должна существовать до первого запроса
	declare := func(ch *amqp.Channel) error { return declareReplyQueue(ch, t.replyQueue) }
	if err := conn.WithChannel(ctx, declare); err != nil {
		return nil, err
	}

	t.consumer = NewConsumer(conn, logger, ConsumerConfig{
		Queue:    t.replyQueue,
		Handler:  t.handleReply,
		Prefetch: 16,
		Declare:  declare,
	})

	consumeCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go func() {
		defer close(t.done)
		if err := t.consumer.Start(consumeCtx); err != nil && consumeCtx.Err() == nil {
			t.logger.Error("reply consumer stopped", "error", err)
		}
	}()

	return t, nil
}

// RoundTrip публикует запрос и ждёт ответ.
func (t *AMQPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	msg := &Message{
		ID:         uuid.NewString(),
		Type:       MessageTypeRequest,
		Payload:    req,
		Timestamp:  time.Now(),
		ReplyTo:    t.replyQueue,
		Expiration: t.timeout,
	}

	ch := make(chan *Response, 1)
	t.mu.Lock()
	t.pending[msg.ID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, msg.ID)
		t.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.publisher.Publish(ctx, ExchangeEnvironments, t.routingKey, msg); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s %s after %s", ErrTimeout, req.Op, req.Target(), t.timeout)
	}
}

// handleReply передаёт ответ ожидающему запросу.
func (t *AMQPTransport) handleReply(ctx context.Context, d *Delivery) error {
	resp, err := ParsePayload[Response](&d.Message)
	if err != nil {
		t.logger.Warn("malformed reply", "message_id", d.Message.ID, "error", err)
		return nil
	}

	t.mu.Lock()
	ch, ok := t.pending[d.Message.CorrelationID]
	t.mu.Unlock()
	if !ok {
		t.logger.Debug("late reply dropped", "correlation_id", d.Message.CorrelationID)
		return nil
	}

	select {
	case ch <- &resp:
	default:
	}
	return nil
}

// Close останавливает приём ответов.
func (t *AMQPTransport) Close() error {
	t.cancel()
	<-t.done
	if t.ownsConn {
		return t.conn.Close()
	}
	return nil
}

// DialFunc возвращает proxy.DialFunc для схем "amqp" и "amqps".
//
// HostURI — адрес брокера, ProcessName — имя процесса окружения.
// Подключение проверяется запросом ping.
func DialFunc(timeout time.Duration, logger *slog.Logger) proxy.DialFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, hostURI, processName string) (proxy.Environment, error) {
		conn, err := NewConnection(ctx, hostURI, logger)
		if err != nil {
			return nil, err
		}
		if err := SetupTopology(ctx, conn); err != nil {
			conn.Close()
			return nil, err
		}

		rt, err := NewAMQPTransport(ctx, conn, TransportConfig{
			ProcessName:     processName,
			Timeout:         timeout,
			CloseConnection: true,
		}, logger)
		if err != nil {
			conn.Close()
			return nil, err
		}

		client := NewClient(environmentName(hostURI, processName), rt, logger)
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil
	}
}

// Register регистрирует схемы "amqp" и "amqps" в Dialer.
func Register(d *proxy.Dialer, timeout time.Duration, logger *slog.Logger) {
	fn := DialFunc(timeout, logger)
	d.Register("amqp", fn)
	d.Register("amqps", fn)
}

// environmentName возвращает имя окружения без учётных данных.
func environmentName(hostURI, processName string) string {
	host := hostURI
	if u, err := url.Parse(hostURI); err == nil {
		host = u.Host
	}
	return string(EnvironmentRoutingKey(processName)) + "@" + host
}
