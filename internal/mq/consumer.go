package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Flowgraph/internal/telemetry"
)

var errDeliveriesClosed = errors.New("deliveries channel closed")

// Handler обрабатывает запрос или ответ окружения.
// Ошибка отклоняет сообщение без возврата в очередь.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — полученное сообщение окружения.
type Delivery struct {
	Message Message
}

// Consumer читает очередь окружения и переживает переподключения.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int
	declare  func(ch *amqp.Channel) error
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue    string
	Handler  Handler
	Prefetch int // по умолчанию 1

	// Declare объявляет очередь перед каждым началом потребления,
	// в том числе после переподключения. Может быть nil.
	Declare func(ch *amqp.Channel) error
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: cfg.Prefetch,
		declare:  cfg.Declare,
	}
}

// Start потребляет сообщения до отмены ctx.
func (c *Consumer) Start(ctx context.Context) error {
	for ctx.Err() == nil {
		deliveries, err := c.open()
		if err != nil {
			c.logger.Error("failed to open queue", "error", err)
		} else {
			c.logger.Info("consumer started")
			err = c.drain(ctx, deliveries)
			if ctx.Err() != nil {
				break
			}
			c.logger.Warn("consumer interrupted, waiting for reconnect", "error", err)
		}

		select {
		case <-ctx.Done():
		case <-c.conn.ReconnectNotify():
		}
	}
	return ctx.Err()
}

func (c *Consumer) open() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if c.declare != nil {
		if err := c.declare(ch); err != nil {
			return nil, err
		}
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.dispatch(ctx, raw)
		}
	}
}

// dispatch передаёт сообщение обработчику. Запросы окружения не
// повторяются: при ошибке клиент получит таймаут.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message", "error", err, "body", string(raw.Body))
		_ = raw.Nack(false, false)
		return
	}
	msg.ReplyTo = raw.ReplyTo
	msg.CorrelationID = raw.CorrelationId

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("received message")

	if err := c.handler(telemetry.WithLogger(ctx, logger), &Delivery{Message: msg}); err != nil {
		logger.Error("handler failed", "error", err)
		_ = raw.Nack(false, false)
		return
	}
	_ = raw.Ack(false)
}

// ParsePayload декодирует payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// После json.Unmarshal конверта payload — это map[string]any
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
