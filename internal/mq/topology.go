package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeEnvironments — обменник запросов к окружениям.
const ExchangeEnvironments Exchange = "flowgraph.env"

// DefaultProcessName — имя процесса окружения, если в зоне оно не задано.
const DefaultProcessName = "default"

// replyQueueExpires — время жизни очереди ответов без потребителей (мс).
const replyQueueExpires = 60_000

// EnvironmentRoutingKey возвращает ключ маршрутизации процесса окружения.
func EnvironmentRoutingKey(processName string) RoutingKey {
	processName = strings.TrimSpace(processName)
	if processName == "" {
		processName = DefaultProcessName
	}
	return RoutingKey(processName)
}

// EnvironmentQueue возвращает очередь запросов процесса окружения.
func EnvironmentQueue(processName string) Queue {
	return Queue("flowgraph.env." + string(EnvironmentRoutingKey(processName)))
}

// SetupTopology объявляет обменник окружений.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, declareExchanges)
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeEnvironments), // name
		"direct",                     // type
		true,                         // durable
		false,                        // auto-deleted
		false,                        // internal
		false,                        // no-wait
		nil,                          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEnvironments, err)
	}
	return nil
}

// declareEnvironmentQueue создаёт очередь запросов процесса и привязывает её.
func declareEnvironmentQueue(ch *amqp.Channel, processName string) error {
	if err := declareExchanges(ch); err != nil {
		return err
	}

	queue := EnvironmentQueue(processName)
	_, err := ch.QueueDeclare(
		string(queue), // name
		false,         // durable: запросы не переживают рестарт окружения
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	key := EnvironmentRoutingKey(processName)
	if err := ch.QueueBind(string(queue), string(key), string(ExchangeEnvironments), false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, ExchangeEnvironments, err)
	}
	return nil
}

// declareReplyQueue создаёт очередь ответов клиента.
// Очередь удаляется брокером через replyQueueExpires без потребителей.
func declareReplyQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		false, // durable
		false, // delete when unused
		false, // exclusive: очередь должна пережить reconnect
		false, // no-wait
		amqp.Table{"x-expires": int32(replyQueueExpires)},
	)
	if err != nil {
		return fmt.Errorf("declare reply queue %s: %w", name, err)
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo(processName string) string {
	return fmt.Sprintf(`
  Flowgraph RabbitMQ Topology:

    %s (direct)
    └── %s [routing: %s]
            Consumer: flowgraph-proxyd

    flowgraph.reply.<uuid> (default exchange)
            Consumer: eval engine (one per environment client)
`, ExchangeEnvironments, EnvironmentQueue(processName), EnvironmentRoutingKey(processName))
}
