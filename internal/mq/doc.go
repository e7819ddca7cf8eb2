// Package mq предоставляет удалённые окружения исполнения поверх RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchange и очередей окружений
//   - publisher.go  — публикация запросов и ответов
//   - consumer.go   — потребление сообщений из очередей
//   - wire.go       — формат запросов, ответов и ссылок на объекты
//   - client.go     — proxy.Environment на стороне движка
//   - server.go     — обслуживание запросов рядом с local.Environment
//   - transport.go  — RPC через очередь ответов и correlation id
//
// Типы сообщений:
//   - env.request   — запрос к окружению (make, call, release, ping)
//   - env.response  — ответ на запрос
//
// Объекты окружения передаются по ссылке {"$ref": "<id>"}; остальные
// значения передаются как JSON.
package mq
