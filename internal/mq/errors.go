package mq

import "errors"

// Ошибки транспорта окружений.
var (
	// ErrNoChannel — AMQP канал недоступен (нет соединения).
	ErrNoChannel = errors.New("no channel available")

	// ErrTimeout — ответ на запрос не получен вовремя.
	ErrTimeout = errors.New("environment request timed out")

	// ErrUnknownObject — ссылка на объект, которого нет на сервере.
	ErrUnknownObject = errors.New("unknown object reference")

	// ErrForeignObject — объект принадлежит другому окружению.
	ErrForeignObject = errors.New("object belongs to another environment")

	// ErrBadRequest — запрос не удалось разобрать.
	ErrBadRequest = errors.New("bad request")

	// ErrClientClosed — клиент окружения закрыт.
	ErrClientClosed = errors.New("environment client closed")
)
