package mq

import "errors"

// Ошибки mq.
var (
	// ErrNoChannel — канал не открыт или уже закрыт.
	ErrNoChannel = errors.New("no channel available")

	// ErrDeliveriesClosed — брокер закрыл канал доставки.
	ErrDeliveriesClosed = errors.New("deliveries channel closed")

	// ErrNoHandler — consumer создан без обработчика.
	ErrNoHandler = errors.New("consumer handler is nil")
)
