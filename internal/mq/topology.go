package mq

import (
	"fmt"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// KindFanout — тип обменника: копия сообщения в каждую привязанную очередь.
const KindFanout = "fanout"

// fanoutRoutingKey игнорируется fanout обменником.
const fanoutRoutingKey = ""

// DeclareFanout объявляет durable fanout обменник. Операция идемпотентна.
func DeclareFanout(ch Channel, exchange Exchange) error {
	err := ch.ExchangeDeclare(
		string(exchange), // name
		KindFanout,       // type
		true,             // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

// DeclareBoundQueue объявляет durable очередь и привязывает её к обменнику.
func DeclareBoundQueue(ch Channel, queue Queue, exchange Exchange) error {
	_, err := ch.QueueDeclare(
		string(queue), // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	err = ch.QueueBind(
		string(queue),    // queue name
		fanoutRoutingKey, // routing key
		string(exchange), // exchange
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, exchange, err)
	}

	return nil
}

// SetupTopology объявляет обменник и, если queue не пустая, очередь с binding.
func SetupTopology(s *Session, exchange Exchange, queue Queue) error {
	return s.WithChannel(func(ch Channel) error {
		if err := DeclareFanout(ch, exchange); err != nil {
			return err
		}
		if queue == "" {
			return nil
		}
		return DeclareBoundQueue(ch, queue, exchange)
	})
}
