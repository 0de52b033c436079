package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/fanoutctl/internal/config"
)

// Channel — подмножество методов *amqp.Channel, которые использует fanoutctl.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var _ Channel = (*amqp.Channel)(nil)

// Session — соединение с RabbitMQ и единственный канал на нём.
//
// Session принадлежит одному процессу целиком, но методы безопасны
// для вызова из нескольких горутин (например, Close из обработчика сигнала).
type Session struct {
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel Channel
	closed  bool
}

// Dial открывает соединение и канал. Ошибка фатальна: повторов нет.
func Dial(ctx context.Context, broker config.Broker, logger *slog.Logger) (*Session, error) {
	if err := broker.Validate(); err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(broker.URL())
	if err != nil {
		return nil, fmt.Errorf("dial amqp %s: %w", broker.Redacted(), err)
	}

	// Сигнал мог прийти во время handshake.
	if err := ctx.Err(); err != nil {
		conn.Close()
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	logger.Info("connected to RabbitMQ", "broker", broker.Redacted())

	s := NewSession(ch, logger)
	s.conn = conn
	return s, nil
}

// NewSession оборачивает уже открытый канал. Используется в тестах
// и при внешнем управлении соединением.
func NewSession(ch Channel, logger *slog.Logger) *Session {
	return &Session{
		logger:  logger,
		channel: ch,
	}
}

// Channel возвращает канал сессии.
func (s *Session) Channel() Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.channel
}

// WithChannel выполняет функцию с каналом сессии.
func (s *Session) WithChannel(fn func(ch Channel) error) error {
	ch := s.Channel()
	if ch == nil {
		return ErrNoChannel
	}
	return fn(ch)
}

// Close закрывает канал, затем соединение. Повторный вызов ничего не делает.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error

	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}

	s.logger.Info("connection closed")
	return nil
}
