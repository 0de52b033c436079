package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/fanoutctl/internal/telemetry"
)

// Decision — как завершить обработку доставки.
type Decision int

const (
	// Ack — сообщение обработано, брокер удаляет его из очереди.
	Ack Decision = iota
	// Nack — отклонить без возврата в очередь.
	Nack
	// Requeue — отклонить и вернуть в очередь.
	Requeue
)

// String возвращает имя решения для логов и метрик.
func (d Decision) String() string {
	switch d {
	case Ack:
		return "ack"
	case Nack:
		return "nack"
	case Requeue:
		return "requeue"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Delivery — неизменяемая копия доставленного сообщения.
// Обработчик не имеет доступа к ack: решение возвращается значением.
type Delivery struct {
	Body        []byte
	DeliveryTag uint64
	MessageID   string
	ContentType string
	Exchange    string
	RoutingKey  string
	Redelivered bool
	Timestamp   time.Time
}

// Text возвращает тело как текст. JSON строка декодируется,
// иначе возвращаются сырые байты.
func (d Delivery) Text() string {
	var s string
	if err := json.Unmarshal(d.Body, &s); err == nil {
		return s
	}
	return string(d.Body)
}

func newDelivery(raw amqp.Delivery) Delivery {
	body := make([]byte, len(raw.Body))
	copy(body, raw.Body)

	return Delivery{
		Body:        body,
		DeliveryTag: raw.DeliveryTag,
		MessageID:   raw.MessageId,
		ContentType: raw.ContentType,
		Exchange:    raw.Exchange,
		RoutingKey:  raw.RoutingKey,
		Redelivered: raw.Redelivered,
		Timestamp:   raw.Timestamp,
	}
}

// Handler — функция обработки сообщения.
type Handler func(ctx context.Context, d Delivery) Decision

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество неподтверждённых доставок (default: 1).
	Prefetch int

	// Tag — consumer tag, пусто — генерирует брокер.
	Tag string
}

// Consumer потребляет сообщения из очереди строго последовательно.
type Consumer struct {
	session  *Session
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int
	tag      string
}

// NewConsumer создаёт новый Consumer. metrics может быть nil.
func NewConsumer(session *Session, metrics *telemetry.Metrics, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		session:  session,
		metrics:  metrics,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
		tag:      cfg.Tag,
	}
}

// Run настраивает QoS, подписывается на очередь и обрабатывает доставки
// до отмены ctx (возвращает nil) или закрытия канала доставки
// (возвращает ErrDeliveriesClosed).
func (c *Consumer) Run(ctx context.Context) error {
	if c.handler == nil {
		return ErrNoHandler
	}

	deliveries, err := c.setupConsume()
	if err != nil {
		return err
	}

	c.logger.Info("consumer started", "queue", c.queue, "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped", "queue", c.queue)
			return nil

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("queue %s: %w", c.queue, ErrDeliveriesClosed)
			}
			if err := c.handleDelivery(ctx, raw); err != nil {
				return err
			}
		}
	}
}

// setupConsume настраивает канал и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.session.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		c.tag,           // consumer tag
		false,           // auto-ack (ack вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}

	return deliveries, nil
}

// handleDelivery вызывает обработчик и применяет его решение ровно один раз.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) error {
	if c.metrics != nil {
		c.metrics.Consumed.Inc()
	}

	delivery := newDelivery(raw)

	c.logger.Debug("received message",
		"queue", c.queue,
		"delivery_tag", delivery.DeliveryTag,
		"message_id", delivery.MessageID,
	)

	decision := c.handler(ctx, delivery)

	var err error
	switch decision {
	case Nack:
		err = raw.Nack(false, false)
	case Requeue:
		err = raw.Nack(false, true)
	default:
		decision = Ack
		err = raw.Ack(false)
	}
	if err != nil {
		return fmt.Errorf("%s delivery %d: %w", decision, raw.DeliveryTag, err)
	}

	if c.metrics != nil {
		c.metrics.Settled.WithLabelValues(decision.String()).Inc()
	}

	return nil
}
