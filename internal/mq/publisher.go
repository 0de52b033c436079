package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/fanoutctl/internal/telemetry"
)

// Publisher публикует сообщения в fanout обменник.
type Publisher struct {
	session *Session
	metrics *telemetry.Metrics
	logger  *slog.Logger

	// now и newID подменяются в тестах.
	now   func() time.Time
	newID func() string
}

// NewPublisher создаёт новый Publisher. metrics может быть nil.
func NewPublisher(session *Session, metrics *telemetry.Metrics, logger *slog.Logger) *Publisher {
	return &Publisher{
		session: session,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// PublishText кодирует text как JSON строку и публикует её как persistent
// сообщение с пустым routing key. Подтверждения брокера не ожидаются.
func (p *Publisher) PublishText(ctx context.Context, exchange Exchange, text string) error {
	body, err := json.Marshal(text)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    p.newID(),
		Timestamp:    p.now(),
		Body:         body,
	}

	err = p.session.WithChannel(func(ch Channel) error {
		return ch.PublishWithContext(
			ctx,
			string(exchange), // exchange
			fanoutRoutingKey, // routing key
			false,            // mandatory
			false,            // immediate
			msg,
		)
	})
	if err != nil {
		if p.metrics != nil {
			p.metrics.PublishErrors.Inc()
		}
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}

	if p.metrics != nil {
		p.metrics.Published.Inc()
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"message_id", msg.MessageId,
		"size", len(body),
	)

	return nil
}
