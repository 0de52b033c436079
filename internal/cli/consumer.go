package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/fanoutctl/internal/mq"
	"github.com/shaiso/fanoutctl/internal/repo"
	"github.com/shaiso/fanoutctl/internal/telemetry"
)

type consumerParams struct {
	exchange mq.Exchange
	queue    mq.Queue
	archive  Archive
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// runConsumer печатает каждое сообщение и подтверждает его.
// Блокируется до отмены ctx или разрыва соединения.
func runConsumer(ctx context.Context, session *mq.Session, out *Output, p consumerParams) error {
	out.Println(fmt.Sprintf("Queue name: %s. Waiting for messages...", p.queue))

	consumer := mq.NewConsumer(session, p.metrics, p.logger, mq.ConsumerConfig{
		Queue:    p.queue,
		Handler:  printHandler(out, p),
		Prefetch: 1,
	})

	return consumer.Run(ctx)
}

// printHandler возвращает обработчик: печать, запись в архив, ack.
// Отрицательного подтверждения нет: ошибка архива только логируется.
func printHandler(out *Output, p consumerParams) mq.Handler {
	return func(ctx context.Context, d mq.Delivery) mq.Decision {
		text := d.Text()
		out.Println("Received message: " + text)

		if p.archive != nil {
			err := p.archive.Save(ctx, &repo.ReceivedMessage{
				Exchange:  string(p.exchange),
				Queue:     string(p.queue),
				MessageID: d.MessageID,
				Body:      text,
			})
			if err != nil {
				p.logger.Error("failed to archive message",
					"queue", p.queue,
					"delivery_tag", d.DeliveryTag,
					"error", err,
				)
			}
		}

		return mq.Ack
	}
}
