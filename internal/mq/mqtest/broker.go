// Package mqtest содержит in-memory брокер для тестов пакетов,
// работающих с mq.Channel.
//
// Broker реализует семантику fanout: опубликованное сообщение копируется
// во все очереди, привязанные к обменнику. Channel соблюдает prefetch
// и считает ack/nack по delivery tag.
package mqtest

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publication — зафиксированный вызов PublishWithContext.
type Publication struct {
	Exchange  string
	Key       string
	Mandatory bool
	Immediate bool
	Msg       amqp.Publishing
}

type exchange struct {
	kind    string
	durable bool
}

type queue struct {
	durable bool
	msgs    chan amqp.Delivery
}

// Broker — общее состояние брокера для нескольких каналов.
type Broker struct {
	mu        sync.Mutex
	exchanges map[string]exchange
	queues    map[string]*queue
	bindings  map[string]map[string]bool
	published []Publication

	// PublishErr, если задан, возвращается из PublishWithContext.
	PublishErr error
}

// NewBroker создаёт пустой брокер.
func NewBroker() *Broker {
	return &Broker{
		exchanges: make(map[string]exchange),
		queues:    make(map[string]*queue),
		bindings:  make(map[string]map[string]bool),
	}
}

// NewChannel открывает новый канал на брокере.
func (b *Broker) NewChannel() *Channel {
	return &Channel{
		broker:  b,
		done:    make(chan struct{}),
		acks:    make(map[uint64]int),
		nacks:   make(map[uint64]int),
		pending: make(map[uint64]pending),
	}
}

// Published возвращает копию всех публикаций.
func (b *Broker) Published() []Publication {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Publication, len(b.published))
	copy(out, b.published)
	return out
}

// Exchange возвращает тип и durable флаг объявленного обменника.
func (b *Broker) Exchange(name string) (kind string, durable bool, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ex, ok := b.exchanges[name]
	return ex.kind, ex.durable, ok
}

// QueueDurable сообщает, объявлена ли очередь и durable ли она.
func (b *Broker) QueueDurable(name string) (durable bool, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return false, false
	}
	return q.durable, true
}

// IsBound сообщает, привязана ли очередь к обменнику.
func (b *Broker) IsBound(queueName, exchangeName string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bindings[exchangeName][queueName]
}

// Inject кладёт сообщение напрямую в очередь.
func (b *Broker) Inject(queueName string, body []byte) error {
	b.mu.Lock()
	q, ok := b.queues[queueName]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("queue %s not declared", queueName)
	}
	q.msgs <- amqp.Delivery{Body: body, RoutingKey: queueName}
	return nil
}

// Depth возвращает количество сообщений, ожидающих в очереди.
func (b *Broker) Depth(queueName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[queueName]
	if !ok {
		return 0
	}
	return len(q.msgs)
}

type pending struct {
	queue    *queue
	delivery amqp.Delivery
}

// Channel реализует mq.Channel поверх Broker.
type Channel struct {
	broker *Broker

	mu         sync.Mutex
	prefetch   int
	tag        uint64
	unacked    int
	maxUnacked int
	acks       map[uint64]int
	nacks      map[uint64]int
	pending    map[uint64]pending
	slots      chan struct{}
	closed     bool
	done       chan struct{}
}

// ExchangeDeclare объявляет обменник; повторное объявление с другим типом — ошибка.
func (c *Channel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ex, ok := b.exchanges[name]; ok && (ex.kind != kind || ex.durable != durable) {
		return &amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg for exchange " + name}
	}
	b.exchanges[name] = exchange{kind: kind, durable: durable}
	return nil
}

// QueueDeclare объявляет очередь, повторное объявление идемпотентно.
func (c *Channel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		q = &queue{durable: durable, msgs: make(chan amqp.Delivery, 1024)}
		b.queues[name] = q
	}
	return amqp.Queue{Name: name, Messages: len(q.msgs)}, nil
}

// QueueBind привязывает очередь к обменнику.
func (c *Channel) QueueBind(name, _, exchangeName string, _ bool, _ amqp.Table) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.exchanges[exchangeName]; !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: "no exchange " + exchangeName}
	}
	if _, ok := b.queues[name]; !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: "no queue " + name}
	}
	if b.bindings[exchangeName] == nil {
		b.bindings[exchangeName] = make(map[string]bool)
	}
	b.bindings[exchangeName][name] = true
	return nil
}

// Qos задаёт prefetch для последующих Consume.
func (c *Channel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetchCount
	return nil
}

// Consume запускает доставку сообщений очереди в возвращаемый канал.
func (c *Channel) Consume(queueName, _ string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	c.broker.mu.Lock()
	q, ok := c.broker.queues[queueName]
	c.broker.mu.Unlock()
	if !ok {
		return nil, &amqp.Error{Code: amqp.NotFound, Reason: "no queue " + queueName}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, amqp.ErrClosed
	}
	var slots chan struct{}
	if c.prefetch > 0 && !autoAck {
		slots = make(chan struct{}, c.prefetch)
	}
	c.slots = slots
	c.mu.Unlock()

	out := make(chan amqp.Delivery)
	go c.deliver(q, slots, autoAck, out)
	return out, nil
}

func (c *Channel) deliver(q *queue, slots chan struct{}, autoAck bool, out chan<- amqp.Delivery) {
	defer close(out)

	for {
		if slots != nil {
			select {
			case slots <- struct{}{}:
			case <-c.done:
				return
			}
		}

		var d amqp.Delivery
		select {
		case d = <-q.msgs:
		case <-c.done:
			return
		}

		c.mu.Lock()
		c.tag++
		d.DeliveryTag = c.tag
		if !autoAck {
			d.Acknowledger = c
			c.pending[d.DeliveryTag] = pending{queue: q, delivery: d}
			c.unacked++
			if c.unacked > c.maxUnacked {
				c.maxUnacked = c.unacked
			}
		}
		c.mu.Unlock()

		select {
		case out <- d:
		case <-c.done:
			return
		}
	}
}

// PublishWithContext маршрутизирует сообщение во все привязанные очереди.
func (c *Channel) PublishWithContext(ctx context.Context, exchangeName, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return amqp.ErrClosed
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.PublishErr != nil {
		return b.PublishErr
	}
	ex, ok := b.exchanges[exchangeName]
	if !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: "no exchange " + exchangeName}
	}

	b.published = append(b.published, Publication{
		Exchange:  exchangeName,
		Key:       key,
		Mandatory: mandatory,
		Immediate: immediate,
		Msg:       msg,
	})

	if ex.kind != "fanout" {
		return nil
	}

	for name := range b.bindings[exchangeName] {
		body := make([]byte, len(msg.Body))
		copy(body, msg.Body)
		b.queues[name].msgs <- amqp.Delivery{
			Exchange:     exchangeName,
			RoutingKey:   key,
			ContentType:  msg.ContentType,
			DeliveryMode: msg.DeliveryMode,
			MessageId:    msg.MessageId,
			Timestamp:    msg.Timestamp,
			Body:         body,
		}
	}
	return nil
}

// Close закрывает канал и прекращает доставку. Повторный вызов безопасен.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Ack реализует amqp.Acknowledger.
func (c *Channel) Ack(tag uint64, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[tag]; !ok {
		return fmt.Errorf("unknown delivery tag %d", tag)
	}
	c.acks[tag]++
	c.settle(tag)
	return nil
}

// Nack реализует amqp.Acknowledger.
func (c *Channel) Nack(tag uint64, _ bool, requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[tag]
	if !ok {
		return fmt.Errorf("unknown delivery tag %d", tag)
	}
	c.nacks[tag]++
	c.settle(tag)
	if requeue {
		d := p.delivery
		d.Redelivered = true
		d.Acknowledger = nil
		p.queue.msgs <- d
	}
	return nil
}

// Reject реализует amqp.Acknowledger.
func (c *Channel) Reject(tag uint64, requeue bool) error {
	return c.Nack(tag, false, requeue)
}

// settle вызывается под c.mu.
func (c *Channel) settle(tag uint64) {
	delete(c.pending, tag)
	c.unacked--
	if c.slots != nil {
		select {
		case <-c.slots:
		default:
		}
	}
}

// Prefetch возвращает последнее значение Qos.
func (c *Channel) Prefetch() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefetch
}

// Acks возвращает количество ack по каждому delivery tag.
func (c *Channel) Acks() map[uint64]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint64]int, len(c.acks))
	for k, v := range c.acks {
		out[k] = v
	}
	return out
}

// Nacks возвращает количество nack по каждому delivery tag.
func (c *Channel) Nacks() map[uint64]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint64]int, len(c.nacks))
	for k, v := range c.nacks {
		out[k] = v
	}
	return out
}

// MaxUnacked возвращает наибольшее число одновременно неподтверждённых доставок.
func (c *Channel) MaxUnacked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxUnacked
}

// Closed сообщает, закрыт ли канал.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
