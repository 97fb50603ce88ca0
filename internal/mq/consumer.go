package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает событие конвейера autopkg. nil подтверждает
// сообщение (ack); ошибка возвращает его в очередь, исчерпанные
// повторы уводит DLQ, настроенный в топологии.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — событие из очереди autopkg (jobs.submitted, tasks.ready,
// tasks.completed) вместе с сырой AMQP-доставкой для ack/nack.
type Delivery struct {
	// Message — конверт события.
	Message Message

	// Raw — сырая AMQP-доставка.
	Raw amqp.Delivery
}

// Ack подтверждает обработку события.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет событие.
// requeue=true — вернуть в очередь, false — увести в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// Consumer читает одну очередь событий и передаёт сообщения в Handler.
// Разрыв соединения переживается ожиданием reconnect от Connection,
// после чего потребление очереди начинается заново.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — настройки потребителя очереди событий.
type ConsumerConfig struct {
	// Queue — имя очереди (см. константы Queue* в topology.go).
	Queue string

	// Handler — обработчик событий.
	Handler Handler

	// Prefetch — сколько неподтверждённых событий держать за раз.
	// Worker ставит сюда размер своего пула, оркестратору хватает 1.
	Prefetch int
}

// NewConsumer создаёт потребителя очереди cfg.Queue.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start запускает цикл потребления; блокируется до отмены контекста
// или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	return c.consume(ctx)
}

// consume заново открывает поток доставок после каждого разрыва.
func (c *Consumer) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.openDeliveries()
		if err != nil {
			c.logger.Error("cannot open queue consume, waiting for reconnect",
				"queue", c.queue, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				c.logger.Info("reconnected, resuming queue consume", "queue", c.queue)
				continue
			}
		}

		c.logger.Info("consuming events", "queue", c.queue, "prefetch", c.prefetch)

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("delivery stream closed, waiting for reconnect", "queue", c.queue)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// openDeliveries выставляет prefetch и начинает потребление очереди.
func (c *Consumer) openDeliveries() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// auto-ack выключен: подтверждаем только после обработчика
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}

	return deliveries, nil
}

// drain обрабатывает доставки до закрытия потока или отмены контекста.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery stream closed")
			}

			c.dispatch(ctx, raw)
		}
	}
}

// dispatch разбирает конверт события и вызывает обработчик.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("dropping malformed event",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		// Разобрать не получится и при повторе — сразу в DLQ
		raw.Nack(false, false)
		return
	}

	delivery := &Delivery{
		Message: msg,
		Raw:     raw,
	}

	c.logger.Debug("event received",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
		"redelivered", raw.Redelivered,
	)

	if err := c.handler(ctx, delivery); err != nil {
		c.logger.Error("event handler failed, requeueing",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		// Повторы ограничивает DLQ-политика очереди
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// Stop останавливает потребление.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload извлекает типизированный payload события
// (JobSubmittedPayload, TaskReadyPayload и т.п.). В конверте payload
// лежит как произвольный JSON, поэтому прогоняется через повторную
// сериализацию.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
