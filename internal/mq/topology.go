package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeJobs  Exchange = "autopkg.jobs"
	ExchangeTasks Exchange = "autopkg.tasks"
	ExchangeDLQ   Exchange = "autopkg.dlq"
)

// Queues — имена очередей.
const (
	QueueJobsSubmitted  Queue = "jobs.submitted"
	QueueTasksReady     Queue = "tasks.ready"
	QueueTasksRetry     Queue = "tasks.retry"
	QueueTasksCompleted Queue = "tasks.completed"
	QueueDLQTasks       Queue = "dlq.tasks"
)

// Routing keys.
const (
	RoutingKeySubmitted RoutingKey = "submitted"
	RoutingKeyReady     RoutingKey = "ready"
	RoutingKeyRetry     RoutingKey = "retry"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQTasks  RoutingKey = "tasks"
)

// RetryDelay — задержка перед повторной постановкой отложенной
// задачи. Реализована TTL очереди tasks.retry: воркер не спит,
// сообщение само возвращается в tasks.ready по истечении TTL.
const RetryDelay = 5 * time.Second

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeJobs, "direct"},
		{ExchangeTasks, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
	}

	// tasks.retry — очередь-таймер: сообщения лежат RetryDelay
	// и dead-letter'ятся обратно в tasks.ready
	retryArgs := amqp.Table{
		"x-message-ttl":             int32(RetryDelay / time.Millisecond),
		"x-dead-letter-exchange":    string(ExchangeTasks),
		"x-dead-letter-routing-key": string(RoutingKeyReady),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// jobs.submitted — без DLQ (jobs обрабатываются один раз)
		{QueueJobsSubmitted, nil},

		// tasks.ready — с DLQ (неразбираемые сообщения уходят в DLQ)
		{QueueTasksReady, dlqArgs},

		// tasks.retry — таймер отложенного повтора
		{QueueTasksRetry, retryArgs},

		// tasks.completed — без DLQ (события разрешения)
		{QueueTasksCompleted, nil},

		// dlq.tasks — сама DLQ очередь
		{QueueDLQTasks, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueJobsSubmitted, RoutingKeySubmitted, ExchangeJobs},
		{QueueTasksReady, RoutingKeyReady, ExchangeTasks},
		{QueueTasksRetry, RoutingKeyRetry, ExchangeTasks},
		{QueueTasksCompleted, RoutingKeyCompleted, ExchangeTasks},
		{QueueDLQTasks, RoutingKeyDLQTasks, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  autopkg RabbitMQ Topology:

    autopkg.jobs (direct)
    └── jobs.submitted [routing: submitted]
            Consumer: Orchestrator

    autopkg.tasks (direct)
    ├── tasks.ready [routing: ready]
    │       Consumer: Worker
    │       DLQ: dlq.tasks
    ├── tasks.retry [routing: retry]
    │       TTL timer, dead-letters back to tasks.ready
    └── tasks.completed [routing: completed]
            Consumer: Orchestrator

    autopkg.dlq (direct)
    └── dlq.tasks [routing: tasks]
            Manual processing
  `
}
