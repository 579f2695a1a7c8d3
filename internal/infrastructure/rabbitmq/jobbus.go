// Package rabbitmq implements the Job Bus on amqp091-go.
// Delayed delivery uses the standard dead-letter-exchange + per-message-TTL
// idiom: a message destined for queue Q with delay>0 is published instead
// to Q's holding queue with Expiration set to the delay; the holding
// queue's DLX points back at the exchange with Q's routing key, so once
// the TTL elapses RabbitMQ itself redelivers the message to Q. This needs
// no delayed-message plugin, only exchange/queue declarations and a
// dead-letter binding, the same primitives any amqp091-go consumer uses.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type JobBus struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(url, exchange string) *JobBus {
	return &JobBus{url: strings.TrimSpace(url), exchange: strings.TrimSpace(exchange)}
}

var _ domain.JobBus = (*JobBus)(nil)

func (b *JobBus) connect() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ch != nil && !b.ch.IsClosed() {
		return b.ch, nil
	}

	conn, err := amqp.Dial(b.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(b.exchange, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	b.conn, b.ch = conn, ch
	return ch, nil
}

func delayQueueName(queue string) string { return queue + ".delay" }

// declareQueue declares the real queue and its delay-holding queue,
// idempotently. Safe to call from both Enqueue and StartWorker.
func (b *JobBus) declareQueue(ch *amqp.Channel, queue string) error {
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, queue, b.exchange, false, nil); err != nil {
		return err
	}

	delayName := delayQueueName(queue)
	_, err = ch.QueueDeclare(delayName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    b.exchange,
		"x-dead-letter-routing-key": queue,
	})
	if err != nil {
		return err
	}
	return ch.QueueBind(delayName, delayName, b.exchange, false, nil)
}

func (b *JobBus) Enqueue(ctx context.Context, queue string, payload any, delay time.Duration) error {
	ch, err := b.connect()
	if err != nil {
		return err
	}
	if err := b.declareQueue(ch, queue); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	}

	routingKey := queue
	if delay > 0 {
		routingKey = delayQueueName(queue)
		pub.Expiration = fmt.Sprintf("%d", delay.Milliseconds())
	}

	return ch.PublishWithContext(ctx, b.exchange, routingKey, false, false, pub)
}

// StartWorker declares queue, runs one synchronous catch-up invocation of
// handler, then hands off to a supervisor goroutine that consumes
// deliveries one at a time (Qos 1), acking on success and nacking with
// requeue on failure so the job bus itself becomes the retry mechanism.
// If the broker connection drops, the supervisor reconnects with
// exponential backoff rather than exiting silently.
func (b *JobBus) StartWorker(ctx context.Context, queue string, handler func(ctx context.Context) error) error {
	log := logger.Logger.With().Str("component", "job_worker").Str("queue", queue).Logger()

	ch, err := b.connect()
	if err != nil {
		return err
	}
	if err := b.declareQueue(ch, queue); err != nil {
		return err
	}

	if err := handler(ctx); err != nil {
		log.Error().Err(err).Msg("startup catch-up run failed")
	}

	go b.runWorker(ctx, queue, handler, log)

	log.Info().Msg("worker started")
	return nil
}

func (b *JobBus) runWorker(ctx context.Context, queue string, handler func(ctx context.Context) error, log zerolog.Logger) {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ch, err := b.connect()
		if err != nil {
			log.Error().Err(err).Dur("backoff", backoff).Msg("reconnect failed; retrying")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}
		if err := b.declareQueue(ch, queue); err != nil {
			log.Error().Err(err).Dur("backoff", backoff).Msg("queue redeclare failed; retrying")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}
		if err := ch.Qos(1, 0, false); err != nil {
			log.Error().Err(err).Dur("backoff", backoff).Msg("qos failed; retrying")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}
		deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			log.Error().Err(err).Dur("backoff", backoff).Msg("consume failed; retrying")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		backoff = 1 * time.Second
		if !b.consumeLoop(ctx, deliveries, handler, log) {
			return
		}

		log.Warn().Dur("backoff", backoff).Msg("deliveries closed; reconnecting")
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = minDur(backoff*2, maxBackoff)
	}
}

// consumeLoop drains deliveries until the channel closes or ctx is done.
// Returns false when the caller should stop (ctx cancelled).
func (b *JobBus) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery, handler func(ctx context.Context) error, log zerolog.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case d, ok := <-deliveries:
			if !ok {
				return true
			}
			if err := handler(ctx); err != nil {
				log.Error().Err(err).Msg("job handler failed; requeueing")
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func (b *JobBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
