package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Publisher forwards events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// ErrPublisherUnavailable is returned while the breaker is open.
var ErrPublisherUnavailable = errors.New("event publisher unavailable")

// BreakerSettings tunes the circuit breaker around broker calls.
type BreakerSettings struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

// DefaultBreakerSettings trips after five consecutive failures and probes again after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{FailureThreshold: 5, Timeout: 30 * time.Second}
}

// DefaultDialTimeout bounds connecting and the AMQP handshake when the
// caller's context carries no sooner deadline.
const DefaultDialTimeout = 3 * time.Second

// AMQPPublisher writes events as persistent JSON messages to a durable queue.
// It dials per publish, so a broker restart needs no reconnect logic.
type AMQPPublisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	logger      *zap.Logger
	breaker     *gobreaker.CircuitBreaker[struct{}]
	send        func(ctx context.Context, body []byte) error
}

// NewAMQPPublisher builds a publisher for queue on the broker at url.
// A non-positive dialTimeout falls back to DefaultDialTimeout.
func NewAMQPPublisher(url, queue string, dialTimeout time.Duration, settings BreakerSettings, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	p := &AMQPPublisher{url: url, queue: queue, dialTimeout: dialTimeout, logger: logger}
	p.send = p.dialAndSend
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "amqp:" + queue,
		Timeout: settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("event publisher breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return p
}

// Publish encodes the event and sends it through the breaker.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.send(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrPublisherUnavailable
	}
	return err
}

// State reports the breaker state for health output.
func (p *AMQPPublisher) State() string {
	return p.breaker.State().String()
}

// connectTimeout is the configured dial timeout, shortened to ctx's deadline.
func (p *AMQPPublisher) connectTimeout(ctx context.Context) time.Duration {
	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

func (p *AMQPPublisher) dialAndSend(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	timeout := p.connectTimeout(ctx)
	if timeout <= 0 {
		return fmt.Errorf("rabbitmq dial: %w", context.DeadlineExceeded)
	}

	// DefaultDial applies the timeout to the TCP connect and the handshake.
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()
	// The handshake deadline is cleared once open; closing on cancel bounds
	// channel setup and queue declare as well.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	return ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
