package cdc

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitTransport carries CDC events over a durable direct exchange.
type RabbitTransport struct {
	cfg RabbitConfig

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	shutdownSignal    chan struct{}
	closeShutdownOnce sync.Once
}

// NewRabbitTransport connects to RabbitMQ and declares the CDC
// exchange, queue and binding.
func NewRabbitTransport(cfg RabbitConfig) (*RabbitTransport, error) {
	hostURL := fmt.Sprintf("amqp://%v:%v@%v:%v", cfg.User, cfg.Password, cfg.Host, cfg.Port)
	conn, err := amqp.DialConfig(hostURL, amqp.Config{
		Heartbeat: 2 * time.Second,
	})
	if err != nil {
		log.Printf("ERROR: error in connecting to rabbit: %v", err)
		return nil, fmt.Errorf("cdc: connecting to rabbit: %w", err)
	}
	log.Println("INFO: Connected to Rabbit")

	ch, err := declareTopology(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitTransport{
		cfg:            cfg,
		conn:           conn,
		channel:        ch,
		shutdownSignal: make(chan struct{}),
	}, nil
}

func declareTopology(conn *amqp.Connection, cfg RabbitConfig) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		log.Printf("ERROR: error in creating channel: %v", err)
		return nil, fmt.Errorf("cdc: creating channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,  // Durable
		false, // AutoDelete
		false, // Internal
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		log.Printf("ERROR: error in declaring exchange: %v", err)
		return nil, fmt.Errorf("cdc: declaring exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue,
		true,  // Durable
		false, // AutoDelete
		false, // Exclusive
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		log.Printf("ERROR: error in declaring queue: %v", err)
		return nil, fmt.Errorf("cdc: declaring queue: %w", err)
	}

	err = ch.QueueBind(
		cfg.Queue,
		cfg.RoutingKey,
		cfg.Exchange,
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		log.Printf("ERROR: error in binding queue: %v", err)
		return nil, fmt.Errorf("cdc: binding queue: %w", err)
	}

	return ch, nil
}

// Publish sends one event to the CDC exchange.
func (t *RabbitTransport) Publish(ctx context.Context, ev Event) error {
	body, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	err = t.channel.PublishWithContext(ctx,
		t.cfg.Exchange,
		t.cfg.RoutingKey,
		false, // Mandatory
		false, // Immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("cdc: publishing event: %w", err)
	}
	return nil
}

// Consume feeds received events into handle until the context is
// cancelled or the transport shuts down. Handled messages are acked;
// failing ones are nacked without requeue.
func (t *RabbitTransport) Consume(ctx context.Context, wg *sync.WaitGroup, handle func(context.Context, Event) error) error {
	t.mu.RLock()
	msgs, err := t.channel.Consume(
		t.cfg.Queue,
		"",    // consumer
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	t.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("cdc: starting consumer: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				log.Println("INFO: Stopping CDC consumer due to context cancellation")
				return
			case <-t.shutdownSignal:
				log.Println("INFO: Stopping CDC consumer due to shutdown signal")
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := DecodeEvent(msg.Body)
				if err != nil {
					log.Printf("ERROR: dropping undecodable CDC message: %v", err)
					_ = msg.Nack(false, false)
					continue
				}
				if err := handle(ctx, ev); err != nil {
					log.Printf("ERROR: CDC handler failed: %v", err)
					_ = msg.Nack(false, false)
					continue
				}
				_ = msg.Ack(false)
			}
		}
	}()
	return nil
}

// GracefulShutdown stops consumers and closes the channel and
// connection.
func (t *RabbitTransport) GracefulShutdown() error {
	t.closeShutdownOnce.Do(func() {
		close(t.shutdownSignal)
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.channel != nil {
		_ = t.channel.Close()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
