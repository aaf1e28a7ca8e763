package cdc

import (
	"context"
	"fmt"
	"sync"
)

// Transport moves CDC events between processes. Publish is called by
// the data-writing side; Consume feeds received events into a handler
// until the context is cancelled.
type Transport interface {
	Publish(ctx context.Context, ev Event) error
	Consume(ctx context.Context, wg *sync.WaitGroup, handle func(context.Context, Event) error) error
	GracefulShutdown() error
}

// NewTransport builds the transport the configuration selects. Local
// mode needs no transport and returns nil.
func NewTransport(cfg Config) (Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Transport {
	case TransportLocal:
		return nil, nil
	case TransportRabbit:
		return NewRabbitTransport(cfg.Rabbit)
	case TransportKafka:
		return NewKafkaTransport(cfg.Kafka)
	default:
		return nil, fmt.Errorf("cdc: unknown transport %q", cfg.Transport)
	}
}
