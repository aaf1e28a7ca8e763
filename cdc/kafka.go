package cdc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaTransport carries CDC events over a Kafka topic.
type KafkaTransport struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	reader *kafka.Reader

	shutdownSignal    chan struct{}
	closeShutdownOnce sync.Once
}

// NewKafkaTransport builds a producer and consumer for the CDC topic.
func NewKafkaTransport(cfg KafkaConfig) (*KafkaTransport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("cdc: kafka transport requires brokers")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Printf("KAFKA ERROR: "+msg, args...)
		}),
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Printf("KAFKA ERROR: "+msg, args...)
		}),
	})

	log.Println("INFO: Kafka CDC transport initialized")
	return &KafkaTransport{
		cfg:            cfg,
		writer:         writer,
		reader:         reader,
		shutdownSignal: make(chan struct{}),
	}, nil
}

// Publish sends one event to the CDC topic, keyed by collection so
// events of one collection stay ordered within a partition.
func (t *KafkaTransport) Publish(ctx context.Context, ev Event) error {
	body, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	err = t.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Collection),
		Value: body,
	})
	if err != nil {
		return fmt.Errorf("cdc: publishing event: %w", err)
	}
	return nil
}

// Consume feeds received events into handle until the context is
// cancelled or the transport shuts down. Offsets are committed only
// after the handler succeeds.
func (t *KafkaTransport) Consume(ctx context.Context, wg *sync.WaitGroup, handle func(context.Context, Event) error) error {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-t.shutdownSignal:
				log.Println("INFO: Stopping CDC consumer due to shutdown signal")
				return
			default:
			}

			msg, err := t.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					log.Println("INFO: Stopping CDC consumer")
					return
				}
				log.Printf("ERROR: fetching CDC message: %v", err)
				continue
			}

			ev, err := DecodeEvent(msg.Value)
			if err != nil {
				log.Printf("ERROR: dropping undecodable CDC message: %v", err)
				_ = t.reader.CommitMessages(ctx, msg)
				continue
			}
			if err := handle(ctx, ev); err != nil {
				log.Printf("ERROR: CDC handler failed: %v", err)
				continue
			}
			if err := t.reader.CommitMessages(ctx, msg); err != nil {
				log.Printf("ERROR: committing CDC offset: %v", err)
			}
		}
	}()
	return nil
}

// GracefulShutdown stops the consumer loop and closes the writer and
// reader.
func (t *KafkaTransport) GracefulShutdown() error {
	t.closeShutdownOnce.Do(func() {
		close(t.shutdownSignal)
	})

	var errs []error
	if err := t.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := t.reader.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
