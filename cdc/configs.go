package cdc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Transport kinds accepted by Config.Transport.
const (
	TransportLocal  = "local"
	TransportRabbit = "rabbit"
	TransportKafka  = "kafka"
)

// Config selects and parameterizes the CDC transport.
type Config struct {
	// Transport is "local", "rabbit" or "kafka". Local mode keeps all
	// change routing in-process.
	Transport string

	// Rabbit configures the RabbitMQ transport.
	Rabbit RabbitConfig

	// Kafka configures the Kafka transport.
	Kafka KafkaConfig
}

// RabbitConfig holds the RabbitMQ connection and routing settings.
type RabbitConfig struct {
	// Host is the RabbitMQ server hostname or IP address.
	Host string

	// Port is the RabbitMQ server port, typically 5672.
	Port uint

	// User is the RabbitMQ username for authentication.
	User string

	// Password is the RabbitMQ password for authentication.
	Password string

	// Exchange is the direct exchange CDC events are published to.
	Exchange string

	// Queue is the queue the consuming side binds to the exchange.
	Queue string

	// RoutingKey routes events from the exchange to the queue.
	RoutingKey string
}

// KafkaConfig holds the Kafka connection and topic settings.
type KafkaConfig struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the topic CDC events are published to.
	Topic string

	// GroupID is the consumer group for the consuming side.
	GroupID string
}

// NewConfig reads the CDC configuration from environment variables.
func NewConfig() Config {
	transport := os.Getenv("CDC_TRANSPORT")
	if transport == "" {
		transport = TransportLocal
	}

	rabbitPort := uint(5672)
	if v := os.Getenv("CDC_RABBIT_PORT"); v != "" {
		if p, err := strconv.ParseUint(v, 10, 16); err == nil {
			rabbitPort = uint(p)
		}
	}

	var brokers []string
	if v := os.Getenv("CDC_KAFKA_BROKERS"); v != "" {
		brokers = strings.Split(v, ",")
	}

	return Config{
		Transport: transport,
		Rabbit: RabbitConfig{
			Host:       os.Getenv("CDC_RABBIT_HOST"),
			Port:       rabbitPort,
			User:       os.Getenv("CDC_RABBIT_USER"),
			Password:   os.Getenv("CDC_RABBIT_PASSWORD"),
			Exchange:   envOr("CDC_RABBIT_EXCHANGE", "outfield.cdc"),
			Queue:      envOr("CDC_RABBIT_QUEUE", "outfield.cdc.events"),
			RoutingKey: envOr("CDC_RABBIT_ROUTING_KEY", "cdc"),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   envOr("CDC_KAFKA_TOPIC", "outfield.cdc"),
			GroupID: envOr("CDC_KAFKA_GROUP_ID", "outfield-cdc"),
		},
	}
}

// Validate checks that the selected transport is fully configured.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportLocal:
		return nil
	case TransportRabbit:
		if c.Rabbit.Host == "" {
			return fmt.Errorf("cdc: rabbit transport requires CDC_RABBIT_HOST")
		}
		return nil
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("cdc: kafka transport requires CDC_KAFKA_BROKERS")
		}
		return nil
	default:
		return fmt.Errorf("cdc: unknown transport %q", c.Transport)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
