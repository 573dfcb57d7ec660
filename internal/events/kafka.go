package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"dispatch/internal/observability"
)

// Topics names the Kafka topic for each event stream.
type Topics struct {
	RideEvents      string
	DriverLocations string
	RideAssignments string
}

// KafkaPublisher writes events to Kafka. Messages are keyed by ride or
// driver id so each entity's events stay ordered within a partition.
type KafkaPublisher struct {
	writer  *kafka.Writer
	topics  Topics
	timeout time.Duration
}

// writerBatchTimeout caps how long a synchronous write waits for its
// batch to fill. kafka-go defaults to one second.
const writerBatchTimeout = 5 * time.Millisecond

// NewKafkaPublisher creates a publisher writing to brokers.
func NewKafkaPublisher(brokers []string, topics Topics, timeout time.Duration) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: writerBatchTimeout,
		WriteTimeout: timeout,
	}
	return &KafkaPublisher{writer: w, topics: topics, timeout: timeout}
}

func (k *KafkaPublisher) publish(ctx context.Context, topic, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	err = k.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(key), Value: b})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.EventsPublished.WithLabelValues(topic, outcome).Inc()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// PublishRideEvent writes to the ride events topic keyed by ride id.
func (k *KafkaPublisher) PublishRideEvent(ctx context.Context, event RideEvent) error {
	return k.publish(ctx, k.topics.RideEvents, event.RideID, event)
}

// PublishDriverLocation writes to the driver locations topic keyed by driver id.
func (k *KafkaPublisher) PublishDriverLocation(ctx context.Context, event DriverLocationEvent) error {
	return k.publish(ctx, k.topics.DriverLocations, event.DriverID, event)
}

// PublishRideAssignment writes to the ride assignments topic keyed by ride id.
func (k *KafkaPublisher) PublishRideAssignment(ctx context.Context, event RideAssignmentEvent) error {
	return k.publish(ctx, k.topics.RideAssignments, event.RideID, event)
}

// Close flushes pending writes.
func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)
