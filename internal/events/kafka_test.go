package events

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaPublisher_WriterConfig(t *testing.T) {
	topics := Topics{RideEvents: "ride-events", DriverLocations: "driver-locations", RideAssignments: "ride-assignments"}
	k := NewKafkaPublisher([]string{"broker-1:9092", "broker-2:9092"}, topics, 2*time.Second)
	t.Cleanup(func() { _ = k.Close() })

	w := k.writer
	assert.Equal(t, writerBatchTimeout, w.BatchTimeout)
	assert.Less(t, w.BatchTimeout, k.timeout, "a lone event must not wait out the publish timeout")
	assert.False(t, w.Async)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.Equal(t, 2*time.Second, w.WriteTimeout)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Contains(t, w.Addr.String(), "broker-1:9092")
	assert.Empty(t, w.Topic, "topic is set per message")
	assert.Equal(t, topics, k.topics)
}

func TestKafkaPublisher_UnreachableBrokerFailsWithinTimeout(t *testing.T) {
	k := NewKafkaPublisher([]string{"127.0.0.1:1"}, Topics{RideEvents: "ride-events"}, 200*time.Millisecond)
	t.Cleanup(func() { _ = k.Close() })

	started := time.Now()
	err := k.PublishRideEvent(context.Background(), RideEvent{EventType: RideRequested, RideID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ride-events")
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestKafkaPublisher_CloseWithoutWriter(t *testing.T) {
	assert.NoError(t, (&KafkaPublisher{}).Close())
}
