// Package changefeed republishes stop changes to a Kafka topic.
package changefeed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"paradero/internal/paradero"
	"paradero/internal/realtime"
)

const flushTimeout = 5 * time.Second

// Event is the message value written for each change.
type Event struct {
	Kind   paradero.ChangeKind `json:"kind"`
	StopID string              `json:"stopId"`
	Stop   *paradero.Stop      `json:"stop,omitempty"`
	At     time.Time           `json:"at"`
}

// producer is the subset of *kafka.Producer the sink needs.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// Sink is a realtime.Sink that writes change events to Kafka. Full
// refreshes carry no event and are skipped.
type Sink struct {
	topic    string
	producer producer
	logger   *slog.Logger
	done     chan struct{}
}

var _ realtime.Sink = (*Sink)(nil)

// New connects a producer to the comma separated broker list.
func New(brokers, topic string, logger *slog.Logger) (*Sink, error) {
	if strings.TrimSpace(brokers) == "" {
		return nil, fmt.Errorf("changefeed: no brokers")
	}
	if topic == "" {
		return nil, fmt.Errorf("changefeed: no topic")
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"client.id":         "paradero",
		"acks":              "1",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newSink(p, topic, logger), nil
}

func newSink(p producer, topic string, logger *slog.Logger) *Sink {
	s := &Sink{topic: topic, producer: p, logger: logger, done: make(chan struct{})}
	go s.drain()
	return s
}

// drain logs delivery reports until the producer is closed.
func (s *Sink) drain() {
	defer close(s.done)
	for e := range s.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				s.logger.Warn("change delivery failed", "key", string(ev.Key), "error", ev.TopicPartition.Error)
			}
		case kafka.Error:
			s.logger.Warn("kafka error", "error", ev)
		}
	}
}

// Publish implements realtime.Sink.
func (s *Sink) Publish(u realtime.Update) {
	msg, ok := Message(s.topic, u)
	if !ok {
		return
	}
	if err := s.producer.Produce(msg, nil); err != nil {
		s.logger.Warn("produce change", "stop", string(msg.Key), "error", err)
	}
}

// Close flushes pending messages and shuts the producer down.
func (s *Sink) Close() {
	if n := s.producer.Flush(int(flushTimeout.Milliseconds())); n > 0 {
		s.logger.Warn("kafka flush left messages undelivered", "count", n)
	}
	s.producer.Close()
	<-s.done
}

// Message builds the Kafka message for an update. It reports false for
// updates that carry no change event.
func Message(topic string, u realtime.Update) (*kafka.Message, bool) {
	if u.Event == nil {
		return nil, false
	}
	value, err := json.Marshal(Event{
		Kind:   u.Event.Kind,
		StopID: u.Event.StopID,
		Stop:   u.Event.Stop,
		At:     u.At,
	})
	if err != nil {
		return nil, false
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(u.Event.StopID),
		Value:          value,
		Headers:        []kafka.Header{{Key: "kind", Value: []byte(u.Event.Kind)}},
		Timestamp:      u.At,
	}, true
}
