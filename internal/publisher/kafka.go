package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter abstracts *kafka.Writer for testing.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes each message to the topic named by its subject, keyed by
// the envelope's correlation id so one run lands on one partition. Writes are
// synchronous, so runs go through SendBatch to pay the batch timeout once.
type KafkaSink struct {
	writer KafkaWriter
}

// NewKafkaSink builds a writer against brokers. Topics are taken per message.
func NewKafkaSink(brokers []string) *KafkaSink {
	return NewKafkaSinkWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	})
}

func NewKafkaSinkWithWriter(w KafkaWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, msg Message) error {
	return s.writer.WriteMessages(ctx, kafkaMessage(msg))
}

// SendBatch writes msgs in one call.
func (s *KafkaSink) SendBatch(ctx context.Context, msgs []Message) error {
	out := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = kafkaMessage(msg)
	}
	return s.writer.WriteMessages(ctx, out...)
}

func kafkaMessage(msg Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kafka.Message{
		Topic:   msg.Subject,
		Key:     []byte(msg.Headers["correlation_id"]),
		Value:   msg.Data,
		Headers: headers,
		Time:    time.Now().UTC(),
	}
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
