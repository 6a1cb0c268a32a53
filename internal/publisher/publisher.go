package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tenderwatch/ted-adapter/internal/metrics"
	"github.com/tenderwatch/ted-adapter/pkg/logger"
	"github.com/tenderwatch/ted-adapter/pkg/model"
)

const (
	EventTenderBatch    = "tender.batch"
	EventTenderUpserted = "tender.upserted"
	eventVersion        = "1.0.0"
)

// Message is a serialized envelope addressed to a subject (NATS) or routing key (AMQP).
type Message struct {
	Subject string
	Data    []byte
	Headers map[string]string
}

// Sink delivers messages to one broker.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
	Close() error
}

// BatchSink is a Sink that delivers many messages in one call. PublishRun
// hands it every upserted event of a run at once.
type BatchSink interface {
	Sink
	SendBatch(ctx context.Context, msgs []Message) error
}

// Publisher fans canonical events out to every configured sink.
type Publisher struct {
	sinks   []Sink
	prefix  string
	service string
	now     func() time.Time
}

// New creates a Publisher. prefix is the subject root, e.g. "evt.tender".
func New(prefix, service string, sinks ...Sink) *Publisher {
	return &Publisher{
		sinks:   sinks,
		prefix:  prefix,
		service: service,
		now:     time.Now,
	}
}

// Sinks returns the names of the configured sinks.
func (p *Publisher) Sinks() []string {
	names := make([]string, len(p.sinks))
	for i, s := range p.sinks {
		names[i] = s.Name()
	}
	return names
}

// PublishEnvelope serializes env once and sends it to every sink. A failing
// sink does not stop delivery to the others; all failures are returned joined.
func (p *Publisher) PublishEnvelope(ctx context.Context, env *model.Envelope) error {
	msg, err := p.message(env)
	if err != nil {
		return err
	}

	var errs []error
	for _, sink := range p.sinks {
		start := time.Now()
		err := sink.Send(ctx, msg)
		metrics.ObserveDuration(metrics.PublishLatency, start, sink.Name())
		p.record(sink, env.Topic, 1, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) message(env *model.Envelope) (Message, error) {
	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"topic", env.Topic,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return Message{}, err
	}
	return Message{
		Subject: env.Topic,
		Data:    data,
		Headers: map[string]string{
			"event_id":       env.ID.String(),
			"event_type":     env.EventType,
			"correlation_id": env.CorrelationID.String(),
			"service":        p.service,
			"content_type":   "application/json",
		},
	}, nil
}

func (p *Publisher) record(sink Sink, topic string, n int, err error) {
	if err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"sink", sink.Name(),
			"topic", topic,
			"events", n,
			"error", err,
		)
		metrics.AddPublished(sink.Name(), "error", n)
		return
	}
	metrics.AddPublished(sink.Name(), "ok", n)
}

// PublishRun emits one batch summary followed by one upserted event per
// tender, all sharing the run's correlation id.
func (p *Publisher) PublishRun(ctx context.Context, run *model.RunResult) error {
	if len(p.sinks) == 0 || run == nil {
		return nil
	}
	correlation, err := uuid.Parse(run.RunID)
	if err != nil {
		correlation = uuid.New()
	}

	batch := model.TenderBatchEvent{
		RunID:       run.RunID,
		GeneratedAt: run.GeneratedAt,
		Total:       len(run.Tenders),
		Stats:       run.Stats,
	}
	if err := p.publish(ctx, correlation, EventTenderBatch, batch); err != nil {
		return fmt.Errorf("publish batch %s: %w", run.RunID, err)
	}

	msgs := make([]Message, 0, len(run.Tenders))
	for _, t := range run.Tenders {
		env, err := p.envelope(correlation, EventTenderUpserted, t)
		if err != nil {
			return fmt.Errorf("publish run %s: %w", run.RunID, err)
		}
		msg, err := p.message(env)
		if err != nil {
			return fmt.Errorf("publish run %s: %w", run.RunID, err)
		}
		msgs = append(msgs, msg)
	}

	var errs []error
	for _, sink := range p.sinks {
		if err := p.deliver(ctx, sink, msgs); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish run %s: %w", run.RunID, errors.Join(errs...))
	}

	logger.S().Infow("publisher.run_published",
		"run_id", run.RunID,
		"tenders", len(run.Tenders),
		"sinks", p.Sinks(),
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, correlation uuid.UUID, eventType string, payload any) error {
	env, err := p.envelope(correlation, eventType, payload)
	if err != nil {
		return err
	}
	return p.PublishEnvelope(ctx, env)
}

func (p *Publisher) envelope(correlation uuid.UUID, eventType string, payload any) (*model.Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return nil, err
	}
	return &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: correlation,
		Topic:         p.Topic(eventType),
		EventType:     eventType,
		Version:       eventVersion,
		Timestamp:     p.now().UTC(),
		Payload:       data,
	}, nil
}

// deliver sends msgs to one sink, in a single call when the sink batches.
func (p *Publisher) deliver(ctx context.Context, sink Sink, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	topic := msgs[0].Subject

	if b, ok := sink.(BatchSink); ok {
		start := time.Now()
		err := b.SendBatch(ctx, msgs)
		metrics.ObserveDuration(metrics.PublishLatency, start, sink.Name())
		p.record(sink, topic, len(msgs), err)
		return err
	}

	var failed int
	for _, msg := range msgs {
		start := time.Now()
		err := sink.Send(ctx, msg)
		metrics.ObserveDuration(metrics.PublishLatency, start, sink.Name())
		p.record(sink, topic, 1, err)
		if err != nil {
			failed++
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tender events failed", failed, len(msgs))
	}
	return nil
}

// Topic maps "tender.batch" to "<prefix>.batch.v1".
func (p *Publisher) Topic(eventType string) string {
	return p.prefix + "." + strings.TrimPrefix(eventType, "tender.") + ".v1"
}

// Close closes every sink.
func (p *Publisher) Close() error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
