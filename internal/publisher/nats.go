package publisher

import (
	"context"

	"github.com/nats-io/nats.go"
)

// JetStreamPublisher is the part of nats.JetStreamContext the sink uses.
type JetStreamPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSSink publishes to JetStream.
type NATSSink struct {
	nc *nats.Conn
	js JetStreamPublisher
}

func NewNATSSink(nc *nats.Conn) (*NATSSink, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &NATSSink{nc: nc, js: js}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Send(ctx context.Context, msg Message) error {
	header := make(nats.Header, len(msg.Headers))
	for k, v := range msg.Headers {
		header[k] = []string{v}
	}
	_, err := s.js.PublishMsg(&nats.Msg{
		Subject: msg.Subject,
		Data:    msg.Data,
		Header:  header,
	}, nats.Context(ctx))
	return err
}

// Close is a no-op; the connection is drained by its owner.
func (s *NATSSink) Close() error { return nil }
