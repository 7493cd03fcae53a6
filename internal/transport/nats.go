package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/brightloom/ecsmesh/internal/ecserr"
)

// NATSTransport implements Transport over a real *nats.Conn plus its
// JetStream context for the durable-stream mode.
type NATSTransport struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *logrus.Entry
}

// Dial connects to the bus at url and returns a ready Transport. Connection
// loss triggers nats.go's built-in reconnect loop; callers observing
// publish/subscribe errors during that window should treat the affected
// system instance as missing for the tick.
func Dial(url string, log *logrus.Entry) (*NATSTransport, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	conn, err := nats.Connect(url,
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("transport: disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("transport: reconnected")
		}),
	)
	if err != nil {
		return nil, &ecserr.TransportError{Subject: url, Err: err}
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, &ecserr.TransportError{Subject: url, Err: err}
	}
	return &NATSTransport{conn: conn, js: js, log: log.WithField("component", "transport")}, nil
}

func toNATSHeader(h map[string]string) nats.Header {
	if len(h) == 0 {
		return nil
	}
	out := make(nats.Header, len(h))
	for k, v := range h {
		out.Set(k, v)
	}
	return out
}

func fromNATSMsg(m *nats.Msg) Message {
	headers := make(map[string]string, len(m.Header))
	for k := range m.Header {
		headers[k] = m.Header.Get(k)
	}
	return Message{Subject: m.Subject, Headers: headers, Data: m.Data, ReplyTo: m.Reply}
}

// Publish sends an ordinary (non-durable) message.
func (t *NATSTransport) Publish(subject string, headers map[string]string, data []byte) error {
	msg := &nats.Msg{Subject: subject, Header: toNATSHeader(headers), Data: data}
	if err := t.conn.PublishMsg(msg); err != nil {
		return &ecserr.TransportError{Subject: subject, Err: err}
	}
	return nil
}

type natsSub struct{ sub *nats.Subscription }

func (s natsSub) Unsubscribe() error { return s.sub.Unsubscribe() }

// Subscribe delivers every message on subject to handler.
func (t *NATSTransport) Subscribe(subject string, handler Handler) (Subscription, error) {
	sub, err := t.conn.Subscribe(subject, func(m *nats.Msg) {
		handler(fromNATSMsg(m))
	})
	if err != nil {
		return nil, &ecserr.TransportError{Subject: subject, Err: err}
	}
	return natsSub{sub}, nil
}

// QueueSubscribe delivers each message on subject to exactly one member of
// queue.
func (t *NATSTransport) QueueSubscribe(subject, queue string, handler Handler) (Subscription, error) {
	sub, err := t.conn.QueueSubscribe(subject, queue, func(m *nats.Msg) {
		handler(fromNATSMsg(m))
	})
	if err != nil {
		return nil, &ecserr.TransportError{Subject: subject, Err: err}
	}
	return natsSub{sub}, nil
}

// Request performs a request/reply round trip using the bus's built-in
// ephemeral inbox rendezvous.
func (t *NATSTransport) Request(ctx context.Context, subject string, headers map[string]string, data []byte) (Message, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}
	msg := &nats.Msg{Subject: subject, Header: toNATSHeader(headers), Data: data}
	reply, err := t.conn.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return Message{}, &ecserr.TransportError{Subject: subject, Err: err}
	}
	return fromNATSMsg(reply), nil
}

// EnsureDurableStream creates (or updates) a JetStream stream covering
// subjects, so component.set.<sys>/component.changed.<sys> traffic can be
// replayed.
func (t *NATSTransport) EnsureDurableStream(streamName string, subjects []string) error {
	_, err := t.js.StreamInfo(streamName)
	if err == nil {
		_, err = t.js.UpdateStream(&nats.StreamConfig{Name: streamName, Subjects: subjects})
		if err != nil {
			return &ecserr.TransportError{Subject: fmt.Sprintf("stream:%s", streamName), Err: err}
		}
		return nil
	}
	_, err = t.js.AddStream(&nats.StreamConfig{Name: streamName, Subjects: subjects})
	if err != nil {
		return &ecserr.TransportError{Subject: fmt.Sprintf("stream:%s", streamName), Err: err}
	}
	return nil
}

// Close closes the underlying connection without draining it first.
func (t *NATSTransport) Close() error {
	t.conn.Close()
	return nil
}
