package harness

import (
	"context"
	"sync"

	"github.com/brightloom/ecsmesh/internal/transport"
)

// fakeTransport is the same synchronous, mutex-guarded subject fanout used
// by the tick package's orchestrator tests, reused here for the harness
// side of the exchange.
type fakeTransport struct {
	mu   sync.Mutex
	subs map[string][]transport.Handler
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subs: make(map[string][]transport.Handler)}
}

func (f *fakeTransport) Publish(subject string, headers map[string]string, data []byte) error {
	f.mu.Lock()
	handlers := append([]transport.Handler{}, f.subs[subject]...)
	f.mu.Unlock()
	msg := transport.Message{Subject: subject, Headers: headers, Data: data}
	for _, h := range handlers {
		h(msg)
	}
	return nil
}

type fakeSub struct {
	unsub func()
}

func (s *fakeSub) Unsubscribe() error {
	s.unsub()
	return nil
}

func (f *fakeTransport) Subscribe(subject string, handler transport.Handler) (transport.Subscription, error) {
	f.mu.Lock()
	f.subs[subject] = append(f.subs[subject], handler)
	idx := len(f.subs[subject]) - 1
	f.mu.Unlock()
	return &fakeSub{unsub: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		handlers := f.subs[subject]
		if idx < len(handlers) {
			handlers[idx] = func(transport.Message) {}
		}
	}}, nil
}

func (f *fakeTransport) QueueSubscribe(subject, queue string, handler transport.Handler) (transport.Subscription, error) {
	return f.Subscribe(subject, handler)
}

func (f *fakeTransport) Request(ctx context.Context, subject string, headers map[string]string, data []byte) (transport.Message, error) {
	return transport.Message{}, nil
}

func (f *fakeTransport) EnsureDurableStream(streamName string, subjects []string) error { return nil }

func (f *fakeTransport) Close() error { return nil }
