package testutils

import (
	"io"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

func NoOpLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FakePublisher is a programmable fake for message.Publisher that records what it was given.
type FakePublisher struct {
	PublishFunc func(topic string, messages ...*message.Message) error

	mu        sync.Mutex
	published map[string][]*message.Message
	closed    bool
}

func (f *FakePublisher) Publish(topic string, messages ...*message.Message) error {
	if f.PublishFunc != nil {
		if err := f.PublishFunc(topic, messages...); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.published == nil {
		f.published = make(map[string][]*message.Message)
	}
	f.published[topic] = append(f.published[topic], messages...)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Published returns the messages accepted on topic.
func (f *FakePublisher) Published(topic string) []*message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*message.Message(nil), f.published[topic]...)
}

// Interface assertions
var _ message.Publisher = (*FakePublisher)(nil)
