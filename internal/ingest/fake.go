package ingest

import (
	"context"
	"sync"
	"time"
)

// FakeSubscriber hands messages to the handler on demand, for tests.
type FakeSubscriber struct {
	mu sync.Mutex

	handler Handler

	// StartError, if set, will be returned by Start.
	StartError error

	// Connected controls the return value of IsConnected.
	Connected bool

	// Stopped tracks if Stop was called.
	Stopped bool
}

// NewFakeSubscriber creates a FakeSubscriber for testing.
func NewFakeSubscriber() *FakeSubscriber {
	return &FakeSubscriber{}
}

// Start records the handler.
func (f *FakeSubscriber) Start(_ context.Context, h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartError != nil {
		return f.StartError
	}
	f.handler = h
	f.Connected = true
	return nil
}

// Stop marks the subscriber as stopped.
func (f *FakeSubscriber) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stopped = true
	f.Connected = false
}

// IsConnected reports whether the fake subscriber is "connected".
func (f *FakeSubscriber) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Deliver passes a message to the registered handler, as the broker would.
// It reports false when Start has not been called.
func (f *FakeSubscriber) Deliver(topic string, payload []byte, at time.Time) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(topic, payload, at)
	return true
}
