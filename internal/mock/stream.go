package mock

import (
	"context"
	"sync"

	"dcaengine/internal/core"
)

// Stream is an in-memory core.EventStream. Tests drive it directly via
// Fire* helpers rather than a real wire connection.
type Stream struct {
	mu sync.Mutex

	onOpen           func()
	onOrderUpdate    func(*core.OrderUpdateEvent)
	onPositionUpdate func(*core.PositionUpdateEvent)
	onClose          func(code int, reason string)
	onError          func(error)

	started bool
}

func NewStream() *Stream { return &Stream{} }

func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *Stream) Stop() error {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return nil
}

func (s *Stream) OnOpen(cb func())                                    { s.mu.Lock(); s.onOpen = cb; s.mu.Unlock() }
func (s *Stream) OnOrderUpdate(cb func(*core.OrderUpdateEvent))       { s.mu.Lock(); s.onOrderUpdate = cb; s.mu.Unlock() }
func (s *Stream) OnPositionUpdate(cb func(*core.PositionUpdateEvent)) { s.mu.Lock(); s.onPositionUpdate = cb; s.mu.Unlock() }
func (s *Stream) OnClose(cb func(code int, reason string))           { s.mu.Lock(); s.onClose = cb; s.mu.Unlock() }
func (s *Stream) OnError(cb func(error))                              { s.mu.Lock(); s.onError = cb; s.mu.Unlock() }

// FireOpen invokes the registered OnOpen callback, as if the stream had just
// authenticated and subscribed.
func (s *Stream) FireOpen() {
	s.mu.Lock()
	cb := s.onOpen
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// FireOrderUpdate delivers a normalized order-channel event.
func (s *Stream) FireOrderUpdate(ev *core.OrderUpdateEvent) {
	s.mu.Lock()
	cb := s.onOrderUpdate
	s.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// FirePositionUpdate delivers a normalized position-channel event.
func (s *Stream) FirePositionUpdate(ev *core.PositionUpdateEvent) {
	s.mu.Lock()
	cb := s.onPositionUpdate
	s.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// FireClose simulates an unexpected close.
func (s *Stream) FireClose(code int, reason string) {
	s.mu.Lock()
	cb := s.onClose
	s.mu.Unlock()
	if cb != nil {
		cb(code, reason)
	}
}

// FireError simulates a stream-level error.
func (s *Stream) FireError(err error) {
	s.mu.Lock()
	cb := s.onError
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}
