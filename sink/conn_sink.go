// Package sink provides EventSink implementations bridging the
// dispatcher to transports and projections.
package sink

import (
	"context"
	"sync/atomic"

	"cinelive/domain/event"
)

// ConnSink is the buffered outbound side of one connection. Consume
// enqueues without ever blocking the dispatcher: if the buffer is full
// the connection is lagging and the event is dropped for it, never
// backpressured to the publisher. The transport's write pump drains
// Events.
type ConnSink struct {
	Events  chan event.Event
	dropped atomic.Uint64
}

func NewConnSink(bufferSize int) *ConnSink {
	return &ConnSink{Events: make(chan event.Event, bufferSize)}
}

// Consume is called by the dispatcher; the write pump takes the event
// from here.
func (s *ConnSink) Consume(ctx context.Context, e event.Event) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.dropped.Add(1)
		return context.DeadlineExceeded
	}
}

// Dropped reports how many events this connection lost to a full
// buffer; the client recovers them through catch-up reads.
func (s *ConnSink) Dropped() uint64 {
	return s.dropped.Load()
}
