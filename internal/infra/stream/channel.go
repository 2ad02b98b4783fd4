package stream

import (
	"context"
	"sync"

	"grid-agent-service/internal/domain"
	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/infra/metrics"
)

// Channel is the per-job ordered event pipe between the workflow
// engine (single producer) and at most one attached subscriber.
//
// Every published event is appended to an in-memory buffer first, so
// a subscriber that attaches late still receives the full sequence
// from ROUTED through COMPLETE. A subscriber that is attached receives
// buffered events followed by live ones, in publish order, with no
// gaps or duplicates.
type Channel struct {
	mu       sync.Mutex
	buf      []*model.Event
	closed   bool
	attached bool
	wake     chan struct{} // closed+replaced to signal publish/close
}

// NewChannel creates a channel sized for roughly bufferHint events.
func NewChannel(bufferHint int) *Channel {
	if bufferHint <= 0 {
		bufferHint = 64
	}
	return &Channel{
		buf:  make([]*model.Event, 0, bufferHint),
		wake: make(chan struct{}),
	}
}

// Publish appends ev to the buffer and wakes the subscriber if one is
// attached. It never blocks on the consumer. Publishing after Close
// returns domain.ErrChannelClosed; the engine closes exactly once, so
// hitting this is a programming error, not a user-facing condition.
func (c *Channel) Publish(ev *model.Event) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrChannelClosed
	}
	c.buf = append(c.buf, ev)
	c.signal()
	c.mu.Unlock()

	metrics.IncEventPublished(string(ev.Type))
	return nil
}

// Close marks the channel terminal. Buffered-but-undelivered events
// are still handed to an attached subscriber before its sequence ends.
// Safe to call more than once; only the first call has effect.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.signal()
}

// Subscribe attaches the caller as the sole reader. The returned
// channel yields every buffered event, then live events in publish
// order, and is closed once the channel is closed and drained, or the
// ctx is cancelled. A second concurrent Subscribe fails with
// domain.ErrAlreadySubscribed; fan-out is intentionally unsupported.
func (c *Channel) Subscribe(ctx context.Context) (<-chan *model.Event, error) {
	c.mu.Lock()
	if c.attached {
		c.mu.Unlock()
		return nil, domain.ErrAlreadySubscribed
	}
	c.attached = true
	c.mu.Unlock()

	out := make(chan *model.Event)
	go c.deliver(ctx, out)
	return out, nil
}

// Active reports whether a subscriber is currently attached.
func (c *Channel) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Closed reports whether the producer has finished.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Len returns the number of buffered events (delivered or not).
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// deliver walks the buffer with a private cursor, blocking on wake
// when it catches up to the producer. Consumer cancellation detaches
// without disturbing the producer, which keeps publishing into the
// buffer until close.
func (c *Channel) deliver(ctx context.Context, out chan<- *model.Event) {
	defer func() {
		c.mu.Lock()
		c.attached = false
		c.mu.Unlock()
		close(out)
	}()

	cursor := 0
	for {
		c.mu.Lock()
		pending := c.buf[cursor:]
		closed := c.closed
		wait := c.wake
		c.mu.Unlock()

		for _, ev := range pending {
			select {
			case out <- ev:
				cursor++
			case <-ctx.Done():
				return
			}
		}

		if closed {
			// Producer is done and the buffer is drained.
			c.mu.Lock()
			drained := cursor == len(c.buf)
			c.mu.Unlock()
			if drained {
				return
			}
			continue
		}

		select {
		case <-wait:
		case <-ctx.Done():
			return
		}
	}
}

// signal wakes the delivery goroutine. Callers must hold c.mu.
func (c *Channel) signal() {
	close(c.wake)
	c.wake = make(chan struct{})
}
