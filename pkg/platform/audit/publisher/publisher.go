// Package publisher delivers audit events to a store, synchronously by
// default or through a buffered channel when async mode is enabled.
package publisher

import (
	"context"
	"sync"
	"time"

	id "vigia/pkg/domain"
	audit "vigia/pkg/platform/audit"
)

const drainTimeout = 5 * time.Second

// Publisher emits audit events. In sync mode Emit appends directly to the
// store; in async mode events go through a buffered channel drained by a
// background goroutine, and Close flushes what remains.
type Publisher struct {
	store audit.Store

	inbox chan audit.Event
	done  chan struct{}
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables async delivery with the given channel capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records the event. Zero timestamps are stamped here so callers only
// set one when replaying history. In async mode a full buffer falls back to
// a synchronous append rather than dropping the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		return p.store.Append(ctx, event)
	}
}

// List returns the events recorded for a user.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Close stops async delivery after flushing buffered events.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox == nil {
			close(p.done)
			return
		}
		close(p.inbox)
		select {
		case <-p.done:
		case <-time.After(drainTimeout):
		}
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		_ = p.store.Append(context.Background(), event)
	}
}
