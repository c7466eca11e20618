package eventbus

import (
	"context"
	"sync"
	"time"
)

// DefaultBufferSize is the per-subscription queue depth used when Subscribe
// is called with bufferSize <= 0.
const DefaultBufferSize = 1024

// Bus fans out Events to per-session subscribers. Delivery is ordered and
// at-most-once per subscriber: a slow subscriber drops its own oldest
// buffered events rather than blocking the publisher or other subscribers.
type Bus struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{sessions: make(map[string]*session)}
}

type session struct {
	mu      sync.Mutex
	seq     uint64
	subs    map[int]*Subscription
	nextID  int
	closed  bool
}

// Publish assigns the next sequence number for sessionID and delivers the
// event to every live subscription on that session. Publish never blocks on
// a slow subscriber.
func (b *Bus) Publish(sessionID string, typ Type, data interface{}) Event {
	s := b.sessionFor(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ev := Event{Type: typ, SessionID: sessionID, Sequence: s.seq, Timestamp: time.Now(), Data: data}
	if s.closed {
		return ev
	}
	for _, sub := range s.subs {
		sub.push(ev)
	}
	return ev
}

// Subscribe registers a new subscription on sessionID with a bounded queue
// of bufferSize events (DefaultBufferSize if bufferSize <= 0). The returned
// Subscription is independent: it does not observe events published before
// it was created.
func (b *Bus) Subscribe(sessionID string, bufferSize int) *Subscription {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	s := b.sessionFor(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	sub := &Subscription{
		bus:       b,
		sessionID: sessionID,
		id:        id,
		limit:     bufferSize,
		notify:    make(chan struct{}, 1),
		closed:    s.closed,
	}
	s.subs[id] = sub
	return sub
}

// Close terminates a session: every live subscription drains its remaining
// buffered events and then reports closed. No further Publish calls against
// sessionID will reach any subscriber created before or after Close.
func (b *Bus) Close(sessionID string) {
	s := b.sessionFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, sub := range s.subs {
		sub.markClosed()
	}
}

func (b *Bus) sessionFor(sessionID string) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		s = &session{subs: make(map[int]*Subscription)}
		b.sessions[sessionID] = s
	}
	return s
}

func (b *Bus) unsubscribe(sessionID string, id int) {
	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	b.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// Subscription is a single consumer's ordered view of a session's events.
type Subscription struct {
	bus       *Bus
	sessionID string
	id        int
	limit     int
	notify    chan struct{}

	mu         sync.Mutex
	queue      []Event
	overflowed bool
	overflowAt uint64
	closed     bool
}

// push appends e to the queue, dropping the oldest buffered event first if
// the queue is already at capacity (spec.md 4.3: bounded queue, drop-oldest
// on overflow, with a buffer_overflow marker surfaced on the next Next call).
func (s *Subscription) push(e Event) {
	s.mu.Lock()
	if len(s.queue) >= s.limit {
		s.queue = s.queue[1:]
		s.overflowed = true
		s.overflowAt = e.Sequence
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available, the session is closed and fully
// drained, or ctx is cancelled. The second return value is false only in
// the closed-and-drained case or on context cancellation.
func (s *Subscription) Next(ctx context.Context) (Event, bool) {
	for {
		s.mu.Lock()
		if s.overflowed {
			s.overflowed = false
			seq := s.overflowAt
			s.mu.Unlock()
			return Event{Type: TypeBufferOverflow, SessionID: s.sessionID, Sequence: seq, Timestamp: time.Now()}, true
		}
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, true
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Event{}, false
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return Event{}, false
		}
	}
}

// Unsubscribe removes this subscription from its session. Idempotent.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.sessionID, s.id)
}
