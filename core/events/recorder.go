package events

import "sync"

// Recorder buffers every emitted event in order. It backs the websocket feed,
// the SQL indexer and the audit-trail queries: replaying the recorded sequence
// reconstructs protocol state.
type Recorder struct {
	mu     sync.RWMutex
	events []Event
	subs   []chan Event
}

// NewRecorder constructs an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, evt)
	subs := append([]chan Event(nil), r.subs...)
	r.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			// Slow subscribers drop events rather than stalling state transitions.
		}
	}
}

// Events returns a snapshot of everything emitted so far.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Subscribe registers a buffered channel that receives every future event. The
// returned cancel function removes the subscription.
func (r *Recorder) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, normalizeBuffer(buffer))
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch, func() { r.unsubscribe(ch) }
}

// SubscribeWithBacklog registers a subscription and returns the events emitted
// before it, snapshotted under the same lock that guards Emit. Every event
// lands in exactly one of the backlog or the channel, so callers can replay
// the backlog and then stream without duplicates or gaps.
func (r *Recorder) SubscribeWithBacklog(buffer int) ([]Event, <-chan Event, func()) {
	ch := make(chan Event, normalizeBuffer(buffer))
	r.mu.Lock()
	backlog := make([]Event, len(r.events))
	copy(backlog, r.events)
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return backlog, ch, func() { r.unsubscribe(ch) }
}

func (r *Recorder) unsubscribe(ch chan Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.subs {
		if sub == ch {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			break
		}
	}
}

func normalizeBuffer(buffer int) int {
	if buffer <= 0 {
		return 64
	}
	return buffer
}
