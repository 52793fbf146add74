package studio

import "sync"

// Broker fans rendered views out to the subscribers of a session. Slow
// subscribers only ever see the latest view, and a view older than the
// last one published for its session is dropped.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan View]struct{}
	last map[string]uint64
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan View]struct{}),
		last: make(map[string]uint64),
	}
}

// Subscribe returns a channel receiving every view published for
// sessionID and a cancel func that must be called when done.
func (b *Broker) Subscribe(sessionID string) (<-chan View, func()) {
	ch := make(chan View, 1)

	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan View]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[sessionID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(b.subs, sessionID)
			}
		}
	}
}

// Publish delivers view without blocking, replacing any undelivered view.
// It reports false when view was dropped as out of date.
func (b *Broker) Publish(sessionID string, view View) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if view.Version < b.last[sessionID] {
		return false
	}
	b.last[sessionID] = view.Version

	for ch := range b.subs[sessionID] {
		select {
		case ch <- view:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	return true
}

// Close ends every subscription of sessionID.
func (b *Broker) Close(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[sessionID] {
		close(ch)
	}
	delete(b.subs, sessionID)
	delete(b.last, sessionID)
}

// Subscribers reports how many subscriptions sessionID has.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}
