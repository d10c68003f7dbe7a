package query

import "sync"

// Ticket identifies one issued query for a key.
type Ticket struct {
	key string
	seq uint64
}

// Sequencer orders concurrent queries that target the same key. Only the
// most recently issued ticket for a key may apply its result; any ticket
// issued earlier is superseded, whatever order the queries finish in.
type Sequencer struct {
	mu     sync.Mutex
	next   uint64
	latest map[string]uint64
}

// NewSequencer creates an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{latest: make(map[string]uint64)}
}

// Issue returns a new ticket for key and supersedes every earlier one.
func (s *Sequencer) Issue(key string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.latest[key] = s.next
	return Ticket{key: key, seq: s.next}
}

// Current reports whether t is still the latest ticket for its key.
func (s *Sequencer) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[t.key] == t.seq
}

// Complete reports whether t may apply its result and releases the key when
// it may. Sequence numbers are global, so a ticket issued before the release
// can never match a later one.
func (s *Sequencer) Complete(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest[t.key] != t.seq {
		return false
	}
	delete(s.latest, t.key)
	return true
}

// Pending returns the number of keys with a query in flight.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.latest)
}
