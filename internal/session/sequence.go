package session

import "sync"

// Sequencer drops out-of-order list responses. Each reload takes a ticket
// before its request; only the holder of the latest ticket may apply its
// result.
type Sequencer struct {
	mu  sync.Mutex
	seq uint64
}

// Begin issues a new ticket, invalidating all earlier ones.
func (s *Sequencer) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Apply runs fn if ticket is still the latest and reports whether it did.
// fn runs under the sequencer lock, so it must not call Begin or Apply.
func (s *Sequencer) Apply(ticket uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.seq {
		return false
	}
	fn()
	return true
}

// Current reports whether ticket is still the latest.
func (s *Sequencer) Current(ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ticket == s.seq
}
