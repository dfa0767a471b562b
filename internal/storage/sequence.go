package storage

import "sync"

// Sequence hands out auto-increment identities, one counter per kind.
type Sequence struct {
	mu   sync.Mutex
	last map[Kind]int64
}

func NewSequence() *Sequence {
	return &Sequence{last: make(map[Kind]int64)}
}

// Next returns the next identity for kind. The first call for a kind returns 1.
func (s *Sequence) Next(kind Kind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last[kind]++
	return s.last[kind]
}

// Current returns the last identity issued for kind, or 0.
func (s *Sequence) Current(kind Kind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last[kind]
}

// Observe raises the counter for kind to id when id is ahead of it, so a
// later Next never reissues an identity that was set by the caller.
func (s *Sequence) Observe(kind Kind, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id > s.last[kind] {
		s.last[kind] = id
	}
}
