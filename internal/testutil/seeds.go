package testutil

import "sync"

// SeedSequence hands out a fixed list of seeds in order, then repeats the
// last one. It stands in for the random seed source so tests that exercise
// "no seed given" paths stay deterministic.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SeedSequence struct {
	mu    sync.Mutex
	seeds []uint64
	next  int
}

// NewSeedSequence creates a sequence over seeds. With no seeds, Next
// returns 0 forever.
func NewSeedSequence(seeds ...uint64) *SeedSequence {
	return &SeedSequence{seeds: seeds}
}

// Next returns the next seed.
func (s *SeedSequence) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seeds) == 0 {
		return 0
	}
	if s.next >= len(s.seeds) {
		return s.seeds[len(s.seeds)-1]
	}
	seed := s.seeds[s.next]
	s.next++
	return seed
}

// Drawn returns how many seeds have been handed out.
func (s *SeedSequence) Drawn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Reset rewinds the sequence to its first seed.
func (s *SeedSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
}
