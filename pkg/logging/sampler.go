// Package logging holds helpers shared by the structured loggers of the service.
package logging

import (
	"sync"
)

// ErrorSampler keeps repeated failures from flooding the log. The first occurrence of a
// key is logged, then every Nth one until the key is reset.
type ErrorSampler struct {
	mu       sync.Mutex
	counts   map[string]int
	interval int
}

// NewErrorSampler creates a sampler that logs every interval-th occurrence after the first.
func NewErrorSampler(interval int) *ErrorSampler {
	if interval < 1 {
		interval = 10
	}
	return &ErrorSampler{
		counts:   make(map[string]int),
		interval: interval,
	}
}

// Observe records one occurrence of key. It reports whether this occurrence should be
// logged along with the number of occurrences seen so far.
func (s *ErrorSampler) Observe(key string) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[key]++
	n := s.counts[key]
	return n == 1 || n%s.interval == 0, n
}

// Count returns the occurrences recorded for key since its last reset.
func (s *ErrorSampler) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

// Reset forgets key, typically after the failing operation succeeded again.
func (s *ErrorSampler) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, key)
}

// ResetAll forgets every key.
func (s *ErrorSampler) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.counts)
}
