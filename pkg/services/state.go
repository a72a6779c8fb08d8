package services

import (
	"sync"
	"sync/atomic"
)

// opState tracks operations in flight and the outcome of the last one
type opState struct {
	busy    atomic.Int32
	mu      sync.Mutex
	lastErr error
}

func (s *opState) begin() {
	s.busy.Add(1)
}

func (s *opState) end(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.busy.Add(-1)
}

// Busy reports whether an operation is in flight
func (s *opState) Busy() bool {
	return s.busy.Load() > 0
}

// LastError returns the failure of the most recently finished operation,
// nil when it succeeded
func (s *opState) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
