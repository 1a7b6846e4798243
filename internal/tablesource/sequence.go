package tablesource

import "sync"

// SequenceState is a DDL-visible sequence generator: current value,
// increment, bounds, and whether it wraps on overflow. It is registered in
// the Table State Store's visible/delete lists the same way a table is
// (statestore.KindSequence), not inside a Source — a sequence has no rows,
// no index set, no commit history, only a current value advanced outside
// the commit pipeline's row-conflict machinery entirely.
type SequenceState struct {
	mu sync.Mutex

	current   int64
	increment int64
	min       int64
	max       int64
	cycle     bool
}

// NewSequenceState creates a sequence starting one increment below start,
// so the first Next() call returns start.
func NewSequenceState(start, increment, min, max int64, cycle bool) *SequenceState {
	return &SequenceState{
		current:   start - increment,
		increment: increment,
		min:       min,
		max:       max,
		cycle:     cycle,
	}
}

// RestoreSequenceState rebuilds a sequence from its persisted current value.
func RestoreSequenceState(current, increment, min, max int64, cycle bool) *SequenceState {
	return &SequenceState{current: current, increment: increment, min: min, max: max, cycle: cycle}
}

// ErrSequenceExhausted is returned by Next when the sequence has reached
// its bound and cycle is false.
type ErrSequenceExhausted struct {
	Min, Max int64
}

func (e *ErrSequenceExhausted) Error() string {
	return "tablesource: sequence exhausted its range"
}

// Next advances the sequence and returns the new current value.
func (s *SequenceState) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current + s.increment
	if s.increment >= 0 && next > s.max {
		if !s.cycle {
			return 0, &ErrSequenceExhausted{Min: s.min, Max: s.max}
		}
		next = s.min
	}
	if s.increment < 0 && next < s.min {
		if !s.cycle {
			return 0, &ErrSequenceExhausted{Min: s.min, Max: s.max}
		}
		next = s.max
	}
	s.current = next
	return s.current, nil
}

// Current returns the last value handed out without advancing the sequence.
func (s *SequenceState) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
