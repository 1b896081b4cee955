package idgen

import (
	"errors"
	"sync"
)

// MinTimestamp rejects clocks that are obviously unset (2020-01-01 00:00:00 UTC).
const MinTimestamp = 1577836800000

var ErrClockUnset = errors.New("clock reports a time before 2020-01-01")

// Stamper hands out strictly increasing millisecond timestamps.
// Model IDs and remote object names embed these stamps, so two uploads handled
// by the same process never share one, even within the same millisecond.
type Stamper struct {
	mu    sync.Mutex
	clock Clock
	last  int64
}

// NewStamper creates a stamper over clock. A nil clock uses the system clock.
func NewStamper(clock Clock) *Stamper {
	if clock == nil {
		clock = &SystemClock{}
	}
	return &Stamper{clock: clock}
}

// Next returns the current clock time in milliseconds, bumped past the previous stamp
// if the clock stalled or moved backwards.
func (s *Stamper) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if now < MinTimestamp {
		return 0, ErrClockUnset
	}

	if now <= s.last {
		now = s.last + 1
	}
	s.last = now
	return now, nil
}
