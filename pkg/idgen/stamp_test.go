package idgen

import (
	"sync"
	"testing"
	"time"
)

// MockClock for deterministic testing
type MockClock struct {
	mu          sync.Mutex
	CurrentTime int64
}

func (m *MockClock) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) Set(ts int64) {
	m.mu.Lock()
	m.CurrentTime = ts
	m.mu.Unlock()
}

func TestStamper_Next(t *testing.T) {
	clock := &MockClock{CurrentTime: 1700000000000}
	st := NewStamper(clock)

	ts1, err := st.Next()
	if err != nil {
		t.Fatalf("Failed to stamp: %v", err)
	}
	if ts1 != 1700000000000 {
		t.Errorf("Expected clock time, got %d", ts1)
	}

	ts2, err := st.Next()
	if err != nil {
		t.Fatalf("Failed to stamp: %v", err)
	}
	if ts2 <= ts1 {
		t.Errorf("Stamps must be strictly increasing: %d then %d", ts1, ts2)
	}
}

func TestStamper_ClockMovedBack(t *testing.T) {
	clock := &MockClock{CurrentTime: 1700000002000}
	st := NewStamper(clock)

	first, _ := st.Next()

	clock.Set(1700000001000)
	second, err := st.Next()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if second != first+1 {
		t.Errorf("Expected %d, got %d", first+1, second)
	}

	clock.Set(1700000005000)
	third, _ := st.Next()
	if third != 1700000005000 {
		t.Errorf("Expected stamper to follow clock forward, got %d", third)
	}
}

func TestStamper_ClockUnset(t *testing.T) {
	st := NewStamper(&MockClock{CurrentTime: 1000})
	if _, err := st.Next(); err != ErrClockUnset {
		t.Errorf("Expected ErrClockUnset, got %v", err)
	}
}

func TestStamper_Concurrency(t *testing.T) {
	st := NewStamper(&SystemClock{})
	numGoroutines := 50
	numStamps := 200
	stamps := make(chan int64, numGoroutines*numStamps)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			for j := 0; j < numStamps; j++ {
				ts, err := st.Next()
				if err != nil {
					t.Errorf("Concurrent stamping failed: %v", err)
				}
				stamps <- ts
			}
		}()
	}

	unique := make(map[int64]bool)
	expected := numGoroutines * numStamps
	for i := 0; i < expected; i++ {
		select {
		case ts := <-stamps:
			if unique[ts] {
				t.Errorf("Duplicate stamp: %d", ts)
			}
			unique[ts] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("Timeout waiting for stamps")
		}
	}
}
