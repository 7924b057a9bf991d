package notify

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestShowAndExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(clock, nil)

	s.Show("saved")
	if text, ok := s.Current(); !ok || text != "saved" {
		t.Fatalf("current = %q (%v), want \"saved\"", text, ok)
	}

	clock.Advance(Visibility - time.Millisecond)
	if _, ok := s.Current(); !ok {
		t.Error("toast expired early")
	}

	clock.Advance(time.Millisecond)
	if text, ok := s.Current(); ok {
		t.Errorf("current = %q, want expired", text)
	}
}

func TestLastWriteWinsAndTimerRestarts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(clock, nil)

	s.Show("x")
	clock.Advance(time.Second)
	s.Show("y")

	if text, _ := s.Current(); text != "y" {
		t.Fatalf("current = %q, want \"y\" (pre-empted)", text)
	}

	// The countdown restarted with the second show: "y" lives a full
	// Visibility from the second call, not the first.
	clock.Advance(Visibility - time.Millisecond)
	if text, ok := s.Current(); !ok || text != "y" {
		t.Errorf("current = %q (%v), want \"y\" still visible", text, ok)
	}
	clock.Advance(time.Millisecond)
	if _, ok := s.Current(); ok {
		t.Error("toast should expire exactly Visibility after the second show")
	}
}

func TestOnChangeSequence(t *testing.T) {
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	var changes []string
	s := NewScheduler(clock, func(text string) {
		mu.Lock()
		changes = append(changes, text)
		mu.Unlock()
	})

	s.Show("x")
	s.Show("y")
	clock.Advance(Visibility)

	// Expiry callbacks run on the fake clock's goroutine; give it a beat.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(changes)
		mu.Unlock()
		if n >= 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"x", "y", ""}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %q, want %q", i, changes[i], want[i])
		}
	}
}

func TestConcurrentShowsDeliverInSlotOrder(t *testing.T) {
	// A capture-outcome toast and a session toast can race from different
	// goroutines; the last delivered callback must match the visible slot.
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	var lastDelivered string
	s := NewScheduler(clock, func(text string) {
		mu.Lock()
		lastDelivered = text
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Show(fmt.Sprintf("toast-%d", n))
		}(i)
	}
	wg.Wait()

	current, ok := s.Current()
	if !ok {
		t.Fatal("a toast should be visible")
	}
	mu.Lock()
	defer mu.Unlock()
	if lastDelivered != current {
		t.Errorf("last delivered %q but slot shows %q; callbacks arrived out of order", lastDelivered, current)
	}
}

func TestStalePreemptedTimerDoesNotClearNewToast(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(clock, nil)

	s.Show("x")
	clock.Advance(2 * time.Second)
	s.Show("y")
	// Advance past x's original expiry but before y's.
	clock.Advance(2 * time.Second)

	if text, ok := s.Current(); !ok || text != "y" {
		t.Errorf("current = %q (%v), want \"y\" still visible", text, ok)
	}
}
