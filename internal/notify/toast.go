package notify

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tmarchal/glowbooth/internal/debug"
)

// Visibility is how long a toast stays on screen.
const Visibility = 3 * time.Second

// Scheduler is a single-slot toast queue: Show replaces any visible
// message and restarts the countdown (last write wins, no queueing of
// missed messages); expiry clears the slot.
type Scheduler struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	text      string
	expiresAt time.Time
	timer     clockwork.Timer
	gen       uint64

	onChange func(text string)
}

// NewScheduler creates a scheduler. onChange is invoked with the new
// visible text after every change (empty string on expiry); it may be nil.
// Callbacks run under the scheduler's lock so they arrive in slot order;
// onChange must not call back into the scheduler.
func NewScheduler(clock clockwork.Clock, onChange func(string)) *Scheduler {
	return &Scheduler{clock: clock, onChange: onChange}
}

// Show displays text for the full Visibility window, pre-empting any
// unexpired message.
func (s *Scheduler) Show(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	gen := s.gen
	s.text = text
	s.expiresAt = s.clock.Now().Add(Visibility)
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(Visibility, func() { s.expire(gen) })

	debug.Toast(text)
	if s.onChange != nil {
		s.onChange(text)
	}
}

// expire clears the slot unless a newer Show pre-empted this timer.
func (s *Scheduler) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return
	}
	s.text = ""
	if s.onChange != nil {
		s.onChange("")
	}
}

// Current returns the visible text, if any.
func (s *Scheduler) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.text == "" || !s.clock.Now().Before(s.expiresAt) {
		return "", false
	}
	return s.text, true
}
