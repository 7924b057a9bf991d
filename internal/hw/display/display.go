package display

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/tmarchal/glowbooth/internal/debug"
)

// Display controls the brightness of the panel used as light source.
// Values are normalized to 0.0-1.0.
type Display interface {
	Brightness() (float64, error)
	SetBrightness(v float64) error
}

// NewDisplay creates a display driver based on the chosen mode.
// If mock is true, returns a MockDisplay (for dev/test).
// If mock is false, returns a sysfs backlight driver.
func NewDisplay(mock bool, backlightDir string) (Display, error) {
	if mock {
		debug.Info("Using MOCK display driver (development mode)")
		return NewMockDisplay(), nil
	}
	return NewBacklight(backlightDir)
}

// MockDisplay keeps brightness in memory.
type MockDisplay struct {
	mu    sync.Mutex
	level float64
}

func NewMockDisplay() *MockDisplay {
	return &MockDisplay{level: 0.5}
}

func (m *MockDisplay) Brightness() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level, nil
}

func (m *MockDisplay) SetBrightness(v float64) error {
	m.mu.Lock()
	m.level = v
	m.mu.Unlock()
	debug.Trace("Display: brightness set to %.2f (mock)", v)
	return nil
}

// Backlight drives a Linux sysfs backlight (e.g. the official Raspberry Pi
// touchscreen under /sys/class/backlight/rpi_backlight).
type Backlight struct {
	dir string
	max int
}

// NewBacklight opens the backlight at dir. An empty dir autodetects the
// first entry under /sys/class/backlight.
func NewBacklight(dir string) (*Backlight, error) {
	if dir == "" {
		entries, err := filepath.Glob("/sys/class/backlight/*")
		if err != nil || len(entries) == 0 {
			return nil, fmt.Errorf("no backlight found under /sys/class/backlight")
		}
		dir = entries[0]
	}

	raw, err := os.ReadFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("read max_brightness: %w", err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || max <= 0 {
		return nil, fmt.Errorf("invalid max_brightness %q", strings.TrimSpace(string(raw)))
	}

	debug.Info("Using sysfs backlight %s (max=%d)", dir, max)
	return &Backlight{dir: dir, max: max}, nil
}

func (b *Backlight) Brightness() (float64, error) {
	raw, err := os.ReadFile(filepath.Join(b.dir, "brightness"))
	if err != nil {
		return 0, fmt.Errorf("read brightness: %w", err)
	}
	cur, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("invalid brightness %q", strings.TrimSpace(string(raw)))
	}
	return float64(cur) / float64(b.max), nil
}

func (b *Backlight) SetBrightness(v float64) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	raw := strconv.Itoa(int(v * float64(b.max)))
	debug.Trace("Display: writing brightness %s/%d", raw, b.max)
	return os.WriteFile(filepath.Join(b.dir, "brightness"), []byte(raw), 0o644)
}

// Scoped pairs "save ambient brightness" with "restore it later" so the
// light feature never leaks a brightness change past its own lifetime.
type Scoped struct {
	d Display

	mu    sync.Mutex
	held  bool
	saved float64
}

func NewScoped(d Display) *Scoped {
	return &Scoped{d: d}
}

// Acquire saves the ambient brightness. Idempotent: a second Acquire while
// held does not overwrite the saved value.
func (s *Scoped) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held {
		return nil
	}
	cur, err := s.d.Brightness()
	if err != nil {
		return fmt.Errorf("save ambient brightness: %w", err)
	}
	s.saved = cur
	s.held = true
	debug.Verbose("Display: saved ambient brightness %.2f", cur)
	return nil
}

// Set applies a brightness while held. Calling Set without Acquire is a
// programming error and is refused.
func (s *Scoped) Set(v float64) error {
	s.mu.Lock()
	held := s.held
	s.mu.Unlock()
	if !held {
		return fmt.Errorf("display: Set called without Acquire")
	}
	return s.d.SetBrightness(v)
}

// Release restores the ambient brightness. Idempotent.
func (s *Scoped) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.held {
		return nil
	}
	s.held = false
	debug.Verbose("Display: restoring ambient brightness %.2f", s.saved)
	return s.d.SetBrightness(s.saved)
}

// Held reports whether the ambient brightness is currently saved.
func (s *Scoped) Held() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}
