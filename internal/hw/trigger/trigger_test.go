package trigger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tmarchal/glowbooth/internal/hw/gpio"
)

// countingDriver wraps the mock driver and counts ReadPin calls so tests
// can wait for the watcher to consume each tick before scripting the next
// level.
type countingDriver struct {
	mu    sync.Mutex
	mock  *gpio.MockDriver
	reads int
}

func (d *countingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	return d.mock.SetupPin(pin, mode)
}

func (d *countingDriver) WritePin(pin int, level gpio.Level) error {
	return d.mock.WritePin(pin, level)
}

func (d *countingDriver) ReadPin(pin int) (gpio.Level, error) {
	level, err := d.mock.ReadPin(pin)
	d.mu.Lock()
	d.reads++
	d.mu.Unlock()
	return level, err
}

func (d *countingDriver) Close() error { return d.mock.Close() }

func (d *countingDriver) readCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

type fixture struct {
	driver  *countingDriver
	clock   *clockwork.FakeClock
	presses atomic.Int32
	cancel  context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		driver: &countingDriver{mock: gpio.NewMockDriver()},
		clock:  clockwork.NewFakeClock(),
	}
	btn, err := NewButton(f.driver, 17, f.clock, func() { f.presses.Add(1) })
	if err != nil {
		t.Fatalf("NewButton: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	t.Cleanup(cancel)
	go btn.Watch(ctx)

	// Wait for the watcher's ticker to register with the fake clock.
	f.clock.BlockUntil(1)
	return f
}

// tick advances one poll interval and waits until the watcher has read the
// pin, so the next SetLevel cannot race an in-flight read.
func (f *fixture) tick(t *testing.T) {
	t.Helper()
	want := f.driver.readCount() + 1
	f.clock.Advance(pollInterval)
	deadline := time.Now().Add(time.Second)
	for f.driver.readCount() < want {
		if time.Now().After(deadline) {
			t.Fatal("watcher never consumed the tick")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestButtonHeldCountsOnce(t *testing.T) {
	f := newFixture(t)

	f.driver.mock.SetLevel(17, gpio.Low)
	for i := 0; i < 5; i++ {
		f.tick(t)
	}

	if got := f.presses.Load(); got != 1 {
		t.Errorf("presses = %d, want 1 for a held button", got)
	}
}

func TestButtonPressAfterReleaseAndDebounce(t *testing.T) {
	f := newFixture(t)

	f.driver.mock.SetLevel(17, gpio.Low)
	f.tick(t)

	// Release, then wait out the debounce window before pressing again.
	f.driver.mock.SetLevel(17, gpio.High)
	for i := 0; i < 10; i++ { // 200ms > debounceDelay
		f.tick(t)
	}
	f.driver.mock.SetLevel(17, gpio.Low)
	f.tick(t)

	if got := f.presses.Load(); got != 2 {
		t.Errorf("presses = %d, want 2", got)
	}
}

func TestButtonBounceWithinDebounceIgnored(t *testing.T) {
	f := newFixture(t)

	f.driver.mock.SetLevel(17, gpio.Low)
	f.tick(t)

	// Contact bounce: release and re-press within the debounce window.
	f.driver.mock.SetLevel(17, gpio.High)
	f.tick(t)
	f.driver.mock.SetLevel(17, gpio.Low)
	f.tick(t)

	if got := f.presses.Load(); got != 1 {
		t.Errorf("presses = %d, want 1 (bounce must not retrigger)", got)
	}
}

func TestButtonUnpressedReadsHighAfterSetup(t *testing.T) {
	d := gpio.NewMockDriver()
	if _, err := NewButton(d, 17, clockwork.NewFakeClock(), func() {}); err != nil {
		t.Fatalf("NewButton: %v", err)
	}
	level, err := d.ReadPin(17)
	if err != nil {
		t.Fatal(err)
	}
	if level != gpio.High {
		t.Error("pull-up input should idle High when the button is released")
	}
}
