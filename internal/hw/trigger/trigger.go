package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tmarchal/glowbooth/internal/debug"
	"github.com/tmarchal/glowbooth/internal/hw/gpio"
)

const (
	pollInterval  = 20 * time.Millisecond
	debounceDelay = 150 * time.Millisecond
)

// Button is a physical shutter button wired between a GPIO pin and ground
// (internal pull-up, active low). Each debounced press fires onPress, which
// is expected to submit a capture.
type Button struct {
	driver  gpio.Driver
	pin     int
	clock   clockwork.Clock
	onPress func()
}

func NewButton(d gpio.Driver, pin int, clock clockwork.Clock, onPress func()) (*Button, error) {
	if err := d.SetupPin(pin, gpio.InputPullUp); err != nil {
		return nil, fmt.Errorf("setup trigger pin %d: %w", pin, err)
	}
	return &Button{
		driver:  d,
		pin:     pin,
		clock:   clock,
		onPress: onPress,
	}, nil
}

// Watch polls the pin until ctx is cancelled. A High -> Low edge counts as
// one press; further edges are ignored until the button is released and
// the debounce delay has passed.
func (b *Button) Watch(ctx context.Context) {
	debug.Info("Trigger: watching shutter button on pin %d", b.pin)

	ticker := b.clock.NewTicker(pollInterval)
	defer ticker.Stop()

	prev := gpio.High
	var quietUntil time.Time

	for {
		select {
		case <-ctx.Done():
			debug.Verbose("Trigger: watch stopped")
			return
		case <-ticker.Chan():
			level, err := b.driver.ReadPin(b.pin)
			if err != nil {
				debug.Error(fmt.Errorf("trigger: read pin %d: %w", b.pin, err))
				continue
			}
			now := b.clock.Now()
			if prev == gpio.High && level == gpio.Low && now.After(quietUntil) {
				debug.Live("Trigger: shutter button pressed")
				quietUntil = now.Add(debounceDelay)
				b.onPress()
			}
			prev = level
		}
	}
}
