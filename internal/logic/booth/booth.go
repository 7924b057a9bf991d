package booth

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/tmarchal/glowbooth/internal/debug"
	"github.com/tmarchal/glowbooth/internal/hw/display"
	"github.com/tmarchal/glowbooth/internal/hw/gateway"
	"github.com/tmarchal/glowbooth/internal/logic/capture"
	"github.com/tmarchal/glowbooth/internal/logic/color"
	"github.com/tmarchal/glowbooth/internal/logic/session"
	"github.com/tmarchal/glowbooth/internal/notify"
	"github.com/tmarchal/glowbooth/internal/photos"
)

// Brightness bounds for the light panel.
const (
	MinBrightness = 0.1
	MaxBrightness = 1.0
)

// Snapshot is the consolidated published state consumed by the
// presentation layer.
type Snapshot struct {
	SessionState string    `json:"session_state"`
	LastError    string    `json:"last_error,omitempty"`
	LiveFrame    string    `json:"live_frame,omitempty"`
	Toast        string    `json:"toast,omitempty"`
	Color        color.RGB `json:"color"`
	Rendered     color.RGB `json:"rendered"`
	Saturation   float64   `json:"saturation"`
	Brightness   float64   `json:"brightness"`
}

// LiveFramePath is the opaque live-frame handle published while Running.
const LiveFramePath = "/live/stream"

// Controller is the command surface of the light-camera feature. It owns
// the session machine, capture queue, color engine, toast scheduler, and
// the scoped display brightness, and publishes one consolidated snapshot
// after every change.
//
// Never hold c.mu while calling into the machine: the machine publishes
// back into the controller synchronously.
type Controller struct {
	machine *session.Machine
	queue   *capture.Queue
	engine  *color.Engine
	toasts  *notify.Scheduler
	panel   *display.Scoped

	mu         sync.Mutex
	current    color.RGB
	saturation float64
	brightness float64
	toast      string
	sess       session.Snapshot
	publish    func(Snapshot)
}

// Config carries the collaborators and defaults for a controller.
type Config struct {
	Gateway         gateway.Gateway
	Store           photos.Store
	Display         display.Display
	Clock           clockwork.Clock
	PreferredDevice string
	Brightness      float64 // initial panel brightness, clamped to bounds
}

// New wires the whole feature. publish receives every consolidated
// snapshot; nil is allowed.
func New(cfg Config, publish func(Snapshot)) *Controller {
	c := &Controller{
		engine:     color.NewEngine(),
		panel:      display.NewScoped(cfg.Display),
		current:    color.New(1, 1, 1),
		brightness: clampBrightness(cfg.Brightness),
		publish:    publish,
	}
	c.saturation = c.engine.SaturationFor(c.current)
	c.toasts = notify.NewScheduler(cfg.Clock, c.onToast)
	c.machine = session.New(cfg.Gateway, cfg.PreferredDevice, c.onSession)
	c.queue = capture.NewQueue(c.machine, cfg.Gateway, cfg.Store, c.toasts, cfg.Clock)
	return c
}

func clampBrightness(v float64) float64 {
	if v < MinBrightness {
		return MinBrightness
	}
	if v > MaxBrightness {
		return MaxBrightness
	}
	return v
}

// EnableCapture turns the feature on: ambient brightness is saved and the
// panel driven to the chosen level, then the session machine walks toward
// Running.
func (c *Controller) EnableCapture() {
	debug.Live("Command: enable capture")
	if err := c.panel.Acquire(); err != nil {
		debug.Error(err)
	} else {
		c.mu.Lock()
		level := c.brightness
		c.mu.Unlock()
		if err := c.panel.Set(level); err != nil {
			debug.Error(err)
		}
	}
	c.machine.Enable()
}

// DisableCapture stops streaming. The configured device survives for a
// cheap resume; the panel keeps lighting until teardown.
func (c *Controller) DisableCapture() {
	debug.Live("Command: disable capture")
	c.machine.Disable()
}

// SubmitCapture requests one photo; duplicates within the in-flight window
// are dropped.
func (c *Controller) SubmitCapture() {
	debug.Live("Command: submit capture")
	c.queue.Submit()
}

// SelectColor makes the color current, computing (or recalling) its
// saturation multiplier.
func (c *Controller) SelectColor(col color.RGB) {
	m := c.engine.SaturationFor(col)
	c.mu.Lock()
	c.current = col
	c.saturation = m
	c.mu.Unlock()
	debug.Live("Command: select color %v (multiplier %.2f)", col, m)
	c.publishSnapshot()
}

// SetSaturation manually overrides the multiplier for the active color.
func (c *Controller) SetSaturation(v float64) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()

	stored := c.engine.SetSaturation(cur, v)
	c.mu.Lock()
	c.saturation = stored
	c.mu.Unlock()
	debug.Live("Command: set saturation %.2f", stored)
	c.publishSnapshot()
}

// SetBrightness adjusts the panel level within [0.1, 1.0]; applied
// immediately when the panel is held.
func (c *Controller) SetBrightness(v float64) {
	v = clampBrightness(v)
	c.mu.Lock()
	c.brightness = v
	c.mu.Unlock()

	if c.panel.Held() {
		if err := c.panel.Set(v); err != nil {
			debug.Error(err)
		}
	}
	debug.Live("Command: set brightness %.2f", v)
	c.publishSnapshot()
}

// RetryAfterError re-enters the lifecycle after a persistent failure.
func (c *Controller) RetryAfterError() {
	debug.Live("Command: retry after error")
	c.machine.Retry()
}

// Teardown releases the capture session and restores ambient brightness.
// Called on view dismissal or app backgrounding.
func (c *Controller) Teardown() {
	debug.Live("Command: teardown")
	c.machine.Teardown()
	if err := c.panel.Release(); err != nil {
		debug.Error(err)
	}
}

// Snapshot returns the current consolidated state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Frames exposes the live preview channel, or nil when no session exists.
func (c *Controller) Frames() <-chan []byte {
	return c.machine.Frames()
}

// --- internals ---

// onSession receives machine snapshots; runs with the machine lock held,
// so it must not call back into the machine.
func (c *Controller) onSession(s session.Snapshot) {
	c.mu.Lock()
	c.sess = s
	c.mu.Unlock()
	c.publishSnapshot()
}

func (c *Controller) onToast(text string) {
	c.mu.Lock()
	c.toast = text
	c.mu.Unlock()
	c.publishSnapshot()
}

func (c *Controller) publishSnapshot() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	pub := c.publish
	c.mu.Unlock()
	if pub != nil {
		pub(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionState: c.sess.State.String(),
		Toast:        c.toast,
		Color:        c.current,
		Rendered:     color.Rendered(c.current, c.saturation),
		Saturation:   c.saturation,
		Brightness:   c.brightness,
	}
	if c.sess.Err != nil {
		snap.LastError = c.sess.Err.Kind.String()
	}
	if c.sess.Live {
		snap.LiveFrame = LiveFramePath
	}
	return snap
}
