package booth

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tmarchal/glowbooth/internal/hw/display"
	"github.com/tmarchal/glowbooth/internal/hw/gateway"
	"github.com/tmarchal/glowbooth/internal/logic/color"
	"github.com/tmarchal/glowbooth/internal/photos"
)

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) publish(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) last() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return Snapshot{}, false
	}
	return r.snaps[len(r.snaps)-1], true
}

type fixture struct {
	controller *Controller
	panel      *display.MockDisplay
	rec        *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		panel: display.NewMockDisplay(),
		rec:   &recorder{},
	}
	f.panel.SetBrightness(0.4) // ambient level before the feature runs
	f.controller = New(Config{
		Gateway:    gateway.NewMockGateway(),
		Store:      photos.NewDiskStore(t.TempDir()),
		Display:    f.panel,
		Clock:      clockwork.NewFakeClock(),
		Brightness: 0.9,
	}, f.rec.publish)
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSelectColorAppliesPolicy(t *testing.T) {
	f := newFixture(t)

	// Weakly saturated chromatic color: the policy boosts it.
	f.controller.SelectColor(color.RGB{R: 0.8, G: 0.64, B: 0.64})

	snap := f.controller.Snapshot()
	if snap.Saturation != 1.5 {
		t.Errorf("saturation = %v, want 1.5", snap.Saturation)
	}
	if snap.Rendered == snap.Color {
		t.Error("boosted chromatic color should render differently from the source")
	}

	f.controller.SelectColor(color.RGB{R: 1, G: 1, B: 1})
	snap = f.controller.Snapshot()
	if snap.Saturation != 1.0 {
		t.Errorf("saturation for white = %v, want 1.0", snap.Saturation)
	}
	if snap.Rendered != snap.Color {
		t.Error("achromatic color must render unchanged")
	}
}

func TestSaturationOverrideSurvivesReselection(t *testing.T) {
	f := newFixture(t)
	colorA := color.RGB{R: 0.8, G: 0.64, B: 0.64}
	colorB := color.RGB{R: 0.2, G: 0.3, B: 0.9}

	f.controller.SelectColor(colorA)
	f.controller.SetSaturation(0.6)
	f.controller.SelectColor(colorB)
	f.controller.SelectColor(colorA)

	if snap := f.controller.Snapshot(); snap.Saturation != 0.6 {
		t.Errorf("saturation after reselecting = %v, want remembered 0.6", snap.Saturation)
	}
}

func TestEnableLightsPanelAndTeardownRestores(t *testing.T) {
	f := newFixture(t)

	f.controller.EnableCapture()
	if got, _ := f.panel.Brightness(); got != 0.9 {
		t.Errorf("panel brightness = %v, want 0.9 while enabled", got)
	}
	waitFor(t, "session running", func() bool {
		return f.controller.Snapshot().SessionState == "running"
	})
	if snap := f.controller.Snapshot(); snap.LiveFrame != LiveFramePath {
		t.Errorf("live frame = %q, want %q while running", snap.LiveFrame, LiveFramePath)
	}

	f.controller.Teardown()
	if got, _ := f.panel.Brightness(); got != 0.4 {
		t.Errorf("panel brightness = %v, want ambient 0.4 restored", got)
	}
	waitFor(t, "session uninitialized", func() bool {
		return f.controller.Snapshot().SessionState == "uninitialized"
	})
	if snap := f.controller.Snapshot(); snap.LiveFrame != "" {
		t.Error("live frame handle must clear on teardown")
	}
}

func TestSetBrightnessClampsAndTracksPanel(t *testing.T) {
	f := newFixture(t)

	// Not enabled yet: the value is stored but the panel stays ambient.
	f.controller.SetBrightness(0.05)
	if snap := f.controller.Snapshot(); snap.Brightness != MinBrightness {
		t.Errorf("brightness = %v, want clamped %v", snap.Brightness, MinBrightness)
	}
	if got, _ := f.panel.Brightness(); got != 0.4 {
		t.Errorf("panel = %v, want untouched ambient 0.4", got)
	}

	f.controller.EnableCapture()
	f.controller.SetBrightness(0.7)
	if got, _ := f.panel.Brightness(); got != 0.7 {
		t.Errorf("panel = %v, want 0.7 applied live", got)
	}

	f.controller.Teardown()
}

func TestDisableKeepsPanelLit(t *testing.T) {
	f := newFixture(t)

	f.controller.EnableCapture()
	waitFor(t, "session running", func() bool {
		return f.controller.Snapshot().SessionState == "running"
	})

	f.controller.DisableCapture()
	waitFor(t, "session stopped", func() bool {
		return f.controller.Snapshot().SessionState == "stopped"
	})
	if got, _ := f.panel.Brightness(); got != 0.9 {
		t.Errorf("panel = %v, want still lit at 0.9 while merely stopped", got)
	}

	f.controller.Teardown()
}

func TestPublishCarriesSessionProgress(t *testing.T) {
	f := newFixture(t)

	f.controller.EnableCapture()
	waitFor(t, "running snapshot published", func() bool {
		snap, ok := f.rec.last()
		return ok && snap.SessionState == "running"
	})

	snap, _ := f.rec.last()
	if snap.Brightness != 0.9 {
		t.Errorf("published brightness = %v, want 0.9", snap.Brightness)
	}
	if snap.Color != color.New(1, 1, 1) {
		t.Errorf("published color = %v, want initial white", snap.Color)
	}

	f.controller.Teardown()
}
