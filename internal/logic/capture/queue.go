package capture

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tmarchal/glowbooth/internal/debug"
	"github.com/tmarchal/glowbooth/internal/hw/gateway"
	"github.com/tmarchal/glowbooth/internal/logic/session"
	"github.com/tmarchal/glowbooth/internal/notify"
	"github.com/tmarchal/glowbooth/internal/photos"
)

// GraceDelay is how long a capture waits for a just-resumed stream to
// stabilize before giving up with DeviceNotReady.
const GraceDelay = 500 * time.Millisecond

// Queue serializes photo captures: at most one request is ever in flight,
// and a Submit arriving while one is active is dropped, not queued, so a
// tap and a hardware-button event landing together produce one photo, not
// two.
type Queue struct {
	machine *session.Machine
	gw      gateway.Gateway
	store   photos.Store
	toasts  *notify.Scheduler
	clock   clockwork.Clock

	mu       sync.Mutex
	inFlight bool
	nextID   uint64
}

func NewQueue(
	machine *session.Machine,
	gw gateway.Gateway,
	store photos.Store,
	toasts *notify.Scheduler,
	clock clockwork.Clock,
) *Queue {
	return &Queue{
		machine: machine,
		gw:      gw,
		store:   store,
		toasts:  toasts,
		clock:   clock,
	}
}

// Submit requests one photo. Safe to call repeatedly; returns false when a
// capture is already in flight (the call is ignored). The request itself
// runs on the background lane and reports its outcome via a toast.
func (q *Queue) Submit() bool {
	q.mu.Lock()
	if q.inFlight {
		q.mu.Unlock()
		debug.Verbose("Capture: submit ignored, request in flight")
		return false
	}
	q.inFlight = true
	q.nextID++
	id := q.nextID
	q.mu.Unlock()

	go q.run(id)
	return true
}

// InFlight reports whether a request is currently active.
func (q *Queue) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

func (q *Queue) run(id uint64) {
	defer func() {
		q.mu.Lock()
		q.inFlight = false
		q.mu.Unlock()
	}()

	if !q.machine.Ready() {
		// One-shot resume, then a bounded grace wait for the stream to
		// stabilize.
		debug.Verbose("Capture #%d: session not running, resuming with %v grace", id, GraceDelay)
		q.machine.Enable()
		q.clock.Sleep(GraceDelay)
		if !q.machine.Ready() {
			debug.Capture(id, session.DeviceNotReady.String())
			q.toasts.Show("Camera is not ready")
			return
		}
	}

	// Single-use completion token; the gateway resolves it exactly once.
	done := make(chan gateway.CaptureResult, 1)
	q.gw.Capture(q.machine.Output(), func(r gateway.CaptureResult) {
		done <- r
	})
	res := <-done

	if res.Err != nil {
		debug.Capture(id, session.CaptureFailed.String())
		debug.Error(res.Err)
		q.toasts.Show("Capture failed")
		return
	}

	if q.store.Authorization() == photos.Denied {
		// Accepted quiet no-op: the photo is captured but not saved when
		// library access is denied. No toast on this path.
		debug.Capture(id, "library denied, photo not saved")
		return
	}

	if _, err := q.store.Save(res.Image); err != nil {
		debug.Capture(id, session.PersistenceFailed.String())
		debug.Error(err)
		q.toasts.Show("Saving photo failed")
		return
	}

	debug.Capture(id, "saved")
	q.toasts.Show("Photo saved")
}
