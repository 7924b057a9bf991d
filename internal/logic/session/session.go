package session

import (
	"fmt"
	"sync"

	"github.com/tmarchal/glowbooth/internal/debug"
	"github.com/tmarchal/glowbooth/internal/hw/gateway"
)

// State is the lifecycle state of the capture session.
type State int

const (
	Uninitialized State = iota
	PermissionPending
	Configuring
	Running
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case PermissionPending:
		return "permission-pending"
	case Configuring:
		return "configuring"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Kind tags an error with its failure class.
type Kind int

const (
	PermissionDenied Kind = iota
	DeviceUnavailable
	ConfigurationFailed
	DeviceNotReady
	CaptureFailed
	PersistenceFailed
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission-denied"
	case DeviceUnavailable:
		return "device-unavailable"
	case ConfigurationFailed:
		return "configuration-failed"
	case DeviceNotReady:
		return "device-not-ready"
	case CaptureFailed:
		return "capture-failed"
	case PersistenceFailed:
		return "persistence-failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a kind-tagged session error.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Snapshot is the published view of the session, emitted after every
// transition.
type Snapshot struct {
	State  State
	Err    *Error
	Device string // acquired device name, empty when none
	Live   bool   // live frame handle present (Running only)
}

// Machine owns the lifecycle of one capture session against the gateway.
// The device handle and output channel are owned exclusively here; all
// mutations funnel through this one owner, so no two configuration or
// teardown operations ever run concurrently against the same session.
//
// Commands run on the caller's goroutine and publish user-visible state
// synchronously; slow gateway work (acquire, start, stop) runs on a
// background goroutine and re-checks intent before landing its result, so
// a disable issued during a pending enable never yields a stale Running.
type Machine struct {
	mu        sync.Mutex
	gw        gateway.Gateway
	preferred string
	publish   func(Snapshot)

	state   State
	intent  bool // user wants the stream on
	device  gateway.DeviceHandle
	sess    gateway.Session
	output  gateway.OutputPort
	lastErr *Error
}

// New creates a machine in Uninitialized. publish is invoked synchronously
// with every transition and must not call back into the machine; nil is
// allowed.
func New(gw gateway.Gateway, preferredDevice string, publish func(Snapshot)) *Machine {
	return &Machine{
		gw:        gw,
		preferred: preferredDevice,
		publish:   publish,
	}
}

// Enable drives toward Running: from Uninitialized it walks the
// permission/configure path, from Stopped it resumes the existing device,
// and while already Running it is a no-op that republishes the same state.
// A session in Failed stays failed until Retry.
func (m *Machine) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.intent = true
	switch m.state {
	case Running:
		debug.Verbose("Session: enable while running, republishing")
		m.publishLocked()
	case Stopped:
		m.resumeLocked()
	case Uninitialized:
		m.toLocked(PermissionPending)
		m.checkAuthorizationLocked()
	case PermissionPending, Configuring:
		debug.Verbose("Session: enable while %s, already in progress", m.state)
	case Failed:
		debug.Verbose("Session: enable while failed, awaiting explicit retry")
	}
}

// Disable flips the user-visible state to Stopped before the device stream
// is told to stop; the gateway stop itself is fire-and-forget. A disable
// during a pending enable does not abort it, the pending work lands in
// Stopped via the intent check.
func (m *Machine) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.intent = false
	if m.state != Running {
		return
	}
	sess := m.sess
	m.gw.DetachOutput(sess)
	m.output = nil
	m.toLocked(Stopped)
	go m.gw.Stop(sess)
}

// Teardown releases the device handle and output channel unconditionally,
// even mid-configuration, and returns to Uninitialized. Called on view
// dismissal or app backgrounding.
func (m *Machine) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.intent = false
	m.releaseLocked()
	m.lastErr = nil
	m.toLocked(Uninitialized)
}

// Retry re-enters the lifecycle from Failed: back to Uninitialized, then a
// fresh enable including the authorization query.
func (m *Machine) Retry() {
	m.mu.Lock()
	if m.state != Failed {
		m.mu.Unlock()
		return
	}
	m.lastErr = nil
	m.releaseLocked()
	m.toLocked(Uninitialized)
	m.mu.Unlock()

	m.Enable()
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the kind-tagged error of the last failure, if any.
func (m *Machine) LastError() *Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Ready reports whether a capture can be issued right now: streaming with
// the output channel attached.
func (m *Machine) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Running && m.output != nil
}

// Output returns the attached output port, or nil.
func (m *Machine) Output() gateway.OutputPort {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.output
}

// Device returns the acquired device handle, or nil.
func (m *Machine) Device() gateway.DeviceHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device
}

// Frames returns the live preview channel, or nil when no session exists.
func (m *Machine) Frames() <-chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	return m.sess.Frames()
}

// --- internals (all *Locked methods require m.mu held) ---

func (m *Machine) toLocked(to State) {
	debug.State(m.state.String(), to.String())
	m.state = to
	m.publishLocked()
}

func (m *Machine) publishLocked() {
	if m.publish == nil {
		return
	}
	snap := Snapshot{
		State: m.state,
		Err:   m.lastErr,
		Live:  m.state == Running && m.sess != nil,
	}
	if m.device != nil {
		snap.Device = m.device.Name()
	}
	m.publish(snap)
}

func (m *Machine) failLocked(kind Kind, cause error) {
	m.lastErr = &Error{Kind: kind, Cause: cause}
	debug.Error(m.lastErr)
	m.releaseLocked()
	m.toLocked(Failed)
}

// releaseLocked drops session and device exactly once; safe to call from
// any state.
func (m *Machine) releaseLocked() {
	if m.sess != nil {
		m.gw.Stop(m.sess)
		m.gw.DetachOutput(m.sess)
		m.gw.CloseSession(m.sess)
		m.sess = nil
	}
	m.output = nil
	if m.device != nil {
		m.gw.ReleaseDevice(m.device)
		m.device = nil
	}
}

func (m *Machine) checkAuthorizationLocked() {
	switch m.gw.QueryAuthorization() {
	case gateway.Granted:
		m.beginConfigureLocked()
	case gateway.Denied:
		m.failLocked(PermissionDenied, fmt.Errorf("camera access denied"))
	default:
		debug.Verbose("Session: authorization undetermined, prompting")
		m.gw.RequestAuthorization(m.onAuthorizationResolved)
	}
}

// onAuthorizationResolved is the asynchronous prompt callback.
func (m *Machine) onAuthorizationResolved(a gateway.Authorization) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != PermissionPending {
		return // torn down while the prompt was up
	}
	if a != gateway.Granted {
		m.failLocked(PermissionDenied, fmt.Errorf("camera access %s", a))
		return
	}
	if !m.intent {
		// User disabled while the prompt was up; nothing acquired yet.
		m.toLocked(Uninitialized)
		return
	}
	m.beginConfigureLocked()
}

func (m *Machine) beginConfigureLocked() {
	m.toLocked(Configuring)
	go m.configure()
}

// configure runs on the background lane: acquire a device (preferred, then
// any), wire input and output, start streaming. Its result is applied only
// if the machine is still Configuring, and intent is re-checked before
// publishing Running.
func (m *Machine) configure() {
	dev, err := m.gw.AcquireDevice(m.preferred)
	if err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state == Configuring {
			m.failLocked(DeviceUnavailable, err)
		}
		return
	}

	sess, err := m.gw.OpenSession(dev)
	if err != nil {
		m.gw.ReleaseDevice(dev)
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state == Configuring {
			m.failLocked(ConfigurationFailed, fmt.Errorf("attach input: %w", err))
		}
		return
	}

	out, err := m.gw.AttachOutput(sess)
	if err != nil {
		m.gw.CloseSession(sess)
		m.gw.ReleaseDevice(dev)
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state == Configuring {
			m.failLocked(ConfigurationFailed, fmt.Errorf("attach output: %w", err))
		}
		return
	}

	m.gw.Start(sess)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Configuring {
		// Torn down while we were configuring; the machine never owned
		// these resources, release them here.
		m.gw.Stop(sess)
		m.gw.DetachOutput(sess)
		m.gw.CloseSession(sess)
		m.gw.ReleaseDevice(dev)
		return
	}

	m.device = dev
	m.sess = sess

	if !m.intent {
		// Disabled mid-configure: keep the configured device for a cheap
		// resume, but do not publish a stale Running.
		m.gw.Stop(sess)
		m.gw.DetachOutput(sess)
		m.toLocked(Stopped)
		return
	}

	m.output = out
	m.toLocked(Running)
}

// resumeLocked handles Stopped -> Running: no permission or acquisition
// steps, just re-attach the output and restart the stream. The visible
// state flips first; the gateway work completes in the background.
func (m *Machine) resumeLocked() {
	sess := m.sess
	m.toLocked(Running)

	go func() {
		out, err := m.gw.AttachOutput(sess)
		if err != nil {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.state == Running && m.sess == sess {
				m.failLocked(ConfigurationFailed, fmt.Errorf("re-attach output: %w", err))
			}
			return
		}
		m.gw.Start(sess)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state == Running && m.sess == sess {
			m.output = out
			m.publishLocked()
		} else {
			// Disabled or torn down while re-attaching; halt the stream we
			// just started so the device never streams against user intent.
			m.gw.Stop(sess)
			m.gw.DetachOutput(sess)
		}
	}()
}
