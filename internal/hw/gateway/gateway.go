package gateway

import "errors"

// ErrNoDevice is returned by AcquireDevice when no capture device of the
// required kind is present at all.
var ErrNoDevice = errors.New("no capture device available")

// Authorization is the camera permission state reported by the platform.
type Authorization int

const (
	Undetermined Authorization = iota
	Granted
	Denied
)

func (a Authorization) String() string {
	switch a {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "undetermined"
	}
}

// DeviceHandle identifies one acquired capture device. It is owned
// exclusively by the session state machine and never shared.
type DeviceHandle interface {
	Name() string
}

// Session is one opened binding between a device input and the gateway.
// Frames returns the live preview channel; it is stable across stop/resume
// of the same session.
type Session interface {
	Frames() <-chan []byte
}

// OutputPort is the still-image output channel attached to a session.
// Opaque to everything except the gateway itself.
type OutputPort interface{}

// CaptureResult is delivered exactly once per Capture call.
type CaptureResult struct {
	Image []byte
	Err   error
}

// Gateway is the abstract boundary to the platform camera stack.
// This allows plugging in a real V4L2 implementation or a mock for
// development on machines without a camera.
type Gateway interface {
	// QueryAuthorization returns the current permission state without
	// prompting.
	QueryAuthorization() Authorization

	// RequestAuthorization prompts for permission and resolves the callback
	// exactly once with Granted or Denied. The callback may run on another
	// goroutine.
	RequestAuthorization(onResult func(Authorization))

	// AcquireDevice picks a device, preferring the named one and falling
	// back to any available device of the required kind. Returns
	// ErrNoDevice when nothing is available.
	AcquireDevice(preferred string) (DeviceHandle, error)

	// ReleaseDevice gives the device back. Must be called exactly once per
	// successful AcquireDevice.
	ReleaseDevice(DeviceHandle)

	// OpenSession opens the device and wires its input.
	OpenSession(DeviceHandle) (Session, error)

	// AttachOutput attaches the still-image output channel.
	AttachOutput(Session) (OutputPort, error)

	// DetachOutput drops the output channel, e.g. while the session is
	// stopped.
	DetachOutput(Session)

	// Start begins streaming. Potentially slow; callers run it off the
	// interactive lane.
	Start(Session)

	// Stop halts streaming. Fire-and-forget from the caller's perspective.
	Stop(Session)

	// CloseSession releases the session's input wiring.
	CloseSession(Session)

	// Capture produces one still image from the output port and resolves
	// the callback exactly once.
	Capture(OutputPort, func(CaptureResult))
}
