package gateway

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"github.com/tmarchal/glowbooth/internal/debug"
)

// MockGateway is an in-memory gateway for development on machines without a
// camera, and for coarse-grained tests. Authorization, device list, and
// failure injection are all scriptable.
type MockGateway struct {
	mu sync.Mutex

	auth         Authorization
	promptResult Authorization // what RequestAuthorization resolves to

	devices []string

	FailOpen    bool
	FailAttach  bool
	FailCapture bool

	// FrameInterval > 0 makes Start emit synthetic frames at that rate
	// until Stop. Zero means no frames (tests drive captures directly).
	FrameInterval time.Duration

	frame []byte // synthetic JPEG, lazily built
}

// NewMockGateway creates a mock with one device and permission already
// granted, matching the common development setup.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		auth:         Granted,
		promptResult: Granted,
		devices:      []string{"mock-cam-0"},
	}
}

// SetAuthorization scripts the current permission state.
func (m *MockGateway) SetAuthorization(a Authorization) {
	m.mu.Lock()
	m.auth = a
	m.mu.Unlock()
}

// SetPromptResult scripts what a permission prompt resolves to.
func (m *MockGateway) SetPromptResult(a Authorization) {
	m.mu.Lock()
	m.promptResult = a
	m.mu.Unlock()
}

// SetDevices scripts the available device list.
func (m *MockGateway) SetDevices(names ...string) {
	m.mu.Lock()
	m.devices = names
	m.mu.Unlock()
}

func (m *MockGateway) QueryAuthorization() Authorization {
	m.mu.Lock()
	defer m.mu.Unlock()
	debug.Gateway("QueryAuthorization", m.auth)
	return m.auth
}

func (m *MockGateway) RequestAuthorization(onResult func(Authorization)) {
	m.mu.Lock()
	m.auth = m.promptResult
	result := m.auth
	m.mu.Unlock()
	debug.Gateway("RequestAuthorization", result)
	go onResult(result)
}

type mockDevice struct{ name string }

func (d *mockDevice) Name() string { return d.name }

func (m *MockGateway) AcquireDevice(preferred string) (DeviceHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	debug.Gateway("AcquireDevice", preferred)

	if len(m.devices) == 0 {
		return nil, ErrNoDevice
	}
	for _, name := range m.devices {
		if name == preferred {
			return &mockDevice{name: name}, nil
		}
	}
	// Preferred unavailable: fall back to the first device.
	return &mockDevice{name: m.devices[0]}, nil
}

func (m *MockGateway) ReleaseDevice(h DeviceHandle) {
	debug.Gateway("ReleaseDevice", h.Name())
}

type mockSession struct {
	gw     *MockGateway
	frames chan []byte

	mu   sync.Mutex
	stop chan struct{}
}

func (s *mockSession) Frames() <-chan []byte { return s.frames }

func (m *MockGateway) OpenSession(h DeviceHandle) (Session, error) {
	debug.Gateway("OpenSession", h.Name())
	if m.FailOpen {
		return nil, errors.New("mock: input attach failed")
	}
	return &mockSession{
		gw:     m,
		frames: make(chan []byte, 4),
	}, nil
}

type mockOutput struct{ sess *mockSession }

func (m *MockGateway) AttachOutput(s Session) (OutputPort, error) {
	debug.Gateway("AttachOutput", nil)
	if m.FailAttach {
		return nil, errors.New("mock: output attach failed")
	}
	return &mockOutput{sess: s.(*mockSession)}, nil
}

func (m *MockGateway) DetachOutput(s Session) {
	debug.Gateway("DetachOutput", nil)
}

func (m *MockGateway) Start(s Session) {
	debug.Gateway("Start", nil)
	sess := s.(*mockSession)
	interval := m.FrameInterval
	if interval <= 0 {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.stop != nil {
		return // already streaming
	}
	stop := make(chan struct{})
	sess.stop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case sess.frames <- m.syntheticFrame():
				default: // preview consumer is slow, drop the frame
				}
			case <-stop:
				return
			}
		}
	}()
}

func (m *MockGateway) Stop(s Session) {
	debug.Gateway("Stop", nil)
	sess := s.(*mockSession)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.stop != nil {
		close(sess.stop)
		sess.stop = nil
	}
}

func (m *MockGateway) CloseSession(s Session) {
	debug.Gateway("CloseSession", nil)
	m.Stop(s)
}

func (m *MockGateway) Capture(port OutputPort, onComplete func(CaptureResult)) {
	debug.Gateway("Capture", nil)
	if m.FailCapture {
		go onComplete(CaptureResult{Err: errors.New("mock: capture failed")})
		return
	}
	img := m.syntheticFrame()
	go onComplete(CaptureResult{Image: img})
}

// syntheticFrame builds (once) a small neutral-gray JPEG used both as
// preview frame and capture result.
func (m *MockGateway) syntheticFrame() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame != nil {
		return m.frame
	}
	img := image.NewRGBA(image.Rect(0, 0, 160, 120))
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	for y := 0; y < 120; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, gray)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil
	}
	m.frame = buf.Bytes()
	return m.frame
}
