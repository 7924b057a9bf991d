package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/tmarchal/glowbooth/internal/debug"
)

// captureTimeout bounds how long a still capture waits for the next frame
// from a running stream.
const captureTimeout = 2 * time.Second

// V4L2Gateway is the real implementation for Linux using go4vl.
// Devices are the /dev/video* nodes; authorization maps to whether the
// process can actually open one of them.
type V4L2Gateway struct {
	width  uint32
	height uint32

	mu     sync.Mutex
	probed bool
	auth   Authorization
}

// NewV4L2Gateway creates a gateway capturing MJPEG at the given frame size.
func NewV4L2Gateway(width, height int) *V4L2Gateway {
	return &V4L2Gateway{
		width:  uint32(width),
		height: uint32(height),
	}
}

func videoNodes() []string {
	nodes, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil
	}
	sort.Strings(nodes)
	return nodes
}

func openable(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// probe checks device-node access and caches the result as the
// authorization state.
func (g *V4L2Gateway) probe() Authorization {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.probed = true
	g.auth = Denied
	for _, node := range videoNodes() {
		if openable(node) {
			g.auth = Granted
			break
		}
	}
	debug.Gateway("probe", g.auth)
	return g.auth
}

func (g *V4L2Gateway) QueryAuthorization() Authorization {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.probed {
		return Undetermined
	}
	return g.auth
}

func (g *V4L2Gateway) RequestAuthorization(onResult func(Authorization)) {
	go func() {
		onResult(g.probe())
	}()
}

type v4l2Device struct{ path string }

func (d *v4l2Device) Name() string { return d.path }

func (g *V4L2Gateway) AcquireDevice(preferred string) (DeviceHandle, error) {
	debug.Gateway("AcquireDevice", preferred)

	candidates := videoNodes()
	if preferred != "" {
		candidates = append([]string{preferred}, candidates...)
	}
	for _, path := range candidates {
		if openable(path) {
			debug.Verbose("Gateway: acquired device %s", path)
			return &v4l2Device{path: path}, nil
		}
	}
	return nil, ErrNoDevice
}

func (g *V4L2Gateway) ReleaseDevice(h DeviceHandle) {
	debug.Gateway("ReleaseDevice", h.Name())
}

type v4l2Session struct {
	dev    *device.Device
	frames chan []byte
	snaps  chan chan CaptureResult

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (s *v4l2Session) Frames() <-chan []byte { return s.frames }

func (g *V4L2Gateway) OpenSession(h DeviceHandle) (Session, error) {
	debug.Gateway("OpenSession", h.Name())

	dev, err := device.Open(
		h.Name(),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtMJPEG,
			Width:       g.width,
			Height:      g.height,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", h.Name(), err)
	}

	return &v4l2Session{
		dev:    dev,
		frames: make(chan []byte, 4),
		snaps:  make(chan chan CaptureResult, 1),
	}, nil
}

type v4l2Output struct{ sess *v4l2Session }

func (g *V4L2Gateway) AttachOutput(s Session) (OutputPort, error) {
	debug.Gateway("AttachOutput", nil)
	return &v4l2Output{sess: s.(*v4l2Session)}, nil
}

func (g *V4L2Gateway) DetachOutput(s Session) {
	debug.Gateway("DetachOutput", nil)
}

func (g *V4L2Gateway) Start(s Session) {
	sess := s.(*v4l2Session)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cancel != nil {
		return // already streaming
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := sess.dev.Start(ctx); err != nil {
		cancel()
		debug.Error(fmt.Errorf("gateway: start stream: %w", err))
		return
	}
	sess.cancel = cancel
	debug.Gateway("Start", sess.dev.Name())

	go sess.relay(ctx)
}

// relay fans incoming frames to the preview channel and to any pending
// still-capture request. Preview frames are dropped when the consumer is
// slow; a pending capture always wins.
func (s *v4l2Session) relay(ctx context.Context) {
	out := s.dev.GetOutput()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-out:
			if !ok {
				return
			}
			buf := make([]byte, len(frame))
			copy(buf, frame)

			select {
			case req := <-s.snaps:
				req <- CaptureResult{Image: buf}
			default:
			}

			select {
			case s.frames <- buf:
			default:
			}
		}
	}
}

func (g *V4L2Gateway) Stop(s Session) {
	sess := s.(*v4l2Session)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cancel == nil {
		return
	}
	sess.cancel()
	sess.cancel = nil
	if err := sess.dev.Stop(); err != nil {
		debug.Error(fmt.Errorf("gateway: stop stream: %w", err))
	}
	debug.Gateway("Stop", sess.dev.Name())
}

func (g *V4L2Gateway) CloseSession(s Session) {
	sess := s.(*v4l2Session)
	g.Stop(s)
	if err := sess.dev.Close(); err != nil {
		debug.Error(fmt.Errorf("gateway: close device: %w", err))
	}
	debug.Gateway("CloseSession", sess.dev.Name())
}

func (g *V4L2Gateway) Capture(port OutputPort, onComplete func(CaptureResult)) {
	out, ok := port.(*v4l2Output)
	if !ok {
		go onComplete(CaptureResult{Err: errors.New("gateway: invalid output port")})
		return
	}

	req := make(chan CaptureResult, 1)
	select {
	case out.sess.snaps <- req:
	default:
		go onComplete(CaptureResult{Err: errors.New("gateway: capture already pending")})
		return
	}

	go func() {
		select {
		case res := <-req:
			onComplete(res)
		case <-time.After(captureTimeout):
			onComplete(CaptureResult{Err: errors.New("gateway: no frame within capture timeout")})
		}
	}()
}
