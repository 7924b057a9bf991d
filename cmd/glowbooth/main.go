package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tmarchal/glowbooth/internal/config"
	"github.com/tmarchal/glowbooth/internal/debug"
	"github.com/tmarchal/glowbooth/internal/hw/display"
	"github.com/tmarchal/glowbooth/internal/hw/gateway"
	"github.com/tmarchal/glowbooth/internal/hw/gpio"
	"github.com/tmarchal/glowbooth/internal/hw/trigger"
	"github.com/tmarchal/glowbooth/internal/logic/booth"
	"github.com/tmarchal/glowbooth/internal/photos"
	"github.com/tmarchal/glowbooth/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{val: 8080, defaultPort: 8080}
	flag.Var(webPort, "web", "web server port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	brightness := flag.Float64("brightness", 0, "override initial panel brightness (0.1-1.0)")
	device := flag.String("device", "", "override preferred capture device (e.g. /dev/video2)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	if err := validateCLIOverrides(*brightness); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *brightness, *device)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Gateway type", cfg.Gateway.Type)
	debug.Value("Preferred device", cfg.Gateway.PreferredDevice)

	// Capture gateway
	debug.Step(1, "Initializing capture gateway")
	gw, err := newGatewayFromConfig(cfg)
	if err != nil {
		log.Fatalf("init gateway failed: %v", err)
	}

	// Display (light panel brightness)
	debug.Step(2, "Initializing display driver")
	disp, err := display.NewDisplay(cfg.Display.Mock, cfg.Display.BacklightDir)
	if err != nil {
		log.Fatalf("init display failed: %v", err)
	}

	// Photo library
	debug.Step(3, "Initializing photo store")
	store := photos.NewDiskStore(cfg.Photos.Dir)
	debug.Value("Photo dir", cfg.Photos.Dir)

	// Status broadcaster; mirror debug output to SSE clients
	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

	// Feature controller
	debug.Step(4, "Creating booth controller")
	controller := booth.New(booth.Config{
		Gateway:         gw,
		Store:           store,
		Display:         disp,
		Clock:           clockwork.NewRealClock(),
		PreferredDevice: cfg.Gateway.PreferredDevice,
		Brightness:      cfg.Defaults.Brightness,
	}, broadcaster.BroadcastState)

	// Optional hardware shutter button
	if cfg.Trigger.Enabled {
		debug.Step(5, "Initializing shutter button")
		gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			log.Fatalf("init GPIO failed: %v", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
		button, err := trigger.NewButton(gpioDriver, cfg.Trigger.Pin, clockwork.NewRealClock(), controller.SubmitCapture)
		if err != nil {
			log.Fatalf("init trigger failed: %v", err)
		}
		go button.Watch(ctx)
	}

	webAddr := fmt.Sprintf(":%d", webPort.port())
	srv := web.NewServer(webAddr, broadcaster, controller)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("web server: %v", err)
	}

	// Release the device and restore ambient brightness on exit.
	debug.Section("Teardown")
	controller.Teardown()
}

// newGatewayFromConfig selects a gateway implementation based on configuration.
func newGatewayFromConfig(cfg *config.Config) (gateway.Gateway, error) {
	switch cfg.Gateway.Type {
	case "v4l2":
		return gateway.NewV4L2Gateway(cfg.Gateway.FrameWidth, cfg.Gateway.FrameHeight), nil
	case "mock":
		mock := gateway.NewMockGateway()
		mock.FrameInterval = 100 * time.Millisecond // 10 fps preview
		return mock, nil
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", cfg.Gateway.Type)
	}
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(brightness float64) error {
	if brightness != 0 {
		if math.IsNaN(brightness) || math.IsInf(brightness, 0) || brightness < 0.1 || brightness > 1.0 {
			return fmt.Errorf("brightness must be between 0.1 and 1.0, got %g", brightness)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, brightness float64, device string) {
	if brightness > 0 {
		cfg.Defaults.Brightness = brightness
	}
	if device != "" {
		cfg.Gateway.PreferredDevice = device
	}
}

// webPortFlag implements flag.Value for -web: -web= or no flag → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
