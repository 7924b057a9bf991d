package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GatewayConfig describes how to reach the capture device.
// Type selects a concrete implementation (e.g., "v4l2" or "mock").
type GatewayConfig struct {
	Type            string `yaml:"type"`             // "v4l2" or "mock"
	PreferredDevice string `yaml:"preferred_device"` // e.g. /dev/video0; empty = any
	FrameWidth      int    `yaml:"frame_width"`      // capture width in pixels
	FrameHeight     int    `yaml:"frame_height"`     // capture height in pixels
}

// TriggerConfig is the optional hardware shutter button.
type TriggerConfig struct {
	Enabled bool `yaml:"enabled"`
	Pin     int  `yaml:"pin"` // BCM pin, button wired to ground
}

// DisplayConfig selects the brightness driver for the light panel.
type DisplayConfig struct {
	Mock         bool   `yaml:"mock"`          // true = in-memory (dev/test), false = sysfs backlight
	BacklightDir string `yaml:"backlight_dir"` // empty = autodetect under /sys/class/backlight
}

// PhotosConfig is where captured images land.
type PhotosConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	Brightness float64 `yaml:"brightness"`  // initial panel brightness (0.1-1.0)
	DebugLevel int     `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool    `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Trigger  TriggerConfig  `yaml:"trigger"`
	Display  DisplayConfig  `yaml:"display"`
	Photos   PhotosConfig   `yaml:"photos"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	switch cfg.Gateway.Type {
	case "v4l2", "mock":
	case "":
		return nil, fmt.Errorf("gateway.type is required")
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", cfg.Gateway.Type)
	}
	if cfg.Gateway.FrameWidth <= 0 {
		cfg.Gateway.FrameWidth = 640
	}
	if cfg.Gateway.FrameHeight <= 0 {
		cfg.Gateway.FrameHeight = 480
	}

	if cfg.Trigger.Enabled && cfg.Trigger.Pin <= 0 {
		return nil, fmt.Errorf("trigger.pin is required when trigger is enabled")
	}

	if cfg.Photos.Dir == "" {
		cfg.Photos.Dir = "photos"
	}

	if cfg.Defaults.Brightness == 0 {
		cfg.Defaults.Brightness = 0.8 // reasonable default
	}
	if cfg.Defaults.Brightness < 0.1 || cfg.Defaults.Brightness > 1.0 {
		return nil, fmt.Errorf("brightness must be between 0.1 and 1.0, got %.2f", cfg.Defaults.Brightness)
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}

	return &cfg, nil
}
