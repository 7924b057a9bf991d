package main

import (
	"math"
	"testing"
	"time"

	"github.com/tmarchal/glowbooth/internal/config"
	"github.com/tmarchal/glowbooth/internal/hw/gateway"
)

func TestWebPortFlag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"empty means default", "", 8080, false},
		{"custom port", "8980", 8980, false},
		{"not a number", "abc", 0, true},
		{"zero", "0", 0, true},
		{"negative", "-1", 0, true},
		{"too large", "70000", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &webPortFlag{val: 8080, defaultPort: 8080}
			err := f.Set(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Set(%q) should fail", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Set(%q): %v", tt.input, err)
			}
			if f.port() != tt.want {
				t.Errorf("port = %d, want %d", f.port(), tt.want)
			}
		})
	}
}

func TestValidateCLIOverrides(t *testing.T) {
	tests := []struct {
		name       string
		brightness float64
		wantErr    bool
	}{
		{"zero is ignored", 0, false},
		{"valid", 0.5, false},
		{"lower bound", 0.1, false},
		{"upper bound", 1.0, false},
		{"below range", 0.05, true},
		{"above range", 1.5, true},
		{"NaN", math.NaN(), true},
		{"negative", -0.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCLIOverrides(tt.brightness)
			if tt.wantErr && err == nil {
				t.Errorf("brightness %v should be rejected", tt.brightness)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("brightness %v rejected: %v", tt.brightness, err)
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.Defaults.Brightness = 0.8
	cfg.Gateway.PreferredDevice = "/dev/video0"

	applyOverrides(cfg, 0, "")
	if cfg.Defaults.Brightness != 0.8 || cfg.Gateway.PreferredDevice != "/dev/video0" {
		t.Error("zero overrides must leave the config untouched")
	}

	applyOverrides(cfg, 0.3, "/dev/video2")
	if cfg.Defaults.Brightness != 0.3 {
		t.Errorf("brightness = %v, want 0.3", cfg.Defaults.Brightness)
	}
	if cfg.Gateway.PreferredDevice != "/dev/video2" {
		t.Errorf("device = %q, want /dev/video2", cfg.Gateway.PreferredDevice)
	}
}

func TestNewGatewayFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Gateway.Type = "mock"
	gw, err := newGatewayFromConfig(cfg)
	if err != nil {
		t.Fatalf("mock gateway: %v", err)
	}
	mock, ok := gw.(*gateway.MockGateway)
	if !ok {
		t.Fatalf("gateway type = %T, want *gateway.MockGateway", gw)
	}
	if mock.FrameInterval != 100*time.Millisecond {
		t.Errorf("frame interval = %v, want 100ms", mock.FrameInterval)
	}

	cfg.Gateway.Type = "v4l2"
	cfg.Gateway.FrameWidth = 640
	cfg.Gateway.FrameHeight = 480
	if _, err := newGatewayFromConfig(cfg); err != nil {
		t.Fatalf("v4l2 gateway: %v", err)
	}

	cfg.Gateway.Type = "quicktime"
	if _, err := newGatewayFromConfig(cfg); err == nil {
		t.Error("unsupported gateway type should fail")
	}
}
