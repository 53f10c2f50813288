// Package config holds the host tool settings
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/james-see/accordionmidi/pkg/sysex"
)

const (
	DefaultAddr       = ":8080"
	DefaultChunkGapMs = 20
)

// DeviceConfig holds the ports of one keyboard
type DeviceConfig struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	InPort  string `json:"in_port"`  // MIDI input port name (substring match)
	OutPort string `json:"out_port"` // MIDI output port name (substring match)
	// TriggerChannel is the channel whose notes press buttons when emulating
	TriggerChannel uint8 `json:"trigger_channel"`
}

// NewDeviceConfig creates a new device config with a generated ID
func NewDeviceConfig() DeviceConfig {
	return DeviceConfig{
		ID:             uuid.New().String(),
		Name:           "Accordion",
		InPort:         "Accordion",
		OutPort:        "Accordion",
		TriggerChannel: 15,
	}
}

// Config holds application configuration
type Config struct {
	Devices         []DeviceConfig `json:"devices"`
	CurrentDeviceID string         `json:"current_device_id"`
	ChunkSize       int            `json:"chunk_size"`
	ChunkGapMs      int            `json:"chunk_gap_ms"`
	BankPath        string         `json:"bank_path,omitempty"` // bank loaded at start
	Addr            string         `json:"addr"`                // API listen address
}

// Default returns the configuration used when no file exists
func Default() *Config {
	device := NewDeviceConfig()
	return &Config{
		Devices:         []DeviceConfig{device},
		CurrentDeviceID: device.ID,
		ChunkSize:       sysex.DefaultChunkSize,
		ChunkGapMs:      DefaultChunkGapMs,
		Addr:            DefaultAddr,
	}
}

// configDir returns the platform-appropriate config directory
func configDir() (string, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configHome, "accordionmidi"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ResolvePath returns path, or ConfigPath when path is empty
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return ConfigPath()
}

// Load reads the config from path, or from ConfigPath when path is empty.
// A missing file gives the defaults.
func Load(path string) (*Config, error) {
	path, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.Devices = nil
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Ensure there is always a device
	if len(cfg.Devices) == 0 {
		device := NewDeviceConfig()
		cfg.Devices = []DeviceConfig{device}
		cfg.CurrentDeviceID = device.ID
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, or to ConfigPath when path is empty
func (c *Config) Save(path string) error {
	path, err := ResolvePath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the values the codec depends on
func (c *Config) Validate() error {
	if c.ChunkSize <= sysex.HeaderSize {
		return fmt.Errorf("%w: %d", sysex.ErrChunkSize, c.ChunkSize)
	}
	if c.ChunkGapMs < 0 {
		return fmt.Errorf("chunk gap must not be negative: %d", c.ChunkGapMs)
	}
	for _, d := range c.Devices {
		if d.TriggerChannel > 15 {
			return fmt.Errorf("device %q: trigger channel %d out of range 0-15", d.Name, d.TriggerChannel)
		}
	}
	return nil
}

// ChunkGap returns the pause between two sent chunks
func (c *Config) ChunkGap() time.Duration {
	return time.Duration(c.ChunkGapMs) * time.Millisecond
}

// CurrentDevice returns the selected device
func (c *Config) CurrentDevice() *DeviceConfig {
	for i := range c.Devices {
		if c.Devices[i].ID == c.CurrentDeviceID {
			return &c.Devices[i]
		}
	}
	if len(c.Devices) > 0 {
		return &c.Devices[0]
	}
	return nil
}

// AddDevice adds a new device to the config
func (c *Config) AddDevice(device DeviceConfig) {
	c.Devices = append(c.Devices, device)
}

// RemoveDevice removes a device by ID
func (c *Config) RemoveDevice(id string) {
	for i, d := range c.Devices {
		if d.ID == id {
			c.Devices = append(c.Devices[:i], c.Devices[i+1:]...)
			return
		}
	}
}
