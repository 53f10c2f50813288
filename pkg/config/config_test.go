package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/james-see/accordionmidi/pkg/sysex"
)

func TestLoadMissingGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != sysex.DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.ChunkSize, sysex.DefaultChunkSize)
	}
	if d := cfg.CurrentDevice(); d == nil || d.ID != cfg.CurrentDeviceID {
		t.Errorf("CurrentDevice() = %+v, want the default device", d)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := Default()
	cfg.ChunkSize = 48
	cfg.ChunkGapMs = 5
	cfg.BankPath = "bass.yaml"
	extra := NewDeviceConfig()
	extra.Name = "Left hand"
	cfg.AddDevice(extra)
	cfg.CurrentDeviceID = extra.ID

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.ChunkSize != 48 || loaded.BankPath != "bass.yaml" {
		t.Errorf("Load() = %+v", loaded)
	}
	if loaded.ChunkGap() != 5*time.Millisecond {
		t.Errorf("ChunkGap() = %v, want 5ms", loaded.ChunkGap())
	}
	if d := loaded.CurrentDevice(); d == nil || d.Name != "Left hand" {
		t.Errorf("CurrentDevice() = %+v, want Left hand", d)
	}

	loaded.RemoveDevice(extra.ID)
	if len(loaded.Devices) != 1 {
		t.Errorf("len(Devices) = %d after RemoveDevice, want 1", len(loaded.Devices))
	}
	if d := loaded.CurrentDevice(); d == nil || d.Name != "Accordion" {
		t.Errorf("CurrentDevice() = %+v, want fallback to the first device", d)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", `{"chunk_size": `},
		{"chunk size", `{"chunk_size": 4}`},
		{"gap", `{"chunk_gap_ms": -1}`},
		{"channel", `{"devices": [{"name": "x", "trigger_channel": 16}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"chunk_gap_ms": 0}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != sysex.DefaultChunkSize || cfg.Addr != DefaultAddr {
		t.Errorf("Load() = %+v, want defaults kept", cfg)
	}
	if len(cfg.Devices) != 1 {
		t.Errorf("len(Devices) = %d, want 1", len(cfg.Devices))
	}
}

func TestResolvePath(t *testing.T) {
	if got, err := ResolvePath("custom.json"); err != nil || got != "custom.json" {
		t.Errorf("ResolvePath(custom.json) = %q, %v", got, err)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	t.Setenv("AppData", "")
	if got, err := ResolvePath(""); err == nil {
		t.Errorf("ResolvePath() = %q without a config dir, want error", got)
	}
	if err := Default().Save(""); err == nil {
		t.Error("Save() without a config dir expected error")
	}
}
