package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/accordionmidi/pkg/keyboard"
	"github.com/james-see/accordionmidi/pkg/sysex"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatSyx     Format = "syx"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatUnknown Format = "unknown"
)

// Formats lists every supported format
var Formats = []Format{FormatSyx, FormatJSON, FormatYAML, FormatMIDI}

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mid", ".midi":
		return FormatMIDI
	case ".syx":
		return FormatSyx
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	// Check for MIDI file signature "MThd"
	if string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	// Check for SysEx (starts with F0)
	if data[0] == sysex.SysExStart {
		return FormatSyx
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}

	// Assume YAML for other text
	for _, b := range trimmed {
		if b < 0x09 {
			return FormatUnknown
		}
	}
	return FormatYAML
}

// ParseFile reads a bank from a file in any supported format
func (c *Converter) ParseFile(path string) (*keyboard.Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	format := DetectFormat(path)
	if format == FormatUnknown {
		format = DetectFormatFromContent(data)
	}
	codec, ok := c.Codec(format)
	if !ok {
		return nil, fmt.Errorf("cannot determine format of %s", path)
	}
	return codec.Parse(data)
}

// WriteFile writes a bank in the format given by the file extension
func (c *Converter) WriteFile(b *keyboard.Bank, path string) error {
	codec, ok := c.Codec(DetectFormat(path))
	if !ok {
		return errors.New("cannot determine output format from filename")
	}
	data, err := codec.Generate(b)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// ConvertFile converts a file from one format to another
func (c *Converter) ConvertFile(inputPath, outputPath string) error {
	if DetectFormat(outputPath) == FormatUnknown {
		return errors.New("cannot determine output format from filename")
	}

	b, err := c.ParseFile(inputPath)
	if err != nil {
		return err
	}
	return c.WriteFile(b, outputPath)
}

// Convert converts data between two formats
func (c *Converter) Convert(data []byte, from, to Format) ([]byte, error) {
	in, ok := c.Codec(from)
	if !ok {
		return nil, fmt.Errorf("unsupported input format: %s", from)
	}
	out, ok := c.Codec(to)
	if !ok {
		return nil, fmt.Errorf("unsupported output format: %s", to)
	}

	b, err := in.Parse(data)
	if err != nil {
		return nil, err
	}
	return out.Generate(b)
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	var conversions []string
	for _, from := range Formats {
		for _, to := range Formats {
			if from != to {
				conversions = append(conversions, fmt.Sprintf("%s -> %s", from, to))
			}
		}
	}
	return conversions
}
