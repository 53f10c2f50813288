package converter

import (
	"errors"
	"fmt"
	"os"

	"github.com/james-see/accordionmidi/pkg/keyboard"
	"github.com/james-see/accordionmidi/pkg/sysex"
)

// ErrIncomplete is returned for a dump that ends before its last button
var ErrIncomplete = errors.New("incomplete configuration dump")

// SyxConverter handles .syx file parsing and generation. A .syx file holds
// the chunks of one configuration stream, each as a complete SysEx message.
type SyxConverter struct {
	chunkSize int
}

// NewSyxConverter creates a new .syx converter
func NewSyxConverter(chunkSize int) *SyxConverter {
	return &SyxConverter{chunkSize: chunkSize}
}

// Format returns FormatSyx
func (s *SyxConverter) Format() Format {
	return FormatSyx
}

// ParseSyxFile reads a .syx file and returns a bank
func (s *SyxConverter) ParseSyxFile(filename string) (*keyboard.Bank, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read syx file: %w", err)
	}
	return s.Parse(data)
}

// Parse decodes a .syx dump
func (s *SyxConverter) Parse(data []byte) (*keyboard.Bank, error) {
	if err := s.ValidateSyx(data); err != nil {
		return nil, err
	}
	return DecodeMessages(sysex.Split(data))
}

// DecodeMessages feeds configuration messages to a fresh bank
func DecodeMessages(msgs [][]byte) (*keyboard.Bank, error) {
	var done bool
	b := keyboard.NewBank()
	session := sysex.NewSession(b, sysex.WithOnComplete(func(string) { done = true }))

	for i, msg := range msgs {
		if !sysex.IsAccordionSyx(msg) {
			id, err := ExtractManufacturerID(msg)
			if err != nil {
				return nil, fmt.Errorf("message %d: %w", i, err)
			}
			return nil, fmt.Errorf("message %d: not an accordion dump (manufacturer % X)", i, id)
		}
		if err := session.HandleChunk(msg); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		if done {
			break
		}
	}
	if !done {
		return nil, ErrIncomplete
	}
	return b, nil
}

// Generate creates .syx data from a bank
func (s *SyxConverter) Generate(b *keyboard.Bank) ([]byte, error) {
	var out []byte
	enc, err := sysex.NewEncoder(s.chunkSize, func(chunk []byte) error {
		out = append(out, sysex.Frame(chunk)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteSyxFile writes .syx data to a file
func (s *SyxConverter) WriteSyxFile(b *keyboard.Bank, filename string) error {
	data, err := s.Generate(b)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// ValidateSyx validates .syx data structure
func (s *SyxConverter) ValidateSyx(data []byte) error {
	if len(data) < 2 {
		return errors.New("syx data too short")
	}

	if data[0] != sysex.SysExStart {
		return fmt.Errorf("invalid SysEx: expected start byte 0x%02X, got 0x%02X", sysex.SysExStart, data[0])
	}

	if data[len(data)-1] != sysex.SysExEnd {
		return fmt.Errorf("invalid SysEx: expected end byte 0x%02X, got 0x%02X", sysex.SysExEnd, data[len(data)-1])
	}

	// Check all data bytes are 7-bit (valid MIDI data)
	for i := 1; i < len(data)-1; i++ {
		if data[i] > 127 && data[i] != sysex.SysExStart && data[i] != sysex.SysExEnd {
			return fmt.Errorf("invalid SysEx: byte at position %d is > 127 (0x%02X)", i, data[i])
		}
	}

	return nil
}

// ExtractManufacturerID extracts the manufacturer ID from SysEx data
func ExtractManufacturerID(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("syx data too short for manufacturer ID")
	}

	if data[0] != sysex.SysExStart {
		return nil, errors.New("invalid SysEx start")
	}

	// Check if extended manufacturer ID (starts with 0x00)
	if data[1] == 0x00 {
		if len(data) < 5 {
			return nil, errors.New("syx data too short for extended manufacturer ID")
		}
		return data[1:4], nil
	}

	// Single byte manufacturer ID
	return data[1:2], nil
}
