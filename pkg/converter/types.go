// Package converter provides conversion between accordion bank file formats
package converter

import (
	"github.com/james-see/accordionmidi/pkg/keyboard"
	"github.com/james-see/accordionmidi/pkg/sysex"
)

// Codec reads and writes banks in one file format
type Codec interface {
	Format() Format
	Parse(data []byte) (*keyboard.Bank, error)
	Generate(b *keyboard.Bank) ([]byte, error)
}

// Converter handles format conversions
type Converter struct {
	chunkSize int
}

// New creates a new Converter writing SysEx chunks of chunkSize bytes
func New(chunkSize int) *Converter {
	if chunkSize <= sysex.HeaderSize {
		chunkSize = sysex.DefaultChunkSize
	}
	return &Converter{chunkSize: chunkSize}
}

// ChunkSize returns the SysEx chunk size
func (c *Converter) ChunkSize() int {
	return c.chunkSize
}

// SetChunkSize sets the SysEx chunk size
func (c *Converter) SetChunkSize(n int) {
	c.chunkSize = n
}

// Codec returns the codec for a format
func (c *Converter) Codec(format Format) (Codec, bool) {
	switch format {
	case FormatSyx:
		return NewSyxConverter(c.chunkSize), true
	case FormatMIDI:
		return NewMIDIConverter(c.chunkSize), true
	case FormatJSON:
		return jsonCodec{}, true
	case FormatYAML:
		return yamlCodec{}, true
	default:
		return nil, false
	}
}

type jsonCodec struct{}

func (jsonCodec) Format() Format { return FormatJSON }
func (jsonCodec) Parse(data []byte) (*keyboard.Bank, error) { return keyboard.DecodeJSON(data) }
func (jsonCodec) Generate(b *keyboard.Bank) ([]byte, error) { return keyboard.EncodeJSON(b) }

type yamlCodec struct{}

func (yamlCodec) Format() Format { return FormatYAML }
func (yamlCodec) Parse(data []byte) (*keyboard.Bank, error) { return keyboard.DecodeYAML(data) }
func (yamlCodec) Generate(b *keyboard.Bank) ([]byte, error) { return keyboard.EncodeYAML(b) }
