package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/james-see/accordionmidi/pkg/keyboard"
	"github.com/james-see/accordionmidi/pkg/sysex"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ErrNoConfig is returned for a MIDI file without configuration messages
var ErrNoConfig = errors.New("no accordion configuration in MIDI file")

// MIDIConverter handles MIDI file parsing and generation. The first track
// carries the configuration chunks as SysEx events, the second plays every
// button once in index order.
type MIDIConverter struct {
	chunkSize       int
	ticksPerQuarter uint16
	tempo           float64
}

// NewMIDIConverter creates a new MIDI converter
func NewMIDIConverter(chunkSize int) *MIDIConverter {
	return &MIDIConverter{
		chunkSize:       chunkSize,
		ticksPerQuarter: 480,
		tempo:           120.0,
	}
}

// Format returns FormatMIDI
func (m *MIDIConverter) Format() Format {
	return FormatMIDI
}

// ParseMIDIFile reads a MIDI file and extracts its bank
func (m *MIDIConverter) ParseMIDIFile(filename string) (*keyboard.Bank, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return m.Parse(data)
}

// Parse decodes the configuration SysEx events of a MIDI file
func (m *MIDIConverter) Parse(data []byte) (*keyboard.Bank, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	var msgs [][]byte
	for _, track := range s.Tracks {
		for _, ev := range track {
			if msg, ok := sysexEvent(ev.Message); ok && sysex.IsAccordionSyx(msg) {
				msgs = append(msgs, msg)
			}
		}
	}
	if len(msgs) == 0 {
		return nil, ErrNoConfig
	}
	return DecodeMessages(msgs)
}

// sysexEvent returns a SysEx event as a complete message. Events stored
// with their SMF length prefix are rebuilt.
func sysexEvent(raw []byte) ([]byte, bool) {
	if len(raw) < 2 || raw[0] != sysex.SysExStart {
		return nil, false
	}
	if raw[1] == sysex.VendorID {
		return append([]byte(nil), raw...), true
	}

	// F0 <variable length> <data>
	var n, i int
	for i = 1; i < len(raw) && i < 5; i++ {
		n = n<<7 | int(raw[i]&0x7F)
		if raw[i]&0x80 == 0 {
			break
		}
	}
	if i >= len(raw) || n != len(raw)-i-1 {
		return nil, false
	}
	body := raw[i+1:]
	return append([]byte{sysex.SysExStart}, body...), true
}

// Generate creates MIDI data from a bank
func (m *MIDIConverter) Generate(b *keyboard.Bank) ([]byte, error) {
	if b == nil {
		return nil, errors.New("nil bank")
	}

	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	config, err := m.configTrack(b)
	if err != nil {
		return nil, err
	}
	if err := s.Add(config); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	preview, err := m.previewTrack(b)
	if err != nil {
		return nil, err
	}
	if err := s.Add(preview); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	// Write to buffer
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *MIDIConverter) configTrack(b *keyboard.Bank) (smf.Track, error) {
	var track smf.Track

	// Add tempo meta event
	microsecondsPerBeat := uint32(60000000.0 / m.tempo)
	track.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	}))
	track.Add(0, trackName(b.Name()))

	// leave the receiver a 32nd note per chunk
	gap := uint32(m.ticksPerQuarter) / 8
	var delta uint32
	enc, err := sysex.NewEncoder(m.chunkSize, func(chunk []byte) error {
		track.Add(delta, midi.Message(sysex.Frame(chunk)))
		delta = gap
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(b); err != nil {
		return nil, err
	}

	track.Close(0)
	return track, nil
}

func (m *MIDIConverter) previewTrack(b *keyboard.Bank) (smf.Track, error) {
	var track smf.Track
	track.Add(0, trackName("Preview"))

	// Each button is a 16th note
	ticksPerStep := uint32(m.ticksPerQuarter) / 4
	// Default note length (75% of step)
	noteLength := (ticksPerStep * 3) / 4

	var pending uint32
	add := func(msg midi.Message) error {
		track.Add(pending, msg)
		pending = 0
		return nil
	}

	for i := 0; i < b.Len(); i++ {
		slot := b.SlotAt(i)
		if err := slot.Activate(add); err != nil {
			return nil, err
		}
		pending += noteLength
		if err := slot.Deactivate(add); err != nil {
			return nil, err
		}
		pending += ticksPerStep - noteLength
	}

	track.Close(pending)
	return track, nil
}

func trackName(name string) smf.Message {
	return smf.Message(append([]byte{0xFF, 0x03, byte(len(name))}, name...))
}

// WriteMIDIFile writes MIDI data to a file
func (m *MIDIConverter) WriteMIDIFile(b *keyboard.Bank, filename string) error {
	data, err := m.Generate(b)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
