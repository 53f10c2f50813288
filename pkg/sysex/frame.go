// Package sysex implements the chunked SysEx configuration protocol of the
// accordion keyboard.
//
// A configuration stream is
//
//	<base64(name)> 0x00 <record>*81 0xF7
//
// split into fixed-size chunks, each starting with a 4-byte header
// (F0, vendor, message class, keyboard layout).
package sysex

import (
	"errors"
	"fmt"

	"github.com/james-see/accordionmidi/pkg/keyboard"
)

// SysEx constants
const (
	SysExStart = 0xF0
	SysExEnd   = 0xF7

	// VendorID is the non-commercial manufacturer ID
	VendorID = 0x7D

	// HeaderSize is the length of the header at the start of every chunk
	HeaderSize = 4

	// DefaultChunkSize is the chunk size used by the firmware
	DefaultChunkSize = 100

	// NameTerminator ends the base64 name
	NameTerminator = 0x00
	// StreamEnd ends the configuration stream
	StreamEnd = SysExEnd
)

// Message classes
const (
	ClassDumpRequest = 0x01
	ClassConfig      = 0x02
)

var (
	ErrTooShort  = errors.New("sysex chunk too short")
	ErrNotSysEx  = errors.New("not a sysex message")
	ErrVendor    = errors.New("unknown sysex vendor")
	ErrClass     = errors.New("unknown message class")
	ErrLayout    = errors.New("keyboard layout mismatch")
	ErrChunkSize = errors.New("chunk size must leave room after the header")
)

// Keyboard is a button layout the codec can read and edit
type Keyboard interface {
	Kind() byte
	Len() int
	SlotAt(index int) *keyboard.Slot
	NameBytes() []byte
	WriteNameAt(pos int, p []byte) int
	TerminateName(n int)
}

// Header returns the chunk header for a message class and layout
func Header(class, kind byte) [HeaderSize]byte {
	return [HeaderSize]byte{SysExStart, VendorID, class, kind}
}

// Chunk is a parsed chunk
type Chunk struct {
	Class   byte
	Kind    byte
	Payload []byte
}

// ParseChunk splits a chunk into its header fields and payload
func ParseChunk(msg []byte) (Chunk, error) {
	if len(msg) < HeaderSize {
		return Chunk{}, ErrTooShort
	}
	if msg[0] != SysExStart {
		return Chunk{}, fmt.Errorf("%w: expected start byte 0x%02X, got 0x%02X", ErrNotSysEx, SysExStart, msg[0])
	}
	if msg[1] != VendorID {
		return Chunk{}, fmt.Errorf("%w: 0x%02X", ErrVendor, msg[1])
	}
	return Chunk{Class: msg[2], Kind: msg[3], Payload: msg[HeaderSize:]}, nil
}

// ValidateChunk checks the header and that every payload byte is 7-bit MIDI
// data. Only the last byte may be an end byte.
func ValidateChunk(msg []byte) error {
	c, err := ParseChunk(msg)
	if err != nil {
		return err
	}
	if c.Class != ClassConfig && c.Class != ClassDumpRequest {
		return fmt.Errorf("%w: 0x%02X", ErrClass, c.Class)
	}
	for i, b := range c.Payload {
		if b > 127 && !(b == SysExEnd && i == len(c.Payload)-1) {
			return fmt.Errorf("invalid SysEx: byte at position %d is > 127 (0x%02X)", i+HeaderSize, b)
		}
	}
	return nil
}

// IsAccordionSyx checks if data starts with an accordion keyboard header
func IsAccordionSyx(data []byte) bool {
	return len(data) >= HeaderSize && data[0] == SysExStart && data[1] == VendorID
}

// Frame returns chunk as a complete SysEx message by appending an end byte
// when the chunk does not already end with one. Only the last chunk of a
// stream carries its own end byte.
func Frame(chunk []byte) []byte {
	if len(chunk) > 0 && chunk[len(chunk)-1] == SysExEnd {
		return chunk
	}
	framed := make([]byte, len(chunk), len(chunk)+1)
	copy(framed, chunk)
	return append(framed, SysExEnd)
}

// Unframe strips the trailing end byte of a received message. The stream
// end byte of the last chunk is never needed by the decoder, so it is
// stripped as well.
func Unframe(payload []byte) []byte {
	if n := len(payload); n > 0 && payload[n-1] == SysExEnd {
		return payload[:n-1]
	}
	return payload
}

// Split cuts a byte stream (a .syx dump) into messages at every start byte
func Split(stream []byte) [][]byte {
	var msgs [][]byte
	start := -1
	for i, b := range stream {
		if b != SysExStart {
			continue
		}
		if start >= 0 {
			msgs = append(msgs, stream[start:i])
		}
		start = i
	}
	if start >= 0 {
		msgs = append(msgs, stream[start:])
	}
	return msgs
}

// DumpRequest returns the message asking a keyboard for its configuration
func DumpRequest(kind byte) []byte {
	h := Header(ClassDumpRequest, kind)
	return append(h[:], SysExEnd)
}
