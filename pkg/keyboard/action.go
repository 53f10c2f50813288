// Package keyboard models the button bank of a MIDI accordion keyboard
package keyboard

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Kind identifies which MIDI behaviour a button triggers
type Kind uint8

// Button kinds. The values double as the wire record tags.
const (
	KindNone    Kind = 0x00
	KindNote    Kind = 0x01
	KindProgram Kind = 0x02
	KindControl Kind = 0x03
)

// Record lengths on the wire, tag byte included
const (
	NoneRecordLen    = 1
	NoteRecordLen    = 4
	ProgramRecordLen = 3
	ControlRecordLen = 4

	// MaxRecordLen is the length of the largest record
	MaxRecordLen = 4
)

// MIDI data limits
const (
	MaxChannel = 15
	MaxData    = 127
)

// String returns the lowercase name used in bank files
func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindProgram:
		return "program"
	case KindControl:
		return "control"
	default:
		return "none"
	}
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) (Kind, error) {
	switch s {
	case "none", "":
		return KindNone, nil
	case "note":
		return KindNote, nil
	case "program", "pc":
		return KindProgram, nil
	case "control", "cc":
		return KindControl, nil
	}
	return KindNone, fmt.Errorf("unknown button kind %q", s)
}

// SendFunc delivers a MIDI message to the transport
type SendFunc func(midi.Message) error

// Action is the behaviour bound to one button. The zero value is None.
//
// Every variant lives in the same fixed-size value: data1/data2 hold
// pitch/velocity for a note, program for a program change and
// controller/value for a control change.
type Action struct {
	kind    Kind
	channel uint8
	data1   uint8
	data2   uint8
}

// None returns the inert action
func None() Action {
	return Action{}
}

// NoteIsValid reports whether the fields form a valid note action
func NoteIsValid(channel, pitch, velocity uint8) bool {
	return channel <= MaxChannel && pitch <= MaxData && velocity <= MaxData
}

// ProgramIsValid reports whether the fields form a valid program change action
func ProgramIsValid(channel, program uint8) bool {
	return channel <= MaxChannel && program <= MaxData
}

// ControlIsValid reports whether the fields form a valid control change action
func ControlIsValid(channel, controller, value uint8) bool {
	return channel <= MaxChannel && controller <= MaxData && value <= MaxData
}

// NewNote creates a note action, or None if a field is out of range
func NewNote(channel, pitch, velocity uint8) Action {
	if !NoteIsValid(channel, pitch, velocity) {
		return None()
	}
	return Action{kind: KindNote, channel: channel, data1: pitch, data2: velocity}
}

// NewProgram creates a program change action, or None if a field is out of range
func NewProgram(channel, program uint8) Action {
	if !ProgramIsValid(channel, program) {
		return None()
	}
	return Action{kind: KindProgram, channel: channel, data1: program}
}

// NewControl creates a control change action, or None if a field is out of range
func NewControl(channel, controller, value uint8) Action {
	if !ControlIsValid(channel, controller, value) {
		return None()
	}
	return Action{kind: KindControl, channel: channel, data1: controller, data2: value}
}

// Construct builds the action identified by a record tag from its fields.
// Unknown tags, missing fields and out-of-range values all yield None.
func Construct(tag byte, fields ...byte) Action {
	switch Kind(tag) {
	case KindNote:
		if len(fields) < 3 {
			return None()
		}
		return NewNote(fields[0], fields[1], fields[2])
	case KindProgram:
		if len(fields) < 2 {
			return None()
		}
		return NewProgram(fields[0], fields[1])
	case KindControl:
		if len(fields) < 3 {
			return None()
		}
		return NewControl(fields[0], fields[1], fields[2])
	}
	return None()
}

// RecordLen returns the wire length of the record starting with tag.
// Unknown tags are one-byte None fillers.
func RecordLen(tag byte) int {
	switch Kind(tag) {
	case KindNote:
		return NoteRecordLen
	case KindProgram:
		return ProgramRecordLen
	case KindControl:
		return ControlRecordLen
	}
	return NoneRecordLen
}

// DecodeRecord builds an action from a complete wire record
func DecodeRecord(rec []byte) Action {
	if len(rec) == 0 {
		return None()
	}
	return Construct(rec[0], rec[1:]...)
}

// Kind returns the action's variant
func (a Action) Kind() Kind { return a.kind }

// Channel returns the 0-based MIDI channel
func (a Action) Channel() uint8 { return a.channel }

// Pitch returns the note number of a note action
func (a Action) Pitch() uint8 {
	if a.kind != KindNote {
		return 0
	}
	return a.data1
}

// Velocity returns the velocity of a note action
func (a Action) Velocity() uint8 {
	if a.kind != KindNote {
		return 0
	}
	return a.data2
}

// Program returns the program number of a program change action
func (a Action) Program() uint8 {
	if a.kind != KindProgram {
		return 0
	}
	return a.data1
}

// Controller returns the controller number of a control change action
func (a Action) Controller() uint8 {
	if a.kind != KindControl {
		return 0
	}
	return a.data1
}

// Value returns the value of a control change action
func (a Action) Value() uint8 {
	if a.kind != KindControl {
		return 0
	}
	return a.data2
}

// IsNone reports whether the action does nothing
func (a Action) IsNone() bool { return a.kind == KindNone }

// Activate sends the message for a button press
func (a Action) Activate(send SendFunc) error {
	var msg midi.Message
	switch a.kind {
	case KindNote:
		msg = midi.NoteOn(a.channel, a.data1, a.data2)
	case KindProgram:
		msg = midi.ProgramChange(a.channel, a.data1)
	case KindControl:
		msg = midi.ControlChange(a.channel, a.data1, a.data2)
	default:
		return nil
	}
	if err := send(msg); err != nil {
		return fmt.Errorf("failed to activate %s button: %w", a.kind, err)
	}
	return nil
}

// Deactivate sends the message for a button release. Only notes have one.
func (a Action) Deactivate(send SendFunc) error {
	if a.kind != KindNote {
		return nil
	}
	if err := send(midi.NoteOffVelocity(a.channel, a.data1, a.data2)); err != nil {
		return fmt.Errorf("failed to deactivate note button: %w", err)
	}
	return nil
}

// EncodedLen returns the length of the wire record without writing it
func (a Action) EncodedLen() int {
	return RecordLen(byte(a.kind))
}

// EncodeInto writes the wire record into buf and returns its length.
// buf must hold at least EncodedLen bytes.
func (a Action) EncodeInto(buf []byte) int {
	switch a.kind {
	case KindNote, KindControl:
		_ = buf[3]
		buf[0] = byte(a.kind)
		buf[1] = a.channel
		buf[2] = a.data1
		buf[3] = a.data2
		return 4
	case KindProgram:
		_ = buf[2]
		buf[0] = byte(a.kind)
		buf[1] = a.channel
		buf[2] = a.data1
		return 3
	}
	buf[0] = byte(KindNone)
	return 1
}

// AppendRecord appends the wire record to b
func (a Action) AppendRecord(b []byte) []byte {
	var rec [MaxRecordLen]byte
	n := a.EncodeInto(rec[:])
	return append(b, rec[:n]...)
}

// String renders the action for logs and the terminal UI
func (a Action) String() string {
	switch a.kind {
	case KindNote:
		return fmt.Sprintf("note ch%d %d vel%d", a.channel+1, a.data1, a.data2)
	case KindProgram:
		return fmt.Sprintf("program ch%d %d", a.channel+1, a.data1)
	case KindControl:
		return fmt.Sprintf("cc ch%d %d=%d", a.channel+1, a.data1, a.data2)
	}
	return "none"
}
