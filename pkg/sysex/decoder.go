package sysex

import (
	"bytes"
	"encoding/base64"

	"github.com/james-see/accordionmidi/pkg/keyboard"
)

// Phase is the decoder's position in the configuration stream
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseName
	PhaseButtons
)

func (p Phase) String() string {
	switch p {
	case PhaseName:
		return "reading name"
	case PhaseButtons:
		return "reading buttons"
	default:
		return "idle"
	}
}

// State is the resumable part of a decode. It belongs to one Decoder and
// is never shared between keyboards.
type State struct {
	Phase Phase
	// Cursor is the next byte of the name or the next slot index
	Cursor int
	// Carry holds the bytes of a base64 quantum or button record cut by
	// the end of the previous chunk
	Carry    [quantumLen]byte
	CarryLen int
	// Resyncing is set once a corrupt name was seen; input is discarded
	// up to the next name terminator
	Resyncing bool
}

// Decoder rebuilds a keyboard configuration from chunk payloads delivered
// in order
type Decoder struct {
	kbd   Keyboard
	state State
	done  bool
}

// NewDecoder creates an idle decoder editing kbd
func NewDecoder(kbd Keyboard) *Decoder {
	return &Decoder{kbd: kbd}
}

// State returns a copy of the decoder state
func (d *Decoder) State() State {
	return d.state
}

// Phase returns the current phase
func (d *Decoder) Phase() Phase {
	return d.state.Phase
}

// Done reports whether the last stream was received up to its 81st button
func (d *Decoder) Done() bool {
	return d.done
}

// BeginNameEdit starts a new configuration stream. An unfinished one is
// abandoned without rollback.
func (d *Decoder) BeginNameEdit() {
	d.state = State{Phase: PhaseName}
	d.done = false
	d.kbd.TerminateName(0)
}

// ClearEdition drops all edit state and goes idle
func (d *Decoder) ClearEdition() {
	d.state = State{}
	d.done = false
}

// Consume feeds one chunk payload and returns how many of its bytes were
// used. The name and button phases may both advance within one payload.
func (d *Decoder) Consume(payload []byte) int {
	n := 0
	if d.state.Phase == PhaseName {
		n = d.consumeName(payload)
	}
	if d.state.Phase == PhaseButtons {
		n += d.consumeButtons(payload[n:])
	}
	return n
}

// Feed consumes payload, re-feeding whatever a phase change left over, and
// returns the number of bytes used. Bytes after the end of the stream are
// left alone.
func (d *Decoder) Feed(payload []byte) int {
	total := 0
	for total < len(payload) && d.state.Phase != PhaseIdle {
		n := d.Consume(payload[total:])
		if n == 0 {
			break
		}
		total += n
	}
	return total
}

func (d *Decoder) consumeName(data []byte) int {
	end := bytes.IndexByte(data, NameTerminator)

	if d.state.Resyncing {
		if end < 0 {
			return len(data)
		}
		d.finishName()
		return end + 1
	}

	if end >= 0 {
		run := data[:end]
		// a quantum cut by the terminator is dropped
		taken, ok := d.completeCarry(run)
		if ok {
			run = run[taken:]
			d.decodeRun(run[:d.decodable(len(run))])
		}
		d.finishName()
		return end + 1
	}

	taken, ok := d.completeCarry(data)
	if !ok {
		return d.startResync(taken)
	}
	if d.state.CarryLen > 0 {
		// still short of a whole quantum, the chunk was tiny
		return len(data)
	}
	run := data[taken:]
	pad := len(run) % quantumLen
	whole := len(run) - pad
	limit := d.decodable(whole)
	n, ok := d.decodeRun(run[:limit])
	if !ok || limit < whole {
		// corrupt base64 or a name longer than the buffer
		return d.startResync(taken + base64.StdEncoding.EncodedLen(n))
	}
	d.state.CarryLen = copy(d.state.Carry[:], run[whole:])
	return len(data)
}

// completeCarry tops up a carried partial quantum from the head of run and
// decodes it once whole. It returns how many bytes of run it took.
func (d *Decoder) completeCarry(run []byte) (int, bool) {
	if d.state.CarryLen == 0 {
		return 0, true
	}
	taken := copy(d.state.Carry[d.state.CarryLen:], run)
	d.state.CarryLen += taken
	if d.state.CarryLen < quantumLen {
		return taken, true
	}
	d.state.CarryLen = 0
	_, ok := d.decodeRun(d.state.Carry[:])
	return taken, ok
}

// decodable bounds a run length to what still fits in the name
func (d *Decoder) decodable(n int) int {
	room := (keyboard.MaxNameLength - d.state.Cursor) / quantumBytes * quantumLen
	if room < 0 {
		room = 0
	}
	return min(n, room)
}

// decodeRun appends the whole quanta of run to the name. It stops at the
// first quantum that is not valid base64 and reports it.
func (d *Decoder) decodeRun(run []byte) (int, bool) {
	var out [quantumBytes]byte
	total := 0
	for ; len(run) >= quantumLen; run = run[quantumLen:] {
		n, err := base64.StdEncoding.Decode(out[:], run[:quantumLen])
		if err != nil {
			d.kbd.TerminateName(d.state.Cursor)
			return total, false
		}
		w := d.kbd.WriteNameAt(d.state.Cursor, out[:n])
		d.state.Cursor += w
		total += w
	}
	d.kbd.TerminateName(d.state.Cursor)
	return total, true
}

func (d *Decoder) startResync(consumed int) int {
	d.state.Resyncing = true
	d.state.CarryLen = 0
	return consumed
}

func (d *Decoder) finishName() {
	d.kbd.TerminateName(d.state.Cursor)
	d.state = State{Phase: PhaseButtons}
}

func (d *Decoder) consumeButtons(data []byte) int {
	i := 0
	if d.state.CarryLen > 0 {
		need := keyboard.RecordLen(d.state.Carry[0]) - d.state.CarryLen
		taken := copy(d.state.Carry[d.state.CarryLen:d.state.CarryLen+need], data)
		d.state.CarryLen += taken
		if taken < need {
			return len(data)
		}
		d.store(d.state.Carry[:d.state.CarryLen])
		d.state.CarryLen = 0
		i = taken
	}

	for i < len(data) && d.state.Cursor < d.kbd.Len() {
		n := keyboard.RecordLen(data[i])
		if len(data)-i < n {
			d.state.CarryLen = copy(d.state.Carry[:], data[i:])
			return len(data)
		}
		d.store(data[i : i+n])
		i += n
	}

	if d.state.Cursor >= d.kbd.Len() {
		d.state = State{}
		d.done = true
	}
	return i
}

func (d *Decoder) store(rec []byte) {
	d.kbd.SlotAt(d.state.Cursor).Set(keyboard.DecodeRecord(rec))
	d.state.Cursor++
}
