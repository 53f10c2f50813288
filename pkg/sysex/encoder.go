package sysex

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/james-see/accordionmidi/pkg/keyboard"
)

const (
	// quantumLen is the length of one base64 quantum
	quantumLen = 4
	// quantumBytes is the number of name bytes in one quantum
	quantumBytes = 3
)

// ChunkFunc hands a full (or final) chunk to the transport. The slice is
// reused once the call returns.
type ChunkFunc func(chunk []byte) error

// Encoder serialises a keyboard into fixed-size configuration chunks
type Encoder struct {
	size   int
	emit   ChunkFunc
	header [HeaderSize]byte
	buf    []byte
	pos    int
	chunks int
}

// NewEncoder creates an encoder emitting chunks of chunkSize bytes
func NewEncoder(chunkSize int, emit ChunkFunc) (*Encoder, error) {
	if chunkSize <= HeaderSize {
		return nil, fmt.Errorf("%w: %d", ErrChunkSize, chunkSize)
	}
	if emit == nil {
		return nil, errors.New("nil chunk func")
	}
	return &Encoder{
		size: chunkSize,
		emit: emit,
		buf:  make([]byte, chunkSize),
	}, nil
}

// ChunkSize returns the size of every chunk but the last
func (e *Encoder) ChunkSize() int {
	return e.size
}

// Chunks returns how many chunks the last Encode emitted
func (e *Encoder) Chunks() int {
	return e.chunks
}

// Encode emits the configuration stream of kbd
func (e *Encoder) Encode(kbd Keyboard) error {
	e.header = Header(ClassConfig, kbd.Kind())
	copy(e.buf, e.header[:])
	e.pos = HeaderSize
	e.chunks = 0

	var scratch [quantumLen]byte

	// Name
	name := kbd.NameBytes()
	for len(name) > 0 {
		n := min(quantumBytes, len(name))
		if e.remaining() >= quantumLen {
			base64.StdEncoding.Encode(e.buf[e.pos:], name[:n])
			e.pos += quantumLen
			if err := e.flushIfFull(); err != nil {
				return err
			}
		} else {
			base64.StdEncoding.Encode(scratch[:], name[:n])
			if err := e.write(scratch[:]); err != nil {
				return err
			}
		}
		name = name[n:]
	}
	if err := e.writeByte(NameTerminator); err != nil {
		return err
	}

	// Buttons
	var rec [keyboard.MaxRecordLen]byte
	for i := 0; i < kbd.Len(); i++ {
		a := kbd.SlotAt(i).Action()
		n := a.EncodedLen()
		if n <= e.remaining() {
			e.pos += a.EncodeInto(e.buf[e.pos:])
			if err := e.flushIfFull(); err != nil {
				return err
			}
			continue
		}
		a.EncodeInto(rec[:])
		if err := e.write(rec[:n]); err != nil {
			return err
		}
	}

	if err := e.writeByte(StreamEnd); err != nil {
		return err
	}
	if e.pos > HeaderSize {
		return e.flush()
	}
	return nil
}

func (e *Encoder) remaining() int {
	return e.size - e.pos
}

// write copies p into the current chunk, flushing each time it fills up and
// carrying the rest to the head of the next chunk
func (e *Encoder) write(p []byte) error {
	for len(p) > 0 {
		n := copy(e.buf[e.pos:], p)
		e.pos += n
		p = p[n:]
		if err := e.flushIfFull(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeByte(b byte) error {
	e.buf[e.pos] = b
	e.pos++
	return e.flushIfFull()
}

func (e *Encoder) flushIfFull() error {
	if e.pos < e.size {
		return nil
	}
	return e.flush()
}

func (e *Encoder) flush() error {
	if err := e.emit(e.buf[:e.pos]); err != nil {
		return fmt.Errorf("failed to send chunk %d: %w", e.chunks, err)
	}
	e.chunks++
	// the callee may have scribbled over the buffer
	copy(e.buf, e.header[:])
	e.pos = HeaderSize
	return nil
}

// Chunks encodes kbd and returns copies of every chunk
func Chunks(kbd Keyboard, chunkSize int) ([][]byte, error) {
	var chunks [][]byte
	enc, err := NewEncoder(chunkSize, func(chunk []byte) error {
		chunks = append(chunks, append([]byte(nil), chunk...))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(kbd); err != nil {
		return nil, err
	}
	return chunks, nil
}

// EncodedLen returns the length of the configuration stream of kbd without
// chunk headers
func EncodedLen(kbd Keyboard) int {
	n := base64.StdEncoding.EncodedLen(len(kbd.NameBytes())) + 2
	for i := 0; i < kbd.Len(); i++ {
		n += kbd.SlotAt(i).Action().EncodedLen()
	}
	return n
}
