package sysex

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/james-see/accordionmidi/pkg/keyboard"
)

// Session is one keyboard's side of the configuration protocol: it owns the
// bank, its decoder and the edit in flight. It is safe for concurrent use.
type Session struct {
	mu         sync.Mutex
	bank       *keyboard.Bank
	dec        *Decoder
	chunkSize  int
	respond    ChunkFunc
	onComplete func(editID string)
	editID     string
	logger     *log.Logger
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithChunkSize sets the chunk size used to answer dump requests
func WithChunkSize(n int) SessionOption {
	return func(s *Session) { s.chunkSize = n }
}

// WithResponder sets where dump request answers are sent
func WithResponder(f ChunkFunc) SessionOption {
	return func(s *Session) { s.respond = f }
}

// WithOnComplete registers a callback run after a configuration has been
// fully received
func WithOnComplete(f func(editID string)) SessionOption {
	return func(s *Session) { s.onComplete = f }
}

// WithLogger sets the logger. Logging is off by default.
func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session editing bank
func NewSession(bank *keyboard.Bank, opts ...SessionOption) *Session {
	s := &Session{
		bank:      bank,
		dec:       NewDecoder(bank),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// HandleChunk processes one received chunk
func (s *Session) HandleChunk(msg []byte) error {
	c, err := ParseChunk(msg)
	if err != nil {
		return err
	}

	completed, err := s.handle(c)
	if err != nil {
		return err
	}
	if completed != "" && s.onComplete != nil {
		s.onComplete(completed)
	}
	return nil
}

// handle returns the edit ID when c completed an edit
func (s *Session) handle(c Chunk) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Kind != s.bank.Kind() {
		return "", fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrLayout, c.Kind, s.bank.Kind())
	}

	switch c.Class {
	case ClassDumpRequest:
		if s.respond == nil {
			return "", errors.New("dump requested but no responder configured")
		}
		return "", s.dumpLocked(s.respond)
	case ClassConfig:
	default:
		return "", fmt.Errorf("%w: 0x%02X", ErrClass, c.Class)
	}

	payload := Unframe(c.Payload)
	if s.dec.Phase() == PhaseIdle {
		// a bare stream end closes the edit that just completed
		if len(payload) == 0 {
			s.logf("sysex: edit %s stream end", s.editID)
			return "", nil
		}
		s.beginLocked()
	}
	n := s.dec.Feed(payload)

	if s.dec.Phase() != PhaseIdle {
		return "", nil
	}
	if n < len(payload) {
		s.logf("sysex: edit %s ignored %d trailing bytes", s.editID, len(payload)-n)
	}
	s.logf("sysex: edit %s complete, bank %q", s.editID, s.bank.Name())
	return s.editID, nil
}

// BeginEdit starts a new configuration conversation and returns its ID
func (s *Session) BeginEdit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked()
}

func (s *Session) beginLocked() string {
	if s.dec.Phase() != PhaseIdle {
		s.logf("sysex: edit %s abandoned in phase %s", s.editID, s.dec.Phase())
	}
	s.editID = uuid.New().String()
	s.dec.BeginNameEdit()
	s.logf("sysex: edit %s started", s.editID)
	return s.editID
}

// Reset abandons any edit in flight
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dec.ClearEdition()
}

// EditID returns the ID of the current or last edit
func (s *Session) EditID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editID
}

// State returns the decoder state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dec.State()
}

// Dump encodes the bank into emit
func (s *Session) Dump(emit ChunkFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dumpLocked(emit)
}

func (s *Session) dumpLocked(emit ChunkFunc) error {
	enc, err := NewEncoder(s.chunkSize, emit)
	if err != nil {
		return err
	}
	if err := enc.Encode(s.bank); err != nil {
		return err
	}
	s.logf("sysex: sent bank %q in %d chunks", s.bank.Name(), enc.Chunks())
	return nil
}

// Press activates a button
func (s *Session) Press(index int, send keyboard.SendFunc) error {
	if index < 0 || index >= keyboard.Buttons {
		return fmt.Errorf("button index %d out of range 0-%d", index, keyboard.Buttons-1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.Press(index, send)
}

// Release deactivates a button
func (s *Session) Release(index int, send keyboard.SendFunc) error {
	if index < 0 || index >= keyboard.Buttons {
		return fmt.Errorf("button index %d out of range 0-%d", index, keyboard.Buttons-1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.Release(index, send)
}

// Snapshot returns a copy of the bank
func (s *Session) Snapshot() *keyboard.Bank {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := keyboard.NewBank()
	b.CopyFrom(s.bank)
	return b
}

// Update edits the bank under the session lock. Any edit in flight is
// abandoned.
func (s *Session) Update(fn func(b *keyboard.Bank) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dec.ClearEdition()
	return fn(s.bank)
}
