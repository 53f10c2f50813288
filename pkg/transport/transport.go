// Package transport moves accordion messages over MIDI ports.
//
// A MIDI driver must be registered by the importing program, for example
//
//	import _ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/james-see/accordionmidi/pkg/keyboard"
	"github.com/james-see/accordionmidi/pkg/sysex"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// SysExBufferSize is the listener buffer for incoming SysEx messages. It
// holds several default-size chunks.
const SysExBufferSize = 1024

var ErrPortNotFound = errors.New("MIDI port not found")

// Manager handles MIDI port discovery
type Manager struct {
	mu sync.RWMutex
}

// NewManager creates a new MIDI manager
func NewManager() *Manager {
	return &Manager{}
}

// Close cleans up the MIDI driver
func (m *Manager) Close() {
	midi.CloseDriver()
}

// ListInPorts returns the names of available MIDI input ports
func (m *Manager) ListInPorts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// ListOutPorts returns the names of available MIDI output ports
func (m *Manager) ListOutPorts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	outs := midi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names
}

// InPort returns the first input port whose name contains name
func (m *Manager) InPort(name string) (drivers.In, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, in := range midi.GetInPorts() {
		if matchPort(in.String(), name) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("%w: input %q", ErrPortNotFound, name)
}

// OutPort returns the first output port whose name contains name
func (m *Manager) OutPort(name string) (drivers.Out, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, out := range midi.GetOutPorts() {
		if matchPort(out.String(), name) {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: output %q", ErrPortNotFound, name)
}

func matchPort(port, name string) bool {
	return name != "" && strings.Contains(strings.ToLower(port), strings.ToLower(name))
}

// Sender returns a send function for the named output port
func (m *Manager) Sender(outName string) (keyboard.SendFunc, error) {
	out, err := m.OutPort(outName)
	if err != nil {
		return nil, err
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender: %w", err)
	}
	return send, nil
}

// ChunkSender wraps send so that every chunk goes out as a complete SysEx
// message, waiting gap after each one
func ChunkSender(send keyboard.SendFunc, gap time.Duration) sysex.ChunkFunc {
	return func(chunk []byte) error {
		if err := send(midi.Message(sysex.Frame(chunk))); err != nil {
			return err
		}
		if gap > 0 {
			time.Sleep(gap)
		}
		return nil
	}
}

// SendBank pushes a configuration to the named output port
func (m *Manager) SendBank(outName string, kbd sysex.Keyboard, chunkSize int, gap time.Duration) (int, error) {
	send, err := m.Sender(outName)
	if err != nil {
		return 0, err
	}
	enc, err := sysex.NewEncoder(chunkSize, ChunkSender(send, gap))
	if err != nil {
		return 0, err
	}
	if err := enc.Encode(kbd); err != nil {
		return enc.Chunks(), fmt.Errorf("failed to send configuration: %w", err)
	}
	return enc.Chunks(), nil
}

// Listen starts feeding messages from the named input port to handle. SysEx
// messages are delivered whole.
func (m *Manager) Listen(inName string, handle func(msg midi.Message)) (func(), error) {
	in, err := m.InPort(inName)
	if err != nil {
		return nil, err
	}

	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		// the driver reuses its buffer
		handle(append(midi.Message(nil), msg...))
	}, midi.UseSysEx(), midi.SysExBufferSize(SysExBufferSize))
	if err != nil {
		return nil, fmt.Errorf("failed to start listening: %w", err)
	}
	return stop, nil
}

// RequestDump asks the keyboard on outName for its configuration and waits
// for the answer on inName
func (m *Manager) RequestDump(ctx context.Context, inName, outName string, kind byte) (*keyboard.Bank, error) {
	done := make(chan struct{}, 1)
	bank := keyboard.NewBank()
	session := sysex.NewSession(bank, sysex.WithOnComplete(func(string) {
		select {
		case done <- struct{}{}:
		default:
		}
	}))

	errs := make(chan error, 1)
	stop, err := m.Listen(inName, func(msg midi.Message) {
		if !sysex.IsAccordionSyx(msg) {
			return
		}
		if err := session.HandleChunk(msg); err != nil {
			select {
			case errs <- err:
			default:
			}
		}
	})
	if err != nil {
		return nil, err
	}
	defer stop()

	send, err := m.Sender(outName)
	if err != nil {
		return nil, err
	}
	if err := send(midi.Message(sysex.DumpRequest(kind))); err != nil {
		return nil, fmt.Errorf("failed to request dump: %w", err)
	}

	select {
	case <-done:
		return session.Snapshot(), nil
	case err := <-errs:
		return nil, fmt.Errorf("invalid dump: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out waiting for dump: %w", ctx.Err())
	}
}
