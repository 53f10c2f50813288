package transport

import (
	"log"

	"github.com/james-see/accordionmidi/pkg/keyboard"
	"github.com/james-see/accordionmidi/pkg/sysex"
	"gitlab.com/gomidi/midi/v2"
)

// Device is a virtual accordion keyboard. It answers configuration messages
// on its input and plays a button for every note it receives on the trigger
// channel, key k pressing button k.
type Device struct {
	Session *sysex.Session
	send    keyboard.SendFunc
	trigger uint8
	logger  *log.Logger
}

// NewDevice creates a device playing bank through send
func NewDevice(bank *keyboard.Bank, send keyboard.SendFunc, trigger uint8, chunkSize int, logger *log.Logger) *Device {
	d := &Device{
		send:    send,
		trigger: trigger,
		logger:  logger,
	}
	d.Session = sysex.NewSession(bank,
		sysex.WithChunkSize(chunkSize),
		sysex.WithResponder(ChunkSender(send, 0)),
		sysex.WithLogger(logger),
	)
	return d
}

// HandleMessage processes one message from the device input
func (d *Device) HandleMessage(msg midi.Message) {
	var channel, key, velocity uint8
	switch {
	case sysex.IsAccordionSyx(msg):
		if err := d.Session.HandleChunk(msg); err != nil {
			d.logf("Dropped chunk: %v", err)
		}
	case msg.GetNoteOn(&channel, &key, &velocity):
		if channel != d.trigger || int(key) >= keyboard.Buttons {
			return
		}
		var err error
		if velocity > 0 {
			err = d.Session.Press(int(key), d.send)
		} else {
			err = d.Session.Release(int(key), d.send)
		}
		if err != nil {
			d.logf("Button %d failed: %v", key, err)
		}
	case msg.GetNoteOff(&channel, &key, &velocity):
		if channel != d.trigger || int(key) >= keyboard.Buttons {
			return
		}
		if err := d.Session.Release(int(key), d.send); err != nil {
			d.logf("Button %d failed: %v", key, err)
		}
	}
}

func (d *Device) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}
