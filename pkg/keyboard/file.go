package keyboard

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ButtonConfig is the editable description of one button in a bank file.
// Channels are 1-16 as shown to users.
type ButtonConfig struct {
	Index      int    `json:"index" yaml:"index"`
	Type       string `json:"type" yaml:"type"`
	Channel    int    `json:"channel,omitempty" yaml:"channel,omitempty"`
	Pitch      int    `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	Velocity   int    `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	Program    int    `json:"program,omitempty" yaml:"program,omitempty"`
	Controller int    `json:"controller,omitempty" yaml:"controller,omitempty"`
	Value      int    `json:"value,omitempty" yaml:"value,omitempty"`
}

// BankFile is the on-disk form of a bank. Buttons set to None are omitted.
type BankFile struct {
	ID      string         `json:"id" yaml:"id"`
	Name    string         `json:"name" yaml:"name"`
	Layout  int            `json:"layout" yaml:"layout"`
	Buttons []ButtonConfig `json:"buttons" yaml:"buttons"`
}

var errNilBank = errors.New("nil bank")

// NewBankFile describes b with a freshly generated ID
func NewBankFile(b *Bank) BankFile {
	f := BankFile{
		ID:      uuid.New().String(),
		Name:    b.Name(),
		Layout:  int(b.Kind()),
		Buttons: []ButtonConfig{},
	}
	for i := 0; i < b.Len(); i++ {
		a := b.SlotAt(i).Get()
		if a.IsNone() {
			continue
		}
		f.Buttons = append(f.Buttons, ButtonConfigFor(i, a))
	}
	return f
}

// ButtonConfigFor describes the action held at index
func ButtonConfigFor(index int, a Action) ButtonConfig {
	cfg := ButtonConfig{Index: index, Type: a.Kind().String()}
	if a.IsNone() {
		return cfg
	}
	cfg.Channel = int(a.Channel()) + 1
	switch a.Kind() {
	case KindNote:
		cfg.Pitch = int(a.Pitch())
		cfg.Velocity = int(a.Velocity())
	case KindProgram:
		cfg.Program = int(a.Program())
	case KindControl:
		cfg.Controller = int(a.Controller())
		cfg.Value = int(a.Value())
	}
	return cfg
}

// Action validates the config and builds its action
func (c ButtonConfig) Action() (Action, error) {
	kind, err := ParseKind(c.Type)
	if err != nil {
		return None(), err
	}
	if kind == KindNone {
		return None(), nil
	}
	if c.Channel < 1 || c.Channel > MaxChannel+1 {
		return None(), fmt.Errorf("channel %d out of range 1-16", c.Channel)
	}
	ch := uint8(c.Channel - 1)
	switch kind {
	case KindNote:
		if !inData(c.Pitch) || !inData(c.Velocity) {
			return None(), fmt.Errorf("note %d/%d out of range 0-127", c.Pitch, c.Velocity)
		}
		return NewNote(ch, uint8(c.Pitch), uint8(c.Velocity)), nil
	case KindProgram:
		if !inData(c.Program) {
			return None(), fmt.Errorf("program %d out of range 0-127", c.Program)
		}
		return NewProgram(ch, uint8(c.Program)), nil
	default:
		if !inData(c.Controller) || !inData(c.Value) {
			return None(), fmt.Errorf("control %d=%d out of range 0-127", c.Controller, c.Value)
		}
		return NewControl(ch, uint8(c.Controller), uint8(c.Value)), nil
	}
}

func inData(v int) bool {
	return v >= 0 && v <= MaxData
}

// Apply validates the file and replaces the content of b with it
func (f BankFile) Apply(b *Bank) error {
	if b == nil {
		return errNilBank
	}
	if f.Layout != 0 && f.Layout != int(b.Kind()) {
		return fmt.Errorf("bank file layout 0x%02X does not match keyboard layout 0x%02X", f.Layout, b.Kind())
	}
	if len(f.Name) > MaxNameLength {
		return fmt.Errorf("bank name is %d bytes, max %d", len(f.Name), MaxNameLength)
	}

	var actions [Buttons]Action
	for _, cfg := range f.Buttons {
		if cfg.Index < 0 || cfg.Index >= Buttons {
			return fmt.Errorf("button index %d out of range 0-%d", cfg.Index, Buttons-1)
		}
		a, err := cfg.Action()
		if err != nil {
			return fmt.Errorf("button %d: %w", cfg.Index, err)
		}
		actions[cfg.Index] = a
	}

	b.Clear()
	b.SetName(f.Name)
	for i, a := range actions {
		b.SlotAt(i).Set(a)
	}
	return nil
}

// EncodeJSON renders b as an indented JSON bank file
func EncodeJSON(b *Bank) ([]byte, error) {
	return json.MarshalIndent(NewBankFile(b), "", "  ")
}

// DecodeJSON parses a JSON bank file
func DecodeJSON(data []byte) (*Bank, error) {
	var f BankFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse bank JSON: %w", err)
	}
	b := NewBank()
	if err := f.Apply(b); err != nil {
		return nil, err
	}
	return b, nil
}

// EncodeYAML renders b as a YAML bank file
func EncodeYAML(b *Bank) ([]byte, error) {
	return yaml.Marshal(NewBankFile(b))
}

// DecodeYAML parses a YAML bank file
func DecodeYAML(data []byte) (*Bank, error) {
	var f BankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse bank YAML: %w", err)
	}
	b := NewBank()
	if err := f.Apply(b); err != nil {
		return nil, err
	}
	return b, nil
}
