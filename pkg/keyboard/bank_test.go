package keyboard

import (
	"strings"
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestNewBankIsEmpty(t *testing.T) {
	b := NewBank()
	if b.Name() != "" || b.NameLength() != 0 {
		t.Errorf("Name() = %q, want empty", b.Name())
	}
	if b.Len() != Buttons {
		t.Errorf("Len() = %d, want %d", b.Len(), Buttons)
	}
	for i := 0; i < b.Len(); i++ {
		if !b.SlotAt(i).Get().IsNone() {
			t.Fatalf("slot %d = %v, want none", i, b.SlotAt(i).Get())
		}
	}
	if b.Kind() != LayoutRightHand {
		t.Errorf("Kind() = 0x%02X, want 0x%02X", b.Kind(), LayoutRightHand)
	}
}

func TestClearIdempotent(t *testing.T) {
	once := Default()
	once.Clear()

	twice := Default()
	twice.Clear()
	twice.Clear()

	if !once.Equal(twice) || *once != *twice {
		t.Error("Clear() twice differs from Clear() once")
	}
	if !once.Equal(NewBank()) {
		t.Error("Clear() did not reset the bank")
	}
}

func TestSlotAddressing(t *testing.T) {
	b := NewBank()
	for i := 0; i < Buttons; i++ {
		b.SlotAt(i).Set(NewProgram(0, uint8(i)))
	}
	for i := 0; i < Buttons; i++ {
		g, o := GroupOffset(i)
		if got := b.SlotAtGroup(g, o).Get().Program(); got != uint8(i) {
			t.Errorf("SlotAtGroup(%d, %d) program = %d, want %d", g, o, got, i)
		}
	}
	if g, o := GroupOffset(80); g != 10 || o != 0 {
		t.Errorf("GroupOffset(80) = %d, %d, want 10, 0", g, o)
	}
	if Groups*GroupSize < Buttons {
		t.Errorf("Groups*GroupSize = %d, want at least %d", Groups*GroupSize, Buttons)
	}
}

func TestSlotAtOutOfRangePanics(t *testing.T) {
	for _, index := range []int{-1, Buttons, 95} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("SlotAt(%d) did not panic", index)
				}
			}()
			NewBank().SlotAt(index)
		}()
	}
}

func TestSetName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "Lead", "Lead"},
		{"empty", "", ""},
		{"max", strings.Repeat("a", MaxNameLength), strings.Repeat("a", MaxNameLength)},
		{"truncated", strings.Repeat("b", MaxNameLength+20), strings.Repeat("b", MaxNameLength)},
		{"embedded nul", "ab\x00cd", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBank()
			b.SetName("previous name that is longer")
			b.SetName(tt.in)
			if b.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", b.Name(), tt.want)
			}
			if b.NameLength() != len(tt.want) {
				t.Errorf("NameLength() = %d, want %d", b.NameLength(), len(tt.want))
			}
		})
	}
}

func TestWriteNameAtBounded(t *testing.T) {
	b := NewBank()
	if n := b.WriteNameAt(MaxNameLength-2, []byte("xyz")); n != 2 {
		t.Errorf("WriteNameAt() = %d, want 2", n)
	}
	if n := b.WriteNameAt(MaxNameLength, []byte("x")); n != 0 {
		t.Errorf("WriteNameAt() at capacity = %d, want 0", n)
	}
	b.TerminateName(MaxNameLength + 5)
	if b.NameLength() != MaxNameLength {
		t.Errorf("NameLength() = %d, want %d", b.NameLength(), MaxNameLength)
	}
}

func TestPressRelease(t *testing.T) {
	b := Default()
	var sent []midi.Message
	send := func(msg midi.Message) error {
		sent = append(sent, msg)
		return nil
	}

	if err := b.Press(13, send); err != nil {
		t.Fatalf("Press() error = %v", err)
	}
	if err := b.Release(13, send); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}

	var ch, key, vel uint8
	if !sent[0].GetNoteOn(&ch, &key, &vel) || ch != 1 || key != 60 || vel != 127 {
		t.Errorf("Press() sent %v, want note on ch1 60 127", sent[0])
	}
	if !sent[1].GetNoteOff(&ch, &key, &vel) || key != 60 {
		t.Errorf("Release() sent %v, want note off 60", sent[1])
	}
}

func TestDefaultBank(t *testing.T) {
	b := Default()
	if b.Name() != DefaultName {
		t.Errorf("Name() = %q, want %q", b.Name(), DefaultName)
	}
	first := b.SlotAt(0).Get()
	if first.Kind() != KindNote || first.Pitch() != 52 || first.Velocity() != 127 {
		t.Errorf("slot 0 = %v, want note 52 vel127", first)
	}
	if last := b.SlotAt(Buttons - 1).Get(); last.Pitch() != 100 {
		t.Errorf("slot 80 pitch = %d, want 100", last.Pitch())
	}
}
