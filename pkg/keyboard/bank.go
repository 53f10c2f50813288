package keyboard

import (
	"bytes"
	"fmt"
)

// Right hand layout constants
const (
	// Buttons is the number of buttons on the right hand keyboard
	// (4 rows of 16 and one row of 17)
	Buttons = 81
	// GroupSize is the number of buttons per addressing group
	GroupSize = 8
	// Groups is the number of addressing groups. Indices past Buttons
	// are never addressed.
	Groups = 12

	// MaxNameLength is the maximum decoded length of a bank name
	MaxNameLength = 108

	// LayoutRightHand is the layout tag of the 81 button keyboard
	LayoutRightHand byte = 0x01
)

// Bank is a right hand keyboard: a name and 81 button slots.
// The zero value is an empty bank with every button set to None.
type Bank struct {
	name    [MaxNameLength + 1]byte
	nameLen int
	slots   [Buttons]Slot
}

// NewBank creates an empty bank
func NewBank() *Bank {
	return &Bank{}
}

// Kind returns the physical layout tag
func (b *Bank) Kind() byte {
	return LayoutRightHand
}

// Len returns the number of button slots
func (b *Bank) Len() int {
	return Buttons
}

// Clear resets every slot to None and empties the name
func (b *Bank) Clear() {
	for i := range b.slots {
		b.slots[i].Reset()
	}
	b.TerminateName(0)
}

// SlotAt returns the slot at a flat index. Out of range indices are a
// programming error and panic.
func (b *Bank) SlotAt(index int) *Slot {
	if index < 0 || index >= Buttons {
		panic(fmt.Sprintf("keyboard: slot index %d out of range [0,%d)", index, Buttons))
	}
	return &b.slots[index]
}

// SlotAtGroup returns the slot addressed by group and offset within group
func (b *Bank) SlotAtGroup(group, offset int) *Slot {
	if offset < 0 || offset >= GroupSize {
		panic(fmt.Sprintf("keyboard: group offset %d out of range [0,%d)", offset, GroupSize))
	}
	return b.SlotAt(group*GroupSize + offset)
}

// GroupOffset splits a flat index into its group and offset
func GroupOffset(index int) (group, offset int) {
	return index / GroupSize, index % GroupSize
}

// Name returns the bank name
func (b *Bank) Name() string {
	return string(b.name[:b.nameLen])
}

// NameBytes returns the bank name without copying. The slice is only valid
// until the name changes.
func (b *Bank) NameBytes() []byte {
	return b.name[:b.nameLen]
}

// NameLength returns the name length in bytes
func (b *Bank) NameLength() int {
	return b.nameLen
}

// SetName replaces the name, truncated to MaxNameLength bytes.
// Bytes after an embedded NUL are dropped.
func (b *Bank) SetName(name string) {
	p := []byte(name)
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	n := b.WriteNameAt(0, p)
	b.TerminateName(n)
}

// WriteNameAt copies p into the name buffer at pos and returns the number
// of bytes written, bounded by the name capacity. The name length is not
// changed; call TerminateName once the edit is done.
func (b *Bank) WriteNameAt(pos int, p []byte) int {
	if pos < 0 || pos >= MaxNameLength {
		return 0
	}
	return copy(b.name[pos:MaxNameLength], p)
}

// TerminateName ends the name at n bytes
func (b *Bank) TerminateName(n int) {
	if n < 0 {
		n = 0
	}
	if n > MaxNameLength {
		n = MaxNameLength
	}
	b.nameLen = n
	b.name[n] = 0
}

// Press activates the button at index
func (b *Bank) Press(index int, send SendFunc) error {
	return b.SlotAt(index).Activate(send)
}

// Release deactivates the button at index
func (b *Bank) Release(index int, send SendFunc) error {
	return b.SlotAt(index).Deactivate(send)
}

// Actions returns a copy of every held action in index order
func (b *Bank) Actions() []Action {
	actions := make([]Action, Buttons)
	for i := range b.slots {
		actions[i] = b.slots[i].Get()
	}
	return actions
}

// CopyFrom makes b an exact copy of other
func (b *Bank) CopyFrom(other *Bank) {
	*b = *other
}

// Equal reports whether both banks hold the same name and actions
func (b *Bank) Equal(other *Bank) bool {
	if b.Name() != other.Name() {
		return false
	}
	for i := range b.slots {
		if b.slots[i].Get() != other.slots[i].Get() {
			return false
		}
	}
	return true
}

// Default factory layout: chromatic notes on channel 2 at full velocity
var defaultPitches = [Buttons]uint8{
	52, 52, 53, 54, 55, 54, 55, 56, 57, 58,
	57, 58, 59, 60, 61, 60, 61, 62, 63, 64,
	63, 64, 65, 66, 67, 66, 67, 68, 69, 70,
	69, 70, 71, 72, 73, 72, 73, 74, 75, 76,
	75, 76, 77, 78, 79, 78, 79, 80, 81, 82,
	81, 82, 83, 84, 85, 84, 85, 86, 87, 88,
	87, 88, 89, 90, 91, 90, 91, 92, 93, 94,
	93, 94, 95, 96, 97, 96, 97, 98, 99, 99,
	100,
}

// DefaultName is the name of the factory bank
const DefaultName = "Right keyboard"

// Default returns the factory bank
func Default() *Bank {
	b := NewBank()
	b.SetName(DefaultName)
	for i, pitch := range defaultPitches {
		b.slots[i].Set(NewNote(1, pitch, MaxData))
	}
	return b
}
