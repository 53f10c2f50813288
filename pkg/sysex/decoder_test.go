package sysex

import (
	"bytes"
	"testing"

	"github.com/james-see/accordionmidi/pkg/keyboard"
)

// stream encodes b in one large chunk and returns the chunk payload
func stream(t *testing.T, b *keyboard.Bank) []byte {
	t.Helper()
	chunks, err := Chunks(b, HeaderSize+EncodedLen(b))
	if err != nil {
		t.Fatalf("Chunks() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	return chunks[0][HeaderSize:]
}

func rechunk(data []byte, size int) [][]byte {
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	return append(out, data)
}

func TestDecodeChunks(t *testing.T) {
	for _, tb := range testBanks {
		for size := HeaderSize + 1; size <= 120; size++ {
			want := tb.bank()
			chunks, err := Chunks(want, size)
			if err != nil {
				t.Fatalf("Chunks() error = %v", err)
			}

			got := keyboard.Default()
			dec := NewDecoder(got)
			dec.BeginNameEdit()
			for i, c := range chunks {
				payload := Unframe(c[HeaderSize:])
				if n := dec.Feed(payload); n != len(payload) {
					t.Errorf("%s: size %d chunk %d consumed %d of %d bytes", tb.name, size, i, n, len(payload))
				}
			}

			if !dec.Done() || dec.Phase() != PhaseIdle {
				t.Errorf("%s: size %d decoder not done, phase %s", tb.name, size, dec.Phase())
			}
			if !got.Equal(want) {
				t.Errorf("%s: size %d got name %q, want %q", tb.name, size, got.Name(), want.Name())
			}
		}
	}
}

func TestDecodeRechunked(t *testing.T) {
	for _, tb := range testBanks {
		want := tb.bank()
		data := stream(t, want)
		maxSize := len(data)

		for size := 1; size <= maxSize; size++ {
			got := keyboard.NewBank()
			dec := NewDecoder(got)
			dec.BeginNameEdit()

			consumed := 0
			for _, piece := range rechunk(data, size) {
				consumed += dec.Consume(piece)
			}

			if consumed != len(data)-1 {
				t.Errorf("%s: size %d consumed %d bytes, want %d", tb.name, size, consumed, len(data)-1)
			}
			if !dec.Done() {
				t.Errorf("%s: size %d decoder not done", tb.name, size)
			}
			if !got.Equal(want) {
				t.Errorf("%s: size %d got %q %v, want %q", tb.name, size, got.Name(), got.Actions()[:4], want.Name())
			}
		}
	}
}

func TestNameQuantumAtChunkEdge(t *testing.T) {
	names := []string{"A", "Lead", "Bandoneon", "Accordion treble", "Chromatic button accordion, C system"}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			want := keyboard.NewBank()
			want.SetName(name)
			b64 := len(stream(t, want)) - 83

			for size := HeaderSize; size <= b64+8; size++ {
				chunks, err := Chunks(want, HeaderSize+size)
				if err != nil {
					t.Fatalf("Chunks() error = %v", err)
				}
				got := keyboard.NewBank()
				dec := NewDecoder(got)
				dec.BeginNameEdit()
				for _, c := range chunks {
					dec.Feed(Unframe(c[HeaderSize:]))
				}
				if got.Name() != name {
					t.Errorf("payload %d: Name() = %q, want %q", size, got.Name(), name)
				}
				if dec.State().Resyncing {
					t.Errorf("payload %d: decoder resyncing", size)
				}
			}
		})
	}
}

func TestSplitRecord(t *testing.T) {
	tests := []struct {
		name   string
		action keyboard.Action
	}{
		{"note", keyboard.NewNote(9, 60, 100)},
		{"program", keyboard.NewProgram(2, 17)},
		{"control", keyboard.NewControl(0, 64, 127)},
	}

	for _, tt := range tests {
		for split := 1; split < tt.action.EncodedLen(); split++ {
			want := keyboard.NewBank()
			want.SlotAt(40).Set(tt.action)
			data := stream(t, want)
			// empty name, terminator, 40 none records
			at := 1 + 40 + split

			got := keyboard.NewBank()
			dec := NewDecoder(got)
			dec.BeginNameEdit()
			first := dec.Consume(data[:at])
			if first != at {
				t.Errorf("%s split %d: first chunk consumed %d, want %d", tt.name, split, first, at)
			}
			if st := dec.State(); st.CarryLen != split || st.Cursor != 40 {
				t.Errorf("%s split %d: carry %d cursor %d, want %d 40", tt.name, split, st.CarryLen, st.Cursor, split)
			}
			dec.Consume(data[at:])

			if g := got.SlotAt(40).Get(); g != tt.action {
				t.Errorf("%s split %d: slot = %v, want %v", tt.name, split, g, tt.action)
			}
			if !got.Equal(want) {
				t.Errorf("%s split %d: banks differ", tt.name, split)
			}
		}
	}
}

func TestSplitAnywhere(t *testing.T) {
	want := mixedBank()
	data := stream(t, want)

	for at := 0; at <= len(data); at++ {
		got := keyboard.NewBank()
		dec := NewDecoder(got)
		dec.BeginNameEdit()
		dec.Feed(data[:at])
		dec.Feed(data[at:])
		if !got.Equal(want) {
			t.Errorf("split at %d: got %q, want %q", at, got.Name(), want.Name())
		}
	}
}

func TestTerminatorDropsPartialQuantum(t *testing.T) {
	got := keyboard.NewBank()
	dec := NewDecoder(got)
	dec.BeginNameEdit()

	dec.Consume([]byte("TGVh"))
	dec.Consume([]byte("ZA"))
	if st := dec.State(); st.CarryLen != 2 {
		t.Fatalf("CarryLen = %d, want 2", st.CarryLen)
	}
	if n := dec.Consume([]byte{NameTerminator}); n != 1 {
		t.Errorf("Consume(terminator) = %d, want 1", n)
	}
	if got.Name() != "Lea" {
		t.Errorf("Name() = %q, want %q", got.Name(), "Lea")
	}
	if dec.Phase() != PhaseButtons {
		t.Errorf("Phase() = %s, want %s", dec.Phase(), PhaseButtons)
	}
}

func TestNameTooLongResyncs(t *testing.T) {
	got := keyboard.Default()
	dec := NewDecoder(got)
	dec.BeginNameEdit()

	// 150 bytes of valid base64 is more than the 144 a full name needs
	long := bytes.Repeat([]byte("Q"), 150)
	if n := dec.Consume(long); n != 144 {
		t.Errorf("Consume() = %d, want 144", n)
	}
	if !dec.State().Resyncing {
		t.Fatal("decoder should be resyncing")
	}
	if got.NameLength() != keyboard.MaxNameLength {
		t.Errorf("NameLength() = %d, want %d", got.NameLength(), keyboard.MaxNameLength)
	}

	// the rest of the stream is discarded up to the terminator
	if n := dec.Feed([]byte("QQQQ")); n != 4 {
		t.Errorf("Feed() = %d, want 4", n)
	}

	rest := []byte("QQ\x00")
	rest = keyboard.NewProgram(4, 8).AppendRecord(rest)
	rest = append(rest, make([]byte, 80)...)
	if n := dec.Feed(rest); n != len(rest) {
		t.Errorf("Feed() = %d, want %d", n, len(rest))
	}
	if !dec.Done() {
		t.Fatalf("decoder not done, phase %s", dec.Phase())
	}
	if a := got.SlotAt(0).Get(); a != keyboard.NewProgram(4, 8) {
		t.Errorf("slot 0 = %v, want program", a)
	}
	for i := 1; i < got.Len(); i++ {
		if !got.SlotAt(i).Get().IsNone() {
			t.Fatalf("slot %d = %v, want none", i, got.SlotAt(i).Get())
		}
	}
}

func TestCorruptBase64Resyncs(t *testing.T) {
	got := keyboard.NewBank()
	dec := NewDecoder(got)
	dec.BeginNameEdit()

	if n := dec.Consume([]byte("TGVh!!!!ZA")); n != 4 {
		t.Errorf("Consume() = %d, want 4", n)
	}
	st := dec.State()
	if !st.Resyncing || st.Phase != PhaseName {
		t.Errorf("State() = %+v, want resyncing name", st)
	}
	if got.Name() != "Lea" {
		t.Errorf("Name() = %q, want %q", got.Name(), "Lea")
	}

	dec.Feed([]byte("more junk"))
	dec.Feed(append([]byte{NameTerminator}, make([]byte, keyboard.Buttons)...))
	if !dec.Done() {
		t.Errorf("decoder not done, phase %s", dec.Phase())
	}
}

func TestUnknownTagsDecodeAsNone(t *testing.T) {
	got := keyboard.Default()
	dec := NewDecoder(got)
	dec.BeginNameEdit()

	data := []byte{NameTerminator}
	// a note on channel 16 is dropped but still takes four bytes
	data = append(data, 0x01, 0x10, 60, 100)
	for i := 1; i < keyboard.Buttons; i++ {
		data = append(data, 0x04+byte(i%0x70))
	}
	data = append(data, 0x01, 0x02)

	n := dec.Consume(data)
	if n != len(data)-2 {
		t.Errorf("Consume() = %d, want %d", n, len(data)-2)
	}
	if !dec.Done() {
		t.Fatal("decoder not done")
	}
	if !got.Equal(keyboard.NewBank()) {
		t.Errorf("Actions() = %v, want all none", got.Actions())
	}
}

func TestDecodersAreIndependent(t *testing.T) {
	wantA, wantB := mixedBank(), leadBank()
	a, b := keyboard.NewBank(), keyboard.NewBank()
	decA, decB := NewDecoder(a), NewDecoder(b)
	decA.BeginNameEdit()
	decB.BeginNameEdit()

	piecesA := rechunk(stream(t, wantA), 7)
	piecesB := rechunk(stream(t, wantB), 5)
	for i := 0; i < len(piecesA) || i < len(piecesB); i++ {
		if i < len(piecesA) {
			decA.Consume(piecesA[i])
		}
		if i < len(piecesB) {
			decB.Consume(piecesB[i])
		}
	}

	if !a.Equal(wantA) || !b.Equal(wantB) {
		t.Errorf("got %q and %q, want %q and %q", a.Name(), b.Name(), wantA.Name(), wantB.Name())
	}
}

func TestBeginNameEditAbandons(t *testing.T) {
	got := keyboard.NewBank()
	dec := NewDecoder(got)
	dec.BeginNameEdit()
	dec.Consume([]byte("TGVh"))
	dec.Consume([]byte{NameTerminator, 0x01, 0x00})

	dec.BeginNameEdit()
	if st := dec.State(); st != (State{Phase: PhaseName}) {
		t.Errorf("State() = %+v, want fresh name phase", st)
	}
	if got.Name() != "" {
		t.Errorf("Name() = %q, want empty", got.Name())
	}

	dec.ClearEdition()
	if dec.Phase() != PhaseIdle || dec.Done() {
		t.Errorf("Phase() = %s, Done() = %v after ClearEdition", dec.Phase(), dec.Done())
	}
	if n := dec.Consume([]byte("TGVh")); n != 0 {
		t.Errorf("idle Consume() = %d, want 0", n)
	}
}
