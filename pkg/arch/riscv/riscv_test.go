package riscv

import (
	"errors"
	"testing"

	"github.com/remotedbg/gdbtarget/pkg/arch"
)

func serialize(regs *Regs) (data []byte, known []bool) {
	regs.Serialize(func(b byte, k bool) {
		data = append(data, b)
		known = append(known, k)
	})
	return data, known
}

func TestRoundTrip(t *testing.T) {
	in := &Regs{PC: 0x80000074}
	for i := range in.X {
		in.X[i] = uint32(i * 3)
	}

	data, _ := serialize(in)
	if len(data) != regsSize {
		t.Fatalf("serialized %d bytes, want %d", len(data), regsSize)
	}

	out := new(Regs)
	if err := out.Deserialize(data); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if *out != *in {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", out, in)
	}
}

func TestUncollectedPreserved(t *testing.T) {
	regs := &Regs{Uncollected: 1<<5 | 1<<RegPC}
	regs.X[5] = 0xffffffff // stale value, must not leak onto the wire as bytes

	data, known := serialize(regs)
	if len(data) != regsSize {
		t.Fatalf("serialized %d bytes, want %d", len(data), regsSize)
	}
	for i, k := range known {
		uncollected := (i >= 5*4 && i < 6*4) || i >= RegPC*4
		if k == uncollected {
			t.Errorf("byte %d known = %v with uncollected = %v", i, k, uncollected)
		}
	}
	for i := 5 * 4; i < 6*4; i++ {
		if data[i] != 0 {
			t.Errorf("uncollected register leaked byte %#x at offset %d", data[i], i)
		}
	}
}

func TestDeserializeClearsUncollected(t *testing.T) {
	regs := &Regs{Uncollected: 1 << 3}
	if err := regs.Deserialize(make([]byte, regsSize)); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if regs.Uncollected != 0 {
		t.Errorf("Uncollected = %#x after Deserialize, want 0", regs.Uncollected)
	}
}

func TestDeserializeBadLength(t *testing.T) {
	regs := new(Regs)
	if err := regs.Deserialize(make([]byte, regsSize-1)); !errors.Is(err, arch.ErrMalformedInput) {
		t.Errorf("Deserialize = %v, want ErrMalformedInput", err)
	}
}

func TestDescriptor(t *testing.T) {
	var a arch.Arch[uint32, *Regs] = Arch{}
	if a.PtrSize() != 4 {
		t.Errorf("PtrSize = %d, want 4", a.PtrSize())
	}
	if a.RegsSize() != 33*4 {
		t.Errorf("RegsSize = %d, want %d", a.RegsSize(), 33*4)
	}
	if a.TargetDescription() == "" {
		t.Error("expected a target description")
	}
}
