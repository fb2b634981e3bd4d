// Package riscv describes the RISC-V RV32 architecture.
package riscv

import (
	"encoding/binary"
	"fmt"

	"github.com/remotedbg/gdbtarget/pkg/arch"
)

// Wire layout, per gdb/features/riscv/32bit-cpu.xml: x0..x31 then pc, as
// 32-bit words.
const (
	numRegs  = 33
	regsSize = numRegs * 4
)

// RegPC is the index of pc in the wire order, usable with the Uncollected
// bitmask.
const RegPC = 32

// Regs is the RV32 integer register file. Uncollected is a bitmask of
// registers (bit i for x_i, bit RegPC for pc) whose value is not available;
// those registers serialize as unknown bytes rather than zeros. Backends
// that always have a full register snapshot can leave it zero.
type Regs struct {
	X           [32]uint32
	PC          uint32
	Uncollected uint64
}

func (r *Regs) Serialize(sink arch.ByteSink) {
	for i, reg := range r.X {
		r.emit(sink, i, reg)
	}
	r.emit(sink, RegPC, r.PC)
}

func (r *Regs) emit(sink arch.ByteSink, i int, v uint32) {
	if r.Uncollected&(1<<i) != 0 {
		sink.Skip(4)
		return
	}
	sink.Uint32LE(v)
}

// Deserialize populates the register file from a buffer in wire order.
// Incoming bytes are all concrete, so the Uncollected mask is cleared.
func (r *Regs) Deserialize(buf []byte) error {
	if len(buf) != regsSize {
		return fmt.Errorf("%w: got %d bytes, want %d", arch.ErrMalformedInput, len(buf), regsSize)
	}
	for i := range r.X {
		r.X[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	r.PC = binary.LittleEndian.Uint32(buf[RegPC*4:])
	r.Uncollected = 0
	return nil
}

// Arch is the RV32 architecture descriptor.
type Arch struct{}

var _ arch.Arch[uint32, *Regs] = Arch{}

func (Arch) PtrSize() int { return 4 }

func (Arch) RegsSize() int { return regsSize }

func (Arch) NewRegisters() *Regs { return new(Regs) }

func (Arch) TargetDescription() string {
	return `<target version="1.0"><architecture>riscv:rv32</architecture></target>`
}
