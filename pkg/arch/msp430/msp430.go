// Package msp430 describes the TI MSP430 architecture (16-bit address
// space; MSP430X extended addressing is not covered).
package msp430

import (
	"encoding/binary"
	"fmt"

	"github.com/remotedbg/gdbtarget/pkg/arch"
)

// Wire layout: the sixteen 16-bit registers pc (r0), sp (r1), sr (r2),
// cg (r3) and r4..r15. cg is the constant generator and has no
// architectural state; it is always serialized as unknown.
const regsSize = 16 * 2

// Regs is the MSP430 register file.
type Regs struct {
	PC uint16
	SP uint16
	SR uint16
	R  [12]uint16 // r4..r15
}

func (r *Regs) Serialize(sink arch.ByteSink) {
	sink.Uint16LE(r.PC)
	sink.Uint16LE(r.SP)
	sink.Uint16LE(r.SR)
	sink.Skip(2) // cg
	for _, reg := range r.R {
		sink.Uint16LE(reg)
	}
}

func (r *Regs) Deserialize(buf []byte) error {
	if len(buf) != regsSize {
		return fmt.Errorf("%w: got %d bytes, want %d", arch.ErrMalformedInput, len(buf), regsSize)
	}
	r.PC = binary.LittleEndian.Uint16(buf[0:])
	r.SP = binary.LittleEndian.Uint16(buf[2:])
	r.SR = binary.LittleEndian.Uint16(buf[4:])
	// buf[6:8] is cg, ignored.
	for i := range r.R {
		r.R[i] = binary.LittleEndian.Uint16(buf[8+i*2:])
	}
	return nil
}

// Arch is the MSP430 architecture descriptor.
type Arch struct{}

var _ arch.Arch[uint16, *Regs] = Arch{}

func (Arch) PtrSize() int { return 2 }

func (Arch) RegsSize() int { return regsSize }

func (Arch) NewRegisters() *Regs { return new(Regs) }

func (Arch) TargetDescription() string {
	return `<target version="1.0"><architecture>msp430</architecture></target>`
}
