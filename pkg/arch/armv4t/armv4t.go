// Package armv4t describes the ARMv4T architecture (e.g. the ARM7TDMI cores
// common in embedded systems and game consoles).
package armv4t

import (
	"encoding/binary"
	"fmt"

	"github.com/remotedbg/gdbtarget/pkg/arch"
)

// Wire layout, per gdb/features/arm/arm-core.xml: r0..r12, sp, lr, pc as
// 32-bit words, the eight 96-bit FPA registers plus fps (never collected,
// the FPA coprocessor is not modeled), then cpsr.
const (
	coreSize = 17 * 4
	fpaSize  = 25 * 4
	regsSize = coreSize + fpaSize
)

// Regs is the ARMv4T register file.
type Regs struct {
	R    [13]uint32
	SP   uint32
	LR   uint32
	PC   uint32
	CPSR uint32
}

// Serialize emits the register file in arm-core.xml order. The FPA
// registers are emitted as unknown bytes.
func (r *Regs) Serialize(sink arch.ByteSink) {
	for _, reg := range r.R {
		sink.Uint32LE(reg)
	}
	sink.Uint32LE(r.SP)
	sink.Uint32LE(r.LR)
	sink.Uint32LE(r.PC)
	sink.Skip(fpaSize)
	sink.Uint32LE(r.CPSR)
}

// Deserialize populates the register file from a buffer in arm-core.xml
// order. The FPA bytes are ignored.
func (r *Regs) Deserialize(buf []byte) error {
	if len(buf) != regsSize {
		return fmt.Errorf("%w: got %d bytes, want %d", arch.ErrMalformedInput, len(buf), regsSize)
	}
	for i := range r.R {
		r.R[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	r.SP = binary.LittleEndian.Uint32(buf[13*4:])
	r.LR = binary.LittleEndian.Uint32(buf[14*4:])
	r.PC = binary.LittleEndian.Uint32(buf[15*4:])
	r.CPSR = binary.LittleEndian.Uint32(buf[16*4+fpaSize:])
	return nil
}

// Arch is the ARMv4T architecture descriptor.
type Arch struct{}

var _ arch.Arch[uint32, *Regs] = Arch{}

func (Arch) PtrSize() int { return 4 }

func (Arch) RegsSize() int { return regsSize }

func (Arch) NewRegisters() *Regs { return new(Regs) }

func (Arch) TargetDescription() string {
	return `<target version="1.0"><architecture>armv4t</architecture></target>`
}
