package emu

import (
	"encoding/binary"
	"math/bits"

	"golang.org/x/arch/arm/armasm"

	"github.com/remotedbg/gdbtarget/pkg/target"
)

// CPSR condition flags.
const (
	flagN = uint32(1) << 31
	flagZ = uint32(1) << 30
	flagC = uint32(1) << 29
	flagV = uint32(1) << 28
)

// step executes one instruction. It returns nil if execution can continue,
// or the stop reason ending the run.
//
// On a fault (unmapped access, undefined instruction) the PC is left at the
// offending instruction and the corresponding signal is reported; the stop
// is not terminal and the operator may inspect or patch the machine.
func (m *Machine) step() *target.StopReason[uint32] {
	addr := m.regs.PC
	instr, ok := m.fetch(addr)
	if !ok {
		return &target.StopReason[uint32]{Kind: target.StopSignal, Signal: target.SIGSEGV}
	}
	if m.trace {
		m.traceInstr(addr, instr)
	}
	m.regs.PC = addr + 4

	if !condPass(instr>>28, m.regs.CPSR) {
		return nil
	}

	switch {
	case instr&0x0fff00f0 == 0x01200070: // BKPT
		// The trap is taken with the PC already advanced past the
		// instruction; roll it back so the reported PC is the breakpoint
		// address, as the remote protocol requires.
		m.regs.PC = addr
		return &target.StopReason[uint32]{Kind: target.StopSwBreak}
	case instr&0x0f000000 == 0x0f000000: // SWI
		return m.swi(instr & 0x00ffffff)
	case instr&0x0e000000 == 0x0a000000: // B/BL
		if instr&(1<<24) != 0 {
			m.regs.LR = addr + 4
		}
		off := int32(instr<<8) >> 6 // imm24, sign-extended, times 4
		m.regs.PC = uint32(int32(addr+8) + off)
		return nil
	case instr&0x0c000000 == 0x04000000: // LDR/STR
		return m.loadStore(instr)
	case instr&0x0c000000 == 0x00000000: // data processing
		return m.dataProc(instr)
	}
	return m.undef()
}

func (m *Machine) undef() *target.StopReason[uint32] {
	m.regs.PC -= 4
	return &target.StopReason[uint32]{Kind: target.StopSignal, Signal: target.SIGILL}
}

func (m *Machine) swi(imm uint32) *target.StopReason[uint32] {
	if imm == 0 {
		// SWI #0 is the exit call: r0 holds the exit code.
		return &target.StopReason[uint32]{Kind: target.StopExited, Status: int(m.regs.R[0])}
	}
	return &target.StopReason[uint32]{Kind: target.StopSignal, Signal: target.SIGSYS}
}

// reg reads register r; r15 reads as the current instruction address plus 8.
func (m *Machine) reg(r uint32) uint32 {
	switch r {
	case 13:
		return m.regs.SP
	case 14:
		return m.regs.LR
	case 15:
		return m.regs.PC + 4
	default:
		return m.regs.R[r]
	}
}

func (m *Machine) setReg(r, v uint32) {
	switch r {
	case 13:
		m.regs.SP = v
	case 14:
		m.regs.LR = v
	case 15:
		m.regs.PC = v
	default:
		m.regs.R[r] = v
	}
}

func (m *Machine) dataProc(instr uint32) *target.StopReason[uint32] {
	if instr&0x0fc000f0 == 0x00000090 { // multiply, not modeled
		return m.undef()
	}
	opcode := (instr >> 21) & 0xf
	setflags := instr&(1<<20) != 0
	rn := (instr >> 16) & 0xf
	rd := (instr >> 12) & 0xf

	op2, shiftCarry, ok := m.operand2(instr)
	if !ok {
		return m.undef()
	}
	a := m.reg(rn)

	var res uint32
	writeback := true
	// Logical operations take C from the shifter and leave V alone;
	// arithmetic ones overwrite both below.
	carry, overflow := shiftCarry, m.regs.CPSR&flagV != 0

	switch opcode {
	case 0x0: // AND
		res = a & op2
	case 0x1: // EOR
		res = a ^ op2
	case 0x2: // SUB
		res = a - op2
		carry, overflow = a >= op2, subOverflow(a, op2, res)
	case 0x3: // RSB
		res = op2 - a
		carry, overflow = op2 >= a, subOverflow(op2, a, res)
	case 0x4: // ADD
		res = a + op2
		carry, overflow = res < a, addOverflow(a, op2, res)
	case 0x8: // TST
		res, writeback = a&op2, false
	case 0x9: // TEQ
		res, writeback = a^op2, false
	case 0xa: // CMP
		res, writeback = a-op2, false
		carry, overflow = a >= op2, subOverflow(a, op2, res)
	case 0xb: // CMN
		res, writeback = a+op2, false
		carry, overflow = res < a, addOverflow(a, op2, res)
	case 0xc: // ORR
		res = a | op2
	case 0xd: // MOV
		res = op2
	case 0xe: // BIC
		res = a &^ op2
	case 0xf: // MVN
		res = ^op2
	default: // ADC/SBC/RSC, not modeled
		return m.undef()
	}

	if setflags {
		if rd == 15 {
			// S with rd=15 restores SPSR from a privileged mode; there is
			// no banked state on this machine.
			return m.undef()
		}
		m.setNZCV(res, carry, overflow)
	}
	if writeback {
		m.setReg(rd, res)
	}
	return nil
}

// operand2 evaluates the shifter operand and its carry-out. Shifts by a
// register amount and RRX are not modeled.
func (m *Machine) operand2(instr uint32) (val uint32, carry bool, ok bool) {
	carryIn := m.regs.CPSR&flagC != 0
	if instr&(1<<25) != 0 { // rotated immediate
		imm := instr & 0xff
		rot := ((instr >> 8) & 0xf) * 2
		val = bits.RotateLeft32(imm, -int(rot))
		if rot == 0 {
			return val, carryIn, true
		}
		return val, val>>31 != 0, true
	}

	if instr&(1<<4) != 0 { // shift by register
		return 0, false, false
	}
	rm := m.reg(instr & 0xf)
	shift := (instr >> 7) & 0x1f
	switch (instr >> 5) & 3 {
	case 0: // LSL
		if shift == 0 {
			return rm, carryIn, true
		}
		return rm << shift, rm>>(32-shift)&1 != 0, true
	case 1: // LSR, shift 0 encodes LSR #32
		if shift == 0 {
			return 0, rm>>31 != 0, true
		}
		return rm >> shift, rm>>(shift-1)&1 != 0, true
	case 2: // ASR, shift 0 encodes ASR #32
		if shift == 0 {
			return uint32(int32(rm) >> 31), rm>>31 != 0, true
		}
		return uint32(int32(rm) >> shift), rm>>(shift-1)&1 != 0, true
	default: // ROR, shift 0 encodes RRX
		if shift == 0 {
			return 0, false, false
		}
		val = bits.RotateLeft32(rm, -int(shift))
		return val, val>>31 != 0, true
	}
}

// loadStore executes LDR/STR/LDRB/STRB with an immediate offset,
// pre-indexed without writeback. Other addressing modes are not modeled.
func (m *Machine) loadStore(instr uint32) *target.StopReason[uint32] {
	if instr&(1<<25) != 0 { // register offset
		return m.undef()
	}
	pre := instr&(1<<24) != 0
	up := instr&(1<<23) != 0
	byteOp := instr&(1<<22) != 0
	wb := instr&(1<<21) != 0
	load := instr&(1<<20) != 0
	if !pre || wb {
		return m.undef()
	}

	rn := (instr >> 16) & 0xf
	rd := (instr >> 12) & 0xf
	off := instr & 0xfff
	addr := m.reg(rn)
	if up {
		addr += off
	} else {
		addr -= off
	}

	size := 4
	if byteOp {
		size = 1
	}
	if !m.mapped(addr, size) {
		m.regs.PC -= 4
		return &target.StopReason[uint32]{Kind: target.StopSignal, Signal: target.SIGSEGV}
	}

	ram := m.ram[addr-m.base:]
	switch {
	case load && byteOp:
		m.setReg(rd, uint32(ram[0]))
	case load:
		m.setReg(rd, binary.LittleEndian.Uint32(ram))
	case byteOp:
		ram[0] = byte(m.reg(rd))
	default:
		binary.LittleEndian.PutUint32(ram, m.reg(rd))
	}
	return nil
}

func (m *Machine) setNZCV(res uint32, carry, overflow bool) {
	cpsr := m.regs.CPSR &^ (flagN | flagZ | flagC | flagV)
	if res>>31 != 0 {
		cpsr |= flagN
	}
	if res == 0 {
		cpsr |= flagZ
	}
	if carry {
		cpsr |= flagC
	}
	if overflow {
		cpsr |= flagV
	}
	m.regs.CPSR = cpsr
}

func addOverflow(a, b, res uint32) bool {
	return (a^res)&(b^res)>>31 != 0
}

func subOverflow(a, b, res uint32) bool {
	return (a^b)&(a^res)>>31 != 0
}

func condPass(cond, cpsr uint32) bool {
	n := cpsr&flagN != 0
	z := cpsr&flagZ != 0
	c := cpsr&flagC != 0
	v := cpsr&flagV != 0
	switch cond {
	case 0x0: // EQ
		return z
	case 0x1: // NE
		return !z
	case 0x2: // CS
		return c
	case 0x3: // CC
		return !c
	case 0x4: // MI
		return n
	case 0x5: // PL
		return !n
	case 0x6: // VS
		return v
	case 0x7: // VC
		return !v
	case 0x8: // HI
		return c && !z
	case 0x9: // LS
		return !c || z
	case 0xa: // GE
		return n == v
	case 0xb: // LT
		return n != v
	case 0xc: // GT
		return !z && n == v
	case 0xd: // LE
		return z || n != v
	case 0xe: // AL
		return true
	default: // 0xf is unpredictable on ARMv4
		return false
	}
}

func (m *Machine) traceInstr(addr, instr uint32) {
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], instr)
	inst, err := armasm.Decode(word[:], armasm.ModeARM)
	if err != nil {
		m.log.Debugf("%08x  .word 0x%08x", addr, instr)
		return
	}
	m.log.Debugf("%08x  %s", addr, armasm.GNUSyntax(inst))
}
