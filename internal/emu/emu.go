// Package emu implements a small ARMv4 machine: one RAM window and a core
// executing a subset of the ARM instruction set (data processing with
// immediate and shifted-register operands, word/byte loads and stores with
// immediate offset, branches, BKPT and SWI). It exists to exercise the
// target execution contract end to end and backs the armv4temu demo binary.
package emu

import (
	"encoding/binary"
	"errors"

	"github.com/remotedbg/gdbtarget/pkg/arch/armv4t"
	"github.com/remotedbg/gdbtarget/pkg/logflags"
	"github.com/remotedbg/gdbtarget/pkg/target"
)

// ErrMachineClosed is the fatal error returned by every operation after
// Close. It models a severed connection to the target hardware.
var ErrMachineClosed = errors.New("machine closed")

// Machine is the emulated system. It implements
// target.Target[uint32, *armv4t.Regs].
type Machine struct {
	regs armv4t.Regs
	ram  []byte
	base uint32

	closed bool
	trace  bool
	log    logflags.Logger
}

var _ target.Target[uint32, *armv4t.Regs] = (*Machine)(nil)

// New returns a Machine with size bytes of RAM mapped at base. Accesses
// outside the RAM window fault.
func New(base uint32, size int) *Machine {
	return &Machine{
		ram:   make([]byte, size),
		base:  base,
		trace: logflags.Emu(),
		log:   logflags.EmuLogger(),
	}
}

// Regs gives direct access to the register file for machine setup (entry
// point, initial stack). Debugging sessions go through the Target
// interface instead.
func (m *Machine) Regs() *armv4t.Regs {
	return &m.regs
}

// LoadImage copies a raw binary image into RAM at addr.
func (m *Machine) LoadImage(addr uint32, image []byte) error {
	if !m.mapped(addr, len(image)) {
		return errors.New("image does not fit in RAM")
	}
	copy(m.ram[addr-m.base:], image)
	return nil
}

// Close severs the machine. Every subsequent operation fails with
// ErrMachineClosed.
func (m *Machine) Close() {
	m.closed = true
}

// Resume runs the core until it stops. checkInterrupt is polled once per
// instruction. Signals carry no meaning on this bare-metal core; a signal
// attached to the resume action is dropped.
func (m *Machine) Resume(action target.ResumeAction, checkInterrupt func() bool) (target.StopReason[uint32], error) {
	if m.closed {
		return target.StopReason[uint32]{}, ErrMachineClosed
	}
	if action.Signal != target.SignalNone {
		m.log.Debugf("dropping signal %d on resume", action.Signal)
	}
	for {
		if checkInterrupt != nil && checkInterrupt() {
			return target.StopReason[uint32]{Kind: target.StopInterrupt}, nil
		}
		if stop := m.step(); stop != nil {
			return *stop, nil
		}
		if action.Step {
			return target.StopReason[uint32]{Kind: target.StopDoneStep}, nil
		}
	}
}

// ReadRegisters copies the full register file into regs.
func (m *Machine) ReadRegisters(regs *armv4t.Regs) error {
	if m.closed {
		return ErrMachineClosed
	}
	*regs = m.regs
	return nil
}

// WriteRegisters replaces the full register file.
func (m *Machine) WriteRegisters(regs *armv4t.Regs) error {
	if m.closed {
		return ErrMachineClosed
	}
	m.regs = *regs
	return nil
}

// ReadAddrs reads RAM. Ranges outside the RAM window return (false, nil).
func (m *Machine) ReadAddrs(start uint32, data []byte) (bool, error) {
	if m.closed {
		return false, ErrMachineClosed
	}
	if !m.mapped(start, len(data)) {
		return false, nil
	}
	copy(data, m.ram[start-m.base:])
	return true, nil
}

// WriteAddrs writes RAM, with the same non-fatal result as ReadAddrs.
func (m *Machine) WriteAddrs(start uint32, data []byte) (bool, error) {
	if m.closed {
		return false, ErrMachineClosed
	}
	if !m.mapped(start, len(data)) {
		return false, nil
	}
	copy(m.ram[start-m.base:], data)
	return true, nil
}

func (m *Machine) mapped(start uint32, n int) bool {
	end := uint64(start) + uint64(n)
	return start >= m.base && end <= uint64(m.base)+uint64(len(m.ram))
}

func (m *Machine) fetch(addr uint32) (uint32, bool) {
	if addr%4 != 0 || !m.mapped(addr, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.ram[addr-m.base:]), true
}
