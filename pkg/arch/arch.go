// Package arch describes debug target architectures: the address type, the
// register file and the codec used to move register values between the
// target and a remote serial protocol engine.
//
// An architecture is described once, at compile time, by a stateless
// descriptor implementing Arch. The protocol engine never branches on
// pointer size at runtime; widths and layouts are fixed by the descriptor's
// type parameters.
package arch

import (
	"encoding/binary"
	"errors"
)

// Addr is the set of types an architecture may use for addresses: unsigned,
// ordered and convertible to a big-endian byte sequence.
type Addr interface {
	~uint16 | ~uint32 | ~uint64
}

// AddrSize returns the width in bytes of the address type A.
func AddrSize[A Addr]() int {
	switch uint64(^A(0)) {
	case 0xffff:
		return 2
	case 0xffffffff:
		return 4
	default:
		return 8
	}
}

// AppendBE appends v to p as a big-endian integer of the address type's
// full width. The remote protocol formats addresses (e.g. in stop replies)
// most significant byte first regardless of target byte order.
func AppendBE[A Addr](p []byte, v A) []byte {
	for i := AddrSize[A]() - 1; i >= 0; i-- {
		p = append(p, byte(uint64(v)>>(8*i)))
	}
	return p
}

// ByteSink receives the register bytestream produced by Registers.Serialize.
// When known is false the byte's position is part of the stream but its
// value has not been collected; the engine must render it as an explicit
// placeholder, never as zero.
type ByteSink func(b byte, known bool)

// Uint16LE emits v as two little-endian bytes.
func (sink ByteSink) Uint16LE(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	sink(buf[0], true)
	sink(buf[1], true)
}

// Uint32LE emits v as four little-endian bytes.
func (sink ByteSink) Uint32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	for _, b := range buf {
		sink(b, true)
	}
}

// Uint64LE emits v as eight little-endian bytes.
func (sink ByteSink) Uint64LE(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	for _, b := range buf {
		sink(b, true)
	}
}

// Skip emits n unknown bytes.
func (sink ByteSink) Skip(n int) {
	for i := 0; i < n; i++ {
		sink(0, false)
	}
}

// ErrMalformedInput is returned (wrapped) by Registers.Deserialize when the
// incoming buffer does not match the architecture's register file layout.
var ErrMalformedInput = errors.New("malformed register payload")

// Registers is the serialization contract for one architecture's register
// file.
//
// Registers are de/serialized in the order specified by the architecture's
// <target>.xml in the GDB source tree; that order is part of the wire
// contract, not an implementation choice. For example, for ARM:
// github.com/bminor/binutils-gdb/blob/master/gdb/features/arm/arm-core.xml
type Registers interface {
	// Serialize emits the register file to sink in wire order. It always
	// emits exactly the architecture's total register width; bytes whose
	// value has not been collected are emitted with known=false.
	Serialize(sink ByteSink)

	// Deserialize populates the register file positionally from buf, whose
	// length must equal the architecture's total register width. On failure
	// it returns an error wrapping ErrMalformedInput and the register file
	// must be discarded by the caller.
	Deserialize(buf []byte) error
}

// Arch ties together an architecture's address type and register file type.
// Implementations are stateless descriptors, one per architecture,
// constructed once and threaded through all calls.
type Arch[A Addr, R Registers] interface {
	// PtrSize returns the size of a pointer in bytes.
	PtrSize() int

	// RegsSize returns the total serialized width of the register file.
	RegsSize() int

	// NewRegisters returns a zeroed register file.
	NewRegisters() R

	// TargetDescription returns the target description XML document that
	// lets GDB auto-detect the architecture, or "" if the architecture opts
	// out (the user must then run `set architecture` manually).
	//
	// See https://sourceware.org/gdb/current/onlinedocs/gdb/Target-Description-Format.html
	TargetDescription() string
}
