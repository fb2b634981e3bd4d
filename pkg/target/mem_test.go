package target

import (
	"bytes"
	"testing"
)

// countingTarget records every memory read that reaches the target.
type countingTarget struct {
	fakeTarget
	reads []memAccess
}

type memAccess struct {
	addr uint32
	size int
}

func (ct *countingTarget) ReadAddrs(start uint32, data []byte) (bool, error) {
	ct.reads = append(ct.reads, memAccess{start, len(data)})
	return ct.fakeTarget.ReadAddrs(start, data)
}

func newCountingTarget(t *testing.T) (*countingTarget, *CachedMemory[uint32, *fakeRegs]) {
	t.Helper()
	ct := &countingTarget{}
	for i := range ct.mem {
		ct.mem[i] = byte(i)
	}
	cm, err := NewCachedMemory[uint32, *fakeRegs](ct, 4)
	assertNoError(err, t, "NewCachedMemory")
	return ct, cm
}

func TestCachedMemoryRead(t *testing.T) {
	ct, cm := newCountingTarget(t)

	buf := make([]byte, 16)
	ok, err := cm.ReadAddrs(0x1010, buf)
	assertNoError(err, t, "ReadAddrs")
	if !ok {
		t.Fatal("read refused")
	}
	want := make([]byte, 16)
	for i := range want {
		want[i] = byte(0x10 + i)
	}
	if !bytes.Equal(buf, want) {
		t.Fatalf("read % x, want % x", buf, want)
	}

	// A second overlapping read on the same page is served from the cache.
	ok, err = cm.ReadAddrs(0x1004, buf)
	assertNoError(err, t, "second ReadAddrs")
	if !ok || buf[0] != 0x04 {
		t.Fatalf("second read: ok=%v buf[0]=%#x", ok, buf[0])
	}
	if len(ct.reads) != 1 {
		t.Errorf("target saw %d reads, want 1 (page fill)", len(ct.reads))
	}
	if ct.reads[0] != (memAccess{0x1000, pageSize}) {
		t.Errorf("page fill = %+v, want {0x1000 %d}", ct.reads[0], pageSize)
	}
}

func TestCachedMemoryReadAcrossPages(t *testing.T) {
	ct, cm := newCountingTarget(t)

	buf := make([]byte, 0x40)
	ok, err := cm.ReadAddrs(0x10f0, buf)
	assertNoError(err, t, "ReadAddrs")
	if !ok {
		t.Fatal("read refused")
	}
	for i, b := range buf {
		if b != byte(0xf0+i) {
			t.Fatalf("byte %d = %#x, want %#x", i, b, byte(0xf0+i))
		}
	}
	if len(ct.reads) != 2 {
		t.Errorf("target saw %d reads, want 2 page fills", len(ct.reads))
	}
}

func TestCachedMemoryWriteInvalidates(t *testing.T) {
	ct, cm := newCountingTarget(t)

	buf := make([]byte, 4)
	_, err := cm.ReadAddrs(0x1000, buf)
	assertNoError(err, t, "ReadAddrs")

	ok, err := cm.WriteAddrs(0x1002, []byte{0xaa})
	assertNoError(err, t, "WriteAddrs")
	if !ok {
		t.Fatal("write refused")
	}

	_, err = cm.ReadAddrs(0x1000, buf)
	assertNoError(err, t, "ReadAddrs after write")
	if buf[2] != 0xaa {
		t.Fatalf("stale cache after write: % x", buf)
	}
	if len(ct.reads) != 2 {
		t.Errorf("target saw %d reads, want 2 (page refilled after invalidation)", len(ct.reads))
	}
}

func TestCachedMemoryFlush(t *testing.T) {
	ct, cm := newCountingTarget(t)

	buf := make([]byte, 4)
	_, err := cm.ReadAddrs(0x1000, buf)
	assertNoError(err, t, "ReadAddrs")
	cm.Flush()
	_, err = cm.ReadAddrs(0x1000, buf)
	assertNoError(err, t, "ReadAddrs after Flush")
	if len(ct.reads) != 2 {
		t.Errorf("target saw %d reads, want 2 (cache flushed)", len(ct.reads))
	}
}

func TestCachedMemoryInaccessible(t *testing.T) {
	ct, cm := newCountingTarget(t)

	// The page straddling the mapping boundary cannot be filled; the
	// request falls back to a direct access, which also fails here.
	ok, err := cm.ReadAddrs(0x0f80, make([]byte, 4))
	assertNoError(err, t, "ReadAddrs")
	if ok {
		t.Fatal("expected the read to be refused")
	}

	if len(ct.reads) != 2 {
		t.Errorf("target saw %d reads, want 2 (page fill attempt, then direct)", len(ct.reads))
	}

	// Nothing about the failure poisoned the cache.
	buf := make([]byte, 4)
	ok, err = cm.ReadAddrs(0x1000, buf)
	assertNoError(err, t, "ReadAddrs")
	if !ok || buf[0] != 0 {
		t.Fatalf("mapped read after failure: ok=%v buf=% x", ok, buf)
	}
}
