package coherent

import "testing"

func TestAllocZeroed(t *testing.T) {
	r := NewFakeRegion(4096)

	addr, err := r.Alloc(64, 32, 0)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if addr%32 != 0 {
		t.Fatalf("addr %#x not 32-byte aligned", addr)
	}

	buf := r.Bytes(addr, 64)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %#x", i, b)
		}
	}

	buf[0] = 0xff
	if got := r.Bytes(addr, 64)[0]; got != 0xff {
		t.Fatalf("Bytes view not live: got %#x", got)
	}
}

func TestAllocFreeReuse(t *testing.T) {
	r := NewFakeRegion(256)

	a1, err := r.Alloc(128, 0, 0)
	if err != nil {
		t.Fatalf("Alloc a1: %v", err)
	}

	r.Free(a1)

	a2, err := r.Alloc(128, 0, 0)
	if err != nil {
		t.Fatalf("Alloc a2: %v", err)
	}

	if a1 != a2 {
		t.Fatalf("expected freed block to be reused: a1=%#x a2=%#x", a1, a2)
	}
}

func TestAllocExhaustion(t *testing.T) {
	r := NewFakeRegion(64)

	if _, err := r.Alloc(128, 0, 0); err == nil {
		t.Fatal("expected exhaustion error")
	}
}

func TestAllocBoundary(t *testing.T) {
	// A region sized so the first-fit block spans a 64-byte boundary;
	// requesting an allocation that must not cross it should skip ahead.
	r := NewFakeRegion(128)

	// Consume bytes up to 32 before the 64-byte boundary (base 0x1000).
	if _, err := r.Alloc(32, 4, 0); err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	addr, err := r.Alloc(40, 4, 64)
	if err != nil {
		t.Fatalf("Alloc with boundary: %v", err)
	}

	if addr/64 != (addr+40-1)/64 {
		t.Fatalf("allocation at %#x size 40 crosses 64-byte boundary", addr)
	}
}

func TestDefragCoalescesAdjacentFreeBlocks(t *testing.T) {
	r := NewFakeRegion(256)

	a, _ := r.Alloc(64, 0, 0)
	b, _ := r.Alloc(64, 0, 0)

	r.Free(a)
	r.Free(b)

	// After freeing both adjacent blocks, a single allocation spanning
	// their combined size must succeed.
	if _, err := r.Alloc(128, 0, 0); err != nil {
		t.Fatalf("expected coalesced free space to satisfy allocation: %v", err)
	}
}
