package xhci

import "testing"

func TestRingWrapFlipsCycleState(t *testing.T) {
	r := NewRing(0x1000, 4)

	initialCycle := r.CycleState()

	for i := 0; i < 4; i++ {
		trb := r.GetEnqueueTRB()
		trb.Control = uint32(TRBTypeNormal<<controlTRBTypeShift) | r.CycleState()
	}

	if r.CycleState() == initialCycle {
		t.Fatal("expected cycle state to flip after filling the ring and crossing the Link TRB")
	}

	// The Link TRB itself (last slot) must carry the producer's cycle bit
	// from just before the flip, plus the Toggle Cycle bit.
	link := r.trbs[len(r.trbs)-1]
	if link.Control&controlToggleCycle == 0 {
		t.Fatal("expected Link TRB to keep its Toggle Cycle bit")
	}
	if link.Control&controlCycleBit != initialCycle {
		t.Fatalf("Link TRB cycle bit = %d, want %d", link.Control&controlCycleBit, initialCycle)
	}
}

func TestRingSecondWrapFlipsBack(t *testing.T) {
	r := NewRing(0x2000, 2)

	for i := 0; i < 2; i++ {
		r.GetEnqueueTRB()
	}
	afterFirstWrap := r.CycleState()

	for i := 0; i < 2; i++ {
		r.GetEnqueueTRB()
	}
	afterSecondWrap := r.CycleState()

	if afterSecondWrap == afterFirstWrap {
		t.Fatal("expected a second wrap to flip the cycle state again")
	}
}

func TestRingFirstTRBIsRingBase(t *testing.T) {
	r := NewRing(0x4000, 8)
	if r.FirstTRB() != 0x4000 {
		t.Fatalf("FirstTRB = %#x, want 0x4000", r.FirstTRB())
	}
}

func TestRingSetDequeuePointer(t *testing.T) {
	r := NewRing(0x1000, 4)

	if err := r.SetDequeuePointer(0x1000 + 2*16); err != nil {
		t.Fatalf("SetDequeuePointer: %v", err)
	}
	if r.dequeue != 2 {
		t.Fatalf("dequeue = %d, want 2", r.dequeue)
	}

	if err := r.SetDequeuePointer(0x0FF0); err == nil {
		t.Fatal("expected error for an address below the ring base")
	}
}
