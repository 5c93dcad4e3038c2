package xhci

import "fmt"

// Ring is a contiguous array of TRBs, at a caller-supplied base address, whose
// last slot is a Link TRB pointing back to the first with the
// Toggle-Cycle bit set, so the producer's cycle state flips on every
// wrap, per spec.md §4.3 ("xHCI ring").
type Ring struct {
	trbs    []TRB // trbs[len(trbs)-1] is always the Link TRB
	baseAddr uint32
	enqueue int
	dequeue int
	cycle   uint32 // 0 or 1, current producer cycle state
}

// NewRing allocates a ring of n data TRB slots plus one trailing Link
// TRB, backed by coherent memory starting at baseAddr (the address the
// DMA-visible Link TRB's pointer field should reference).
func NewRing(baseAddr uint32, n int) *Ring {
	r := &Ring{
		trbs:     make([]TRB, n+1),
		baseAddr: baseAddr,
		cycle:    1,
	}

	link := n
	r.trbs[link] = TRB{
		Parameter1: baseAddr,
		Control:    uint32(TRBTypeLink<<controlTRBTypeShift) | controlToggleCycle,
	}

	return r
}

// GetEnqueueTRB returns a pointer to the next free slot for the caller to
// fill in, stamped with the ring's current cycle bit by the caller (per
// EnqueueTRB's pattern of ORing in m_pTransferRing->GetCycleState()), and
// advances past it -- crossing the Link TRB flips CycleState() and wraps
// back to slot 0.
func (r *Ring) GetEnqueueTRB() *TRB {
	trb := &r.trbs[r.enqueue]
	r.advance()
	return trb
}

func (r *Ring) advance() {
	r.enqueue++
	if r.enqueue == len(r.trbs)-1 { // hit the Link TRB
		r.trbs[r.enqueue].Control = (r.trbs[r.enqueue].Control &^ controlCycleBit) | r.cycle
		r.cycle ^= 1
		r.enqueue = 0
	}
}

// CycleState returns the producer's current cycle bit (0 or 1), to be
// ORed into a TRB's Control field before GetEnqueueTRB's slot is
// published to the controller.
func (r *Ring) CycleState() uint32 { return r.cycle }

// EnqueueAddr returns the DMA-visible address of the slot the next
// GetEnqueueTRB call will hand out, for a caller that mirrors this ring's
// producer-side TRBs into coherent memory for the controller to read.
func (r *Ring) EnqueueAddr() uint32 { return r.baseAddr + uint32(r.enqueue)*16 }

// FirstTRB returns the DMA-visible address of slot 0, for programming an
// endpoint context's TR Dequeue Pointer.
func (r *Ring) FirstTRB() uint32 { return r.baseAddr }

// Dequeue advances the consumer index by one slot (wrapping over the
// Link TRB, which the consumer never inspects) and returns the TRB that
// was at the old position.
func (r *Ring) Dequeue() *TRB {
	trb := &r.trbs[r.dequeue]
	r.dequeue++
	if r.dequeue == len(r.trbs)-1 {
		r.dequeue = 0
	}
	return trb
}

// SetDequeuePointer resets the consumer index to point at the TRB at
// DMA address addr (at or above the ring's base), per a Set-TR-Dequeue-Pointer
// command issued after an endpoint reset.
func (r *Ring) SetDequeuePointer(addr uint32) error {
	if addr < r.baseAddr {
		return fmt.Errorf("xhci: dequeue pointer %#x below ring base %#x", addr, r.baseAddr)
	}
	offset := (addr - r.baseAddr) / 16
	if int(offset) >= len(r.trbs)-1 {
		return fmt.Errorf("xhci: dequeue pointer %#x out of range", addr)
	}
	r.dequeue = int(offset)
	return nil
}
