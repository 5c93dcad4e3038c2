package xhci

import (
	"encoding/binary"

	"github.com/bcm2835go/bcm2835go/coherent"
)

// EventRing is the consumer-only ring the controller writes completion
// events into; unlike Ring (a producer/consumer pair the driver and
// controller both advance), the driver only ever dequeues an EventRing,
// detecting a pending entry by its cycle bit rather than a doorbell.
type EventRing struct {
	region   *coherent.Region
	baseAddr uint32
	size     int
	dequeue  int
	cycle    uint32
}

// NewEventRing allocates an n-entry event ring in region's coherent
// memory, per XHCI_REG_RT_IR_ERSTBA/ERDP's requirement that the event
// ring segment be DMA-visible.
func NewEventRing(region *coherent.Region, n int) (*EventRing, error) {
	addr, err := region.Alloc(n*16, 64, 0)
	if err != nil {
		return nil, err
	}
	return &EventRing{region: region, baseAddr: addr, size: n, cycle: 1}, nil
}

func decodeTRB(buf []byte) TRB {
	order := binary.LittleEndian
	return TRB{
		Parameter1: order.Uint32(buf[0:]),
		Parameter2: order.Uint32(buf[4:]),
		Status:     order.Uint32(buf[8:]),
		Control:    order.Uint32(buf[12:]),
	}
}

func encodeTRB(trb TRB, buf []byte) {
	order := binary.LittleEndian
	order.PutUint32(buf[0:], trb.Parameter1)
	order.PutUint32(buf[4:], trb.Parameter2)
	order.PutUint32(buf[8:], trb.Status)
	order.PutUint32(buf[12:], trb.Control)
}

// Next returns the event TRB at the current consumer position and
// advances past it, or ok=false if that slot's cycle bit doesn't match
// the ring's current consumer cycle state (no event pending there yet).
func (r *EventRing) Next() (trb TRB, ok bool) {
	addr := r.baseAddr + uint32(r.dequeue)*16
	t := decodeTRB(r.region.Bytes(addr, 16))

	if t.Control&controlCycleBit != r.cycle {
		return TRB{}, false
	}

	r.dequeue++
	if r.dequeue == r.size {
		r.dequeue = 0
		r.cycle ^= 1
	}

	return t, true
}

// BaseAddr returns the ring's DMA-visible base address, for programming
// the interrupter's event ring segment table.
func (r *EventRing) BaseAddr() uint32 { return r.baseAddr }

// DequeueAddr returns the DMA-visible address of the slot Next will read
// next, for updating the interrupter's event ring dequeue pointer
// register after draining pending events.
func (r *EventRing) DequeueAddr() uint32 { return r.baseAddr + uint32(r.dequeue)*16 }

// SimulateEvent writes trb at the ring's current consumer position with
// that position's expected cycle bit set, as if the controller hardware
// had just produced it there, and returns the address written. Real
// hardware is the only producer of event-ring entries; this exists for
// test harnesses standing in for that hardware, not for driver code.
func (r *EventRing) SimulateEvent(trb TRB) uint32 {
	addr := r.baseAddr + uint32(r.dequeue)*16
	trb.Control = (trb.Control &^ controlCycleBit) | r.cycle
	encodeTRB(trb, r.region.Bytes(addr, 16))
	return addr
}
