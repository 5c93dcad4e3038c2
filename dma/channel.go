package dma

// MaxCyclicBuffers bounds the number of control blocks a channel
// pre-allocates, per spec.md §3 ("up to MaxCyclicBuffers, typically 4").
const MaxCyclicBuffers = 4

// CompletionFunc is invoked from IRQ context when a transfer (or, for a
// cyclic transfer, one buffer of the cycle) completes. bufferIndex
// identifies which control block just completed; success reflects the
// hardware error bit.
type CompletionFunc func(channel int, bufferIndex int, success bool, param interface{})

// Channel is one allocated, hardware-backed DMA channel together with its
// pre-allocated control blocks. It corresponds to spec.md §3's "DMA
// channel".
type Channel struct {
	engine *Engine

	num      int
	class    Class
	lite     bool
	extended bool
	base     uint32

	cbAddrs []uint32
	nBuffers int
	bufferAddrs []uint32 // source buffers backing a cyclic chain, for
	                      // post-IRQ invalidation of the *next* buffer

	destAddr uint32 // recorded for post-transfer invalidation (0 = none)
	destLen  int

	completion      CompletionFunc
	completionParam interface{}
	irqConnected    bool
	irqLine         int

	currentBuffer int
	status        bool
}

// Number returns the hardware channel number.
func (ch *Channel) Number() int { return ch.num }

// BufferView returns the live coherent-memory view of a previously
// allocated DMA buffer, for callers (the sound back ends) that need to
// write sample data directly into a buffer the channel will read from.
func (ch *Channel) BufferView(addr uint32, size int) []byte {
	return ch.engine.region.Bytes(addr, size)
}

// AllocBuffer reserves size bytes of coherent memory from the channel's
// engine for use as a DMA source/destination buffer (word-aligned, no
// boundary constraint).
func (ch *Channel) AllocBuffer(size int) (uint32, error) {
	return ch.engine.region.Alloc(size, 4, 0)
}

// Engine returns the channel's owning engine, for callers that need to
// drive its interrupt controller directly (e.g. test harnesses
// simulating hardware IRQ delivery).
func (ch *Channel) Engine() *Engine { return ch.engine }

// IRQLine returns the interrupt line this channel's completion routine is
// attached to. Only meaningful after SetCompletionRoutine.
func (ch *Channel) IRQLine() int { return ch.irqLine }

// StatusRegisterAddr returns the address of the channel's CS register,
// for test harnesses that need to seed it before simulating an IRQ.
func (ch *Channel) StatusRegisterAddr() uint32 { return ch.base + regCS }

func (ch *Channel) lengthCap() uint32 {
	if ch.lite {
		return TXFRLenMaxLite
	}
	return TXFRLenMax
}

// resetHardware enables the channel and resets it. Extended channels
// have no CS reset bit; CDMA4Channel's constructor instead resets via
// the DEBUG register's DEBUG4_RESET bit, so that path is used for them.
func (ch *Channel) resetHardware() {
	e := ch.engine

	e.bus.PeripheralEntry()
	e.bus.Write32(e.dmaEnableReg, e.bus.Read32(e.dmaEnableReg)|(1<<uint(ch.num)))
	if ch.extended {
		e.bus.Write32(ch.base+regDebug, debug40Reset)
	} else {
		e.bus.Write32(ch.base+regCS, csReset)
	}
	e.bus.PeripheralExit()
}

// writeControlBlock encodes cb into control block slot i's coherent
// memory and cleans+invalidates it so the DMA master sees the final
// bytes.
func (ch *Channel) writeControlBlock(i int, cb ControlBlock) {
	e := ch.engine
	addr := ch.cbAddrs[i]
	buf := e.region.Bytes(addr, ControlBlockSize)
	cb.Encode(buf)
	e.cache.CleanAndInvalidate(addr, ControlBlockSize)
}

// writeControlBlock40 is writeControlBlock's counterpart for an Extended
// (DMA4) channel: the control block is the same size, but a different
// wire layout (ControlBlock40.Encode), so Extended channels never share
// writeControlBlock's legacy encoding.
func (ch *Channel) writeControlBlock40(i int, cb ControlBlock40) {
	e := ch.engine
	addr := ch.cbAddrs[i]
	buf := e.region.Bytes(addr, ControlBlock40Size)
	cb.Encode(buf)
	e.cache.CleanAndInvalidate(addr, ControlBlock40Size)
}

// busAddress rebases a coherent-region address into the form the DMA
// master expects. On the legacy controller these are identical for RAM
// addresses (the region is already allocated in DMA-visible space); real
// boards needing an uncached-alias offset apply it here.
func busAddress(addr uint32) uint32 {
	return addr
}

// ioBusAddress rebases a peripheral register address into DMA I/O space,
// per SetupIORead/SetupIOWrite in original_source/lib/dmachannel.cpp
// (mask to the low 24 bits of the peripheral offset, then add the
// GPU-visible I/O base).
func ioBusAddress(peripheralBase, ioAddress uint32) uint32 {
	return (ioAddress & 0xFFFFFF) + peripheralBase
}
