package dma

import (
	"fmt"

	"github.com/bcm2835go/bcm2835go/cache"
	"github.com/bcm2835go/bcm2835go/coherent"
	"github.com/bcm2835go/bcm2835go/irq"
	"github.com/bcm2835go/bcm2835go/logging"
	"github.com/bcm2835go/bcm2835go/mmio"
)

// Legacy (32-bit) controller register layout, per-channel base and
// offsets, adapted from soc/bcm2835/dma.go.
const (
	chBase0 = 0x7000
	chBase15 = 0x5000
	chSpan  = 0x100

	regCS        = 0x00
	regConblkAD  = 0x04
	regTI        = 0x08 // mirrored into the control block, not written directly
	regNextConbk = 0x1C
	regDebug     = 0x20

	csActive  = 1 << 0
	csEnd     = 1 << 1
	csInt     = 1 << 2
	csError   = 1 << 8
	csWaitForOutstandingWrites = 1 << 28
	csReset   = 1 << 31

	debugLite = 1 << 28

	defaultPriority      = 0
	defaultPanicPriority = 0
	csPrioShift          = 16
	csPanicPrioShift     = 20
)

// DMA4 (Extended, channels 11-14) register bits, per
// original_source/lib/dma4channel.cpp's ARM_DMA4CHAN_CS fields. The
// channel base/stride and the CONBLK_AD/TI/NEXTCONBK offsets are shared
// with the legacy layout above; only the CS bit positions and the
// control-block-address encoding differ.
const (
	cs40Active  = 1 << 0
	cs40End     = 1 << 1
	cs40Int     = 1 << 2
	cs40Error   = 1 << 10
	cs40QosShift      = 16
	cs40PanicQosShift = 20
	cs40WaitForOutstandingWrites = 1 << 28
	cs40Abort                    = 1 << 30
	cs40Halt                     = 1 << 31

	defaultQos40       = 1
	defaultPanicQos40  = 15

	conblkAD4Shift = 5

	debug40Reset = 1 << 23
)

// Engine owns the resources shared by every channel it creates: the
// channel pool, the coherent memory region backing control blocks and
// cyclic buffers, the register bus, cache maintenance, and interrupt
// attach point. It corresponds to "DMA engine" + "DMA channel pool" in
// spec.md's component table -- one Engine per physical DMA controller
// pair (legacy + 40-bit).
type Engine struct {
	bus    mmio.Bus
	cache  cache.Maintainer
	region *coherent.Region
	irqc   *irq.Controller
	pool   *Pool
	log    *logging.Logger

	peripheralBase uint32
	dmaEnableReg   uint32
	intStatusReg   uint32
	dmaIRQBase     int // IRQ line for channel 0; channel n uses dmaIRQBase+n
}

// Config bundles the dependencies and machine-specific addresses needed
// to construct an Engine.
type Config struct {
	Bus            mmio.Bus
	Cache          cache.Maintainer
	Region         *coherent.Region
	IRQ            *irq.Controller
	Log            *logging.Logger
	PeripheralBase uint32
	DMAEnableReg   uint32
	IntStatusReg   uint32
	DMAIRQBase     int
	AvailableMask  uint32
	LiteMask       uint32
	ExtendedMask   uint32
}

// NewEngine constructs an Engine from cfg.
func NewEngine(cfg Config) *Engine {
	l := cfg.Log
	if l == nil {
		l = logging.Discard
	}

	return &Engine{
		bus:            cfg.Bus,
		cache:          cfg.Cache,
		region:         cfg.Region,
		irqc:           cfg.IRQ,
		pool:           NewPool(cfg.AvailableMask, cfg.LiteMask, cfg.ExtendedMask),
		log:            l,
		peripheralBase: cfg.PeripheralBase,
		dmaEnableReg:   cfg.DMAEnableReg,
		intStatusReg:   cfg.IntStatusReg,
		dmaIRQBase:     cfg.DMAIRQBase,
	}
}

// Dispatch forwards to the engine's interrupt controller, for test
// harnesses simulating hardware IRQ delivery.
func (e *Engine) Dispatch(line int) { e.irqc.Dispatch(line) }

func (e *Engine) channelBase(n int) uint32 {
	if n == 15 {
		return e.peripheralBase + chBase15
	}
	return e.peripheralBase + chBase0 + uint32(n)*chSpan
}

// NewChannel allocates a channel of the given class (explicitChannel >= 0
// overrides class selection with a specific channel number), resets the
// hardware channel, and pre-allocates up to MaxCyclicBuffers control
// blocks in coherent memory, per spec.md §4.2.
func (e *Engine) NewChannel(class Class, explicitChannel int) (*Channel, error) {
	n, err := e.pool.Alloc(class, explicitChannel)
	if err != nil {
		return nil, err
	}

	cbAlign := ControlBlockAlign
	cbs := make([]uint32, MaxCyclicBuffers)

	for i := range cbs {
		addr, err := e.region.Alloc(ControlBlockSize, cbAlign, 0)
		if err != nil {
			e.pool.Free(n)
			return nil, fmt.Errorf("dma: allocating control block %d: %w", i, err)
		}
		cbs[i] = addr
	}

	ch := &Channel{
		engine:   e,
		num:      n,
		class:    class,
		cbAddrs:  cbs,
		base:     e.channelBase(n),
		lite:     e.pool.IsLite(n),
		extended: e.pool.IsExtended(n),
	}

	ch.resetHardware()

	return ch, nil
}

// Free releases a channel's control blocks and hardware back to the pool.
// The channel must be Idle (not started, or already Wait()'d/Cancel()'d).
func (ch *Channel) Free() {
	e := ch.engine

	if ch.irqConnected {
		e.irqc.Unregister(e.dmaIRQBase + ch.num)
	}

	e.bus.PeripheralEntry()
	e.bus.Write32(ch.base+regCS, csReset)
	e.bus.PeripheralExit()

	for _, addr := range ch.cbAddrs {
		e.region.Free(addr)
	}

	e.pool.Free(ch.num)
}
