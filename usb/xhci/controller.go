package xhci

import (
	"fmt"
	"sync"

	"github.com/bcm2835go/bcm2835go/cache"
	"github.com/bcm2835go/bcm2835go/coherent"
	"github.com/bcm2835go/bcm2835go/irq"
	"github.com/bcm2835go/bcm2835go/logging"
	"github.com/bcm2835go/bcm2835go/mmio"
)

// Operational, runtime and doorbell register offsets, named for the
// XHCI_REG_OP_*/XHCI_REG_RT_*/XHCI_REG_DB_* macros referenced throughout
// original_source/lib/usb/xhcidevice.cpp and xhciendpoint.cpp. The macros'
// own header is not in the retrieved tree, so the specific byte offsets
// below are this package's own choice; only the field names and the
// operations built from them (USBCMD run/stop/reset, USBSTS event-
// interrupt ack, the runtime interrupter's event ring dequeue pointer,
// and a per-slot doorbell write) are grounded on that file.
const (
	regOpUSBCmd = 0x00
	regOpUSBSts = 0x04

	usbCmdRunStop = 1 << 0
	usbCmdHCRST   = 1 << 1
	usbCmdINTE    = 1 << 2

	usbStsHCH  = 1 << 0
	usbStsEINT = 1 << 3

	regRTIman  = 0x20
	regRTErdp  = 0x38
	rtImanIP   = 1 << 0

	regDBBase = 0x00

	dbTargetCommand = 0
	dbTargetEP0     = 1
)

// Controller drives a command ring and an event ring against a register
// bus, the top-level piece SlotManager/Ring/TRB were previously missing:
// it implements CommandSender by ringing the command doorbell and
// blocking for the matching completion event off the event ring, and its
// interrupt handler acks the host controller's event interrupt and drains
// that ring. Grounded on the doorbell/USBCMD/USBSTS/event-ring-dequeue
// sequences in xhcidevice.cpp (Initialize/IsPlugged/InterruptHandler) and
// xhciendpoint.cpp's db_write32 call.
type Controller struct {
	bus    mmio.Bus
	region *coherent.Region
	cache  cache.Maintainer
	irqc   *irq.Controller
	log    *logging.Logger

	opBase, rtBase, dbBase uint32
	irqLine                int

	cmdRing *Ring
	evtRing *EventRing
	slots   *SlotManager

	mu      sync.Mutex
	pending []chan TRB
}

// Config bundles a Controller's register addresses and shared resources.
type Config struct {
	Bus    mmio.Bus
	Region *coherent.Region
	Cache  cache.Maintainer
	IRQ    *irq.Controller
	Log    *logging.Logger

	OpBase, RTBase, DBBase uint32
	IRQLine                int

	CommandRingEntries int
	EventRingEntries   int
}

// NewController allocates the command and event rings in cfg.Region,
// registers the interrupt handler on cfg.IRQLine, and returns a
// Controller ready to drive a SlotManager (Slots()).
func NewController(cfg Config) (*Controller, error) {
	l := cfg.Log
	if l == nil {
		l = logging.Discard
	}

	cmdAddr, err := cfg.Region.Alloc((cfg.CommandRingEntries+1)*16, 64, 0)
	if err != nil {
		return nil, fmt.Errorf("xhci: allocating command ring: %w", err)
	}

	evtRing, err := NewEventRing(cfg.Region, cfg.EventRingEntries)
	if err != nil {
		return nil, fmt.Errorf("xhci: allocating event ring: %w", err)
	}

	c := &Controller{
		bus:     cfg.Bus,
		region:  cfg.Region,
		cache:   cfg.Cache,
		irqc:    cfg.IRQ,
		log:     l,
		opBase:  cfg.OpBase,
		rtBase:  cfg.RTBase,
		dbBase:  cfg.DBBase,
		irqLine: cfg.IRQLine,
		cmdRing: NewRing(cmdAddr, cfg.CommandRingEntries),
		evtRing: evtRing,
	}
	c.slots = NewSlotManager(c)

	if err := c.irqc.Register(cfg.IRQLine, c.handleInterrupt); err != nil {
		return nil, fmt.Errorf("xhci: registering IRQ %d: %w", cfg.IRQLine, err)
	}

	return c, nil
}

// Slots returns the SlotManager driven by this controller's command ring.
func (c *Controller) Slots() *SlotManager { return c.slots }

// Start sets the interrupter enable and Run/Stop bits in USBCMD, per
// xhcidevice.cpp's Initialize (lines enabling XHCI_REG_OP_USBCMD_INTE
// then XHCI_REG_OP_USBCMD_RUN_STOP).
func (c *Controller) Start() {
	c.bus.PeripheralEntry()
	cmd := c.bus.Read32(c.opBase+regOpUSBCmd) | usbCmdINTE
	c.bus.Write32(c.opBase+regOpUSBCmd, cmd)
	c.bus.Write32(c.opBase+regOpUSBCmd, cmd|usbCmdRunStop)
	c.bus.PeripheralExit()
}

// Stop clears Run/Stop in USBCMD, per xhcidevice.cpp's destructor.
func (c *Controller) Stop() {
	c.bus.PeripheralEntry()
	cmd := c.bus.Read32(c.opBase+regOpUSBCmd) &^ usbCmdRunStop
	c.bus.Write32(c.opBase+regOpUSBCmd, cmd)
	c.bus.PeripheralExit()
}

// PostCommand satisfies CommandSender: it publishes trb into the command
// ring's next slot (mirrored into coherent memory so a real controller
// could read it), rings the command doorbell, and blocks until
// handleInterrupt matches a Command Completion Event off the event ring
// to this command, in FIFO order (the xHC completes commands in the
// order they were issued).
func (c *Controller) PostCommand(trb TRB) (completionCode uint8, slotID uint8, err error) {
	c.mu.Lock()
	addr := c.cmdRing.EnqueueAddr()
	cycle := c.cmdRing.CycleState()

	slot := c.cmdRing.GetEnqueueTRB()
	*slot = trb
	slot.Control = (trb.Control &^ controlCycleBit) | cycle

	encodeTRB(*slot, c.region.Bytes(addr, 16))
	c.cache.CleanAndInvalidate(addr, 16)

	respCh := make(chan TRB, 1)
	c.pending = append(c.pending, respCh)
	c.mu.Unlock()

	c.bus.PeripheralEntry()
	c.bus.Write32(c.dbBase+regDBBase, dbTargetCommand)
	c.bus.PeripheralExit()

	evt := <-respCh
	return evt.CompletionCode(), uint8(evt.Control>>24) & 0x1F, nil
}

// RingEndpointDoorbell notifies the controller that new transfer TRBs are
// enqueued on endpointID's ring, per xhciendpoint.cpp's
// db_write32(slotID, XHCI_REG_DB_TARGET_EP0 + endpointID-1) call.
func (c *Controller) RingEndpointDoorbell(slotID, endpointID uint8) {
	c.bus.PeripheralEntry()
	c.bus.Write32(c.dbBase+regDBBase+uint32(slotID)*4, dbTargetEP0+uint32(endpointID)-1)
	c.bus.PeripheralExit()
}

// handleInterrupt acks the host controller's event interrupt in USBSTS
// and the interrupter's own pending bit, then drains every ready entry
// off the event ring, per xhcidevice.cpp's InterruptHandler.
func (c *Controller) handleInterrupt() {
	c.bus.PeripheralEntry()
	status := c.bus.Read32(c.opBase + regOpUSBSts)
	c.bus.Write32(c.opBase+regOpUSBSts, status|usbStsEINT)
	c.bus.Write32(c.rtBase+regRTIman, c.bus.Read32(c.rtBase+regRTIman)|rtImanIP)
	c.bus.PeripheralExit()

	for {
		evt, ok := c.evtRing.Next()
		if !ok {
			return
		}

		c.bus.PeripheralEntry()
		c.bus.Write32(c.rtBase+regRTErdp, c.evtRing.DequeueAddr())
		c.bus.PeripheralExit()

		if evt.Type() != TRBTypeCommandCompletionEvent {
			continue
		}

		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			c.log.Warn("xhci", "command completion event with no pending command")
			continue
		}
		ch := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()

		ch <- evt
	}
}

// SimulateEventRing writes trb onto this controller's event ring as if the
// host controller hardware had just produced it. Real hardware is the
// only producer of event-ring entries; this exists for test harnesses
// standing in for that hardware, mirroring EventRing.SimulateEvent through
// the Controller a test actually holds.
func (c *Controller) SimulateEventRing(trb TRB) uint32 {
	return c.evtRing.SimulateEvent(trb)
}

var _ CommandSender = (*Controller)(nil)
