package testboard

import (
	"testing"

	"github.com/bcm2835go/bcm2835go/coherent"
	"github.com/bcm2835go/bcm2835go/irq"
	"github.com/bcm2835go/bcm2835go/usb/xhci"
)

// TestXHCIControllerEnableSlotEndToEnd drives a real xhci.Controller --
// command ring, event ring, doorbell and interrupt handling all included
// -- through a single Enable Slot command, standing in for the controller
// hardware with an MMIOFake whose OnWrite32 hook recognizes the command
// doorbell write and reacts the way silicon would: it writes a Command
// Completion Event into the controller's own event ring and raises its
// interrupt line. This is the scenario review comment 5 asked for: a
// Controller actually wired to register reads/writes, not just the
// isolated Ring/SlotManager/TRB building blocks exercised elsewhere.
func TestXHCIControllerEnableSlotEndToEnd(t *testing.T) {
	bus := NewMMIOFake()
	region := coherent.NewFakeRegion(64 * 1024)
	irqc := irq.NewController()

	const (
		opBase  = 0x100000
		rtBase  = 0x200000
		dbBase  = 0x300000
		irqLine = 30
	)

	c, err := xhci.NewController(xhci.Config{
		Bus:                bus,
		Region:             region,
		Cache:              &CacheFake{},
		IRQ:                irqc,
		OpBase:             opBase,
		RTBase:             rtBase,
		DBBase:             dbBase,
		IRQLine:            irqLine,
		CommandRingEntries: 4,
		EventRingEntries:   4,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	const wantSlotID = 7

	bus.OnWrite32 = func(addr uint32, val uint32) {
		if addr != dbBase || val != 0 { // the command doorbell target
			return
		}

		c.SimulateEventRing(xhci.TRB{
			Status:  xhci.CompletionCodeSuccess << 24,
			Control: uint32(xhci.TRBTypeCommandCompletionEvent)<<10 | uint32(wantSlotID)<<24,
		})
		irqc.Dispatch(irqLine)
	}

	c.Start()

	slotID, err := c.Slots().EnableSlot()
	if err != nil {
		t.Fatalf("EnableSlot: %v", err)
	}
	if slotID != wantSlotID {
		t.Fatalf("EnableSlot returned slot %d, want %d", slotID, wantSlotID)
	}

	if got := bus.Read32(opBase); got&1 == 0 {
		t.Fatalf("USBCMD = %#x, want Run/Stop set after Start", got)
	}
}
