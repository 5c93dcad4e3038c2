package testboard

import (
	"testing"

	"github.com/bcm2835go/bcm2835go/usb"
	"github.com/bcm2835go/bcm2835go/usb/xhci"
)

// nopHostController satisfies usb.HostController without touching any
// hardware: this scenario drives slot/command-ring setup only, so a
// Device never needs to issue a real control transfer through it.
type nopHostController struct{}

func (nopHostController) GetDescriptor(ep *usb.Endpoint, descType, index uint8, buf []byte) (int, error) {
	return 0, nil
}
func (nopHostController) SetAddress(ep *usb.Endpoint, address uint8) error    { return nil }
func (nopHostController) SetConfiguration(ep *usb.Endpoint, configValue uint8) error { return nil }

// TestUSBFakeDeviceEnumerationSequence drives usb/xhci's SlotManager
// through a full device-enumeration command sequence -- Enable Slot,
// Address Device with an input context built from a freshly connected
// root-port device, and Disable Slot on removal -- per spec.md §8
// scenario 4, using USBFake in place of a real command-ring/event-ring
// pump.
func TestUSBFakeDeviceEnumerationSequence(t *testing.T) {
	fake := NewUSBFake(
		ScriptedCompletion{CompletionCode: xhci.CompletionCodeSuccess, SlotID: 1}, // Enable Slot
		ScriptedCompletion{CompletionCode: xhci.CompletionCodeSuccess},            // Address Device
		ScriptedCompletion{CompletionCode: xhci.CompletionCodeSuccess},            // Disable Slot
	)

	mgr := xhci.NewSlotManager(fake)

	dev := usb.NewRootDevice(nopHostController{}, usb.SpeedHigh, 1)
	dev.Endpoint0.SetMaxPacketSize(64)

	slotID, err := mgr.EnableSlot()
	if err != nil {
		t.Fatalf("EnableSlot: %v", err)
	}
	if slotID != 1 {
		t.Fatalf("EnableSlot returned slot %d, want 1", slotID)
	}

	ic := xhci.BuildInputContext(dev, dev.RootHubPortID, 0, 0)
	if ic.EP0MaxPacketSize != 64 {
		t.Fatalf("input context EP0MaxPacketSize = %d, want 64", ic.EP0MaxPacketSize)
	}

	const inputContextAddr = 0x10000
	if err := mgr.AddressDevice(slotID, inputContextAddr, ic); err != nil {
		t.Fatalf("AddressDevice: %v", err)
	}

	if err := mgr.DisableSlot(slotID); err != nil {
		t.Fatalf("DisableSlot: %v", err)
	}

	if !fake.Exhausted() {
		t.Fatalf("expected all 3 scripted completions to be consumed, %d calls recorded", len(fake.Calls))
	}

	wantTypes := []int{xhci.TRBTypeEnableSlot, xhci.TRBTypeAddressDevice, xhci.TRBTypeDisableSlot}
	if len(fake.Calls) != len(wantTypes) {
		t.Fatalf("expected %d posted commands, got %d", len(wantTypes), len(fake.Calls))
	}
	for i, want := range wantTypes {
		if got := fake.Calls[i].Type(); got != want {
			t.Fatalf("call %d: TRB type = %d, want %d", i, got, want)
		}
	}
}

// TestUSBFakeEndpointStallRecovery covers the xHCI half of spec.md §8
// scenario 2: a transfer ring's TRBs are produced and consumed, a STALL
// is simulated, and ResetHaltedEndpoint is driven through its full
// Reset-Endpoint / Set-TR-Dequeue-Pointer / Clear-TT-Buffer command
// sequence against a low-speed device routed through a hub's transaction
// translator.
func TestUSBFakeEndpointStallRecovery(t *testing.T) {
	const ringBase = 0x20000
	ring := xhci.NewRing(ringBase, 4)

	// Produce three Normal TRBs, as if queuing three transfer segments.
	var produced []uint32
	for i := 0; i < 3; i++ {
		trb := ring.GetEnqueueTRB()
		trb.Parameter1 = uint32(0x30000 + i*0x1000)
		trb.Control = xhci.TRBTypeNormal << 10
		produced = append(produced, trb.Parameter1)
	}

	// Consume the first two as if the controller's event ring reported
	// them complete; the third is where the STALL happens.
	first := ring.Dequeue()
	if first.Parameter1 != produced[0] {
		t.Fatalf("first dequeued TRB = %#x, want %#x", first.Parameter1, produced[0])
	}
	second := ring.Dequeue()
	if second.Parameter1 != produced[1] {
		t.Fatalf("second dequeued TRB = %#x, want %#x", second.Parameter1, produced[1])
	}

	fake := NewUSBFake(
		ScriptedCompletion{CompletionCode: xhci.CompletionCodeSuccess}, // Reset Endpoint
		ScriptedCompletion{CompletionCode: xhci.CompletionCodeSuccess}, // Set TR Dequeue Pointer
		ScriptedCompletion{CompletionCode: xhci.CompletionCodeSuccess}, // Clear TT Buffer
	)

	const slotID, endpointID = 1, 2
	const ttHubSlotID, ttEndpointID = 3, 1

	// Recover past the stalled (third) TRB, routed through the parent
	// hub's transaction translator since this is a low/full-speed child.
	skipPastAddr := ringBase + 3*16
	if err := xhci.ResetHaltedEndpoint(fake, slotID, endpointID, ring, uint32(skipPastAddr), ttHubSlotID, ttEndpointID); err != nil {
		t.Fatalf("ResetHaltedEndpoint: %v", err)
	}

	if !fake.Exhausted() {
		t.Fatalf("expected all 3 scripted completions to be consumed, %d calls recorded", len(fake.Calls))
	}

	wantTypes := []int{xhci.TRBTypeResetEndpoint, xhci.TRBTypeSetTRDequeue}
	for i, want := range wantTypes {
		if got := fake.Calls[i].Type(); got != want {
			t.Fatalf("call %d: TRB type = %d, want %d", i, got, want)
		}
	}

	clearTT := fake.Calls[2]
	gotHubSlot := uint8(clearTT.Control >> 24)
	gotEndpoint := uint8(clearTT.Control >> 16)
	if gotHubSlot != ttHubSlotID || gotEndpoint != ttEndpointID {
		t.Fatalf("Clear TT Buffer control = %#x, want hub slot %d endpoint %d", clearTT.Control, ttHubSlotID, ttEndpointID)
	}

	// The ring's dequeue pointer must now point past the stalled TRB.
	next := ring.Dequeue()
	if next.Parameter1 == produced[2] {
		t.Fatal("expected SetDequeuePointer to have skipped the stalled TRB")
	}
}
