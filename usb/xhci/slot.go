package xhci

import (
	"fmt"

	"github.com/bcm2835go/bcm2835go/usb"
	"github.com/bcm2835go/bcm2835go/usb/usberr"
)

// MaxSlots bounds the device context array, per spec.md §4.5's slot/event/
// command manager description. CXHCISlotManager's own source is not in
// the retrieved tree; the sequencing below follows spec.md §4.5 directly
// (enable slot, build input context, Address-Device command) plus the
// TRB/event mechanics grounded in ring.go/trb.go.
const MaxSlots = 32

// CommandSender posts a command TRB and blocks for its completion event,
// returning the completion code. Implemented by the real controller's
// command-ring/event-ring pump; tests supply a fake.
type CommandSender interface {
	PostCommand(trb TRB) (completionCode uint8, slotID uint8, err error)
}

// InputContext carries the Add-Context flags and slot/endpoint-0 context
// fields posted with an Address-Device command, per spec.md §4.5 step 3.
type InputContext struct {
	AddContextFlags uint32

	RouteString  uint32
	Speed        usb.Speed
	RootHubPort  uint8
	MaxExitLatency uint16

	// Populated when the device hangs off a high-speed hub feeding a
	// low/full-speed child, so the controller can route split
	// transactions through that hub's transaction translator.
	TTHubSlotID  uint8
	TTPortNumber uint8

	EP0MaxPacketSize uint32
	EP0RingAddr      uint32
}

const (
	addContextSlot = 1 << 0
	addContextEP0  = 1 << 1
)

// SlotManager tracks the device-context array and drives slot allocation/
// addressing, per spec.md §4.5.
type SlotManager struct {
	sender CommandSender
	slots  [MaxSlots]bool // true once allocated
}

func NewSlotManager(sender CommandSender) *SlotManager {
	return &SlotManager{sender: sender}
}

// EnableSlot issues an Enable Slot command and records the assigned slot
// ID as in use.
func (m *SlotManager) EnableSlot() (uint8, error) {
	code, slotID, err := m.sender.PostCommand(TRB{
		Control: TRBTypeEnableSlot << controlTRBTypeShift,
	})
	if err != nil {
		return 0, err
	}
	if !Success(code) {
		return 0, fmt.Errorf("xhci: enable slot failed: %w", usberr.CommandError)
	}
	if slotID == 0 || int(slotID) >= MaxSlots {
		panic("xhci: event targeted a slot outside the allocated range")
	}

	m.slots[slotID] = true
	return slotID, nil
}

// AddressDevice posts an Address-Device command with ic's input context
// pointer for slotID, per spec.md §4.5 step 3.
func (m *SlotManager) AddressDevice(slotID uint8, inputContextAddr uint32, ic InputContext) error {
	if !m.slots[slotID] {
		panic("xhci: AddressDevice on a slot that was never allocated")
	}

	code, _, err := m.sender.PostCommand(TRB{
		Parameter1: inputContextAddr,
		Control:    (TRBTypeAddressDevice << controlTRBTypeShift) | uint32(slotID)<<24,
	})
	if err != nil {
		return err
	}
	if !Success(code) {
		return fmt.Errorf("xhci: address device failed (slot %d): %w", slotID, usberr.CommandError)
	}

	return nil
}

// DisableSlot frees slotID back to the pool after device removal.
func (m *SlotManager) DisableSlot(slotID uint8) error {
	if !m.slots[slotID] {
		panic("xhci: DisableSlot on a slot that was never allocated")
	}

	code, _, err := m.sender.PostCommand(TRB{
		Control: (TRBTypeDisableSlot << controlTRBTypeShift) | uint32(slotID)<<24,
	})
	if err != nil {
		return err
	}
	if !Success(code) {
		return fmt.Errorf("xhci: disable slot failed (slot %d): %w", slotID, usberr.CommandError)
	}

	m.slots[slotID] = false
	return nil
}

// BuildInputContext assembles the Add-Context flags and slot/EP0 fields
// for a device's first Address-Device command, per spec.md §4.5 step 3.
// ttSlotID/ttPortNumber are zero unless dev requires split-transaction
// routing through a parent hub's transaction translator.
func BuildInputContext(dev *usb.Device, rootHubPort uint8, ttSlotID, ttPortNumber uint8) InputContext {
	return InputContext{
		AddContextFlags: addContextSlot | addContextEP0,
		RouteString:     dev.RouteString,
		Speed:           dev.Speed,
		RootHubPort:     rootHubPort,
		TTHubSlotID:     ttSlotID,
		TTPortNumber:    ttPortNumber,
		EP0MaxPacketSize: dev.Endpoint0.MaxPacketSize(),
	}
}

// ResetHaltedEndpoint recovers a STALLed or otherwise halted endpoint: a
// Reset-Endpoint command, then Set-TR-Dequeue-Pointer to skip the
// offending TRB past ring, and -- for a hub-attached low/full-speed
// device -- Clear-TT-Buffer on the parent hub, per spec.md §4.5's
// "Endpoint reset" paragraph.
func ResetHaltedEndpoint(sender CommandSender, slotID uint8, endpointID uint8, ring *Ring, skipPastAddr uint32, ttHubSlotID uint8, ttEndpointID uint8) error {
	code, _, err := sender.PostCommand(TRB{
		Control: (TRBTypeResetEndpoint << controlTRBTypeShift) | uint32(slotID)<<24 | uint32(endpointID)<<16,
	})
	if err != nil {
		return err
	}
	if !Success(code) {
		return fmt.Errorf("xhci: reset endpoint failed (slot %d ep %d): %w", slotID, endpointID, usberr.CommandError)
	}

	if err := ring.SetDequeuePointer(skipPastAddr); err != nil {
		return err
	}

	code, _, err = sender.PostCommand(TRB{
		Parameter1: skipPastAddr | ring.CycleState(),
		Control:    (TRBTypeSetTRDequeue << controlTRBTypeShift) | uint32(slotID)<<24 | uint32(endpointID)<<16,
	})
	if err != nil {
		return err
	}
	if !Success(code) {
		return fmt.Errorf("xhci: set TR dequeue pointer failed (slot %d ep %d): %w", slotID, endpointID, usberr.CommandError)
	}

	if ttHubSlotID != 0 {
		code, _, err = sender.PostCommand(TRB{
			Control: uint32(ttHubSlotID)<<24 | uint32(ttEndpointID)<<16,
		})
		if err != nil {
			return err
		}
		if !Success(code) {
			return fmt.Errorf("xhci: clear TT buffer failed (hub slot %d): %w", ttHubSlotID, usberr.CommandError)
		}
	}

	return nil
}
