// Package xhci implements the ring/event/command/slot manager for the
// newer host controller, grounded on original_source/lib/usb/xhcidevice.cpp
// and lib/usb/xhciendpoint.cpp. Those files use a CXHCIRing class whose
// own source is not present in the retrieved tree; Ring (ring.go) is original
// work built to spec.md §4.3's ring invariants ("last TRB is a Link TRB
// ... producer cycle-state flips each wrap") and to the EnqueueTRB/
// GetEnqueueTRB call pattern visible in xhciendpoint.cpp.
package xhci

// TRB is one 16-byte Transfer Request Block, per spec.md glossary.
type TRB struct {
	Parameter1 uint32
	Parameter2 uint32
	Status     uint32
	Control    uint32
}

// TRB type field values (XHCI_TRB_TYPE_*), per usage in xhciendpoint.cpp.
const (
	TRBTypeNormal       = 1
	TRBTypeSetupStage   = 2
	TRBTypeDataStage    = 3
	TRBTypeStatusStage  = 4
	TRBTypeIsoch        = 5
	TRBTypeLink         = 6
	TRBTypeEnableSlot   = 9
	TRBTypeDisableSlot   = 10
	TRBTypeAddressDevice = 11
	TRBTypeConfigEndpoint = 12
	TRBTypeResetEndpoint = 14
	TRBTypeStopEndpoint  = 15
	TRBTypeSetTRDequeue  = 16
	TRBTypeResetDevice   = 17

	TRBTypeTransferEvent = 32
	TRBTypeCommandCompletionEvent = 33
	TRBTypePortStatusChangeEvent  = 34
)

const (
	controlCycleBit      = 1 << 0
	controlToggleCycle   = 1 << 1
	controlTRBTypeShift  = 10
)

// CompletionCode extracts the completion code byte from a transfer or
// command completion event TRB's Status field.
func (t *TRB) CompletionCode() uint8 {
	return uint8(t.Status >> 24)
}

// Success reports whether a completion code indicates the operation
// succeeded, per XHCI_TRB_SUCCESS (success == 1, short packet == 13 is
// handled separately by callers that care).
func Success(completionCode uint8) bool {
	return completionCode == 1
}

const (
	CompletionCodeSuccess      = 1
	CompletionCodeShortPacket  = 13
	CompletionCodeRingUnderrun = 24
	CompletionCodeRingOverrun  = 25
)

// Type returns the TRB type field from Control.
func (t *TRB) Type() int {
	return int((t.Control >> controlTRBTypeShift) & 0x3F)
}
