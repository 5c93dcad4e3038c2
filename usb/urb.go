// Package usb holds the shared device model used by both host controller
// back ends (the legacy split-transfer engine in usb/dwhci and the xHCI
// manager in usb/xhci): the request/endpoint/device objects, grounded on
// original_source/include/circle/usb/usbrequest.h, usbendpoint.h and
// usbdevice.h and their .cpp counterparts.
package usb

import "github.com/bcm2835go/bcm2835go/usb/usberr"

// SetupData is the 8-byte control transfer setup packet, per USB 2.0 §9.3.
type SetupData struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// CompletionFunc is invoked once a URB finishes, successfully or not.
type CompletionFunc func(u *URB, param, context interface{})

// URB is a single USB transfer request, per spec.md §4.3 ("USB request
// (URB)"). A control transfer's Setup field is populated; bulk/interrupt
// transfers use Buffer directly; isochronous transfers additionally use
// PacketSizes/PacketResults.
type URB struct {
	Endpoint *Endpoint

	Setup  *SetupData
	Buffer []byte

	PacketSizes   []int // per-packet requested size, isochronous only
	PacketResults []int // per-packet actual length, filled on completion

	ResultLength int
	Status       bool
	UsbError     usberr.Error

	CompleteOnNAK bool

	completion    CompletionFunc
	completionParam, completionContext interface{}
}

// NewControlURB builds a control-transfer URB targeting ep0.
func NewControlURB(ep *Endpoint, setup *SetupData, buffer []byte) *URB {
	return &URB{Endpoint: ep, Setup: setup, Buffer: buffer}
}

// NewURB builds a bulk/interrupt-transfer URB.
func NewURB(ep *Endpoint, buffer []byte) *URB {
	return &URB{Endpoint: ep, Buffer: buffer}
}

// NewIsochronousURB builds an isochronous-transfer URB with one packet
// per entry of packetSizes, each of the given size.
func NewIsochronousURB(ep *Endpoint, buffer []byte, packetSizes []int) *URB {
	return &URB{
		Endpoint:      ep,
		Buffer:        buffer,
		PacketSizes:   packetSizes,
		PacketResults: make([]int, len(packetSizes)),
	}
}

// SetCompletionRoutine registers the callback invoked by Complete.
func (u *URB) SetCompletionRoutine(fn CompletionFunc, param, context interface{}) {
	u.completion = fn
	u.completionParam = param
	u.completionContext = context
}

// Complete finalizes the URB with the given outcome and, if a completion
// routine is registered, invokes it; otherwise it is the synchronous
// caller's responsibility to inspect Status/UsbError after the call that
// submitted the URB returns.
func (u *URB) Complete(status bool, resultLength int, err usberr.Error) {
	u.Status = status
	u.ResultLength = resultLength
	u.UsbError = err

	if u.completion != nil {
		u.completion(u, u.completionParam, u.completionContext)
	}
}

func (u *URB) NumIsoPackets() int { return len(u.PacketSizes) }

func (u *URB) IsoPacketSize(i int) int { return u.PacketSizes[i] }
