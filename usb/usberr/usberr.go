// Package usberr enumerates the USB error kinds spec.md §7 requires to be
// carried on a URB, grounded on original_source/lib/usb/dwhcixferstagedata.cpp's
// transaction status bits and lib/usb/xhcidevice.cpp's command completion
// codes.
package usberr

// Error is a terminal or transient USB transfer error surfaced to a URB's
// Status/UsbError pair.
type Error int

const (
	// None indicates no error.
	None Error = iota
	// Stall is a protocol STALL handshake.
	Stall
	// Babble is an over-length or malformed response.
	Babble
	// DataToggle is a DATA0/DATA1 PID mismatch.
	DataToggle
	// XactError is a transient transaction-level error (CRC, bit stuff,
	// timeout on the wire); retried internally up to a per-kind limit.
	XactError
	// AHBError is a host-bus (AHB/PCI) access fault, terminal.
	AHBError
	// Timeout indicates an interrupt URB's explicit deadline elapsed.
	Timeout
	// CommandError indicates an xHCI command completion event reported a
	// non-success completion code.
	CommandError
	// FrameOverrun indicates a periodic transfer missed its frame slot.
	FrameOverrun
)

func (e Error) Error() string {
	switch e {
	case None:
		return "usb: no error"
	case Stall:
		return "usb: stall"
	case Babble:
		return "usb: babble"
	case DataToggle:
		return "usb: data toggle mismatch"
	case XactError:
		return "usb: transaction error"
	case AHBError:
		return "usb: host-bus error"
	case Timeout:
		return "usb: timeout"
	case CommandError:
		return "usb: command error"
	case FrameOverrun:
		return "usb: frame overrun"
	default:
		return "usb: unknown error"
	}
}

// Terminal reports whether the error kind should immediately fail the URB
// without further internal retry, per spec.md §7's transient/terminal
// classification.
func (e Error) Terminal() bool {
	switch e {
	case Stall, Babble, DataToggle, AHBError, CommandError:
		return true
	default:
		return false
	}
}
